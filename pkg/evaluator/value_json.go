package evaluator

import (
	"math"

	"github.com/oarkflow/json"
)

// ValueToAny lowers a runtime value to plain Go data for JSON encoding.
// Dicts keep their insertion order only as far as the encoder preserves it.
func ValueToAny(v Value) any {
	switch t := v.(type) {
	case Null, nil:
		return nil
	case Bool:
		return t.Value
	case Int:
		return t.Value
	case Float:
		return t.Value
	case String:
		return t.Value
	case *Array:
		out := make([]any, len(t.Items))
		for i, it := range t.Items {
			out[i] = ValueToAny(it)
		}
		return out
	case *Dict:
		out := make(map[string]any, t.Len())
		for _, k := range t.Keys() {
			val, _ := t.Get(k)
			out[k] = ValueToAny(val)
		}
		return out
	default:
		return ToString(v)
	}
}

// AnyToValue lifts decoded JSON into runtime values. Whole-number floats
// become ints, matching how scripts write numeric literals.
func AnyToValue(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null{}
	case bool:
		return Bool{Value: t}
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return Int{Value: int64(t)}
		}
		return Float{Value: t}
	case int:
		return Int{Value: int64(t)}
	case int64:
		return Int{Value: t}
	case string:
		return String{Value: t}
	case []any:
		arr := &Array{Items: make([]Value, len(t))}
		for i, el := range t {
			arr.Items[i] = AnyToValue(el)
		}
		return arr
	case map[string]any:
		d := NewDict()
		for k, el := range t {
			d.Set(k, AnyToValue(el))
		}
		return d
	default:
		return Null{}
	}
}

// MarshalValue encodes a runtime value as JSON.
func MarshalValue(v Value) ([]byte, error) {
	return json.Marshal(ValueToAny(v))
}

// UnmarshalValue decodes JSON into a runtime value.
func UnmarshalValue(data []byte) (Value, error) {
	var x any
	if err := json.Unmarshal(data, &x); err != nil {
		return nil, err
	}
	return AnyToValue(x), nil
}
