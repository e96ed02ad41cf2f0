// Package evaluator executes CherryScript syntax trees.
//
// Runtime values form a sealed interface. Arrays and dicts are reference
// values (pointer types) so in-place mutation such as append is visible
// through every binding; dicts preserve insertion order.
package evaluator

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is the sealed interface over all CherryScript runtime values.
type Value interface {
	value()
}

type Null struct{}

type Bool struct{ Value bool }

type Int struct{ Value int64 }

type Float struct{ Value float64 }

type String struct{ Value string }

// Array is a mutable ordered sequence. Always handled as *Array.
type Array struct {
	Items []Value
}

// Dict is a mutable string-keyed map that preserves insertion order.
// Always handled as *Dict.
type Dict struct {
	keys  []string
	items map[string]Value
}

func (Null) value()    {}
func (Bool) value()    {}
func (Int) value()     {}
func (Float) value()   {}
func (String) value()  {}
func (*Array) value()  {}
func (*Dict) value()   {}

// NewArray builds an array value over items.
func NewArray(items ...Value) *Array {
	return &Array{Items: items}
}

// NewDict builds an empty dict.
func NewDict() *Dict {
	return &Dict{items: make(map[string]Value)}
}

// Set inserts or replaces a key, appending new keys in order.
func (d *Dict) Set(key string, v Value) {
	if _, ok := d.items[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.items[key] = v
}

// Get returns the value for key.
func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.items[key]
	return v, ok
}

// Keys returns the keys in insertion order. The slice is shared; callers
// must not mutate it.
func (d *Dict) Keys() []string { return d.keys }

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Truthiness follows the scripting convention: null, false, zero, the
// empty string, and empty containers are falsy; everything else, handles
// included, is truthy.
func Truthiness(v Value) bool {
	switch t := v.(type) {
	case Null, nil:
		return false
	case Bool:
		return t.Value
	case Int:
		return t.Value != 0
	case Float:
		return t.Value != 0
	case String:
		return t.Value != ""
	case *Array:
		return len(t.Items) > 0
	case *Dict:
		return t.Len() > 0
	default:
		return true
	}
}

// numeric extracts a float64 view of ints and floats.
func numeric(v Value) (float64, bool) {
	switch t := v.(type) {
	case Int:
		return float64(t.Value), true
	case Float:
		return t.Value, true
	}
	return 0, false
}

// DeepEqual implements structural equality. Ints and floats compare
// numerically; any other cross-type comparison is simply false.
func DeepEqual(a, b Value) bool {
	if an, ok := numeric(a); ok {
		if bn, ok := numeric(b); ok {
			return an == bn
		}
		return false
	}
	switch at := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bt, ok := b.(Bool)
		return ok && at.Value == bt.Value
	case String:
		bt, ok := b.(String)
		return ok && at.Value == bt.Value
	case *Array:
		bt, ok := b.(*Array)
		if !ok || len(at.Items) != len(bt.Items) {
			return false
		}
		for i := range at.Items {
			if !DeepEqual(at.Items[i], bt.Items[i]) {
				return false
			}
		}
		return true
	case *Dict:
		bt, ok := b.(*Dict)
		if !ok || at.Len() != bt.Len() {
			return false
		}
		for _, k := range at.keys {
			bv, ok := bt.Get(k)
			if !ok || !DeepEqual(at.items[k], bv) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// ToString renders a value for display. Strings render bare at the top
// level but quoted inside containers.
func ToString(v Value) string {
	if s, ok := v.(String); ok {
		return s.Value
	}
	return repr(v)
}

func repr(v Value) string {
	switch t := v.(type) {
	case Null, nil:
		return "null"
	case Bool:
		if t.Value {
			return "true"
		}
		return "false"
	case Int:
		return strconv.FormatInt(t.Value, 10)
	case Float:
		return formatFloat(t.Value)
	case String:
		return strconv.Quote(t.Value)
	case *Array:
		parts := make([]string, len(t.Items))
		for i, it := range t.Items {
			parts[i] = repr(it)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Dict:
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range t.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(k))
			b.WriteString(": ")
			b.WriteString(repr(t.items[k]))
		}
		b.WriteByte('}')
		return b.String()
	default:
		if s, ok := v.(fmt.Stringer); ok {
			return s.String()
		}
		return fmt.Sprintf("<%s>", typeNameOf(v))
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func typeNameOf(v Value) string {
	switch t := v.(type) {
	case Null, nil:
		return "null"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case *Array:
		return "array"
	case *Dict:
		return "dict"
	case Handle:
		return t.HandleKind()
	default:
		return "value"
	}
}
