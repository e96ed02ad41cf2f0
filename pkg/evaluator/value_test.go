package evaluator

import "testing"

func TestTruthiness(t *testing.T) {
	falsy := []Value{
		Null{},
		Bool{Value: false},
		Int{Value: 0},
		Float{Value: 0},
		String{Value: ""},
		NewArray(),
		NewDict(),
	}
	for _, v := range falsy {
		if Truthiness(v) {
			t.Errorf("%#v should be falsy", v)
		}
	}
	truthy := []Value{
		Bool{Value: true},
		Int{Value: -1},
		Float{Value: 0.1},
		String{Value: "0"},
		NewArray(Null{}),
	}
	for _, v := range truthy {
		if !Truthiness(v) {
			t.Errorf("%#v should be truthy", v)
		}
	}
}

func TestDeepEqualCrossType(t *testing.T) {
	if !DeepEqual(Int{Value: 1}, Float{Value: 1}) {
		t.Error("ints and floats compare numerically")
	}
	if DeepEqual(Int{Value: 1}, String{Value: "1"}) {
		t.Error("numbers never equal strings")
	}
	if DeepEqual(Bool{Value: true}, Int{Value: 1}) {
		t.Error("bools never equal numbers")
	}
	if DeepEqual(NewArray(), NewDict()) {
		t.Error("containers of different kinds never equal")
	}
}

func TestDictInsertionOrder(t *testing.T) {
	d := NewDict()
	d.Set("b", Int{Value: 1})
	d.Set("a", Int{Value: 2})
	d.Set("b", Int{Value: 3}) // replace keeps the original position

	keys := d.Keys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
		t.Fatalf("keys %v", keys)
	}
	if v, _ := d.Get("b"); !DeepEqual(v, Int{Value: 3}) {
		t.Fatalf("b = %#v", v)
	}
}

func TestToString(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Null{}, "null"},
		{Bool{Value: true}, "true"},
		{Int{Value: 42}, "42"},
		{Float{Value: 2.5}, "2.5"},
		{Float{Value: 3}, "3"},
		{String{Value: "plain"}, "plain"},
		{NewArray(Int{Value: 1}, String{Value: "a"}), `[1, "a"]`},
	}
	for _, tc := range cases {
		if got := ToString(tc.v); got != tc.want {
			t.Errorf("ToString(%#v) = %q, want %q", tc.v, got, tc.want)
		}
	}

	d := NewDict()
	d.Set("k", String{Value: "v"})
	if got := ToString(d); got != `{"k": "v"}` {
		t.Errorf("dict rendering %q", got)
	}
}

func TestFloorDivisionHelpers(t *testing.T) {
	cases := []struct{ a, b, div, mod int64 }{
		{7, 2, 3, 1},
		{-7, 2, -4, 1},
		{7, -2, -4, -1},
		{-7, -2, 3, -1},
		{10, 5, 2, 0},
	}
	for _, tc := range cases {
		if got := floorDivInt(tc.a, tc.b); got != tc.div {
			t.Errorf("floorDivInt(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.div)
		}
		if got := floorModInt(tc.a, tc.b); got != tc.mod {
			t.Errorf("floorModInt(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.mod)
		}
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	d := NewDict()
	d.Set("name", String{Value: "Ada"})
	d.Set("n", Int{Value: 3})
	d.Set("ratio", Float{Value: 0.5})
	d.Set("tags", NewArray(String{Value: "x"}, Null{}))

	data, err := MarshalValue(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := UnmarshalValue(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, ok := back.(*Dict)
	if !ok {
		t.Fatalf("got %T", back)
	}
	if v, _ := got.Get("name"); !DeepEqual(v, String{Value: "Ada"}) {
		t.Fatalf("name = %#v", v)
	}
	// Whole numbers decode back to ints.
	if v, _ := got.Get("n"); !DeepEqual(v, Int{Value: 3}) {
		t.Fatalf("n = %#v", v)
	}
	if v, _ := got.Get("ratio"); !DeepEqual(v, Float{Value: 0.5}) {
		t.Fatalf("ratio = %#v", v)
	}
}
