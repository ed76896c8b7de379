package port

import (
	"encoding/json"
	"testing"
)

func TestTypeJSONRoundTrip(t *testing.T) {
	types := []Type{
		Prim(Text),
		Prim(Any),
		Contract("llm.provider.v1"),
		ListOf(Prim(Number)),
		ListOf(Contract("mcp.tool.v1")),
		MapOf(Text),
	}
	for _, typ := range types {
		t.Run(Describe(typ), func(t *testing.T) {
			data, err := json.Marshal(typ)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var decoded Type
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !Equals(typ, decoded) {
				t.Errorf("round trip changed type: %s -> %s", Describe(typ), Describe(decoded))
			}
		})
	}
}

func TestFromJSONShapes(t *testing.T) {
	v := FromJSON(map[string]interface{}{
		"name":   "org/repo",
		"count":  float64(3),
		"push":   true,
		"forked": false,
		"stars":  float64(0),
		"tags":   []interface{}{"a", "b"},
		"none":   nil,
	})
	if v.Map == nil {
		t.Fatal("object did not decode to a map value")
	}
	if v.Map["name"].Str != "org/repo" {
		t.Errorf("name = %v", v.Map["name"])
	}
	if v.Map["count"].Num != 3 {
		t.Errorf("count = %v", v.Map["count"])
	}
	if !v.Map["push"].Bool {
		t.Errorf("push = %v", v.Map["push"])
	}
	if v.Map["forked"].Kind != ValueBool || v.Map["forked"].Bool {
		t.Errorf("forked = %v, want tagged false", v.Map["forked"])
	}
	if v.Map["stars"].Kind != ValueNumber || v.Map["stars"].Num != 0 {
		t.Errorf("stars = %v, want tagged 0", v.Map["stars"])
	}
	if len(v.Map["tags"].List) != 2 {
		t.Errorf("tags = %v", v.Map["tags"])
	}
	if !v.Map["none"].Null {
		t.Errorf("none = %v", v.Map["none"])
	}
}

func TestInterfacePreservesFalsyValues(t *testing.T) {
	if got := BoolValue(false).Interface(); got != false {
		t.Errorf("BoolValue(false).Interface() = %v, want false", got)
	}
	if got := NumberValue(0).Interface(); got != float64(0) {
		t.Errorf("NumberValue(0).Interface() = %v, want 0", got)
	}
	if got := TextValue("").Interface(); got != "" {
		t.Errorf("TextValue(\"\").Interface() = %v, want empty string", got)
	}
	if got := NullValue().Interface(); got != nil {
		t.Errorf("NullValue().Interface() = %v, want nil", got)
	}
	if got := (Value{}).Interface(); got != nil {
		t.Errorf("zero Value Interface() = %v, want nil", got)
	}
}

func TestValueInterfaceRoundTrip(t *testing.T) {
	original := map[string]interface{}{
		"text":   "hello",
		"number": float64(4.5),
		"flag":   true,
		"off":    false,
		"zero":   float64(0),
		"list":   []interface{}{"x", float64(1), false},
		"nested": map[string]interface{}{"k": "v"},
	}
	values := MapFromJSON(original)
	back := MapValue(values).Interface().(map[string]interface{})

	data1, _ := json.Marshal(original)
	data2, _ := json.Marshal(back)
	var a, b interface{}
	_ = json.Unmarshal(data1, &a)
	_ = json.Unmarshal(data2, &b)
	if string(data1) == "" || string(data2) == "" {
		t.Fatal("marshal failed")
	}
	// Compare via canonical re-marshal.
	ra, _ := json.Marshal(a)
	rb, _ := json.Marshal(b)
	if string(ra) != string(rb) {
		t.Errorf("round trip changed value:\n%s\n%s", ra, rb)
	}
}
