package port

import (
	"fmt"
	"testing"
)

func TestCompatible_Identity(t *testing.T) {
	r := NewRegistry()
	r.RegisterContract("llm.provider.v1", SchemaFunc(func(Value) error { return nil }))

	cases := []struct {
		name     string
		from, to Type
		want     bool
	}{
		{"text-to-text", Prim(Text), Prim(Text), true},
		{"any-source", Prim(Any), Prim(Number), true},
		{"any-target", Prim(Number), Prim(Any), true},
		{"text-to-number-mismatch", Prim(Text), Prim(Number), true}, // coercion declared
		{"number-to-text-no-coercion", Prim(Number), Prim(Text), false},
		{"file-to-text", Prim(File), Prim(Text), true},
		{"text-to-json", Prim(Text), Prim(JSON), true},
		{"contract-match", Contract("llm.provider.v1"), Contract("llm.provider.v1"), true},
		{"contract-mismatch", Contract("llm.provider.v1"), Contract("mcp.tool.v1"), false},
		{"list-covariant", ListOf(Prim(File)), ListOf(Prim(Text)), true},
		{"list-elem-mismatch", ListOf(Prim(Number)), ListOf(Prim(Text)), false},
		{"map-match", MapOf(Text), MapOf(Text), true},
		{"map-mismatch", MapOf(Text), MapOf(Number), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.Compatible(tc.from, tc.to); got != tc.want {
				t.Errorf("Compatible(%s, %s) = %v, want %v", Describe(tc.from), Describe(tc.to), got, tc.want)
			}
		})
	}
}

func TestCoerce_TextToNumber(t *testing.T) {
	r := NewRegistry()
	v, err := r.Coerce(TextValue("42.5"), Prim(Text), Prim(Number))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Num != 42.5 {
		t.Errorf("got %v, want 42.5", v.Num)
	}
}

func TestCoerce_TextToJSONParses(t *testing.T) {
	r := NewRegistry()
	v, err := r.Coerce(TextValue(`{"repo":"org/x","count":2}`), Prim(Text), Prim(JSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != ValueMap {
		t.Fatalf("coerced kind = %s, want map", v.Kind)
	}
	if v.Map["repo"].Str != "org/x" || v.Map["count"].Num != 2 {
		t.Errorf("unexpected parsed value: %+v", v.Map)
	}

	if _, err := r.Coerce(TextValue("{not json"), Prim(Text), Prim(JSON)); err == nil {
		t.Error("expected error coercing malformed JSON text")
	}
}

func TestCoerce_ListElementwise(t *testing.T) {
	r := NewRegistry()
	in := ListValue([]Value{TextValue("1"), TextValue("2")})
	out, err := r.Coerce(in, ListOf(Prim(Text)), ListOf(Prim(Number)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.List) != 2 || out.List[0].Num != 1 || out.List[1].Num != 2 {
		t.Errorf("unexpected coerced list: %+v", out.List)
	}
}

func TestAsText(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want string
	}{
		{"text", TextValue("hello"), "hello"},
		{"empty text", TextValue(""), ""},
		{"true", BoolValue(true), "true"},
		{"false", BoolValue(false), "false"},
		{"number", NumberValue(42.5), "42.5"},
		{"zero number", NumberValue(0), "0"},
		{"bytes", BytesValue([]byte("raw")), "raw"},
		{"null", NullValue(), ""},
		{"unset", Value{}, ""},
		{"list", ListValue([]Value{TextValue("a"), NumberValue(1)}), `["a",1]`},
		{"map", MapValue(map[string]Value{"ok": BoolValue(false)}), `{"ok":false}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.v.AsText(); got != tc.want {
				t.Errorf("AsText() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEquals_And_Describe(t *testing.T) {
	a := ListOf(Contract("llm.provider.v1"))
	b := ListOf(Contract("llm.provider.v1"))
	if !Equals(a, b) {
		t.Error("expected structural equality")
	}
	if Describe(a) != "list<contract<llm.provider.v1>>" {
		t.Errorf("unexpected describe output: %s", Describe(a))
	}
}

func TestRegistry_ValidateContract(t *testing.T) {
	r := NewRegistry()
	if err := r.ValidateContract("missing", NullValue()); err == nil {
		t.Error("expected error for unregistered contract")
	}

	r.RegisterContract("mcp.tool.v1", SchemaFunc(func(v Value) error {
		if _, ok := v.Map["name"]; !ok {
			return fmt.Errorf("missing required field: name")
		}
		return nil
	}))

	if err := r.ValidateContract("mcp.tool.v1", ContractValue("mcp.tool.v1", map[string]Value{})); err == nil {
		t.Error("expected validation error for missing field")
	}
	if err := r.ValidateContract("mcp.tool.v1", ContractValue("mcp.tool.v1", map[string]Value{"name": TextValue("x")})); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}
