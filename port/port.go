// Package port implements the canonical type system for node input/output
// ports: primitive types, named contracts, list/map constructors, and the
// compatibility and coercion rules that bind a source port to a target port.
package port

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Primitive enumerates the primitive port kinds.
type Primitive string

const (
	Any     Primitive = "any"
	Text    Primitive = "text"
	Secret  Primitive = "secret"
	Number  Primitive = "number"
	Boolean Primitive = "boolean"
	File    Primitive = "file"
	JSON    Primitive = "json"
)

// Kind discriminates the shape of a Type: a bare primitive, a named contract,
// a list of some element type, or a string-keyed map of primitives.
type Kind string

const (
	KindPrimitive Kind = "primitive"
	KindContract  Kind = "contract"
	KindList      Kind = "list"
	KindMap       Kind = "map"
)

// Type is the type of a node input or output port. It is an immutable value —
// construct one with the helpers below (Prim, Contract, ListOf, MapOf) rather
// than building the struct literal directly, so new Kind variants stay
// centralized.
type Type struct {
	kind      Kind
	primitive Primitive // valid when kind == KindPrimitive or KindMap; a list's element lives in elem
	contract  string    // valid when kind == KindContract; a list's element lives in elem
	elem      *Type     // valid when kind == KindList; nil otherwise
}

// Prim constructs a primitive port type.
func Prim(p Primitive) Type { return Type{kind: KindPrimitive, primitive: p} }

// Contract constructs a named-contract port type. name is the versioned
// contract key registered in a Registry, e.g. "llm.provider.v1".
func Contract(name string) Type { return Type{kind: KindContract, contract: name} }

// ListOf constructs a list-of-T port type. T must be a primitive or
// contract type; nested lists are rejected by ListOf to keep the type
// system first order.
func ListOf(elem Type) Type {
	if elem.kind != KindPrimitive && elem.kind != KindContract {
		panic(fmt.Sprintf("port: ListOf element must be primitive or contract, got %s", elem.kind))
	}
	e := elem
	return Type{kind: KindList, elem: &e}
}

// MapOf constructs a map[string]->primitive port type, restricted to the
// declared value primitive.
func MapOf(value Primitive) Type { return Type{kind: KindMap, primitive: value} }

// Kind returns the discriminant of this type.
func (t Type) Kind() Kind { return t.kind }

// Primitive returns the primitive value (for KindPrimitive/KindMap) or the
// element primitive for a KindList of primitives. ok is false otherwise.
func (t Type) Primitive() (Primitive, bool) {
	switch t.kind {
	case KindPrimitive, KindMap:
		return t.primitive, true
	case KindList:
		if t.elem != nil && t.elem.kind == KindPrimitive {
			return t.elem.primitive, true
		}
	}
	return "", false
}

// ContractName returns the contract name for KindContract, or the element
// contract name for a KindList of contracts. ok is false otherwise.
func (t Type) ContractName() (string, bool) {
	switch t.kind {
	case KindContract:
		return t.contract, true
	case KindList:
		if t.elem != nil && t.elem.kind == KindContract {
			return t.elem.contract, true
		}
	}
	return "", false
}

// Elem returns the element type of a list type and true, or the zero Type
// and false for any other kind.
func (t Type) Elem() (Type, bool) {
	if t.kind == KindList && t.elem != nil {
		return *t.elem, true
	}
	return Type{}, false
}

// IsAny reports whether this type is the wildcard primitive "any".
func (t Type) IsAny() bool { return t.kind == KindPrimitive && t.primitive == Any }

// Equals reports structural equality of two port types.
func Equals(a, b Type) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindPrimitive:
		return a.primitive == b.primitive
	case KindContract:
		return a.contract == b.contract
	case KindMap:
		return a.primitive == b.primitive
	case KindList:
		if a.elem == nil || b.elem == nil {
			return a.elem == b.elem
		}
		return Equals(*a.elem, *b.elem)
	default:
		return false
	}
}

// Describe produces a stable, human-readable label for a port type, used in
// compiler error messages and the catalog API.
func Describe(t Type) string {
	switch t.kind {
	case KindPrimitive:
		return string(t.primitive)
	case KindContract:
		return "contract<" + t.contract + ">"
	case KindMap:
		return "map<string," + string(t.primitive) + ">"
	case KindList:
		if t.elem == nil {
			return "list<?>"
		}
		return "list<" + Describe(*t.elem) + ">"
	default:
		return "unknown"
	}
}

func (t Type) String() string { return Describe(t) }

// typeJSON is the wire form of a Type. Types appear inside compiled plans,
// which are checkpointed and reloaded on restart, so the unexported fields
// must survive a JSON round trip.
type typeJSON struct {
	Kind      Kind      `json:"kind"`
	Primitive Primitive `json:"primitive,omitempty"`
	Contract  string    `json:"contract,omitempty"`
	Elem      *Type     `json:"elem,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(typeJSON{Kind: t.kind, Primitive: t.primitive, Contract: t.contract, Elem: t.elem})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Type) UnmarshalJSON(data []byte) error {
	var w typeJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.kind = w.Kind
	t.primitive = w.Primitive
	t.contract = w.Contract
	t.elem = w.Elem
	return nil
}

// ValueKind discriminates which arm of the Value union is populated,
// mirroring Type's kind field. The zero ValueKind marks the zero Value —
// an input that was never supplied — and renders like null.
type ValueKind string

const (
	ValueNull   ValueKind = "null"
	ValueBool   ValueKind = "bool"
	ValueNumber ValueKind = "number"
	ValueText   ValueKind = "text"
	ValueBytes  ValueKind = "bytes"
	ValueList   ValueKind = "list"
	ValueMap    ValueKind = "map"
)

// Value is the tagged-union runtime representation of a port value, kept
// as a tagged union rather than `any` so component boundaries convert
// explicitly. Kind is the explicit discriminant: construct values with the
// helpers below so it is always set — without it, BoolValue(false) and
// NumberValue(0) would be indistinguishable from an unset Value.
type Value struct {
	Kind     ValueKind
	Null     bool
	Bool     bool
	Num      float64
	Str      string
	Bytes    []byte
	List     []Value
	Map      map[string]Value
	Contract string // contract name this value is claimed to satisfy, empty for non-contract values
}

// NullValue returns the null tagged value.
func NullValue() Value { return Value{Kind: ValueNull, Null: true} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// NumberValue wraps a float64.
func NumberValue(n float64) Value { return Value{Kind: ValueNumber, Num: n} }

// TextValue wraps a string.
func TextValue(s string) Value { return Value{Kind: ValueText, Str: s} }

// BytesValue wraps a byte slice (used for `file` port values).
func BytesValue(b []byte) Value { return Value{Kind: ValueBytes, Bytes: b} }

// ListValue wraps a slice of values.
func ListValue(vs []Value) Value { return Value{Kind: ValueList, List: vs} }

// MapValue wraps a string-keyed map of values.
func MapValue(m map[string]Value) Value { return Value{Kind: ValueMap, Map: m} }

// ContractValue wraps a map payload tagged with the contract name it
// satisfies.
func ContractValue(name string, m map[string]Value) Value {
	return Value{Kind: ValueMap, Map: m, Contract: name}
}

// AsText renders the value as its lexical text representation, used by
// coercions that accept `text` as a source and by runners that deliver
// inputs as strings (container env vars, remote wire bodies). Structured
// values render as their JSON encoding.
func (v Value) AsText() string {
	switch v.Kind {
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case ValueText:
		return v.Str
	case ValueBytes:
		return string(v.Bytes)
	case ValueList, ValueMap:
		b, err := json.Marshal(v.Interface())
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return "" // null, or the zero Value of a never-supplied input
	}
}

// coercionRule declares that an input of type `to` may accept a source of
// type `from`, along with the pure conversion function used at runtime.
type coercionRule struct {
	to, from Primitive
	convert  func(Value) (Value, error)
}

// defaultCoercions declares the built-in asymmetric coercions: text
// accepts file (reads content), json accepts text (parses), number and
// boolean accept text (lexical conversion).
var defaultCoercions = []coercionRule{
	{to: Text, from: File, convert: func(v Value) (Value, error) { return TextValue(string(v.Bytes)), nil }},
	{to: JSON, from: Text, convert: func(v Value) (Value, error) {
		var decoded interface{}
		if err := json.Unmarshal([]byte(v.Str), &decoded); err != nil {
			return Value{}, fmt.Errorf("port: cannot coerce text %q to json: %w", v.Str, err)
		}
		return FromJSON(decoded), nil
	}},
	{to: Number, from: Text, convert: func(v Value) (Value, error) {
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return Value{}, fmt.Errorf("port: cannot coerce text %q to number: %w", v.Str, err)
		}
		return NumberValue(n), nil
	}},
	{to: Boolean, from: Text, convert: func(v Value) (Value, error) {
		b, err := strconv.ParseBool(strings.TrimSpace(v.Str))
		if err != nil {
			return Value{}, fmt.Errorf("port: cannot coerce text %q to boolean: %w", v.Str, err)
		}
		return BoolValue(b), nil
	}},
}
