package port

import "fmt"

// FieldSpec declares one field of a JSONSchemaLite contract: its name, the
// primitive kind its value must satisfy, and whether it must be present.
type FieldSpec struct {
	Name     string
	Type     Primitive
	Required bool
}

// JSONSchemaLite is a minimal schema over Value, implemented directly
// rather than through a JSON-schema library so contract validation never
// round-trips values through encoding/json. It checks field presence and
// primitive type, not nested structure — enough to vet the resolution
// payload of a form suspension.
type JSONSchemaLite struct {
	Fields []FieldSpec
}

// Validate implements Schema.
func (s JSONSchemaLite) Validate(v Value) error {
	if v.Map == nil {
		return fmt.Errorf("port: jsonschema-lite: value is not a map")
	}
	for _, f := range s.Fields {
		val, ok := v.Map[f.Name]
		if !ok {
			if f.Required {
				return fmt.Errorf("port: jsonschema-lite: missing required field %q", f.Name)
			}
			continue
		}
		if !valueMatchesPrimitive(val, f.Type) {
			return fmt.Errorf("port: jsonschema-lite: field %q does not match type %s", f.Name, f.Type)
		}
	}
	return nil
}

func valueMatchesPrimitive(v Value, p Primitive) bool {
	switch p {
	case Text, Secret:
		return v.Kind == ValueText || v.Kind == ValueNull
	case Number:
		return v.Kind == ValueNumber || v.Kind == ValueNull
	case Boolean:
		return v.Kind == ValueBool
	case File:
		return v.Kind == ValueBytes
	case JSON:
		return v.Kind != "" // any tagged value is JSON-representable
	case Any:
		return true
	default:
		return true
	}
}
