package port

import (
	"encoding/json"
	"fmt"
)

// FromJSON converts a decoded JSON value (the interface{} shapes produced
// by encoding/json) into the tagged Value union. Numbers arrive as float64
// or json.Number; anything unrecognized degrades to its text rendering.
func FromJSON(v interface{}) Value {
	switch vv := v.(type) {
	case nil:
		return NullValue()
	case bool:
		return BoolValue(vv)
	case float64:
		return NumberValue(vv)
	case json.Number:
		f, _ := vv.Float64()
		return NumberValue(f)
	case string:
		return TextValue(vv)
	case []interface{}:
		items := make([]Value, 0, len(vv))
		for _, item := range vv {
			items = append(items, FromJSON(item))
		}
		return ListValue(items)
	case map[string]interface{}:
		return MapValue(MapFromJSON(vv))
	default:
		return TextValue(fmt.Sprintf("%v", vv))
	}
}

// MapFromJSON converts a decoded JSON object into a Value map, the shape
// runtime inputs and resolution payloads arrive in over the REST surface.
func MapFromJSON(m map[string]interface{}) map[string]Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = FromJSON(v)
	}
	return out
}

// Interface converts a Value back to the natural encoding/json shape, the
// inverse of FromJSON (bytes render as text; the zero Value renders as
// nil, like null).
func (v Value) Interface() interface{} {
	switch v.Kind {
	case ValueBool:
		return v.Bool
	case ValueNumber:
		return v.Num
	case ValueText:
		return v.Str
	case ValueBytes:
		return string(v.Bytes)
	case ValueList:
		out := make([]interface{}, len(v.List))
		for i, item := range v.List {
			out[i] = item.Interface()
		}
		return out
	case ValueMap:
		out := make(map[string]interface{}, len(v.Map))
		for k, item := range v.Map {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}
