package value

import (
	"encoding/json"
	"math"
)

type jsonValue struct {
	Type    Type   `json:"type"`
	Value   any    `json:"value"`
	Name    string `json:"name,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// ToJSON marshals a Value as {"type": ..., "value": ...}.
// Non-finite floats are emitted as null.
func ToJSON(v Value) ([]byte, error) {
	return json.Marshal(toRaw(v))
}

func toRaw(v Value) jsonValue {
	switch val := v.(type) {
	case Int:
		return jsonValue{Type: TypeInt, Value: val.Value}
	case Float:
		if math.IsInf(val.Value, 0) || math.IsNaN(val.Value) {
			return jsonValue{Type: TypeFloat}
		}
		return jsonValue{Type: TypeFloat, Value: val.Value}
	case Bool:
		return jsonValue{Type: TypeBool, Value: val.Value}
	case None:
		return jsonValue{Type: TypeNone}
	case Function:
		return jsonValue{Type: TypeFunction, Name: val.Name}
	case *Error:
		return jsonValue{Type: TypeError, Kind: string(val.Kind), Message: val.Message}
	case Return:
		return toRaw(val.Value)
	}
	return jsonValue{Type: TypeNone}
}
