package message

import (
	"fmt"
	"time"
)

// FieldType enumerates the value kinds a field can be constrained to.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeTimestamp
	TypeObject
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	case TypeObject:
		return "object"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// ParseFieldType converts a textual type name into a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	switch s {
	case "string":
		return TypeString, nil
	case "int":
		return TypeInt, nil
	case "float":
		return TypeFloat, nil
	case "bool":
		return TypeBool, nil
	case "timestamp":
		return TypeTimestamp, nil
	case "object":
		return TypeObject, nil
	default:
		return 0, fmt.Errorf("unknown field type %q", s)
	}
}

// Convert reports whether the given value is assignable to the type and, if
// so, returns it normalised to the canonical representation (int64 for
// integers, float64 for floats).
func (t FieldType) Convert(value interface{}) (interface{}, bool) {
	switch t {
	case TypeString:
		s, ok := value.(string)
		return s, ok
	case TypeInt:
		switch v := value.(type) {
		case int:
			return int64(v), true
		case int32:
			return int64(v), true
		case int64:
			return v, true
		}
		return nil, false
	case TypeFloat:
		switch v := value.(type) {
		case float32:
			return float64(v), true
		case float64:
			return v, true
		}
		return nil, false
	case TypeBool:
		b, ok := value.(bool)
		return b, ok
	case TypeTimestamp:
		ts, ok := value.(time.Time)
		return ts, ok
	case TypeObject:
		return value, true
	default:
		return nil, false
	}
}
