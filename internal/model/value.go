package model

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Kind identifies the dynamic type of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

// Value is a tagged dynamic value decoded from a stream payload.
// All type-sensitive comparisons in the filter engine go through this type.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	obj  map[string]Value
	arr  []Value
}

func Null() Value                     { return Value{kind: KindNull} }
func String(s string) Value           { return Value{kind: KindString, str: s} }
func Number(f float64) Value          { return Value{kind: KindNumber, num: f} }
func Bool(b bool) Value               { return Value{kind: KindBool, b: b} }
func Object(m map[string]Value) Value { return Value{kind: KindObject, obj: m} }
func Array(items []Value) Value       { return Value{kind: KindArray, arr: items} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsObject() (map[string]Value, bool) {
	return v.obj, v.kind == KindObject
}

func (v Value) AsArray() ([]Value, bool) {
	return v.arr, v.kind == KindArray
}

// Equal reports deep value-and-type equality.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for key, val := range v.obj {
			otherVal, ok := other.obj[key]
			if !ok || !val.Equal(otherVal) {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i, item := range v.arr {
			if !item.Equal(other.arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// FromInterface converts a decoded JSON value (as produced by json.Unmarshal
// into any) to a Value.
func FromInterface(raw interface{}) (Value, error) {
	switch typed := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(typed), nil
	case bool:
		return Bool(typed), nil
	case float64:
		return Number(typed), nil
	case int:
		return Number(float64(typed)), nil
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("parse number %q: %w", typed.String(), err)
		}
		return Number(f), nil
	case map[string]interface{}:
		obj := make(map[string]Value, len(typed))
		for key, item := range typed {
			val, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			obj[key] = val
		}
		return Object(obj), nil
	case []interface{}:
		arr := make([]Value, 0, len(typed))
		for _, item := range typed {
			val, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			arr = append(arr, val)
		}
		return Array(arr), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}

// FromJSON decodes arbitrary JSON into a Value.
func FromJSON(data []byte) (Value, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Value{}, fmt.Errorf("decode value: %w", err)
	}
	return FromInterface(raw)
}

// Interface converts the Value back to plain Go types for serialization.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindObject:
		out := make(map[string]interface{}, len(v.obj))
		for key, val := range v.obj {
			out[key] = val.Interface()
		}
		return out
	case KindArray:
		out := make([]interface{}, 0, len(v.arr))
		for _, item := range v.arr {
			out = append(out, item.Interface())
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes the Value as its plain JSON representation.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}
