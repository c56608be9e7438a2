// Package graph holds the element model for the write pipeline: typed
// property values, vertex and edge representations, and the index metadata
// that decides which properties are mirrored into index tables.
package graph

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// ValueType represents the type of a property value
type ValueType uint8

const (
	TypeString ValueType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeBytes
	TypeTimestamp
)

// String returns the type name
func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeBytes:
		return "bytes"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Value represents a typed property value
type Value struct {
	Type ValueType
	Data []byte
}

// Helper functions to create typed values
func StringValue(s string) Value {
	return Value{Type: TypeString, Data: []byte(s)}
}

func IntValue(i int64) Value {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(i))
	return Value{Type: TypeInt, Data: data}
}

func FloatValue(f float64) Value {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, math.Float64bits(f))
	return Value{Type: TypeFloat, Data: data}
}

func BoolValue(b bool) Value {
	data := []byte{0}
	if b {
		data[0] = 1
	}
	return Value{Type: TypeBool, Data: data}
}

func BytesValue(b []byte) Value {
	return Value{Type: TypeBytes, Data: b}
}

func TimestampValue(t time.Time) Value {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(t.Unix()))
	return Value{Type: TypeTimestamp, Data: data}
}

// Decode methods
func (v Value) AsString() (string, error) {
	if v.Type != TypeString {
		return "", fmt.Errorf("value is not a string")
	}
	return string(v.Data), nil
}

func (v Value) AsInt() (int64, error) {
	if v.Type != TypeInt {
		return 0, fmt.Errorf("value is not an int")
	}
	return int64(binary.LittleEndian.Uint64(v.Data)), nil
}

func (v Value) AsFloat() (float64, error) {
	if v.Type != TypeFloat {
		return 0, fmt.Errorf("value is not a float")
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(v.Data)), nil
}

func (v Value) AsBool() (bool, error) {
	if v.Type != TypeBool {
		return false, fmt.Errorf("value is not a bool")
	}
	return v.Data[0] == 1, nil
}

func (v Value) AsTimestamp() (time.Time, error) {
	if v.Type != TypeTimestamp {
		return time.Time{}, fmt.Errorf("value is not a timestamp")
	}
	return time.Unix(int64(binary.LittleEndian.Uint64(v.Data)), 0), nil
}

// IsZero reports whether the value is the zero Value (no type, no data).
func (v Value) IsZero() bool {
	return v.Type == TypeString && v.Data == nil
}

// Equal reports whether two values have the same type and payload.
func (v Value) Equal(other Value) bool {
	return v.Type == other.Type && bytes.Equal(v.Data, other.Data)
}

// OrderedKey converts the value to a string whose lexical order matches the
// value's natural order within its type. Integers and timestamps are biased
// by 2^63 so that negatives sort before zero, then zero-padded.
func (v Value) OrderedKey() string {
	switch v.Type {
	case TypeString:
		return string(v.Data)
	case TypeInt:
		intVal, _ := v.AsInt()
		biased := uint64(intVal) + (1 << 63)
		return fmt.Sprintf("%020d", biased)
	case TypeFloat:
		floatVal, _ := v.AsFloat()
		return fmt.Sprintf("%020.6f", floatVal)
	case TypeBool:
		boolVal, _ := v.AsBool()
		if boolVal {
			return "1"
		}
		return "0"
	case TypeTimestamp:
		ts, _ := v.AsTimestamp()
		biased := uint64(ts.Unix()) + (1 << 63)
		return fmt.Sprintf("%020d", biased)
	case TypeBytes:
		return string(v.Data)
	default:
		return string(v.Data)
	}
}

// String renders the value for logs and debugging.
func (v Value) String() string {
	switch v.Type {
	case TypeString:
		s, _ := v.AsString()
		return s
	case TypeInt:
		i, _ := v.AsInt()
		return fmt.Sprintf("%d", i)
	case TypeFloat:
		f, _ := v.AsFloat()
		return fmt.Sprintf("%g", f)
	case TypeBool:
		b, _ := v.AsBool()
		return fmt.Sprintf("%t", b)
	case TypeTimestamp:
		ts, _ := v.AsTimestamp()
		return ts.UTC().Format(time.RFC3339)
	case TypeBytes:
		return fmt.Sprintf("0x%x", v.Data)
	default:
		return fmt.Sprintf("%v", v.Data)
	}
}

// Encode serializes the value as [type:1][payload] for storage in a cell.
func (v Value) Encode() []byte {
	out := make([]byte, 1+len(v.Data))
	out[0] = byte(v.Type)
	copy(out[1:], v.Data)
	return out
}

// DecodeValue deserializes a value produced by Encode.
func DecodeValue(data []byte) (Value, error) {
	if len(data) == 0 {
		return Value{}, fmt.Errorf("empty value encoding")
	}
	t := ValueType(data[0])
	if t > TypeTimestamp {
		return Value{}, fmt.Errorf("unknown value type %d", data[0])
	}
	payload := make([]byte, len(data)-1)
	copy(payload, data[1:])
	return Value{Type: t, Data: payload}, nil
}
