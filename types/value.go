package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ValueType names the variant a Value is expected to hold.
type ValueType string

const (
	ValueTypeString  ValueType = "string"
	ValueTypeInteger ValueType = "number"
	ValueTypeBoolean ValueType = "boolean"
)

var (
	// ErrInvalidValue is returned when a raw scalar cannot be decoded into a Value.
	ErrInvalidValue = errors.New("invalid value")
	// ErrValueType is returned by the AsX accessors when v holds another variant.
	ErrValueType = errors.New("value has another type")
)

// Valid reports whether t is one of the known value types.
func (t ValueType) Valid() bool {
	switch t {
	case ValueTypeString, ValueTypeInteger, ValueTypeBoolean:
		return true
	}
	return false
}

// Value is a tagged scalar: exactly one of string, int64 or bool.
// The zero Value is the empty string.
type Value struct {
	kind ValueType
	str  string
	num  int64
	flag bool
}

// StringValue returns a String value.
func StringValue(s string) Value {
	return Value{kind: ValueTypeString, str: s}
}

// IntegerValue returns an Integer value.
func IntegerValue(i int64) Value {
	return Value{kind: ValueTypeInteger, num: i}
}

// BooleanValue returns a Boolean value.
func BooleanValue(b bool) Value {
	return Value{kind: ValueTypeBoolean, flag: b}
}

// Type returns the variant held by v.
func (v Value) Type() ValueType {
	if v.kind == "" {
		return ValueTypeString
	}
	return v.kind
}

// Matches reports whether v holds the variant t.
func (v Value) Matches(t ValueType) bool {
	return v.Type() == t
}

// Equal reports structural equality: same variant and same payload.
func (v Value) Equal(other Value) bool {
	if v.Type() != other.Type() {
		return false
	}
	switch v.Type() {
	case ValueTypeInteger:
		return v.num == other.num
	case ValueTypeBoolean:
		return v.flag == other.flag
	default:
		return v.str == other.str
	}
}

// AsString returns the string payload, or ErrValueType for other variants.
func (v Value) AsString() (string, error) {
	if v.Type() != ValueTypeString {
		return "", fmt.Errorf("%w: %s is not a string", ErrValueType, v.Type())
	}
	return v.str, nil
}

// AsInteger returns the integer payload, or ErrValueType for other variants.
func (v Value) AsInteger() (int64, error) {
	if v.Type() != ValueTypeInteger {
		return 0, fmt.Errorf("%w: %s is not an integer", ErrValueType, v.Type())
	}
	return v.num, nil
}

// AsBoolean returns the boolean payload, or ErrValueType for other variants.
func (v Value) AsBoolean() (bool, error) {
	if v.Type() != ValueTypeBoolean {
		return false, fmt.Errorf("%w: %s is not a boolean", ErrValueType, v.Type())
	}
	return v.flag, nil
}

// Interface returns the payload as a native Go value (string, int64 or bool).
func (v Value) Interface() interface{} {
	switch v.Type() {
	case ValueTypeInteger:
		return v.num
	case ValueTypeBoolean:
		return v.flag
	default:
		return v.str
	}
}

func (v Value) String() string {
	switch v.Type() {
	case ValueTypeInteger:
		return strconv.FormatInt(v.num, 10)
	case ValueTypeBoolean:
		return strconv.FormatBool(v.flag)
	default:
		return v.str
	}
}

// MarshalJSON writes the bare payload with no tag.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON infers the variant from the payload's shape.
// Attempts run in a fixed order: integer, then boolean, then string.
// Floats, objects, arrays and null are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)

	var i int64
	if err := json.Unmarshal(trimmed, &i); err == nil && !bytes.Equal(trimmed, []byte("null")) {
		*v = IntegerValue(i)
		return nil
	}

	var b bool
	if err := json.Unmarshal(trimmed, &b); err == nil && !bytes.Equal(trimmed, []byte("null")) {
		*v = BooleanValue(b)
		return nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil && !bytes.Equal(trimmed, []byte("null")) {
		*v = StringValue(s)
		return nil
	}

	return fmt.Errorf("%w: %s is not a string, integer or boolean", ErrInvalidValue, trimmed)
}

// MarshalYAML writes the bare payload with no tag.
func (v Value) MarshalYAML() (interface{}, error) {
	return v.Interface(), nil
}

// UnmarshalYAML applies the same inference order as UnmarshalJSON, keyed on the
// resolved scalar tag so that quoted numbers stay strings.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: expected a scalar", ErrInvalidValue, node.Line)
	}

	switch node.ShortTag() {
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrInvalidValue, node.Line, err)
		}
		*v = IntegerValue(i)
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrInvalidValue, node.Line, err)
		}
		*v = BooleanValue(b)
	case "!!str":
		*v = StringValue(node.Value)
	default:
		return fmt.Errorf("%w: line %d: %s is not a string, integer or boolean", ErrInvalidValue, node.Line, node.ShortTag())
	}
	return nil
}
