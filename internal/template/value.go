// Package template defines the prompt template data model: typed argument
// values, declared parameters, parsed template bodies, and the render engine
// that expands a body against a set of bound values.
package template

// file: internal/template/value.go

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind identifies which variant a Value holds. The set is closed so that
// type-checking switches are exhaustive.
type Kind int

// Value kinds.
const (
	// KindMissing marks a value that was neither supplied nor defaulted.
	KindMissing Kind = iota
	// KindString holds text.
	KindString
	// KindNumber holds a float64; integers render without a decimal point.
	KindNumber
	// KindBool holds a boolean.
	KindBool
	// KindList holds an ordered sequence of values.
	KindList
)

// String returns the kind's name as used in type-mismatch messages.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindList:
		return "list"
	case KindMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Value is a closed tagged variant over the argument types the renderer
// understands. The zero Value is the missing value.
type Value struct {
	kind    Kind
	str     string
	num     float64
	boolean bool
	list    []Value
}

// Missing returns the missing value.
func Missing() Value { return Value{} }

// StringValue wraps text as a Value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue wraps a number as a Value.
func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }

// BoolValue wraps a boolean as a Value.
func BoolValue(b bool) Value { return Value{kind: KindBool, boolean: b} }

// ListValue wraps a sequence of values as a Value. The slice is not copied;
// callers must not mutate it afterwards.
func ListValue(items []Value) Value { return Value{kind: KindList, list: items} }

// Kind returns which variant the value holds.
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether the value is the missing value.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// List returns the underlying items and true when the value is a list.
func (v Value) List() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// Truthy reports how the value behaves as a conditional-section predicate:
// false, empty string, zero, empty list, and missing are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.boolean
	case KindString:
		return v.str != ""
	case KindNumber:
		return v.num != 0
	case KindList:
		return len(v.list) > 0
	case KindMissing:
		return false
	default:
		return false
	}
}

// String renders the value using the single canonical stringification rule:
// booleans as "true"/"false", numbers via the shortest exact decimal form,
// lists as a comma-separated join of their elements, missing as "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.boolean)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return strings.Join(parts, ", ")
	case KindMissing:
		return ""
	default:
		return ""
	}
}

// Equal reports deep equality of two values, used by tests and the store.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.boolean == other.boolean
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMissing:
		return true
	default:
		return false
	}
}

// FromInterface converts a decoded JSON or YAML value into a Value. Supported
// inputs are strings, numbers (float64 or int), booleans, nil, and slices of
// the same. Maps and other shapes are rejected.
func FromInterface(raw interface{}) (Value, error) {
	switch value := raw.(type) {
	case nil:
		return Missing(), nil
	case string:
		return StringValue(value), nil
	case bool:
		return BoolValue(value), nil
	case float64:
		return NumberValue(value), nil
	case int:
		return NumberValue(float64(value)), nil
	case int64:
		return NumberValue(float64(value)), nil
	case []interface{}:
		items := make([]Value, 0, len(value))
		for i, item := range value {
			converted, err := FromInterface(item)
			if err != nil {
				return Missing(), errors.Wrapf(err, "list element %d", i)
			}
			items = append(items, converted)
		}
		return ListValue(items), nil
	default:
		return Missing(), errors.Newf("unsupported argument type %T", raw)
	}
}
