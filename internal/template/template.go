// file: internal/template/template.go
package template

import (
	"strings"
)

// ParamType is the coarse type tag a template declares for a parameter.
type ParamType int

// Declared parameter types.
const (
	TypeString ParamType = iota
	TypeNumber
	TypeBool
	TypeList
)

// String returns the type tag's name.
func (t ParamType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBool:
		return "boolean"
	case TypeList:
		return "list"
	default:
		return "unknown"
	}
}

// ParseParamType maps a recipe's type name to a ParamType. Unknown or empty
// names default to string, matching the permissive recipe format.
func ParseParamType(name string) ParamType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "number", "integer", "int", "float":
		return TypeNumber
	case "boolean", "bool":
		return TypeBool
	case "list", "array":
		return TypeList
	default:
		return TypeString
	}
}

// Accepts reports whether a bound value satisfies the declared type.
func (t ParamType) Accepts(v Value) bool {
	switch t {
	case TypeString:
		return v.Kind() == KindString
	case TypeNumber:
		return v.Kind() == KindNumber
	case TypeBool:
		return v.Kind() == KindBool
	case TypeList:
		return v.Kind() == KindList
	default:
		return false
	}
}

// Parameter declares one named input of a template.
type Parameter struct {
	// Name is the argument key the caller supplies.
	Name string
	// Type is the coarse type tag the value must satisfy.
	Type ParamType
	// Required marks parameters that must be supplied when no default exists.
	Required bool
	// Default is used when an optional parameter is absent. The missing value
	// means "no default".
	Default Value
	// Description is surfaced to clients listing templates.
	Description string
}

// Template is one immutable published version of a named prompt template.
// Within a name, versions are totally ordered; publishing never mutates an
// existing version.
type Template struct {
	// Name identifies the template family.
	Name string
	// Version is a positive, monotonically increasing identifier.
	Version int
	// Description is free-form authoring metadata.
	Description string
	// Parameters are the declared inputs, in declaration order.
	Parameters []Parameter
	// Body is the parsed node sequence rendered at resolve time.
	Body []Node
	// Source records where the template was loaded from, for diagnostics.
	Source string
}

// Parameter returns the declared parameter with the given name, if any.
func (t *Template) Parameter(name string) (Parameter, bool) {
	for _, p := range t.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}
