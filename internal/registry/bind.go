// file: internal/registry/bind.go
package registry

import (
	"github.com/dkoosis/promptd/internal/template"
)

// Bind validates caller-supplied arguments against a template's declared
// parameters and produces the binding the render engine consumes.
//
// Binding is strict: every required parameter must be supplied (or carry a
// default), argument keys the template does not declare are rejected rather
// than silently dropped, and supplied values must satisfy the declared coarse
// type. Optional parameters without a default and without a supplied value
// are simply absent from the binding; sections referencing them observe the
// missing value.
func Bind(params []template.Parameter, args map[string]template.Value) (template.Binding, error) {
	// Reject unknown keys first so typos never reach rendered output.
	declared := make(map[string]struct{}, len(params))
	for _, p := range params {
		declared[p.Name] = struct{}{}
	}
	for name := range args {
		if _, ok := declared[name]; !ok {
			return nil, NewUnknownParameterError(name)
		}
	}

	binding := make(template.Binding, len(params))
	for _, p := range params {
		value, supplied := args[p.Name]
		if supplied && !value.IsMissing() {
			if !p.Type.Accepts(value) {
				return nil, NewTypeMismatchError(p.Name, p.Type.String(), value.Kind().String())
			}
			binding[p.Name] = value
			continue
		}
		if !p.Default.IsMissing() {
			binding[p.Name] = p.Default
			continue
		}
		if p.Required {
			return nil, NewMissingParameterError(p.Name)
		}
		// Optional, no default, not supplied: left out of the binding.
	}
	return binding, nil
}
