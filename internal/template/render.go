// file: internal/template/render.go
package template

import (
	"fmt"
	"strings"
)

// Binding maps parameter names to the concrete values of one resolution
// request. Bindings are produced by the resolver and treated as read-only
// here; Render never mutates its input.
type Binding map[string]Value

// WithLoopVar returns a copy of the binding with "this" bound to the given
// element, shadowing any declared parameter of that name for the duration of
// a repeat-section body.
func (b Binding) WithLoopVar(element Value) Binding {
	scoped := make(Binding, len(b)+1)
	for name, value := range b {
		scoped[name] = value
	}
	scoped[loopVar] = element
	return scoped
}

// loopVar is the name bound to the current element inside an #each body.
const loopVar = "this"

// RenderError reports a failure while expanding a template body. Well-formed
// published templates with a validated binding should never trigger it, so
// occurrences point at an authoring defect.
type RenderError struct {
	// Reason describes the failure.
	Reason string
	// Var names the variable involved, when the failure concerns one.
	Var string
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	if e.Var != "" {
		return fmt.Sprintf("render error: %s (variable %q)", e.Reason, e.Var)
	}
	return "render error: " + e.Reason
}

// Render expands a parsed body against a binding. It is a pure function of
// its inputs: no I/O, no shared state, deterministic output. Sections are
// evaluated lazily, so variable references inside a skipped branch are never
// looked up.
func Render(body []Node, binding Binding) (string, error) {
	var sb strings.Builder
	if err := renderNodes(&sb, body, binding); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// renderNodes walks a node sequence by recursive descent, appending to sb.
func renderNodes(sb *strings.Builder, nodes []Node, binding Binding) error {
	for _, node := range nodes {
		switch n := node.(type) {
		case TextNode:
			sb.WriteString(n.Text)

		case VarNode:
			value, ok := binding[n.Name]
			if !ok || value.IsMissing() {
				return &RenderError{Reason: "reference to unbound variable", Var: n.Name}
			}
			sb.WriteString(value.String())

		case IfNode:
			// A missing or absent predicate is simply falsy; only the taken
			// branch is evaluated.
			if binding[n.Var].Truthy() {
				if err := renderNodes(sb, n.Then, binding); err != nil {
					return err
				}
			} else if n.Else != nil {
				if err := renderNodes(sb, n.Else, binding); err != nil {
					return err
				}
			}

		case EachNode:
			value, ok := binding[n.Var]
			if !ok || value.IsMissing() {
				return &RenderError{Reason: "repeat over unbound variable", Var: n.Var}
			}
			items, isList := value.List()
			if !isList {
				return &RenderError{Reason: "repeat over non-list value", Var: n.Var}
			}
			for _, item := range items {
				if err := renderNodes(sb, n.Body, binding.WithLoopVar(item)); err != nil {
					return err
				}
			}

		default:
			return &RenderError{Reason: fmt.Sprintf("unknown node type %T", node)}
		}
	}
	return nil
}
