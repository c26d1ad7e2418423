// file: internal/registry/registry.go
package registry

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/dkoosis/promptd/internal/logging"
	"github.com/dkoosis/promptd/internal/store"
	"github.com/dkoosis/promptd/internal/template"
)

// TemplateStore is the read-side store contract the registry depends on.
// Lookups that match nothing fail with store.ErrNotFound. The store is
// injected at construction so tests can substitute doubles.
type TemplateStore interface {
	// Get returns the template for name matching the version selector
	// ("latest", empty, or an exact decimal version).
	Get(name, selector string) (*template.Template, error)
	// List returns the available versions for a name in ascending order.
	List(name string) ([]int, error)
}

// RenderedPrompt is the final rendered text together with the exact
// (name, version) that produced it. Immutable once produced; the caller owns
// the value.
type RenderedPrompt struct {
	Name    string
	Version int
	Text    string
}

// Registry composes store lookup, argument binding, and rendering behind
// Resolve. It holds no per-request state and is safe for concurrent use.
type Registry struct {
	store  TemplateStore
	logger logging.Logger
}

// New creates a registry reading from the given store.
func New(templateStore TemplateStore, logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &Registry{
		store:  templateStore,
		logger: logger.WithField("component", "prompt_registry"),
	}
}

// Resolve looks up a template, binds the caller's arguments, and renders the
// body. Errors are propagated as ResolveError values without recovery, and a
// failure never yields a partial RenderedPrompt. Resolution is deterministic:
// the same arguments against an unchanged store produce identical output.
func (r *Registry) Resolve(ctx context.Context, name, selector string, args map[string]template.Value) (*RenderedPrompt, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "resolve aborted")
	}

	tmpl, err := r.store.Get(name, selector)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNotFoundError(name, selector)
		}
		return nil, errors.Wrapf(err, "store lookup failed for template %q", name)
	}

	binding, err := Bind(tmpl.Parameters, args)
	if err != nil {
		return nil, err
	}

	text, err := template.Render(tmpl.Body, binding)
	if err != nil {
		// Published templates are parsed at publish time, so render failures
		// indicate an authoring defect that slipped through; log loudly.
		r.logger.Error("Render failed for published template.",
			"template", tmpl.Name, "version", tmpl.Version, "source", tmpl.Source, "error", err)
		return nil, NewRenderFailureError(tmpl.Name, tmpl.Version, err)
	}

	return &RenderedPrompt{Name: tmpl.Name, Version: tmpl.Version, Text: text}, nil
}

// Versions lists the published versions of a template name, mapping unknown
// names onto the resolution error taxonomy.
func (r *Registry) Versions(name string) ([]int, error) {
	versions, err := r.store.List(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNotFoundError(name, store.SelectorLatest)
		}
		return nil, errors.Wrapf(err, "store list failed for template %q", name)
	}
	return versions, nil
}
