// Package store provides the durable mapping from (name, version) to
// published prompt templates. The request path is read-mostly: reads take a
// snapshot and writes publish a fresh copy of the index, so unlimited
// concurrent readers never observe a torn template and in-flight resolutions
// keep the versions they started with.
package store

// file: internal/store/store.go

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/dkoosis/promptd/internal/logging"
	"github.com/dkoosis/promptd/internal/template"
)

// ErrNotFound is returned when no template matches a name/version lookup.
var ErrNotFound = errors.New("template not found")

// SelectorLatest requests the highest published version of a name.
const SelectorLatest = "latest"

// Store is an in-memory versioned template index. Publishing replaces the
// index map as a whole (copy-on-write) under a short write lock; the read
// path only ever dereferences an immutable snapshot.
type Store struct {
	mu     sync.RWMutex
	byName map[string][]*template.Template // Sorted ascending by version.
	logger logging.Logger
}

// New creates an empty store.
func New(logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &Store{
		byName: make(map[string][]*template.Template),
		logger: logger.WithField("component", "template_store"),
	}
}

// Get returns the template for name matching the version selector. The
// selector is either SelectorLatest (or empty, treated the same) or the
// decimal form of an exact version. Fails with ErrNotFound when the name is
// unknown or the exact version does not exist.
func (s *Store) Get(name, selector string) (*template.Template, error) {
	s.mu.RLock()
	versions := s.byName[name]
	s.mu.RUnlock()

	if len(versions) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "template %q", name)
	}

	selector = strings.TrimSpace(selector)
	if selector == "" || selector == SelectorLatest {
		// Versions are kept sorted; latest is the maximum under the total order.
		return versions[len(versions)-1], nil
	}

	wanted, err := strconv.Atoi(selector)
	if err != nil {
		return nil, errors.Wrapf(ErrNotFound, "template %q: invalid version selector %q", name, selector)
	}
	for _, t := range versions {
		if t.Version == wanted {
			return t, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "template %q version %d", name, wanted)
}

// List returns the available versions for a name in ascending order. An
// unknown name yields ErrNotFound.
func (s *Store) List(name string) ([]int, error) {
	s.mu.RLock()
	versions := s.byName[name]
	s.mu.RUnlock()

	if len(versions) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "template %q", name)
	}
	out := make([]int, len(versions))
	for i, t := range versions {
		out[i] = t.Version
	}
	return out, nil
}

// Names returns the sorted names of all templates with at least one version.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Put publishes a template. Versions are immutable once published: putting a
// (name, version) pair that already exists is rejected. The write replaces
// the affected slice by copy so concurrent readers are never disturbed.
func (s *Store) Put(t *template.Template) error {
	if t == nil || t.Name == "" {
		return errors.New("cannot publish template without a name")
	}
	if t.Version <= 0 {
		return errors.Newf("cannot publish template %q with non-positive version %d", t.Name, t.Version)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.byName[t.Name]
	for _, published := range existing {
		if published.Version == t.Version {
			return errors.Newf("template %q version %d is already published", t.Name, t.Version)
		}
	}

	updated := make([]*template.Template, 0, len(existing)+1)
	updated = append(updated, existing...)
	updated = append(updated, t)
	sort.Slice(updated, func(i, j int) bool { return updated[i].Version < updated[j].Version })
	s.byName[t.Name] = updated

	s.logger.Info("Published template.", "template", t.Name, "version", t.Version, "source", t.Source)
	return nil
}

// SwapAll atomically replaces the entire index with the given families. It
// backs the recipe watcher's hot reload: a directory rescan is committed in
// one swap, readers mid-resolution keep the snapshot they started with, and
// no reader ever observes a half-applied reload. Families are sorted here so
// callers may pass them unordered.
func (s *Store) SwapAll(families map[string][]*template.Template) {
	index := make(map[string][]*template.Template, len(families))
	for name, versions := range families {
		if name == "" || len(versions) == 0 {
			continue
		}
		sorted := make([]*template.Template, len(versions))
		copy(sorted, versions)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
		index[name] = sorted
	}

	s.mu.Lock()
	s.byName = index
	s.mu.Unlock()
	s.logger.Info("Swapped template index.", "families", len(index))
}

// LatestVersion returns the highest published version for a name, or 0 when
// the name is unknown.
func (s *Store) LatestVersion(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.byName[name]
	if len(versions) == 0 {
		return 0
	}
	return versions[len(versions)-1].Version
}
