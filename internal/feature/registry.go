package feature

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ErrFrozen is returned when registering into a frozen registry.
var ErrFrozen = errors.New("feature registry is frozen")

// Registry maps feature IDs to implementations.
//
// Thread-safety: Registry is safe for concurrent use. Registration is
// expected to finish before compilation starts; Freeze enforces that.
type Registry struct {
	mu       sync.RWMutex
	features map[ID]Feature
	frozen   bool
}

// NewRegistry creates a registry holding features.
// Panics on duplicate IDs, which is a programming error.
func NewRegistry(features ...Feature) *Registry {
	r := &Registry{features: make(map[ID]Feature, len(features))}
	for _, f := range features {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds f. Duplicate IDs and frozen registries are errors.
func (r *Registry) Register(f Feature) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}
	id := f.ID()
	id = id.Category.Of(id.Name)
	if _, exists := r.features[id]; exists {
		return fmt.Errorf("feature %s already registered", id)
	}
	r.features[id] = f
	return nil
}

// Freeze makes the registry read-only and returns it.
func (r *Registry) Freeze() *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
	return r
}

// Clone returns an unfrozen copy, for extending a shared registry.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Registry{features: maps.Clone(r.features)}
}

// Get returns the feature registered under id.
func (r *Registry) Get(id ID) (Feature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.features[id.Category.Of(id.Name)]
	return f, ok
}

// IDs returns every registered ID, sorted.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := slices.Collect(maps.Keys(r.features))
	slices.SortFunc(ids, func(a, b ID) int {
		if a.Category != b.Category {
			if a.Category < b.Category {
				return -1
			}
			return 1
		}
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return ids
}

// Lookup is the optional typed lookup: ok is false when nothing of type T
// is registered under id.
func Lookup[T Feature](r *Registry, id ID) (T, bool) {
	var zero T
	f, ok := r.Get(id)
	if !ok {
		return zero, false
	}
	typed, ok := f.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Require is the mandatory typed lookup. A missing feature is a
// CompileError naming id and the expression that needed it.
func Require[T Feature](r *Registry, id ID, expr fmt.Stringer) (T, error) {
	if f, ok := Lookup[T](r, id); ok {
		return f, nil
	}
	var zero T
	ce := Errorf(ErrCodeMissingFeature, expr, "unsupported %s feature %q", id.Category, id.Name)
	ce.Feature = id
	return zero, ce
}
