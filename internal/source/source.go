package source

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/stream"
)

// ErrUnknownSource is returned when no source is registered under a name.
var ErrUnknownSource = errors.New("unknown source")

// Provider supplies named row streams. ok is false when the provider has
// no source of that name.
type Provider interface {
	Source(name string) (s stream.Stream[any], ok bool)
}

// Memory is a Provider over in-memory rows. Every subscription replays the
// rows in order.
type Memory struct {
	rows map[string][]any
}

// NewMemory creates a Memory provider. The map is copied; the rows are not.
func NewMemory(rows map[string][]any) *Memory {
	return &Memory{rows: maps.Clone(rows)}
}

// Source implements Provider.
func (m *Memory) Source(name string) (stream.Stream[any], bool) {
	rows, ok := m.rows[name]
	if !ok {
		return nil, false
	}
	return stream.FromSlice(rows), true
}

// Names returns the source names in sorted order.
func (m *Memory) Names() []string {
	return slices.Sorted(maps.Keys(m.rows))
}

// Mux resolves names against named streams first and then against its
// providers in the order they were added.
//
// Thread-safety: safe for concurrent use.
type Mux struct {
	mu        sync.RWMutex
	named     map[string]stream.Stream[any]
	providers []Provider
}

// NewMux creates a Mux over providers.
func NewMux(providers ...Provider) *Mux {
	return &Mux{
		named:     make(map[string]stream.Stream[any]),
		providers: providers,
	}
}

// Add registers s under name. Names are unique.
func (m *Mux) Add(name string, s stream.Stream[any]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.named[name]; ok {
		return fmt.Errorf("source %q already registered", name)
	}
	m.named[name] = s
	return nil
}

// AddProvider appends p to the providers consulted after named streams.
func (m *Mux) AddProvider(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers = append(m.providers, p)
}

// Source implements Provider.
func (m *Mux) Source(name string) (stream.Stream[any], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.named[name]; ok {
		return s, true
	}
	for _, p := range m.providers {
		if s, ok := p.Source(name); ok {
			return s, true
		}
	}
	return nil, false
}

// Resolve returns the stream for name, or a stream failing with
// ErrUnknownSource.
func (m *Mux) Resolve(name string) stream.Stream[any] {
	if s, ok := m.Source(name); ok {
		return s
	}
	return stream.Fail[any](fmt.Errorf("%w: %q", ErrUnknownSource, name))
}

// Resolver adapts the Mux to the pipeline's source lookup.
func (m *Mux) Resolver() record.SourceResolver {
	return m.Resolve
}
