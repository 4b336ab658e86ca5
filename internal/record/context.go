package record

import (
	"fmt"
	"maps"

	"github.com/roach88/streamql/internal/stream"
)

// SourceResolver returns the raw sequence for a named data source. Unknown
// names should return a stream that fails rather than nil.
type SourceResolver func(name string) stream.Stream[any]

// Wrapper rewrites the records a source produces. It is how a correlated
// sub-select sees the outer record's values.
type Wrapper func(alias string, s stream.Stream[*Record]) stream.Stream[*Record]

// Context is the execution context of one pipeline run: where sources come
// from, the run's settings, and its run ID. A Context is immutable; Wrap
// derives a new one.
type Context struct {
	resolver SourceResolver
	settings map[string]any
	wrap     Wrapper
	runID    string
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithSettings sets run-level settings. The map is copied.
func WithSettings(settings map[string]any) ContextOption {
	return func(c *Context) {
		c.settings = maps.Clone(settings)
	}
}

// WithRunID sets the run ID instead of generating one.
func WithRunID(id string) ContextOption {
	return func(c *Context) {
		c.runID = id
	}
}

// WithRunIDGenerator generates the run ID with gen.
func WithRunIDGenerator(gen RunIDGenerator) ContextOption {
	return func(c *Context) {
		c.runID = gen.Generate()
	}
}

// NewContext creates a Context resolving sources with resolver. The run ID
// defaults to a fresh UUIDv7.
func NewContext(resolver SourceResolver, opts ...ContextOption) *Context {
	c := &Context{resolver: resolver}
	for _, opt := range opts {
		opt(c)
	}
	if c.runID == "" {
		c.runID = UUIDv7Generator{}.Generate()
	}
	if c.settings == nil {
		c.settings = map[string]any{}
	}
	return c
}

// PlaceholderContext is the single-element context bound to the stand-in
// record an aggregate produces for an empty input.
func PlaceholderContext(parent *Context) *Context {
	opts := []ContextOption{}
	if parent != nil {
		opts = append(opts, WithSettings(parent.settings), WithRunID(parent.runID))
	}
	return NewContext(func(string) stream.Stream[any] { return stream.Just[any](int64(1)) }, opts...)
}

// Source returns the raw sequence of the named source.
func (c *Context) Source(name string) stream.Stream[any] {
	if c.resolver == nil {
		return stream.Fail[any](fmt.Errorf("no source resolver for %q", name))
	}
	s := c.resolver(name)
	if s == nil {
		return stream.Fail[any](fmt.Errorf("source %q resolved to nil", name))
	}
	return s
}

// Records resolves the named source and binds every raw item to alias,
// applying the context's wrapper.
func (c *Context) Records(name, alias string) stream.Stream[*Record] {
	recs := stream.Map(c.Source(name), func(row any) *Record {
		return New(alias, row, c)
	})
	if c.wrap != nil {
		recs = c.wrap(alias, recs)
	}
	return recs
}

// Wrap returns a copy of the context whose records additionally pass
// through w. Wrappers compose: the existing wrapper runs first.
func (c *Context) Wrap(w Wrapper) *Context {
	cp := *c
	prev := c.wrap
	if prev == nil {
		cp.wrap = w
	} else {
		cp.wrap = func(alias string, s stream.Stream[*Record]) stream.Stream[*Record] {
			return w(alias, prev(alias, s))
		}
	}
	return &cp
}

// Setting returns a run-level setting.
func (c *Context) Setting(key string) (any, bool) {
	v, ok := c.settings[key]
	return v, ok
}

// Settings returns a copy of the run-level settings.
func (c *Context) Settings() map[string]any {
	return maps.Clone(c.settings)
}

// RunID identifies the run in logs and metrics.
func (c *Context) RunID() string { return c.runID }
