package feature

import (
	"log/slog"
	"maps"

	"github.com/spf13/cast"

	"github.com/roach88/streamql/internal/ast"
)

// Setting keys understood by the built-in features and the compiler.
const (
	// SettingDistinctBy selects the distinct feature.
	SettingDistinctBy = "distinctBy"
	// SettingDistinctCacheSize bounds the lru distinct strategy.
	SettingDistinctCacheSize = "distinctCacheSize"
)

// Metadata is the immutable compilation unit: the statement, its settings
// and the registry features are looked up in.
type Metadata struct {
	sel      *ast.Select
	settings map[string]any
	registry *Registry
	logger   *slog.Logger
}

// MetadataOption configures Metadata.
type MetadataOption func(*Metadata)

// WithSettings sets statement settings. The map is copied.
func WithSettings(settings map[string]any) MetadataOption {
	return func(m *Metadata) {
		m.settings = maps.Clone(settings)
	}
}

// WithLogger sets the logger used at compile time.
func WithLogger(logger *slog.Logger) MetadataOption {
	return func(m *Metadata) {
		m.logger = logger
	}
}

// NewMetadata creates the compilation unit for sel.
func NewMetadata(sel *ast.Select, registry *Registry, opts ...MetadataOption) *Metadata {
	m := &Metadata{sel: sel, registry: registry}
	for _, opt := range opts {
		opt(m)
	}
	if m.settings == nil {
		m.settings = map[string]any{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Sub derives metadata for a nested statement. Settings, registry and
// logger are inherited.
func (m *Metadata) Sub(sel *ast.Select) *Metadata {
	return &Metadata{sel: sel, settings: m.settings, registry: m.registry, logger: m.logger}
}

// Select returns the statement.
func (m *Metadata) Select() *ast.Select { return m.sel }

// ResultColumn returns the output column holding the value of expr: the
// alias of the select item with the same text, or the text itself when no
// item computes it.
func (m *Metadata) ResultColumn(expr ast.Expr) string {
	text := expr.String()
	if m.sel != nil {
		for _, item := range m.sel.Items {
			if item.Expr != nil && item.Expr.String() == text {
				return ast.ItemAlias(item)
			}
		}
	}
	return ast.Unquote(text)
}

// Registry returns the feature registry.
func (m *Metadata) Registry() *Registry { return m.registry }

// Logger returns the compile-time logger.
func (m *Metadata) Logger() *slog.Logger { return m.logger }

// Setting returns a raw setting.
func (m *Metadata) Setting(key string) (any, bool) {
	v, ok := m.settings[key]
	return v, ok
}

// Settings returns a copy of every setting.
func (m *Metadata) Settings() map[string]any {
	return maps.Clone(m.settings)
}

// SettingString returns a setting as a string, or def when absent or empty.
func (m *Metadata) SettingString(key, def string) string {
	v, ok := m.settings[key]
	if !ok {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil || s == "" {
		return def
	}
	return s
}

// SettingInt returns a setting as an int, or def when absent or not numeric.
func (m *Metadata) SettingInt(key string, def int) int {
	v, ok := m.settings[key]
	if !ok {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}
