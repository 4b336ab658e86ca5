package record

import (
	"github.com/roach88/streamql/internal/value"
)

// ThisColumn names the whole raw row of a record.
const ThisColumn = "this"

// Record is one row in flight. See the package documentation.
type Record struct {
	name    string
	row     any
	values  *Values
	results *Values
	ctx     *Context
}

// New creates a record for a raw row produced by the source bound to name.
// An empty name produces an anonymous record with no alias values.
func New(name string, row any, c *Context) *Record {
	vals := NewValues()
	if name != "" {
		vals.Set(name, row)
	}
	return &Record{
		name:    name,
		row:     row,
		values:  vals,
		results: NewValues(),
		ctx:     c,
	}
}

// Name returns the alias of the source that produced the record.
func (r *Record) Name() string { return r.name }

// Row returns the raw value of the producing source.
func (r *Record) Row() any { return r.row }

// Context returns the run context.
func (r *Record) Context() *Context { return r.ctx }

// Values returns the alias values. The result must not be modified.
func (r *Record) Values() *Values { return r.values }

// Value returns the raw value bound to alias.
func (r *Record) Value(alias string) (any, bool) { return r.values.Get(alias) }

// Results returns the projected output columns. The result must not be
// modified.
func (r *Record) Results() *Values { return r.results }

func (r *Record) clone() *Record {
	cp := *r
	return &cp
}

// Extend returns a record for row bound under alias that also carries every
// alias value of r. Aliases already present in r keep r's value.
func (r *Record) Extend(alias string, row any) *Record {
	vals := r.values.Clone()
	vals.SetIfAbsent(alias, row)
	return &Record{
		name:    alias,
		row:     row,
		values:  vals,
		results: NewValues(),
		ctx:     r.ctx,
	}
}

// WithValue returns a copy of r with alias bound to v, unless alias is
// already bound.
func (r *Record) WithValue(alias string, v any) *Record {
	cp := r.clone()
	cp.values = r.values.Clone()
	cp.values.SetIfAbsent(alias, v)
	return cp
}

// MergeValues returns a copy of r that also carries the aliases of vals
// not already bound in r.
func (r *Record) MergeValues(vals *Values) *Record {
	cp := r.clone()
	cp.values = r.values.Clone()
	for _, k := range vals.Keys() {
		v, _ := vals.Get(k)
		cp.values.SetIfAbsent(k, v)
	}
	return cp
}

// Without returns a copy of r with alias unbound.
func (r *Record) Without(alias string) *Record {
	cp := r.clone()
	cp.values = r.values.Clone()
	cp.values.Delete(alias)
	return cp
}

// WithResults returns a copy of r whose projected columns are results.
func (r *Record) WithResults(results *Values) *Record {
	cp := r.clone()
	cp.results = results
	return cp
}

// WithContext returns a copy of r bound to c.
func (r *Record) WithContext(c *Context) *Record {
	cp := r.clone()
	cp.ctx = c
	return cp
}

// Lookup resolves a column reference.
//
// A qualified reference (table non-empty) reads name from the value bound
// to table, falling back to a projected column literally named
// "table.name". An unqualified reference tries, in order: projected
// results, the record's own row, an alias of that name, then the rows of
// the other bound aliases. The name "this" is the whole row. name may be a
// dotted path into nested values.
func (r *Record) Lookup(table, name string) (any, bool) {
	if table != "" {
		if v, ok := r.values.Get(table); ok {
			if name == ThisColumn {
				return v, true
			}
			return value.Path(v, name)
		}
		return r.results.Get(table + "." + name)
	}

	if v, ok := r.results.Get(name); ok {
		return v, true
	}
	if name == ThisColumn {
		return r.row, true
	}
	if v, ok := value.Path(r.row, name); ok {
		return v, true
	}
	if v, ok := r.values.Get(name); ok {
		return v, true
	}
	for _, alias := range r.values.keys {
		if alias == r.name {
			continue
		}
		if v, ok := value.Path(r.values.m[alias], name); ok {
			return v, true
		}
	}
	return nil, false
}

// Spread returns the columns `*` (table empty) or `table.*` expands to.
//
// For `*`, every bound alias whose value is a map contributes its fields
// (the first alias binding a field wins) and every other alias contributes
// itself as a column. A record with no bound aliases spreads its row, or
// exposes it as "this" when the row is not a map.
func (r *Record) Spread(table string) *Values {
	out := NewValues()
	if table != "" {
		if v, ok := r.values.Get(table); ok {
			spreadInto(out, table, v)
		}
		return out
	}

	if r.values.Len() == 0 {
		spreadInto(out, ThisColumn, r.row)
		return out
	}
	for _, alias := range r.values.keys {
		spreadInto(out, alias, r.values.m[alias])
	}
	return out
}

func spreadInto(out *Values, alias string, v any) {
	if !value.IsMap(v) {
		out.SetIfAbsent(alias, v)
		return
	}
	keys, fields := value.Fields(v)
	for _, k := range keys {
		out.SetIfAbsent(k, fields[k])
	}
}

// AsMap returns the projected columns as a plain map.
func (r *Record) AsMap() map[string]any { return r.results.Map() }

// Columns returns the projected column names in SELECT order.
func (r *Record) Columns() []string { return r.results.Keys() }
