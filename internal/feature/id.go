package feature

import "strings"

// Category groups features by what they produce.
type Category string

const (
	// Filter features produce predicates (WHERE, ON, HAVING).
	Filter Category = "filter"
	// ValueMap features produce per-record scalar mappers.
	ValueMap Category = "value-map"
	// ValueAggMap features produce aggregates over a record sequence.
	ValueAggMap Category = "value-agg-map"
	// GroupBy features split a sequence into sub-sequences.
	GroupBy Category = "group-by"
	// Distinct features de-duplicate the output.
	Distinct Category = "distinct"
	// From features resolve row sources.
	From Category = "from"
)

// ID identifies a feature. Names are stored lower-cased.
type ID struct {
	Category Category
	Name     string
}

// Of returns the ID of the named feature in category c.
func (c Category) Of(name string) ID {
	return ID{Category: c, Name: strings.ToLower(strings.TrimSpace(name))}
}

// String renders "category:name".
func (id ID) String() string {
	return string(id.Category) + ":" + id.Name
}

// Well-known feature names the compiler dispatches to directly.
const (
	// PropertyName is the value-map and group-by feature for column references.
	PropertyName = "property"
	// TableName is the from feature for named sources.
	TableName = "table"
	// DefaultDistinctName is the distinct strategy used when the
	// distinctBy setting is absent.
	DefaultDistinctName = "default"
	// NotName is the filter feature for NOT.
	NotName = "not"
	// IsNullName is the filter feature for IS [NOT] NULL.
	IsNullName = "is null"
	// BetweenName is the filter feature for [NOT] BETWEEN.
	BetweenName = "between"
	// InName is the filter feature for [NOT] IN.
	InName = "in"
)
