// Package feature defines the pluggable units a pipeline is compiled from
// and the registry that maps feature identifiers to implementations.
//
// A feature is identified by a category and a case-insensitive name:
//
//	filter:>          value-map:property     value-agg-map:count
//	group-by:_window  distinct:default       from:table
//
// The compiler never hard-codes operators or functions. A binary
// expression dispatches to the feature named by its operator, a function
// call to the feature named by the function, a column to value-map:property.
// Supporting a new function means registering a feature, not changing the
// compiler.
//
// LOOKUP FLAVORS:
//
// Require is mandatory: a missing feature is a CompileError naming the
// category, the feature name and the offending expression. Lookup is
// optional and reports ok=false; the projection uses it to check whether
// an item is an aggregate, a scalar, or both.
//
// A Registry is populated once and frozen before compilation. Frozen
// registries are read-only and safe to share across goroutines.
package feature
