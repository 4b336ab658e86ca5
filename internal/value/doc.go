// Package value holds the dynamic value helpers shared by every pipeline
// stage: canonical encoding for grouping and DISTINCT keys, ordering and
// equality, truthiness, field access on raw rows, and duration parsing.
//
// Rows flowing through a pipeline are untyped (decoded JSON, YAML, CUE or
// SQLite values), so every helper here accepts `any` and normalizes numbers
// before comparing them. The package imports nothing internal.
package value
