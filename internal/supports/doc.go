// Package supports provides the built-in features: comparison and logical
// filters, column access, arithmetic and a few scalar functions, the
// count/sum/avg/max/min aggregates, window and value grouping, the default
// and lru DISTINCT strategies, and the table row source.
//
// DefaultRegistry returns a frozen registry holding all of them. Callers
// adding their own features clone it first:
//
//	reg := supports.DefaultRegistry().Clone()
//	reg.Register(myFeature{})
package supports
