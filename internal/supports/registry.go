package supports

import (
	"sync"

	"github.com/roach88/streamql/internal/feature"
)

var (
	defaultOnce     sync.Once
	defaultRegistry *feature.Registry
)

// DefaultRegistry returns the shared, frozen registry of built-in features.
// It is built once per process.
func DefaultRegistry() *feature.Registry {
	defaultOnce.Do(func() {
		defaultRegistry = feature.NewRegistry(Features()...).Freeze()
	})
	return defaultRegistry
}

// Features returns a fresh instance of every built-in feature.
func Features() []feature.Feature {
	fs := []feature.Feature{
		// filters
		newCompareFilter("=", func(c int) bool { return c == 0 }),
		newCompareFilter("!=", func(c int) bool { return c != 0 }),
		newCompareFilter("<>", func(c int) bool { return c != 0 }),
		newCompareFilter(">", func(c int) bool { return c > 0 }),
		newCompareFilter(">=", func(c int) bool { return c >= 0 }),
		newCompareFilter("<", func(c int) bool { return c < 0 }),
		newCompareFilter("<=", func(c int) bool { return c <= 0 }),
		logicalFilter{op: "and"},
		logicalFilter{op: "or"},
		notFilter{},
		isNullFilter{},
		betweenFilter{},
		inFilter{},
		likeFilter{name: "like"},
		likeFilter{name: "not like", negate: true},

		// value maps
		propertyFeature{},

		// aggregates
		countFeature{},
		newNumericAgg("sum", sumOf),
		newNumericAgg("avg", avgOf),
		newExtremeAgg("max", 1),
		newExtremeAgg("min", -1),

		// grouping
		windowFeature{name: "_window"},
		intervalFeature{},
		propertyGroupFeature{},

		// distinct
		distinctFeature{name: feature.DefaultDistinctName},
		distinctFeature{name: "lru", bounded: true},

		// from
		tableFeature{},
	}

	for _, op := range []string{"+", "-", "*", "/", "%"} {
		fs = append(fs, arithmeticFeature{op: op}, valueGroupFeature{op: op})
	}
	fs = append(fs, scalarFunctions()...)
	return fs
}
