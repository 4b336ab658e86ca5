package feature

import (
	"context"

	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/stream"
)

// Predicate tests a record. It may block and must honor ctx.
type Predicate func(ctx context.Context, r *record.Record) (bool, error)

// Mapper computes a value from a record. It may block and must honor ctx.
type Mapper func(ctx context.Context, r *record.Record) (any, error)

// AggMapper consumes a record sequence and yields exactly one value.
type AggMapper func(ctx context.Context, rows stream.Stream[*record.Record]) (any, error)

// Grouper splits a record sequence into sub-sequences (windows or groups).
type Grouper func(rows stream.Stream[*record.Record]) stream.Stream[stream.Stream[*record.Record]]

// Transformer rewrites a record sequence.
type Transformer func(rows stream.Stream[*record.Record]) stream.Stream[*record.Record]

// SourceMapper produces the records of a row source for a run.
type SourceMapper func(c *record.Context) stream.Stream[*record.Record]

// Feature is anything that can be registered.
type Feature interface {
	ID() ID
}

// FilterFeature builds predicates.
type FilterFeature interface {
	Feature
	CreatePredicate(expr ast.Expr, md *Metadata) (Predicate, error)
}

// ValueMapFeature builds scalar mappers.
type ValueMapFeature interface {
	Feature
	CreateMapper(expr ast.Expr, md *Metadata) (Mapper, error)
}

// ValueAggMapFeature builds aggregates.
type ValueAggMapFeature interface {
	Feature
	CreateAggMapper(expr ast.Expr, md *Metadata) (AggMapper, error)
}

// GroupFeature builds groupers from a GROUP BY expression.
type GroupFeature interface {
	Feature
	CreateGrouper(expr ast.Expr, md *Metadata) (Grouper, error)
}

// OrderedGroupFeature is a GroupFeature whose groups close in the order they
// open, as windows do.
type OrderedGroupFeature interface {
	GroupFeature
	OrderedGroups()
}

// DistinctFeature builds a de-duplication stage.
type DistinctFeature interface {
	Feature
	CreateDistinct(d *ast.Distinct, md *Metadata) (Transformer, error)
}

// FromFeature resolves a row source.
type FromFeature interface {
	Feature
	CreateFrom(item ast.FromItem, md *Metadata) (SourceMapper, error)
}
