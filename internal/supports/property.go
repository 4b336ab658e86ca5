package supports

import (
	"context"

	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/feature"
	"github.com/roach88/streamql/internal/record"
)

// propertyFeature reads a column from the record. Missing columns are nil.
type propertyFeature struct{}

func (propertyFeature) ID() feature.ID { return feature.ValueMap.Of(feature.PropertyName) }

func (propertyFeature) CreateMapper(expr ast.Expr, _ *feature.Metadata) (feature.Mapper, error) {
	c, ok := expr.(*ast.Column)
	if !ok {
		return nil, feature.Errorf(feature.ErrCodeUnsupportedExpression, expr, "property expects a column, got %T", expr)
	}
	table, name := ast.Unquote(c.Table), ast.Unquote(c.Name)
	return func(_ context.Context, r *record.Record) (any, error) {
		v, _ := r.Lookup(table, name)
		return v, nil
	}, nil
}
