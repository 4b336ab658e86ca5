package feature

import (
	"context"

	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/value"
)

// CreatePredicate builds the predicate for a boolean expression. It is
// mandatory: an expression no feature can handle is a CompileError.
//
// Dispatch:
//   - binary expression: filter feature named by the operator; operators
//     with only a value-map feature (arithmetic) are tested for truthiness
//   - NOT, IS NULL, BETWEEN, IN: the filter feature of that name
//   - function call: filter feature named by the function, else its scalar
//     value tested for truthiness
//   - anything else: its scalar value tested for truthiness
func CreatePredicate(expr ast.Expr, md *Metadata) (Predicate, error) {
	reg := md.Registry()

	switch e := expr.(type) {
	case nil:
		return nil, Errorf(ErrCodeInvalidQuery, nil, "missing predicate")
	case *ast.Binary:
		if f, ok := Lookup[FilterFeature](reg, Filter.Of(e.Op)); ok {
			return f.CreatePredicate(e, md)
		}
		if _, ok := Lookup[ValueMapFeature](reg, ValueMap.Of(e.Op)); ok {
			return truthyPredicate(e, md)
		}
		_, err := Require[FilterFeature](reg, Filter.Of(e.Op), e)
		return nil, err
	case *ast.Not:
		return requirePredicate(reg, NotName, e, md)
	case *ast.IsNull:
		return requirePredicate(reg, IsNullName, e, md)
	case *ast.Between:
		return requirePredicate(reg, BetweenName, e, md)
	case *ast.In:
		return requirePredicate(reg, InName, e, md)
	case *ast.Func:
		if f, ok := Lookup[FilterFeature](reg, Filter.Of(e.Name)); ok {
			return f.CreatePredicate(e, md)
		}
		return truthyPredicate(e, md)
	default:
		return truthyPredicate(e, md)
	}
}

func requirePredicate(reg *Registry, name string, e ast.Expr, md *Metadata) (Predicate, error) {
	f, err := Require[FilterFeature](reg, Filter.Of(name), e)
	if err != nil {
		return nil, err
	}
	return f.CreatePredicate(e, md)
}

func truthyPredicate(e ast.Expr, md *Metadata) (Predicate, error) {
	m, err := CreateMapperNow(e, md)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, r *record.Record) (bool, error) {
		v, err := m(ctx, r)
		if err != nil {
			return false, err
		}
		return value.Truthy(v), nil
	}, nil
}

// CreateMapper builds the scalar mapper for an expression. It is the
// optional flavor: ok is false (with a nil error) when no feature handles
// the expression.
//
// Dispatch:
//   - column: value-map:property
//   - literal: a constant
//   - function call: value-map feature named by the function; a function
//     that is only registered as an aggregate reads the projected column of
//     the select item with the same text (its alias if it has one), so
//     HAVING and ORDER BY can refer to aggregates
//   - binary expression: value-map feature named by the operator, else the
//     filter feature of that operator as a boolean value
//   - NOT, IS NULL, BETWEEN, IN: their predicate as a boolean value
func CreateMapper(expr ast.Expr, md *Metadata) (Mapper, bool, error) {
	reg := md.Registry()

	if v, ok := ast.Literal(expr); ok {
		return Constant(v), true, nil
	}

	switch e := expr.(type) {
	case *ast.Column:
		f, err := Require[ValueMapFeature](reg, ValueMap.Of(PropertyName), e)
		if err != nil {
			return nil, false, err
		}
		m, err := f.CreateMapper(e, md)
		return m, err == nil, err
	case *ast.Func:
		if f, ok := Lookup[ValueMapFeature](reg, ValueMap.Of(e.Name)); ok {
			m, err := f.CreateMapper(e, md)
			return m, err == nil, err
		}
		if _, ok := Lookup[ValueAggMapFeature](reg, ValueAggMap.Of(e.Name)); ok {
			return resultMapper(md.ResultColumn(e)), true, nil
		}
		return nil, false, nil
	case *ast.Binary:
		if f, ok := Lookup[ValueMapFeature](reg, ValueMap.Of(e.Op)); ok {
			m, err := f.CreateMapper(e, md)
			return m, err == nil, err
		}
		if f, ok := Lookup[FilterFeature](reg, Filter.Of(e.Op)); ok {
			p, err := f.CreatePredicate(e, md)
			if err != nil {
				return nil, false, err
			}
			return predicateMapper(p), true, nil
		}
		return nil, false, nil
	case *ast.Not, *ast.IsNull, *ast.Between, *ast.In:
		p, err := CreatePredicate(e, md)
		if err != nil {
			return nil, false, err
		}
		return predicateMapper(p), true, nil
	case *ast.AllColumns:
		return nil, false, Errorf(ErrCodeUnsupportedExpression, e, "%s is only allowed as a select item", e)
	default:
		return nil, false, nil
	}
}

// CreateMapperNow is the mandatory flavor of CreateMapper.
func CreateMapperNow(expr ast.Expr, md *Metadata) (Mapper, error) {
	m, ok, err := CreateMapper(expr, md)
	if err != nil {
		return nil, err
	}
	if !ok {
		id := ValueMap.Of(mapperName(expr))
		ce := Errorf(ErrCodeMissingFeature, expr, "unsupported %s feature %q", id.Category, id.Name)
		ce.Feature = id
		return nil, ce
	}
	return m, nil
}

// CreateMappers builds mandatory mappers for every expression.
func CreateMappers(exprs []ast.Expr, md *Metadata) ([]Mapper, error) {
	out := make([]Mapper, len(exprs))
	for i, e := range exprs {
		m, err := CreateMapperNow(e, md)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

func mapperName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Func:
		return e.Name
	case *ast.Binary:
		return e.Op
	case nil:
		return "<nil>"
	default:
		return expr.String()
	}
}

// Constant returns a mapper yielding v.
func Constant(v any) Mapper {
	return func(context.Context, *record.Record) (any, error) {
		return v, nil
	}
}

// resultMapper reads a projected column.
func resultMapper(column string) Mapper {
	return func(_ context.Context, r *record.Record) (any, error) {
		v, _ := r.Results().Get(column)
		return v, nil
	}
}

func predicateMapper(p Predicate) Mapper {
	return func(ctx context.Context, r *record.Record) (any, error) {
		return p(ctx, r)
	}
}
