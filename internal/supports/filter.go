package supports

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/spf13/cast"

	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/feature"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/value"
)

// binaryOperands builds mandatory mappers for both sides of a binary
// expression.
func binaryOperands(expr ast.Expr, md *feature.Metadata) (*ast.Binary, feature.Mapper, feature.Mapper, error) {
	b, ok := expr.(*ast.Binary)
	if !ok {
		return nil, nil, nil, feature.Errorf(feature.ErrCodeUnsupportedExpression, expr, "expected a binary expression, got %T", expr)
	}
	left, err := feature.CreateMapperNow(b.Left, md)
	if err != nil {
		return nil, nil, nil, err
	}
	right, err := feature.CreateMapperNow(b.Right, md)
	if err != nil {
		return nil, nil, nil, err
	}
	return b, left, right, nil
}

func evalBoth(ctx context.Context, r *record.Record, left, right feature.Mapper) (any, any, error) {
	l, err := left(ctx, r)
	if err != nil {
		return nil, nil, err
	}
	rv, err := right(ctx, r)
	if err != nil {
		return nil, nil, err
	}
	return l, rv, nil
}

// compareFilter implements the comparison operators. A NULL operand makes
// every comparison false.
type compareFilter struct {
	op   string
	test func(int) bool
}

func newCompareFilter(op string, test func(int) bool) compareFilter {
	return compareFilter{op: op, test: test}
}

func (f compareFilter) ID() feature.ID { return feature.Filter.Of(f.op) }

func (f compareFilter) CreatePredicate(expr ast.Expr, md *feature.Metadata) (feature.Predicate, error) {
	_, left, right, err := binaryOperands(expr, md)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, r *record.Record) (bool, error) {
		l, rv, err := evalBoth(ctx, r, left, right)
		if err != nil || l == nil || rv == nil {
			return false, err
		}
		return f.test(value.Compare(l, rv)), nil
	}, nil
}

// logicalFilter implements AND / OR with short-circuit evaluation.
type logicalFilter struct {
	op string
}

func (f logicalFilter) ID() feature.ID { return feature.Filter.Of(f.op) }

func (f logicalFilter) CreatePredicate(expr ast.Expr, md *feature.Metadata) (feature.Predicate, error) {
	b, ok := expr.(*ast.Binary)
	if !ok {
		return nil, feature.Errorf(feature.ErrCodeUnsupportedExpression, expr, "%s expects a binary expression", f.op)
	}
	left, err := feature.CreatePredicate(b.Left, md)
	if err != nil {
		return nil, err
	}
	right, err := feature.CreatePredicate(b.Right, md)
	if err != nil {
		return nil, err
	}

	isAnd := f.op == "and"
	return func(ctx context.Context, r *record.Record) (bool, error) {
		l, err := left(ctx, r)
		if err != nil {
			return false, err
		}
		if isAnd != l {
			// false AND _, true OR _
			return l, nil
		}
		return right(ctx, r)
	}, nil
}

type notFilter struct{}

func (notFilter) ID() feature.ID { return feature.Filter.Of(feature.NotName) }

func (notFilter) CreatePredicate(expr ast.Expr, md *feature.Metadata) (feature.Predicate, error) {
	n, ok := expr.(*ast.Not)
	if !ok {
		return nil, feature.Errorf(feature.ErrCodeUnsupportedExpression, expr, "not expects a NOT expression")
	}
	inner, err := feature.CreatePredicate(n.Expr, md)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, r *record.Record) (bool, error) {
		ok, err := inner(ctx, r)
		return !ok && err == nil, err
	}, nil
}

type isNullFilter struct{}

func (isNullFilter) ID() feature.ID { return feature.Filter.Of(feature.IsNullName) }

func (isNullFilter) CreatePredicate(expr ast.Expr, md *feature.Metadata) (feature.Predicate, error) {
	n, ok := expr.(*ast.IsNull)
	if !ok {
		return nil, feature.Errorf(feature.ErrCodeUnsupportedExpression, expr, "is null expects an IS NULL expression")
	}
	m, err := feature.CreateMapperNow(n.Expr, md)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, r *record.Record) (bool, error) {
		v, err := m(ctx, r)
		if err != nil {
			return false, err
		}
		return (v == nil) != n.Negate, nil
	}, nil
}

type betweenFilter struct{}

func (betweenFilter) ID() feature.ID { return feature.Filter.Of(feature.BetweenName) }

func (betweenFilter) CreatePredicate(expr ast.Expr, md *feature.Metadata) (feature.Predicate, error) {
	b, ok := expr.(*ast.Between)
	if !ok {
		return nil, feature.Errorf(feature.ErrCodeUnsupportedExpression, expr, "between expects a BETWEEN expression")
	}
	mappers, err := feature.CreateMappers([]ast.Expr{b.Expr, b.Low, b.High}, md)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, r *record.Record) (bool, error) {
		vals := make([]any, len(mappers))
		for i, m := range mappers {
			v, err := m(ctx, r)
			if err != nil {
				return false, err
			}
			if v == nil {
				return false, nil
			}
			vals[i] = v
		}
		in := value.Compare(vals[0], vals[1]) >= 0 && value.Compare(vals[0], vals[2]) <= 0
		return in != b.Negate, nil
	}, nil
}

type inFilter struct{}

func (inFilter) ID() feature.ID { return feature.Filter.Of(feature.InName) }

func (inFilter) CreatePredicate(expr ast.Expr, md *feature.Metadata) (feature.Predicate, error) {
	in, ok := expr.(*ast.In)
	if !ok {
		return nil, feature.Errorf(feature.ErrCodeUnsupportedExpression, expr, "in expects an IN expression")
	}
	subject, err := feature.CreateMapperNow(in.Expr, md)
	if err != nil {
		return nil, err
	}
	list, err := feature.CreateMappers(in.List, md)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, r *record.Record) (bool, error) {
		v, err := subject(ctx, r)
		if err != nil || v == nil {
			return false, err
		}
		for _, m := range list {
			candidate, err := m(ctx, r)
			if err != nil {
				return false, err
			}
			if candidate != nil && value.Equal(v, candidate) {
				return !in.Negate, nil
			}
		}
		return in.Negate, nil
	}, nil
}

// likeFilter implements SQL LIKE: % matches any run, _ any single
// character. Literal patterns are compiled once.
type likeFilter struct {
	name   string
	negate bool
}

func (f likeFilter) ID() feature.ID { return feature.Filter.Of(f.name) }

func (f likeFilter) CreatePredicate(expr ast.Expr, md *feature.Metadata) (feature.Predicate, error) {
	b, subject, pattern, err := binaryOperands(expr, md)
	if err != nil {
		return nil, err
	}

	var compiled *regexp.Regexp
	if lit, ok := b.Right.(*ast.StringValue); ok {
		compiled = likePattern(lit.Value)
	}
	var cache sync.Map

	return func(ctx context.Context, r *record.Record) (bool, error) {
		s, p, err := evalBoth(ctx, r, subject, pattern)
		if err != nil || s == nil || p == nil {
			return false, err
		}
		re := compiled
		if re == nil {
			ps := cast.ToString(p)
			if cached, ok := cache.Load(ps); ok {
				re = cached.(*regexp.Regexp)
			} else {
				re = likePattern(ps)
				cache.Store(ps, re)
			}
		}
		return re.MatchString(cast.ToString(s)) != f.negate, nil
	}, nil
}

func likePattern(p string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`(?s)^`)
	for _, r := range p {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}
