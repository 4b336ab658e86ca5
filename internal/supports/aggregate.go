package supports

import (
	"context"
	"fmt"

	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/feature"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/stream"
	"github.com/roach88/streamql/internal/value"
)

// countFeature counts the items of the sequence. count(*) and count(x)
// both count every item; an empty sequence counts 0.
type countFeature struct{}

func (countFeature) ID() feature.ID { return feature.ValueAggMap.Of("count") }

func (countFeature) CreateAggMapper(expr ast.Expr, _ *feature.Metadata) (feature.AggMapper, error) {
	if _, ok := expr.(*ast.Func); !ok {
		return nil, feature.Errorf(feature.ErrCodeUnsupportedExpression, expr, "count expects a function call")
	}
	return func(ctx context.Context, rows stream.Stream[*record.Record]) (any, error) {
		return stream.Count(ctx, rows)
	}, nil
}

// singleArg returns the mapper of a one-argument aggregate call.
func singleArg(name string, expr ast.Expr, md *feature.Metadata) (feature.Mapper, error) {
	call, ok := expr.(*ast.Func)
	if !ok {
		return nil, feature.Errorf(feature.ErrCodeUnsupportedExpression, expr, "%s expects a function call", name)
	}
	if call.Star || len(call.Args) != 1 {
		return nil, feature.Errorf(feature.ErrCodeInvalidArguments, expr, "%s takes exactly one argument", name)
	}
	return feature.CreateMapperNow(call.Args[0], md)
}

// numAcc accumulates the numeric values of an aggregate argument.
type numAcc struct {
	n      int64
	intSum int64
	sum    float64
	allInt bool
}

func (a *numAcc) add(n value.Number) {
	a.n++
	a.sum += n.Value()
	if n.IsInt {
		a.intSum += n.Int
	} else {
		a.allInt = false
	}
}

func sumOf(a *numAcc) any {
	if a.allInt {
		return a.intSum
	}
	return a.sum
}

func avgOf(a *numAcc) any {
	if a.n == 0 {
		return nil
	}
	return a.sum / float64(a.n)
}

// numericAgg folds the numeric values of its argument. NULLs are skipped;
// a non-numeric value is an error.
type numericAgg struct {
	name   string
	finish func(*numAcc) any
}

func newNumericAgg(name string, finish func(*numAcc) any) numericAgg {
	return numericAgg{name: name, finish: finish}
}

func (f numericAgg) ID() feature.ID { return feature.ValueAggMap.Of(f.name) }

func (f numericAgg) CreateAggMapper(expr ast.Expr, md *feature.Metadata) (feature.AggMapper, error) {
	arg, err := singleArg(f.name, expr, md)
	if err != nil {
		return nil, err
	}
	text := expr.String()
	return func(ctx context.Context, rows stream.Stream[*record.Record]) (any, error) {
		acc := &numAcc{allInt: true}
		err := rows(ctx, func(r *record.Record) error {
			v, err := arg(ctx, r)
			if err != nil || v == nil {
				return err
			}
			n, ok := value.ParseNumber(v)
			if !ok {
				return fmt.Errorf("%s: not a number: %v", text, v)
			}
			acc.add(n)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return f.finish(acc), nil
	}, nil
}

// extremeAgg keeps the greatest (sign 1) or least (sign -1) non-NULL value.
type extremeAgg struct {
	name string
	sign int
}

func newExtremeAgg(name string, sign int) extremeAgg {
	return extremeAgg{name: name, sign: sign}
}

func (f extremeAgg) ID() feature.ID { return feature.ValueAggMap.Of(f.name) }

func (f extremeAgg) CreateAggMapper(expr ast.Expr, md *feature.Metadata) (feature.AggMapper, error) {
	arg, err := singleArg(f.name, expr, md)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, rows stream.Stream[*record.Record]) (any, error) {
		var best any
		err := rows(ctx, func(r *record.Record) error {
			v, err := arg(ctx, r)
			if err != nil || v == nil {
				return err
			}
			if best == nil || value.Compare(v, best)*f.sign > 0 {
				best = v
			}
			return nil
		})
		return best, err
	}, nil
}
