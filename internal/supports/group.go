package supports

import (
	"context"
	"time"

	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/feature"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/stream"
	"github.com/roach88/streamql/internal/value"
)

// windowFeature is the _window grouping function:
//
//	_window(3)            count window of 3 records
//	_window('1s')         time window of one second
//	_window(<predicate>)  new window at every record matching the predicate
//	_window(3, 1)         count window of 3 opened every record
//	_window('10s', '5s')  10s time window opened every 5s
type windowFeature struct {
	name string
}

func (f windowFeature) ID() feature.ID { return feature.GroupBy.Of(f.name) }

func (windowFeature) OrderedGroups() {}

func (f windowFeature) CreateGrouper(expr ast.Expr, md *feature.Metadata) (feature.Grouper, error) {
	call, ok := expr.(*ast.Func)
	if !ok {
		return nil, feature.Errorf(feature.ErrCodeUnsupportedExpression, expr, "%s expects a function call", f.name)
	}

	switch len(call.Args) {
	case 0:
		return nil, feature.Errorf(feature.ErrCodeInvalidArguments, expr, "window function requires arguments")
	case 1:
		switch arg := call.Args[0].(type) {
		case *ast.LongValue:
			size, err := positiveCount(expr, arg)
			if err != nil {
				return nil, err
			}
			return func(rows stream.Stream[*record.Record]) stream.Stream[stream.Stream[*record.Record]] {
				return stream.Window(rows, size)
			}, nil
		case *ast.StringValue:
			d, err := positiveDuration(expr, arg)
			if err != nil {
				return nil, err
			}
			return timeWindow(d), nil
		default:
			boundary, err := feature.CreatePredicate(arg, md)
			if err != nil {
				return nil, err
			}
			return func(rows stream.Stream[*record.Record]) stream.Stream[stream.Stream[*record.Record]] {
				return stream.WindowUntil(rows, func(ctx context.Context, r *record.Record) (bool, error) {
					return boundary(ctx, r)
				})
			}, nil
		}
	case 2:
		switch first := call.Args[0].(type) {
		case *ast.LongValue:
			second, ok := call.Args[1].(*ast.LongValue)
			if !ok {
				break
			}
			size, err := positiveCount(expr, first)
			if err != nil {
				return nil, err
			}
			skip, err := positiveCount(expr, second)
			if err != nil {
				return nil, err
			}
			return func(rows stream.Stream[*record.Record]) stream.Stream[stream.Stream[*record.Record]] {
				return stream.WindowSliding(rows, size, skip)
			}, nil
		case *ast.StringValue:
			second, ok := call.Args[1].(*ast.StringValue)
			if !ok {
				break
			}
			length, err := positiveDuration(expr, first)
			if err != nil {
				return nil, err
			}
			every, err := positiveDuration(expr, second)
			if err != nil {
				return nil, err
			}
			return func(rows stream.Stream[*record.Record]) stream.Stream[stream.Stream[*record.Record]] {
				return stream.WindowTimeSliding(rows, length, every)
			}, nil
		}
	}
	return nil, feature.Errorf(feature.ErrCodeInvalidArguments, expr, "unsupported window arguments: %s", expr)
}

// intervalFeature is interval('10s'): a tumbling time window. A bare
// integer is milliseconds.
type intervalFeature struct{}

func (intervalFeature) ID() feature.ID { return feature.GroupBy.Of("interval") }

func (intervalFeature) OrderedGroups() {}

func (intervalFeature) CreateGrouper(expr ast.Expr, _ *feature.Metadata) (feature.Grouper, error) {
	call, ok := expr.(*ast.Func)
	if !ok || len(call.Args) != 1 {
		return nil, feature.Errorf(feature.ErrCodeInvalidArguments, expr, "interval takes exactly one duration")
	}
	switch arg := call.Args[0].(type) {
	case *ast.StringValue:
		d, err := positiveDuration(expr, arg)
		if err != nil {
			return nil, err
		}
		return timeWindow(d), nil
	case *ast.LongValue:
		if arg.Value <= 0 {
			return nil, feature.Errorf(feature.ErrCodeInvalidArguments, expr, "interval must be positive")
		}
		return timeWindow(time.Duration(arg.Value) * time.Millisecond), nil
	}
	return nil, feature.Errorf(feature.ErrCodeInvalidArguments, expr, "interval takes exactly one duration")
}

func timeWindow(d time.Duration) feature.Grouper {
	return func(rows stream.Stream[*record.Record]) stream.Stream[stream.Stream[*record.Record]] {
		return stream.WindowTime(rows, d)
	}
}

func positiveCount(expr ast.Expr, lit *ast.LongValue) (int, error) {
	if lit.Value <= 0 {
		return 0, feature.Errorf(feature.ErrCodeInvalidArguments, expr, "window size must be positive, got %d", lit.Value)
	}
	return int(lit.Value), nil
}

func positiveDuration(expr ast.Expr, lit *ast.StringValue) (time.Duration, error) {
	d, err := value.ParseDuration(lit.Value)
	if err != nil {
		ce := feature.Errorf(feature.ErrCodeInvalidArguments, expr, "invalid window duration %q", lit.Value)
		ce.Err = err
		return 0, ce
	}
	if d <= 0 {
		return 0, feature.Errorf(feature.ErrCodeInvalidArguments, expr, "window duration must be positive, got %s", d)
	}
	return d, nil
}

// keyGrouper groups records by the canonical key of m's value.
func keyGrouper(m feature.Mapper) feature.Grouper {
	return func(rows stream.Stream[*record.Record]) stream.Stream[stream.Stream[*record.Record]] {
		return stream.GroupBy(rows, func(ctx context.Context, r *record.Record) (string, error) {
			v, err := m(ctx, r)
			if err != nil {
				return "", err
			}
			return value.Key(v), nil
		})
	}
}

// propertyGroupFeature groups by a column value.
type propertyGroupFeature struct{}

func (propertyGroupFeature) ID() feature.ID { return feature.GroupBy.Of(feature.PropertyName) }

func (propertyGroupFeature) CreateGrouper(expr ast.Expr, md *feature.Metadata) (feature.Grouper, error) {
	if _, ok := expr.(*ast.Column); !ok {
		return nil, feature.Errorf(feature.ErrCodeUnsupportedExpression, expr, "property grouping expects a column")
	}
	m, err := feature.CreateMapperNow(expr, md)
	if err != nil {
		return nil, err
	}
	return keyGrouper(m), nil
}

// valueGroupFeature groups by the value of a binary expression, such as
// `GROUP BY value / 10`.
type valueGroupFeature struct {
	op string
}

func (f valueGroupFeature) ID() feature.ID { return feature.GroupBy.Of(f.op) }

func (f valueGroupFeature) CreateGrouper(expr ast.Expr, md *feature.Metadata) (feature.Grouper, error) {
	m, err := feature.CreateMapperNow(expr, md)
	if err != nil {
		return nil, err
	}
	return keyGrouper(m), nil
}
