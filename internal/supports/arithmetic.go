package supports

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/feature"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/value"
)

// arithmeticFeature implements + - * / %. A NULL operand yields NULL.
// Integer operands stay integers except for inexact division; + with a
// non-numeric string operand concatenates.
type arithmeticFeature struct {
	op string
}

func (f arithmeticFeature) ID() feature.ID { return feature.ValueMap.Of(f.op) }

func (f arithmeticFeature) CreateMapper(expr ast.Expr, md *feature.Metadata) (feature.Mapper, error) {
	_, left, right, err := binaryOperands(expr, md)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, r *record.Record) (any, error) {
		l, rv, err := evalBoth(ctx, r, left, right)
		if err != nil {
			return nil, err
		}
		return Arithmetic(f.op, l, rv)
	}, nil
}

// Arithmetic applies op to two dynamic values.
func Arithmetic(op string, l, r any) (any, error) {
	if l == nil || r == nil {
		return nil, nil
	}

	if op == "+" && (isText(l) || isText(r)) {
		return cast.ToString(l) + cast.ToString(r), nil
	}

	ln, lok := value.ParseNumber(l)
	rn, rok := value.ParseNumber(r)
	if !lok || !rok {
		return nil, fmt.Errorf("cannot apply %s to %T and %T", op, l, r)
	}

	if ln.IsInt && rn.IsInt {
		a, b := ln.Int, rn.Int
		switch op {
		case "+":
			return a + b, nil
		case "-":
			return a - b, nil
		case "*":
			return a * b, nil
		case "/":
			if b == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			if a%b == 0 {
				return a / b, nil
			}
			return float64(a) / float64(b), nil
		case "%":
			if b == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return a % b, nil
		}
	}

	a, b := ln.Value(), rn.Value()
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return a / b, nil
	case "%":
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return math.Mod(a, b), nil
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}

// isText reports a string that does not parse as a number.
func isText(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, numeric := value.ParseNumber(s)
	return !numeric
}

// scalarFunc is a value-map feature computing a function of its evaluated
// arguments.
type scalarFunc struct {
	name    string
	minArgs int
	maxArgs int // -1 for variadic
	fn      func(args []any) (any, error)
}

func (f scalarFunc) ID() feature.ID { return feature.ValueMap.Of(f.name) }

func (f scalarFunc) CreateMapper(expr ast.Expr, md *feature.Metadata) (feature.Mapper, error) {
	call, ok := expr.(*ast.Func)
	if !ok {
		return nil, feature.Errorf(feature.ErrCodeUnsupportedExpression, expr, "%s expects a function call", f.name)
	}
	n := len(call.Args)
	if call.Star || n < f.minArgs || (f.maxArgs >= 0 && n > f.maxArgs) {
		return nil, feature.Errorf(feature.ErrCodeInvalidArguments, expr, "wrong number of arguments to %s", f.name)
	}
	args, err := feature.CreateMappers(call.Args, md)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, r *record.Record) (any, error) {
		vals := make([]any, len(args))
		for i, m := range args {
			v, err := m(ctx, r)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		out, err := f.fn(vals)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", call, err)
		}
		return out, nil
	}, nil
}

func scalarFunctions() []feature.Feature {
	return []feature.Feature{
		scalarFunc{name: "upper", minArgs: 1, maxArgs: 1, fn: stringFunc(strings.ToUpper)},
		scalarFunc{name: "lower", minArgs: 1, maxArgs: 1, fn: stringFunc(strings.ToLower)},
		scalarFunc{name: "trim", minArgs: 1, maxArgs: 1, fn: stringFunc(strings.TrimSpace)},
		scalarFunc{name: "concat", minArgs: 1, maxArgs: -1, fn: func(args []any) (any, error) {
			var b strings.Builder
			for _, a := range args {
				if a != nil {
					b.WriteString(cast.ToString(a))
				}
			}
			return b.String(), nil
		}},
		scalarFunc{name: "coalesce", minArgs: 1, maxArgs: -1, fn: func(args []any) (any, error) {
			for _, a := range args {
				if a != nil {
					return a, nil
				}
			}
			return nil, nil
		}},
		scalarFunc{name: "abs", minArgs: 1, maxArgs: 1, fn: func(args []any) (any, error) {
			if args[0] == nil {
				return nil, nil
			}
			n, ok := value.ParseNumber(args[0])
			if !ok {
				return nil, fmt.Errorf("not a number: %v", args[0])
			}
			if n.IsInt {
				if n.Int < 0 {
					return -n.Int, nil
				}
				return n.Int, nil
			}
			return math.Abs(n.Float), nil
		}},
	}
}

func stringFunc(fn func(string) string) func([]any) (any, error) {
	return func(args []any) (any, error) {
		if args[0] == nil {
			return nil, nil
		}
		s, err := cast.ToStringE(args[0])
		if err != nil {
			return nil, err
		}
		return fn(s), nil
	}
}
