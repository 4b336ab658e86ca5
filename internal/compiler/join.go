package compiler

import (
	"context"

	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/feature"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/stream"
)

// rightSide yields the raw right-hand rows for one left record.
type rightSide func(left *record.Record) stream.Stream[any]

// joins folds every JOIN clause left to right; nil when there are none.
func (c *compiler) joins(joins []ast.Join) (feature.Transformer, error) {
	if len(joins) == 0 {
		return nil, nil
	}
	stages := make([]feature.Transformer, 0, len(joins))
	for _, j := range joins {
		t, err := c.join(j)
		if err != nil {
			return nil, err
		}
		stages = append(stages, t)
	}
	return compose(stages...), nil
}

func (c *compiler) join(j ast.Join) (feature.Transformer, error) {
	right, err := c.rightSide(j.Right)
	if err != nil {
		return nil, err
	}
	alias := ast.Unquote(j.Right.AliasName())

	on := func(context.Context, *record.Record) (bool, error) { return true, nil }
	if j.On != nil {
		pred, err := feature.CreatePredicate(j.On, c.md)
		if err != nil {
			return nil, err
		}
		on = pred
	}

	// candidates pairs left with every right row under alias.
	candidates := func(left *record.Record) stream.Stream[*record.Record] {
		return stream.Map(right(left), func(raw any) *record.Record {
			return left.WithValue(alias, raw)
		})
	}

	var perLeft func(left *record.Record) stream.Stream[*record.Record]
	switch j.Type {
	case ast.JoinInner:
		perLeft = func(left *record.Record) stream.Stream[*record.Record] {
			return stream.Filter(candidates(left), on)
		}
	case ast.JoinLeft:
		perLeft = func(left *record.Record) stream.Stream[*record.Record] {
			return stream.DefaultIfEmpty(stream.Filter(candidates(left), on), left)
		}
	case ast.JoinRight:
		perLeft = func(left *record.Record) stream.Stream[*record.Record] {
			matched := stream.MapErr(right(left), func(ctx context.Context, raw any) (*record.Record, error) {
				pair := left.WithValue(alias, raw)
				ok, err := on(ctx, pair)
				if err != nil {
					return nil, err
				}
				if ok {
					return pair, nil
				}
				// The left side never matched: keep only the right row.
				return left.Without(left.Name()).Extend(alias, raw), nil
			})
			return stream.DefaultIfEmpty(matched, left)
		}
	default:
		return nil, feature.Errorf(feature.ErrCodeUnsupportedFrom, j.Right, "unsupported join type %d", j.Type)
	}

	concurrency := c.opts.concurrency
	return func(s stream.Stream[*record.Record]) stream.Stream[*record.Record] {
		return stream.FlatMap(s, perLeft, concurrency)
	}, nil
}

// rightSide resolves the right-hand source of a join.
//
// A table reads the named source of the left record's Context through its
// wrapper, exactly like a FROM table, and yields the value bound to its alias.
// A sub-select is compiled once and started per left record in a Context
// whose records also carry the left record's aliases, so the sub-select can
// refer to the outer row.
func (c *compiler) rightSide(item ast.FromItem) (rightSide, error) {
	switch it := item.(type) {
	case *ast.Table:
		name, alias := ast.Unquote(it.Name), ast.Unquote(it.AliasName())
		return func(left *record.Record) stream.Stream[any] {
			return stream.Map(left.Context().Records(name, alias), func(r *record.Record) any {
				v, _ := r.Value(alias)
				return v
			})
		}, nil
	case *ast.SubSelect:
		nested, err := c.sub(it.Select)
		if err != nil {
			return nil, err
		}
		return func(left *record.Record) stream.Stream[any] {
			outer := left.Values()
			rc := left.Context().Wrap(func(_ string, s stream.Stream[*record.Record]) stream.Stream[*record.Record] {
				return stream.Map(s, func(r *record.Record) *record.Record {
					return r.MergeValues(outer)
				})
			})
			return stream.Map(nested.Start(rc), func(out *record.Record) any {
				return out.AsMap()
			})
		}, nil
	default:
		return nil, feature.Errorf(feature.ErrCodeUnsupportedFrom, item, "unsupported join source %T", item)
	}
}
