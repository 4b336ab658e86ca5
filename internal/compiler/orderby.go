package compiler

import (
	"context"

	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/feature"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/stream"
	"github.com/roach88/streamql/internal/value"
)

// keyed is a record with its evaluated ORDER BY keys.
type keyed struct {
	rec  *record.Record
	keys []any
}

// orderBy builds the ORDER BY stage; nil when absent.
//
// Every key is evaluated once per record as it arrives; the stage then
// buffers its whole input and sorts stably, so keys never have to resolve
// during comparison. Keys compare lexicographically in declaration order.
func (c *compiler) orderBy(elems []ast.OrderByElement) (feature.Transformer, error) {
	if len(elems) == 0 {
		return nil, nil
	}

	mappers := make([]feature.Mapper, len(elems))
	cmp := func(a, b keyed) int { return 0 }
	for i, el := range elems {
		m, err := feature.CreateMapperNow(el.Expr, c.md)
		if err != nil {
			return nil, err
		}
		mappers[i] = m

		prev, desc := cmp, el.Desc
		cmp = func(a, b keyed) int {
			if n := prev(a, b); n != 0 {
				return n
			}
			n := value.Compare(a.keys[i], b.keys[i])
			if desc {
				return -n
			}
			return n
		}
	}

	withKeys := func(ctx context.Context, r *record.Record) (keyed, error) {
		keys := make([]any, len(mappers))
		for i, m := range mappers {
			v, err := m(ctx, r)
			if err != nil {
				return keyed{}, err
			}
			keys[i] = v
		}
		return keyed{rec: r, keys: keys}, nil
	}

	return func(s stream.Stream[*record.Record]) stream.Stream[*record.Record] {
		sorted := stream.Sort(stream.MapErr(s, withKeys), cmp)
		return stream.Map(sorted, func(k keyed) *record.Record { return k.rec })
	}, nil
}
