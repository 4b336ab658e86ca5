package compiler

import (
	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/feature"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/stream"
)

// from builds the row source of the statement.
//
// A table is resolved by the from:table feature. A sub-select runs as a
// nested pipeline whose output rows are bound to the sub-select alias. A
// statement without FROM produces a single empty record, so
// `SELECT 1 + 1` yields one row.
func (c *compiler) from(item ast.FromItem) (feature.SourceMapper, error) {
	switch it := item.(type) {
	case nil:
		return func(rc *record.Context) stream.Stream[*record.Record] {
			return stream.Just(record.New("", map[string]any{}, rc))
		}, nil
	case *ast.Table:
		f, err := feature.Require[feature.FromFeature](c.md.Registry(), feature.From.Of(feature.TableName), it)
		if err != nil {
			return nil, err
		}
		return f.CreateFrom(it, c.md)
	case *ast.SubSelect:
		nested, err := c.sub(it.Select)
		if err != nil {
			return nil, err
		}
		alias := ast.Unquote(it.AliasName())
		return func(rc *record.Context) stream.Stream[*record.Record] {
			return stream.Map(nested.Start(rc), func(out *record.Record) *record.Record {
				return record.New(alias, out.AsMap(), rc)
			})
		}, nil
	default:
		return nil, feature.Errorf(feature.ErrCodeUnsupportedFrom, item, "unsupported FROM item %T", item)
	}
}
