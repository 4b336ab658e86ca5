package supports

import (
	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/feature"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/stream"
)

// tableFeature resolves a named source through the run context and binds
// its records to the table alias.
type tableFeature struct{}

func (tableFeature) ID() feature.ID { return feature.From.Of(feature.TableName) }

func (tableFeature) CreateFrom(item ast.FromItem, _ *feature.Metadata) (feature.SourceMapper, error) {
	t, ok := item.(*ast.Table)
	if !ok {
		return nil, feature.Errorf(feature.ErrCodeUnsupportedFrom, item, "table source expects a table, got %T", item)
	}
	name, alias := ast.Unquote(t.Name), ast.Unquote(t.AliasName())
	return func(c *record.Context) stream.Stream[*record.Record] {
		return c.Records(name, alias)
	}, nil
}
