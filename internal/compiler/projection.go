package compiler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/feature"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/stream"
)

// column is one compiled select item. Exactly one of spread, mapper and agg
// is set.
type column struct {
	alias  string
	spread *ast.AllColumns
	mapper feature.Mapper
	agg    feature.AggMapper
}

// projector computes the output columns of the select list.
type projector struct {
	columns []column
	plain   []int // indexes of mapper columns
	hasAgg  bool
	grouped bool
}

// projection builds the SELECT stage. grouped reports whether it runs once
// per GROUP BY group.
//
// Without aggregates every record is projected. With at least one aggregate
// the whole input is buffered and reduced to a single record; plain columns
// beside the aggregates are read from the first buffered record. A grouped
// statement without aggregates reports the last record of each group.
func (c *compiler) projection(items []ast.SelectItem, grouped bool) (feature.Transformer, error) {
	p := &projector{grouped: grouped}
	for _, item := range items {
		col, err := c.column(item)
		if err != nil {
			return nil, err
		}
		switch {
		case col.agg != nil:
			p.hasAgg = true
		case col.mapper != nil:
			p.plain = append(p.plain, len(p.columns))
		}
		p.columns = append(p.columns, col)
	}
	return p.transformer(), nil
}

// column classifies a select item. A function registered as an aggregate is
// an aggregate even if a scalar feature of the same name exists.
func (c *compiler) column(item ast.SelectItem) (column, error) {
	col := column{alias: ast.ItemAlias(item)}

	switch e := item.Expr.(type) {
	case *ast.AllColumns:
		col.spread = e
		return col, nil
	case *ast.Func:
		if f, ok := feature.Lookup[feature.ValueAggMapFeature](c.md.Registry(), feature.ValueAggMap.Of(e.Name)); ok {
			agg, err := f.CreateAggMapper(e, c.md)
			if err != nil {
				return column{}, err
			}
			col.agg = agg
			return col, nil
		}
	}

	m, ok, err := feature.CreateMapper(item.Expr, c.md)
	if err != nil {
		return column{}, err
	}
	if !ok {
		return column{}, feature.Errorf(feature.ErrCodeUnsupportedSelectItem, item.Expr,
			"no scalar or aggregate feature for select item %q", col.alias)
	}
	col.mapper = m
	return col, nil
}

func (p *projector) transformer() feature.Transformer {
	switch {
	case p.hasAgg:
		return func(s stream.Stream[*record.Record]) stream.Stream[*record.Record] {
			return func(ctx context.Context, emit func(*record.Record) error) error {
				rows, err := stream.Collect(ctx, s)
				if err != nil {
					return err
				}
				out, err := p.aggregate(ctx, rows)
				if err != nil {
					return err
				}
				return emit(out)
			}
		}
	case p.grouped:
		return func(s stream.Stream[*record.Record]) stream.Stream[*record.Record] {
			return stream.MapErr(stream.TakeLast(s, 1), p.project)
		}
	default:
		return func(s stream.Stream[*record.Record]) stream.Stream[*record.Record] {
			return stream.MapErr(s, p.project)
		}
	}
}

func (p *projector) project(ctx context.Context, r *record.Record) (*record.Record, error) {
	vals, err := p.evaluate(ctx, r, nil)
	if err != nil {
		return nil, err
	}
	return r.WithResults(vals), nil
}

// aggregate reduces rows to one record. An empty input is represented by a
// placeholder record so that aggregates such as count still produce a row.
func (p *projector) aggregate(ctx context.Context, rows []*record.Record) (*record.Record, error) {
	var rep *record.Record
	if len(rows) > 0 {
		rep = rows[0]
	} else {
		rep = record.New("", map[string]any{}, record.PlaceholderContext(nil))
	}

	aggs := make([]any, len(p.columns))
	g, gctx := errgroup.WithContext(ctx)
	for i, col := range p.columns {
		if col.agg == nil {
			continue
		}
		g.Go(func() error {
			v, err := col.agg(gctx, stream.FromSlice(rows))
			aggs[i] = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	partial := record.NewValues()
	for i, col := range p.columns {
		if col.agg != nil {
			partial.Set(col.alias, aggs[i])
		}
	}
	merged := rep.WithResults(partial)

	vals, err := p.evaluate(ctx, merged, aggs)
	if err != nil {
		return nil, err
	}
	return merged.WithResults(vals), nil
}

// evaluate computes the output columns of r in SELECT order. aggs holds the
// resolved aggregate values by column index.
func (p *projector) evaluate(ctx context.Context, r *record.Record, aggs []any) (*record.Values, error) {
	computed := make([]any, len(p.columns))

	switch len(p.plain) {
	case 0:
	case 1:
		i := p.plain[0]
		v, err := p.columns[i].mapper(ctx, r)
		if err != nil {
			return nil, err
		}
		computed[i] = v
	default:
		g, gctx := errgroup.WithContext(ctx)
		for _, i := range p.plain {
			g.Go(func() error {
				v, err := p.columns[i].mapper(gctx, r)
				computed[i] = v
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := record.NewValues()
	for i, col := range p.columns {
		switch {
		case col.spread != nil:
			spread := r.Spread(ast.Unquote(col.spread.Table))
			for _, k := range spread.Keys() {
				v, _ := spread.Get(k)
				out.Set(k, v)
			}
		case col.agg != nil:
			out.Set(col.alias, aggs[i])
		default:
			out.Set(col.alias, computed[i])
		}
	}
	return out, nil
}
