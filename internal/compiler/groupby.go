package compiler

import (
	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/feature"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/stream"
)

// groupBy builds the GROUP BY stage; nil when there is no GROUP BY.
//
// Groupers fold left to right: the groups of the first expression are each
// regrouped by the second, and so on. Every final group is projected and
// then filtered by having. A group's result is emitted as soon as the group
// completes, so a group that never closes holds back only its own result.
// A single windowing expression closes its groups in opening order, and its
// results keep that order.
func (c *compiler) groupBy(exprs []ast.Expr, project, having feature.Transformer) (feature.Transformer, error) {
	if len(exprs) == 0 {
		return nil, nil
	}

	var (
		grouper feature.Grouper
		ordered bool
	)
	for _, expr := range exprs {
		g, inOrder, err := c.grouper(expr)
		if err != nil {
			return nil, err
		}
		ordered = inOrder && len(exprs) == 1
		if grouper == nil {
			grouper = g
			continue
		}
		prev := grouper
		grouper = func(rows stream.Stream[*record.Record]) stream.Stream[stream.Stream[*record.Record]] {
			// Windows are hot, so every group must be subscribed as soon as
			// it opens: the fan-out is unbounded.
			return stream.FlatMap(prev(rows), func(group stream.Stream[*record.Record]) stream.Stream[stream.Stream[*record.Record]] {
				return g(group)
			}, 0)
		}
	}

	perGroup := compose(project, having)
	flatten := func(group stream.Stream[*record.Record]) stream.Stream[*record.Record] {
		return perGroup(group)
	}
	if ordered {
		return func(rows stream.Stream[*record.Record]) stream.Stream[*record.Record] {
			return stream.FlatMapSequential(grouper(rows), flatten)
		}, nil
	}
	return func(rows stream.Stream[*record.Record]) stream.Stream[*record.Record] {
		// Unbounded for the same reason: every open group must be drained.
		return stream.FlatMap(grouper(rows), flatten, 0)
	}, nil
}

// grouper resolves the group-by feature for one expression: a function by
// its name, a column by the property feature, a binary expression by its
// operator. ordered reports whether the feature's groups close in opening
// order.
func (c *compiler) grouper(expr ast.Expr) (feature.Grouper, bool, error) {
	var id feature.ID
	switch e := expr.(type) {
	case *ast.Func:
		id = feature.GroupBy.Of(e.Name)
	case *ast.Column:
		id = feature.GroupBy.Of(feature.PropertyName)
	case *ast.Binary:
		id = feature.GroupBy.Of(e.Op)
	default:
		return nil, false, feature.Errorf(feature.ErrCodeUnsupportedGroupBy, expr, "unsupported GROUP BY expression %T", expr)
	}

	f, err := feature.Require[feature.GroupFeature](c.md.Registry(), id, expr)
	if err != nil {
		return nil, false, err
	}
	g, err := f.CreateGrouper(expr, c.md)
	_, ordered := f.(feature.OrderedGroupFeature)
	return g, ordered, err
}
