package compiler

import (
	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/feature"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/stream"
)

// limit builds the LIMIT stage. Only a non-negative integer literal is
// honored; any other bound is ignored with a warning.
func (c *compiler) limit(expr ast.Expr) feature.Transformer {
	n, ok := c.bound("limit", expr)
	if !ok {
		return nil
	}
	return func(s stream.Stream[*record.Record]) stream.Stream[*record.Record] {
		return stream.Take(s, n)
	}
}

// offset builds the OFFSET stage, with the same rules as limit.
func (c *compiler) offset(expr ast.Expr) feature.Transformer {
	n, ok := c.bound("offset", expr)
	if !ok {
		return nil
	}
	return func(s stream.Stream[*record.Record]) stream.Stream[*record.Record] {
		return stream.Skip(s, n)
	}
}

func (c *compiler) bound(clause string, expr ast.Expr) (int64, bool) {
	if expr == nil {
		return 0, false
	}
	if lit, ok := expr.(*ast.LongValue); ok && lit.Value >= 0 {
		return lit.Value, true
	}
	c.md.Logger().Warn("unsupported row bound ignored", "clause", clause, "expr", expr.String())
	return 0, false
}
