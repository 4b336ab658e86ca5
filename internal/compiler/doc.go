// Package compiler turns a statement into a pipeline of stream stages.
//
// Every stage is built at compile time from the statement's clauses, so an
// unsupported construct fails before any record is read. The stages are
// composed in SQL order:
//
//	Limit(Offset(Distinct(OrderBy(Projection(Where(Join(From)))))))
//
// With GROUP BY, projection runs once per group inside the GroupBy stage and
// HAVING filters each group's projected record:
//
//	Limit(Offset(Distinct(OrderBy(GroupBy(Where(Join(From)))))))
//
// A sub-select, in FROM or as a join source, is compiled as its own
// pipeline sharing the outer statement's settings and registry.
package compiler
