// Package ast is the parsed form of a SELECT statement that pipelines are
// compiled from.
//
// SQL text parsing is not part of this module: queries arrive as documents
// (see package querydoc) or are built directly in Go. The tree mirrors the
// shape of a classic SQL parser's output:
//
//	Select
//	  ├── Distinct (optional, DISTINCT ON expressions)
//	  ├── Items    []SelectItem (expression + alias, or AllColumns)
//	  ├── From     FromItem (Table | SubSelect)
//	  ├── Joins    []Join (inner | left | right, FromItem, ON expression)
//	  ├── Where    Expr
//	  ├── GroupBy  []Expr
//	  ├── Having   Expr
//	  ├── OrderBy  []OrderByElement
//	  └── Limit / Offset Expr (only LongValue is honored)
//
// SEALED INTERFACES:
//
// Expr and FromItem are sealed with marker methods. Only types in this
// package implement them, so compilers can switch exhaustively and reject
// anything else with a typed error.
//
// TEXTUAL FORM:
//
// Every node renders a canonical SQL-like text through String(). The text is
// part of the contract: it is the default output alias of a select item, the
// key for aggregate results referenced from HAVING and ORDER BY, and the
// name reported in compile errors.
package ast
