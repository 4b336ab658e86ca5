// Package querydoc loads query documents into the statement AST.
//
// A query document is the structured form of a SELECT statement. The same
// model is accepted as YAML, JSON or CUE:
//
//	name: hot-devices
//	settings:
//	  distinctBy: lru
//	select:
//	  items:
//	    - deviceId
//	    - expr: {func: max, args: [value]}
//	      as: peak
//	  from: temp
//	  where: {op: ">", left: value, right: 10}
//	  group_by: [deviceId]
//	  order_by:
//	    - {expr: peak, desc: true}
//	  limit: 5
//
// Expressions use a short form where it is unambiguous. A bare string is a
// column reference (`col`, `t.col`), a wildcard (`*`, `t.*`) or, when it is
// wrapped in single quotes, a string literal. Numbers, booleans and null are
// literals. Everything else is a map keyed by its kind: column, string, long,
// double, bool, func, op, not, is_null, between and in.
//
// Decoding is strict. An unknown key fails with a DecodeError naming the path
// of the offending node.
package querydoc
