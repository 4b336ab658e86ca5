// Package record defines the unit of data flowing through a compiled
// pipeline and the execution context shared by a run.
//
// A Record carries:
//   - name: the alias of the source that produced it
//   - row: that source's raw value
//   - values: every alias bound so far (a joined record sees both sides),
//     in binding order
//   - results: the projected output columns, in SELECT order
//   - context: the run's Context
//
// INVARIANT: records are never mutated after construction. Every method
// that "changes" a record returns a copy, so a record reused by several
// branches of a join cannot be observed half-updated.
package record
