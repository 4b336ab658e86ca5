// Package stream implements the asynchronous sequence model pipelines are
// built from.
//
// A Stream is cold and push based: nothing happens until it is run with a
// context and an emit callback. emit blocks until the consumer has accepted
// the item, which is the only backpressure mechanism; a producer never runs
// ahead of its consumer. Returning an error from emit stops the producer,
// and the producer must return that error unchanged. Cancelling the context
// aborts every nested producer.
//
// INVARIANT: emit is never called concurrently. Operators that fan out
// (FlatMap, FlatMapSequential, windowing) serialize emission back onto a
// single goroutine.
//
// Windows produced by Window*, GroupBy and WindowUntil are hot and accept a
// single subscriber. Every emitted window must be subscribed, which the
// flattening operators in this package always do.
package stream
