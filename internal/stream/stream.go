package stream

import (
	"context"
	"errors"
)

// Stream is a cold asynchronous sequence of T.
type Stream[T any] func(ctx context.Context, emit func(T) error) error

// Just returns a stream of the given values.
func Just[T any](vs ...T) Stream[T] {
	return FromSlice(vs)
}

// FromSlice replays vs on every subscription.
func FromSlice[T any](vs []T) Stream[T] {
	return func(ctx context.Context, emit func(T) error) error {
		for _, v := range vs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := emit(v); err != nil {
				return err
			}
		}
		return nil
	}
}

// FromChan emits values received from ch until it is closed.
func FromChan[T any](ch <-chan T) Stream[T] {
	return func(ctx context.Context, emit func(T) error) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case v, ok := <-ch:
				if !ok {
					return nil
				}
				if err := emit(v); err != nil {
					return err
				}
			}
		}
	}
}

// Empty completes immediately.
func Empty[T any]() Stream[T] {
	return func(context.Context, func(T) error) error { return nil }
}

// Fail terminates with err without emitting.
func Fail[T any](err error) Stream[T] {
	return func(context.Context, func(T) error) error { return err }
}

// stopSignal is returned by an operator's emit callback to end its upstream
// early. Each subscription allocates its own signal so nested operators never
// swallow each other's stops.
type stopSignal struct {
	_ byte
}

func (*stopSignal) Error() string { return "stream: stopped" }

func newStop() *stopSignal { return &stopSignal{} }

func (s *stopSignal) is(err error) bool {
	var target *stopSignal
	return errors.As(err, &target) && target == s
}
