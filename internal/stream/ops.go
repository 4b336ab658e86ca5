package stream

import (
	"context"
	"slices"
)

// Map applies fn to every item.
func Map[T, R any](s Stream[T], fn func(T) R) Stream[R] {
	return func(ctx context.Context, emit func(R) error) error {
		return s(ctx, func(v T) error {
			return emit(fn(v))
		})
	}
}

// MapErr applies a context-aware, fallible fn to every item in order. The
// first error terminates the stream.
func MapErr[T, R any](s Stream[T], fn func(context.Context, T) (R, error)) Stream[R] {
	return func(ctx context.Context, emit func(R) error) error {
		return s(ctx, func(v T) error {
			r, err := fn(ctx, v)
			if err != nil {
				return err
			}
			return emit(r)
		})
	}
}

// Filter keeps the items for which pred reports true. It is the
// filterWhen of the pipeline: pred may block, items are tested one at a time
// and order is preserved.
func Filter[T any](s Stream[T], pred func(context.Context, T) (bool, error)) Stream[T] {
	return func(ctx context.Context, emit func(T) error) error {
		return s(ctx, func(v T) error {
			ok, err := pred(ctx, v)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			return emit(v)
		})
	}
}

// Tap calls fn for every item before passing it on.
func Tap[T any](s Stream[T], fn func(T)) Stream[T] {
	return func(ctx context.Context, emit func(T) error) error {
		return s(ctx, func(v T) error {
			fn(v)
			return emit(v)
		})
	}
}

// Take emits at most n items and then stops its upstream. With n <= 0 the
// upstream is never run.
func Take[T any](s Stream[T], n int64) Stream[T] {
	return func(ctx context.Context, emit func(T) error) error {
		if n <= 0 {
			return nil
		}
		stop := newStop()
		var seen int64
		err := s(ctx, func(v T) error {
			if err := emit(v); err != nil {
				return err
			}
			seen++
			if seen >= n {
				return stop
			}
			return nil
		})
		if stop.is(err) {
			return nil
		}
		return err
	}
}

// Skip drops the first n items.
func Skip[T any](s Stream[T], n int64) Stream[T] {
	return func(ctx context.Context, emit func(T) error) error {
		var seen int64
		return s(ctx, func(v T) error {
			if seen < n {
				seen++
				return nil
			}
			return emit(v)
		})
	}
}

// TakeLast emits only the last n items, once the upstream completes.
func TakeLast[T any](s Stream[T], n int) Stream[T] {
	return func(ctx context.Context, emit func(T) error) error {
		if n <= 0 {
			return s(ctx, func(T) error { return nil })
		}
		buf := make([]T, 0, n)
		err := s(ctx, func(v T) error {
			if len(buf) == n {
				buf = append(buf[:0], buf[1:]...)
			}
			buf = append(buf, v)
			return nil
		})
		if err != nil {
			return err
		}
		for _, v := range buf {
			if err := emit(v); err != nil {
				return err
			}
		}
		return nil
	}
}

// DefaultIfEmpty emits def when the upstream completes without items.
func DefaultIfEmpty[T any](s Stream[T], def T) Stream[T] {
	return func(ctx context.Context, emit func(T) error) error {
		empty := true
		err := s(ctx, func(v T) error {
			empty = false
			return emit(v)
		})
		if err != nil || !empty {
			return err
		}
		return emit(def)
	}
}

// Seen is a set of keys already emitted by Distinct.
type Seen interface {
	// Add records key and reports whether it was new.
	Add(key string) bool
}

type seenSet map[string]struct{}

func (s seenSet) Add(key string) bool {
	if _, ok := s[key]; ok {
		return false
	}
	s[key] = struct{}{}
	return true
}

// NewSeenSet returns an unbounded Seen.
func NewSeenSet() Seen {
	return seenSet{}
}

// Distinct drops items whose key was already seen. newSeen is called once per
// subscription.
func Distinct[T any](s Stream[T], key func(context.Context, T) (string, error), newSeen func() Seen) Stream[T] {
	return func(ctx context.Context, emit func(T) error) error {
		seen := newSeen()
		return s(ctx, func(v T) error {
			k, err := key(ctx, v)
			if err != nil {
				return err
			}
			if !seen.Add(k) {
				return nil
			}
			return emit(v)
		})
	}
}

// Sort materializes the upstream and emits it stably ordered by cmp.
func Sort[T any](s Stream[T], cmp func(a, b T) int) Stream[T] {
	return func(ctx context.Context, emit func(T) error) error {
		items, err := Collect(ctx, s)
		if err != nil {
			return err
		}
		slices.SortStableFunc(items, cmp)
		return FromSlice(items)(ctx, emit)
	}
}

// Collect runs s to completion and returns every item.
func Collect[T any](ctx context.Context, s Stream[T]) ([]T, error) {
	var out []T
	err := s(ctx, func(v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

// Count runs s to completion and returns the number of items.
func Count[T any](ctx context.Context, s Stream[T]) (int64, error) {
	var n int64
	err := s(ctx, func(T) error {
		n++
		return nil
	})
	return n, err
}
