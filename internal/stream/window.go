package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrResubscribed is returned when a window is subscribed more than once.
var ErrResubscribed = errors.New("stream: window already subscribed")

// window is a hot sub-sequence fed by a windowing operator. Items are handed
// over synchronously; once the subscriber stops, further items are dropped.
type window[T any] struct {
	items      chan T
	done       chan struct{}
	subscribed atomic.Bool
	finish     sync.Once
	release    sync.Once
}

func newWindow[T any]() *window[T] {
	return &window[T]{
		items: make(chan T),
		done:  make(chan struct{}),
	}
}

func (w *window[T]) stream() Stream[T] {
	return func(ctx context.Context, emit func(T) error) error {
		if !w.subscribed.CompareAndSwap(false, true) {
			return ErrResubscribed
		}
		defer w.release.Do(func() { close(w.done) })

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case v, ok := <-w.items:
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

func (w *window[T]) send(ctx context.Context, v T) error {
	select {
	case w.items <- v:
		return nil
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *window[T]) complete() {
	w.finish.Do(func() { close(w.items) })
}

// Window splits s into consecutive windows of size items. The last window
// may be shorter.
func Window[T any](s Stream[T], size int) Stream[Stream[T]] {
	return WindowSliding(s, size, size)
}

// WindowSliding opens a window every skip items, each holding up to size
// items. skip < size produces overlapping windows; skip > size drops the
// items between windows. Windows still open when s completes are closed
// short.
func WindowSliding[T any](s Stream[T], size, skip int) Stream[Stream[T]] {
	return func(ctx context.Context, emit func(Stream[T]) error) error {
		if size <= 0 || skip <= 0 {
			return fmt.Errorf("stream: window size and skip must be positive, got %d and %d", size, skip)
		}

		var (
			open   []*window[T]
			filled []int
			index  int
		)
		defer func() {
			for _, w := range open {
				w.complete()
			}
		}()

		return s(ctx, func(v T) error {
			if index%skip == 0 {
				w := newWindow[T]()
				open = append(open, w)
				filled = append(filled, 0)
				if err := emit(w.stream()); err != nil {
					return err
				}
			}
			index++

			for i, w := range open {
				if err := w.send(ctx, v); err != nil {
					return err
				}
				filled[i]++
			}
			// Windows fill in the order they were opened.
			for len(open) > 0 && filled[0] >= size {
				open[0].complete()
				open, filled = open[1:], filled[1:]
			}
			return nil
		})
	}
}

// WindowUntil starts a new window at every item for which boundary reports
// true. The first item always opens a window, so no empty leading window is
// produced.
func WindowUntil[T any](s Stream[T], boundary func(context.Context, T) (bool, error)) Stream[Stream[T]] {
	return func(ctx context.Context, emit func(Stream[T]) error) error {
		var cur *window[T]
		defer func() {
			if cur != nil {
				cur.complete()
			}
		}()

		return s(ctx, func(v T) error {
			cut, err := boundary(ctx, v)
			if err != nil {
				return err
			}
			if cur == nil || cut {
				if cur != nil {
					cur.complete()
				}
				cur = newWindow[T]()
				if err := emit(cur.stream()); err != nil {
					return err
				}
			}
			return cur.send(ctx, v)
		})
	}
}

// GroupBy routes items into one window per distinct key, opening the window
// when its key is first seen. All windows close when s completes.
func GroupBy[T any](s Stream[T], key func(context.Context, T) (string, error)) Stream[Stream[T]] {
	return func(ctx context.Context, emit func(Stream[T]) error) error {
		groups := make(map[string]*window[T])
		defer func() {
			for _, w := range groups {
				w.complete()
			}
		}()

		return s(ctx, func(v T) error {
			k, err := key(ctx, v)
			if err != nil {
				return err
			}
			w, ok := groups[k]
			if !ok {
				w = newWindow[T]()
				groups[k] = w
				if err := emit(w.stream()); err != nil {
					return err
				}
			}
			return w.send(ctx, v)
		})
	}
}

// pump runs s on its own goroutine and hands items over a channel, so time
// based operators can select on items and timers together. items is closed
// after the terminal error has been delivered on errc.
func pump[T any](ctx context.Context, s Stream[T]) (<-chan T, <-chan error) {
	items := make(chan T)
	errc := make(chan error, 1)
	go func() {
		defer close(items)
		errc <- s(ctx, func(v T) error {
			select {
			case items <- v:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return items, errc
}

// WindowTime emits a new window every d. A window opens at subscription and
// every tick closes the current window and opens the next, so idle periods
// produce empty windows.
func WindowTime[T any](s Stream[T], d time.Duration) Stream[Stream[T]] {
	return func(ctx context.Context, emit func(Stream[T]) error) error {
		if d <= 0 {
			return fmt.Errorf("stream: window duration must be positive, got %s", d)
		}

		ctx, cancel := context.WithCancel(ctx)
		items, errc := pump(ctx, s)
		cur := newWindow[T]()
		defer func() {
			cur.complete()
			cancel()
			for range items {
			}
		}()

		if err := emit(cur.stream()); err != nil {
			return err
		}

		ticker := time.NewTicker(d)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case v, ok := <-items:
				if !ok {
					return <-errc
				}
				if err := cur.send(ctx, v); err != nil {
					return err
				}
			case <-ticker.C:
				cur.complete()
				cur = newWindow[T]()
				if err := emit(cur.stream()); err != nil {
					return err
				}
			}
		}
	}
}

// WindowTimeSliding opens a window every `every` and closes each window
// length after it opened. every < length produces overlapping windows;
// every > length drops items that arrive while no window is open.
func WindowTimeSliding[T any](s Stream[T], length, every time.Duration) Stream[Stream[T]] {
	return func(ctx context.Context, emit func(Stream[T]) error) error {
		if length <= 0 || every <= 0 {
			return fmt.Errorf("stream: window durations must be positive, got %s and %s", length, every)
		}

		type timed struct {
			w        *window[T]
			deadline time.Time
		}

		ctx, cancel := context.WithCancel(ctx)
		items, errc := pump(ctx, s)
		var open []timed
		defer func() {
			for _, t := range open {
				t.w.complete()
			}
			cancel()
			for range items {
			}
		}()

		closer := time.NewTimer(length)
		defer closer.Stop()
		rearm := func() {
			if len(open) == 0 {
				closer.Stop()
				return
			}
			closer.Reset(time.Until(open[0].deadline))
		}

		openWindow := func() error {
			w := newWindow[T]()
			open = append(open, timed{w: w, deadline: time.Now().Add(length)})
			return emit(w.stream())
		}
		if err := openWindow(); err != nil {
			return err
		}

		opener := time.NewTicker(every)
		defer opener.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case v, ok := <-items:
				if !ok {
					return <-errc
				}
				for _, t := range open {
					if err := t.w.send(ctx, v); err != nil {
						return err
					}
				}
			case <-opener.C:
				if err := openWindow(); err != nil {
					return err
				}
				if len(open) == 1 {
					rearm()
				}
			case now := <-closer.C:
				// Windows close in the order they were opened.
				for len(open) > 0 && !open[0].deadline.After(now) {
					open[0].w.complete()
					open = open[1:]
				}
				rearm()
			}
		}
	}
}
