package stream

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// FlatMap subscribes fn(v) for every upstream item and merges the inner
// outputs as they arrive. Output order across inner streams is unspecified.
//
// At most concurrency inner streams run at once; concurrency <= 0 means
// unbounded. When the limit is reached the upstream blocks, so backpressure
// reaches the source. The first error from the upstream, any inner stream or
// downstream emit cancels everything and is returned.
func FlatMap[T, R any](s Stream[T], fn func(T) Stream[R], concurrency int) Stream[R] {
	return func(ctx context.Context, emit func(R) error) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		if concurrency > 0 {
			// One extra slot for the upstream driver.
			g.SetLimit(concurrency + 1)
		}

		out := make(chan R)
		g.Go(func() error {
			return s(gctx, func(v T) error {
				inner := fn(v)
				g.Go(func() error {
					return inner(gctx, func(r R) error {
						select {
						case out <- r:
							return nil
						case <-gctx.Done():
							return gctx.Err()
						}
					})
				})
				return nil
			})
		})

		done := make(chan error, 1)
		go func() {
			done <- g.Wait()
			close(out)
		}()

		var emitErr error
		for r := range out {
			if emitErr != nil {
				continue
			}
			if err := emit(r); err != nil {
				emitErr = err
				cancel()
			}
		}

		err := <-done
		if emitErr != nil {
			return emitErr
		}
		return err
	}
}

// FlatMapSequential subscribes fn(v) for every upstream item eagerly and
// emits inner outputs in upstream order: everything from the first inner
// stream, then everything from the second, and so on.
//
// Inner streams never block on the consumer. Outputs of later inner streams
// are buffered without bound until their turn, so inner streams should be
// short (one output per group is typical).
func FlatMapSequential[T, R any](s Stream[T], fn func(T) Stream[R]) Stream[R] {
	return func(ctx context.Context, emit func(R) error) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		order := newQueue[*queue[R]]()

		g.Go(func() error {
			err := s(gctx, func(v T) error {
				inner := fn(v)
				buf := newQueue[R]()
				order.push(buf)
				g.Go(func() error {
					err := inner(gctx, func(r R) error {
						buf.push(r)
						return nil
					})
					buf.close(err)
					return err
				})
				return nil
			})
			order.close(err)
			return err
		})

		emitErr, popErr := drainInOrder(gctx, order, emit)
		cancel()
		waitErr := g.Wait()

		switch {
		case emitErr != nil:
			return emitErr
		case waitErr != nil:
			return waitErr
		default:
			return popErr
		}
	}
}

func drainInOrder[R any](ctx context.Context, order *queue[*queue[R]], emit func(R) error) (emitErr, popErr error) {
	for {
		buf, ok, err := order.pop(ctx)
		if !ok {
			return nil, err
		}
		for {
			r, ok, err := buf.pop(ctx)
			if !ok {
				if err != nil {
					return nil, err
				}
				break
			}
			if err := emit(r); err != nil {
				return err, nil
			}
		}
	}
}
