package stream

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter emits 0, 1, 2, ... forever, recording how many items were pulled.
func counter(pulled *atomic.Int64) Stream[int] {
	return func(ctx context.Context, emit func(int) error) error {
		for i := 0; ; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			pulled.Add(1)
			if err := emit(i); err != nil {
				return err
			}
		}
	}
}

func collect[T any](t *testing.T, s Stream[T]) []T {
	t.Helper()
	out, err := Collect(context.Background(), s)
	require.NoError(t, err)
	return out
}

func TestMapFilter(t *testing.T) {
	s := Filter(
		Map(Just(1, 2, 3, 4, 5), func(v int) int { return v * 10 }),
		func(_ context.Context, v int) (bool, error) { return v > 20, nil },
	)
	assert.Equal(t, []int{30, 40, 50}, collect(t, s))
}

func TestMapErrStopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	var seen []int
	s := MapErr(Just(1, 2, 3), func(_ context.Context, v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v, nil
	})
	err := s(context.Background(), func(v int) error {
		seen = append(seen, v)
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1}, seen)
}

func TestTakeStopsUnboundedUpstream(t *testing.T) {
	var pulled atomic.Int64
	got := collect(t, Take(counter(&pulled), 3))

	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Equal(t, int64(3), pulled.Load())
}

func TestTakeZeroNeverSubscribes(t *testing.T) {
	var pulled atomic.Int64
	assert.Empty(t, collect(t, Take(counter(&pulled), 0)))
	assert.Zero(t, pulled.Load())
}

func TestNestedTakeKeepsOwnStop(t *testing.T) {
	var pulled atomic.Int64
	got := collect(t, Take(Skip(Take(counter(&pulled), 5), 1), 2))
	assert.Equal(t, []int{1, 2}, got)
}

func TestSkipTakeLast(t *testing.T) {
	assert.Equal(t, []int{3, 4, 5}, collect(t, Skip(Just(1, 2, 3, 4, 5), 2)))
	assert.Equal(t, []int{4, 5}, collect(t, TakeLast(Just(1, 2, 3, 4, 5), 2)))
	assert.Equal(t, []int{1, 2}, collect(t, TakeLast(Just(1, 2), 5)))
}

func TestDefaultIfEmpty(t *testing.T) {
	assert.Equal(t, []int{7}, collect(t, DefaultIfEmpty(Empty[int](), 7)))
	assert.Equal(t, []int{1}, collect(t, DefaultIfEmpty(Just(1), 7)))
}

func TestDistinct(t *testing.T) {
	key := func(_ context.Context, v int) (string, error) {
		if v%2 == 0 {
			return "even", nil
		}
		return "odd", nil
	}
	s := Distinct(Just(1, 3, 2, 5, 4), key, NewSeenSet)
	assert.Equal(t, []int{1, 2}, collect(t, s))
	// A second subscription starts with a fresh seen-set.
	assert.Equal(t, []int{1, 2}, collect(t, s))
}

func TestSortIsStable(t *testing.T) {
	type pair struct{ k, v int }
	s := Sort(Just(pair{2, 1}, pair{1, 2}, pair{2, 3}, pair{1, 4}), func(a, b pair) int { return a.k - b.k })
	assert.Equal(t, []pair{{1, 2}, {1, 4}, {2, 1}, {2, 3}}, collect(t, s))
}

func TestCount(t *testing.T) {
	n, err := Count(context.Background(), Empty[int]())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = Count(context.Background(), Just("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestFromChanCancellation(t *testing.T) {
	ch := make(chan int)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := Collect(ctx, FromChan(ch))
		errc <- err
	}()

	ch <- 1
	cancel()
	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("stream did not observe cancellation")
	}
}

func TestFlatMapMergesAll(t *testing.T) {
	s := FlatMap(Just(1, 2, 3), func(v int) Stream[int] {
		return Just(v*10, v*10+1)
	}, 2)
	got := collect(t, s)
	sort.Ints(got)
	assert.Equal(t, []int{10, 11, 20, 21, 30, 31}, got)
}

func TestFlatMapRespectsConcurrency(t *testing.T) {
	var active, peak atomic.Int64
	s := FlatMap(Just(1, 2, 3, 4, 5, 6), func(v int) Stream[int] {
		return func(ctx context.Context, emit func(int) error) error {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			active.Add(-1)
			return emit(v)
		}
	}, 2)

	assert.Len(t, collect(t, s), 6)
	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestFlatMapPropagatesInnerError(t *testing.T) {
	boom := errors.New("inner failed")
	s := FlatMap(Just(1, 2, 3), func(v int) Stream[int] {
		if v == 2 {
			return Fail[int](boom)
		}
		return Just(v)
	}, 0)
	_, err := Collect(context.Background(), s)
	require.ErrorIs(t, err, boom)
}

func TestFlatMapTakeStopsInner(t *testing.T) {
	var pulled atomic.Int64
	s := Take(FlatMap(Just(1), func(int) Stream[int] { return counter(&pulled) }, 1), 4)
	assert.Len(t, collect(t, s), 4)
}

func TestFlatMapSequentialKeepsOrder(t *testing.T) {
	s := FlatMapSequential(Just(30, 10, 20), func(delay int) Stream[int] {
		return func(ctx context.Context, emit func(int) error) error {
			time.Sleep(time.Duration(delay) * time.Millisecond)
			if err := emit(delay); err != nil {
				return err
			}
			return emit(delay + 1)
		}
	})
	assert.Equal(t, []int{30, 31, 10, 11, 20, 21}, collect(t, s))
}

func TestFlatMapSequentialError(t *testing.T) {
	boom := errors.New("boom")
	s := FlatMapSequential(Just(1, 2), func(v int) Stream[int] {
		if v == 2 {
			return Fail[int](boom)
		}
		return Just(v)
	})
	_, err := Collect(context.Background(), s)
	require.ErrorIs(t, err, boom)
}
