package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func windowContents[T any](t *testing.T, windows Stream[Stream[T]]) [][]T {
	t.Helper()
	s := FlatMapSequential(windows, func(w Stream[T]) Stream[[]T] {
		return func(ctx context.Context, emit func([]T) error) error {
			items, err := Collect(ctx, w)
			if err != nil {
				return err
			}
			return emit(items)
		}
	})
	return collect(t, s)
}

func TestWindowCount(t *testing.T) {
	got := windowContents(t, Window(Just(1, 2, 3, 4, 5, 6, 7), 3))
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}, {7}}, got)
}

func TestWindowEmptyUpstream(t *testing.T) {
	assert.Empty(t, windowContents(t, Window(Empty[int](), 3)))
}

func TestWindowSlidingOverlap(t *testing.T) {
	got := windowContents(t, WindowSliding(Just(0, 1, 2, 3, 4), 3, 1))
	assert.Equal(t, [][]int{{0, 1, 2}, {1, 2, 3}, {2, 3, 4}, {3, 4}, {4}}, got)
}

func TestWindowSlidingGaps(t *testing.T) {
	got := windowContents(t, WindowSliding(Just(0, 1, 2, 3, 4, 5, 6), 2, 3))
	assert.Equal(t, [][]int{{0, 1}, {3, 4}, {6}}, got)
}

func TestWindowSlidingRejectsZero(t *testing.T) {
	_, err := Collect(context.Background(), WindowSliding(Just(1), 0, 1))
	require.Error(t, err)
}

func TestWindowUntil(t *testing.T) {
	boundary := func(_ context.Context, v int) (bool, error) { return v%3 == 0, nil }

	got := windowContents(t, WindowUntil(Just(1, 2, 3, 4, 5, 6, 7), boundary))
	assert.Equal(t, [][]int{{1, 2}, {3, 4, 5}, {6, 7}}, got)

	got = windowContents(t, WindowUntil(Just(3, 4), boundary))
	assert.Equal(t, [][]int{{3, 4}}, got, "a boundary on the first item must not leave an empty window")
}

func TestGroupBy(t *testing.T) {
	key := func(_ context.Context, v int) (string, error) {
		if v%2 == 0 {
			return "even", nil
		}
		return "odd", nil
	}
	got := windowContents(t, GroupBy(Just(1, 2, 3, 4, 5), key))
	assert.Equal(t, [][]int{{1, 3, 5}, {2, 4}}, got)
}

func TestWindowResubscribe(t *testing.T) {
	w := newWindow[int]()
	w.complete()
	require.NoError(t, w.stream()(context.Background(), func(int) error { return nil }))
	require.ErrorIs(t, w.stream()(context.Background(), func(int) error { return nil }), ErrResubscribed)
}

func TestWindowTime(t *testing.T) {
	ch := make(chan int)
	go func() {
		defer close(ch)
		for i := 0; i < 3; i++ {
			ch <- i
		}
		time.Sleep(150 * time.Millisecond)
		ch <- 3
		ch <- 4
	}()

	got := windowContents(t, WindowTime(FromChan(ch), 60*time.Millisecond))
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, []int{0, 1, 2}, got[0])

	var all []int
	for _, w := range got {
		all = append(all, w...)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, all)
}

func TestWindowTimeRejectsZero(t *testing.T) {
	_, err := Collect(context.Background(), WindowTime(Just(1), 0))
	require.Error(t, err)
}

func TestWindowTimeSliding(t *testing.T) {
	ch := make(chan int)
	go func() {
		defer close(ch)
		ch <- 1
		time.Sleep(140 * time.Millisecond)
		ch <- 2
	}()

	got := windowContents(t, WindowTimeSliding(FromChan(ch), 200*time.Millisecond, 100*time.Millisecond))
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, []int{1, 2}, got[0])
	assert.Equal(t, []int{2}, got[1])
}

func TestWindowCancellation(t *testing.T) {
	ch := make(chan int)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := Collect(ctx, FlatMapSequential(WindowTime(FromChan(ch), 10*time.Millisecond), func(w Stream[int]) Stream[int64] {
			return func(ctx context.Context, emit func(int64) error) error {
				n, err := Count(ctx, w)
				if err != nil {
					return err
				}
				return emit(n)
			}
		}))
		errc <- err
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("windowed stream did not stop on cancellation")
	}
}
