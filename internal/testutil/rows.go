package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/streamql/internal/stream"
)

// CollectTimeout bounds Collect.
const CollectTimeout = 5 * time.Second

// Telemetry returns n rows of {seq, deviceId, value}. Devices are assigned
// round-robin and value is seq times ten.
func Telemetry(n int, devices ...string) []any {
	if len(devices) == 0 {
		devices = []string{"d1"}
	}
	clock := NewDeterministicClock()
	rows := make([]any, 0, n)
	for i := range n {
		seq := clock.Next()
		rows = append(rows, map[string]any{
			"seq":      seq,
			"deviceId": devices[i%len(devices)],
			"value":    seq * 10,
		})
	}
	return rows
}

// Collect drains s and fails the test on error or after CollectTimeout.
func Collect[T any](t testing.TB, s stream.Stream[T]) []T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), CollectTimeout)
	defer cancel()

	out, err := stream.Collect(ctx, s)
	require.NoError(t, err)
	return out
}
