package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streamql/internal/stream"
)

func collect(t *testing.T, s stream.Stream[any]) []any {
	t.Helper()
	rows, err := stream.Collect(context.Background(), s)
	require.NoError(t, err)
	return rows
}

func TestMemoryReplaysRows(t *testing.T) {
	m := NewMemory(map[string][]any{"a": {1, 2}, "b": {}})

	s, ok := m.Source("a")
	require.True(t, ok)
	assert.Equal(t, []any{1, 2}, collect(t, s))
	assert.Equal(t, []any{1, 2}, collect(t, s))

	_, ok = m.Source("c")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, m.Names())
}

func TestMuxResolution(t *testing.T) {
	mux := NewMux(NewMemory(map[string][]any{"temp": {"provider"}}))
	require.NoError(t, mux.Add("temp", stream.Just[any]("named")))
	require.Error(t, mux.Add("temp", stream.Empty[any]()))

	assert.Equal(t, []any{"named"}, collect(t, mux.Resolve("temp")))

	_, err := stream.Collect(context.Background(), mux.Resolver()("nope"))
	require.ErrorIs(t, err, ErrUnknownSource)
	assert.Contains(t, err.Error(), `"nope"`)

	mux.AddProvider(NewMemory(map[string][]any{"nope": {1}}))
	assert.Equal(t, []any{1}, collect(t, mux.Resolve("nope")))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileJSONLines(t *testing.T) {
	path := writeFile(t, "temp.jsonl", `{"deviceId":"d1","value":10}
{"deviceId":"d2","value":1.5,"tags":[1,2]}
`)
	f, err := NewFile(path)
	require.NoError(t, err)

	rows := collect(t, f.Rows())
	assert.Equal(t, []any{
		map[string]any{"deviceId": "d1", "value": int64(10)},
		map[string]any{"deviceId": "d2", "value": 1.5, "tags": []any{int64(1), int64(2)}},
	}, rows)
}

func TestFileYAML(t *testing.T) {
	path := writeFile(t, "temp.yaml", `
- deviceId: d1
  value: 10
- deviceId: d2
  value: 20
`)
	f, err := NewFile(path)
	require.NoError(t, err)

	rows := collect(t, f.Rows())
	assert.Equal(t, []any{
		map[string]any{"deviceId": "d1", "value": 10},
		map[string]any{"deviceId": "d2", "value": 20},
	}, rows)
}

func TestFileErrors(t *testing.T) {
	_, err := NewFile("rows.csv")
	require.Error(t, err)

	f, err := NewFile(writeFile(t, "bad.jsonl", "{\"a\":1}\n{oops\n"))
	require.NoError(t, err)
	_, err = stream.Collect(context.Background(), f.Rows())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")

	f, err = NewFile(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	_, err = stream.Collect(context.Background(), f.Rows())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileRateLimit(t *testing.T) {
	path := writeFile(t, "temp.jsonl", "1\n2\n3\n")
	f, err := NewFile(path, WithRate(20))
	require.NoError(t, err)

	start := time.Now()
	assert.Len(t, collect(t, f.Rows()), 3)
	// Burst 1 at 20/s: the second and third rows wait ~50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestFileRateLimitHonorsCancel(t *testing.T) {
	path := writeFile(t, "temp.jsonl", "1\n2\n3\n")
	f, err := NewFile(path, WithRate(0.01))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = stream.Collect(ctx, f.Rows())
	require.Error(t, err)
}

func TestParseSpec(t *testing.T) {
	name, path, err := ParseSpec("temp = data/temp.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "temp", name)
	assert.Equal(t, "data/temp.jsonl", path)

	for _, bad := range []string{"temp", "=x", "temp="} {
		_, _, err := ParseSpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestFilesProvider(t *testing.T) {
	f, err := NewFile(writeFile(t, "t.jsonl", "1\n"))
	require.NoError(t, err)

	s, ok := Files{"t": f}.Source("t")
	require.True(t, ok)
	assert.Equal(t, []any{int64(1)}, collect(t, s))
}
