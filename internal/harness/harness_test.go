package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streamql/internal/compiler"
	"github.com/roach88/streamql/internal/metrics"
)

func TestScenarios(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "expectation failures: %v", result.Errors)
		})
	}
}

func TestGoldenSnapshots(t *testing.T) {
	for _, name := range []string{"windowed_count", "where_order_limit", "inner_join", "literal_group_by"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join("testdata/scenarios", name+".yaml"))
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, s))
		})
	}
}

func inlineScenario(expect Expect) *Scenario {
	return &Scenario{
		Name:        "inline",
		Description: "inline scenario",
		Query: map[string]any{
			"select": map[string]any{
				"items": []any{"value"},
				"from":  "temp",
			},
		},
		Sources: map[string][]any{
			"temp": {
				map[string]any{"value": 1},
				map[string]any{"value": 2},
			},
		},
		Expect: expect,
	}
}

func intPtr(n int) *int { return &n }

func TestExpectationFailuresAreReported(t *testing.T) {
	tests := []struct {
		name   string
		expect Expect
		want   string
	}{
		{"count", Expect{Count: intPtr(3)}, "Assertion failed: count"},
		{"rows", Expect{Rows: []map[string]any{{"value": 1}, {"value": 3}}}, "Assertion failed: rows"},
		{"ordered rows", Expect{Ordered: true, Rows: []map[string]any{{"value": 2}, {"value": 1}}}, "Assertion failed: ordered rows"},
		{"expected failure", Expect{Error: "boom"}, "Assertion failed: error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(inlineScenario(tt.expect))
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.want)
		})
	}
}

func TestUnorderedRowsIgnoreArrivalOrder(t *testing.T) {
	result, err := Run(inlineScenario(Expect{Rows: []map[string]any{{"value": 2.0}, {"value": 1}}}))
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, []map[string]any{{"value": 1}, {"value": 2}}, result.Rows)
	assert.Equal(t, "test-run-default", result.RunID)
}

func TestUnexpectedFailureIsReported(t *testing.T) {
	s := inlineScenario(Expect{Count: intPtr(2)})
	s.Sources = nil

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Error(t, result.Err)
	assert.Contains(t, result.Errors[0], "unexpected failure")
}

func TestCompileErrorCodeMismatch(t *testing.T) {
	s := inlineScenario(Expect{Code: "UNSUPPORTED_FROM"})
	s.Query = map[string]any{"select": map[string]any{
		"items":    []any{"value"},
		"from":     "temp",
		"group_by": []any{1},
	}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "Assertion failed: code")
}

func TestRunFailsOnMalformedQuery(t *testing.T) {
	s := inlineScenario(Expect{Count: intPtr(0)})
	s.Query = map[string]any{"select": map[string]any{"items": []any{"value"}, "wher": "x"}}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "select.wher")
}

func TestHarnessRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	h := New(WithCompilerOptions(compiler.WithMetrics(collector)))

	result, err := h.Run(context.Background(), inlineScenario(Expect{Count: intPtr(2)}))
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)

	count, err := testutil.GatherAndCount(reg, "streamql_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func writeScenario(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalScenario = `
name: minimal
description: "one row"
query:
  select: {items: [value], from: temp}
sources:
  temp: [{value: 1}]
expect:
  count: 1
`

func TestLoadScenario(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "minimal.yaml", minimalScenario)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	require.NotNil(t, s.Expect.Count)
	assert.Equal(t, 1, *s.Expect.Count)
}

func TestLoadScenarioRejectsUnknownFields(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "typo.yaml", minimalScenario+"expects: {}\n")
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidateScenario(t *testing.T) {
	valid := func() *Scenario { return inlineScenario(Expect{Count: intPtr(2)}) }
	tests := []struct {
		name   string
		mutate func(*Scenario)
		want   string
	}{
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"missing query", func(s *Scenario) { s.Query = nil }, "one of query or query_file"},
		{"both queries", func(s *Scenario) { s.QueryFile = "q.yaml" }, "mutually exclusive"},
		{"missing query file", func(s *Scenario) { s.Query = nil; s.QueryFile = "/nonexistent/q.yaml" }, "query file not found"},
		{"no expectation", func(s *Scenario) { s.Expect = Expect{} }, "one of rows, count, error or code"},
		{"mixed expectation", func(s *Scenario) { s.Expect.Error = "x" }, "cannot be combined"},
		{"negative count", func(s *Scenario) { s.Expect.Count = intPtr(-1) }, "must be non-negative"},
		{"count disagrees", func(s *Scenario) { s.Expect.Rows = []map[string]any{{"value": 1}} }, "disagrees"},
		{"bad row", func(s *Scenario) { s.Sources["temp"] = []any{1} }, "sources.temp[0]"},
		{"bad timeout", func(s *Scenario) { s.Timeout = "soon" }, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateScenario(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	require.NoError(t, validateScenario(valid()))
}

func TestLoadDirRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", minimalScenario)
	writeScenario(t, dir, "b.yml", minimalScenario)
	writeScenario(t, dir, "notes.txt", "ignored")

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario name "minimal" already used`)
}

func TestSnapshotSortsUnorderedRows(t *testing.T) {
	s := &Scenario{Name: "snap"}
	result := NewResult("run-1")
	result.Rows = []map[string]any{{"v": 2}, {"v": 1}}

	data, err := NewSnapshot(s, result).Marshal()
	require.NoError(t, err)
	assert.Equal(t, `{"rows":[{"v":1},{"v":2}],"run_id":"run-1","scenario_name":"snap"}`, string(data))

	s.Expect.Ordered = true
	data, err = NewSnapshot(s, result).Marshal()
	require.NoError(t, err)
	assert.Equal(t, `{"rows":[{"v":2},{"v":1}],"run_id":"run-1","scenario_name":"snap"}`, string(data))
}
