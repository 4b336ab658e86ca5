package harness

import (
	"slices"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/streamql/internal/value"
)

// Snapshot is the deterministic, golden-comparable form of a run.
type Snapshot struct {
	ScenarioName string
	RunID        string
	Rows         []map[string]any
	Error        string
}

// NewSnapshot captures result. Rows of scenarios without an ordering
// expectation are sorted by their canonical form, since unordered stages
// such as joins may emit them in any order.
func NewSnapshot(scenario *Scenario, result *Result) Snapshot {
	rows := slices.Clone(result.Rows)
	if !scenario.Expect.Ordered {
		slices.SortStableFunc(rows, func(a, b map[string]any) int {
			return strings.Compare(value.Key(a), value.Key(b))
		})
	}
	s := Snapshot{ScenarioName: scenario.Name, RunID: result.RunID, Rows: rows}
	if result.Err != nil {
		s.Error = result.Err.Error()
	}
	return s
}

// toCanonicalMap converts the snapshot to a map for canonical JSON.
func (s Snapshot) toCanonicalMap() map[string]any {
	rows := make([]any, len(s.Rows))
	for i, row := range s.Rows {
		rows[i] = row
	}
	out := map[string]any{
		"scenario_name": s.ScenarioName,
		"run_id":        s.RunID,
		"rows":          rows,
	}
	if s.Error != "" {
		out["error"] = s.Error
	}
	return out
}

// Marshal encodes the snapshot as canonical JSON.
func (s Snapshot) Marshal() ([]byte, error) {
	return value.Canonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario, fails the test when an expectation does
// not hold, and compares the snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenario, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
