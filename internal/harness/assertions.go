package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/streamql/internal/feature"
	"github.com/roach88/streamql/internal/value"
)

// AssertionError is returned when an expectation fails.
type AssertionError struct {
	Type     string           // rows, count, error or code
	Expected string           // human-readable expected outcome
	Actual   string           // human-readable actual outcome
	Rows     []map[string]any // full output for context
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Rows) > 0 {
		fmt.Fprintf(&buf, "\nOutput:\n")
		for i, row := range e.Rows {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, value.Key(row))
		}
	}
	return buf.String()
}

// EvaluateExpectations checks the result against expect and returns the
// failure messages.
func EvaluateExpectations(result *Result, expect Expect) []string {
	var errors []string
	add := func(err error) {
		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	if expect.failing() {
		add(assertError(result, expect))
		return errors
	}
	if result.Err != nil {
		errors = append(errors, fmt.Sprintf("unexpected failure: %v", result.Err))
		return errors
	}
	if expect.Count != nil {
		add(assertCount(result.Rows, *expect.Count))
	}
	if expect.Rows != nil {
		add(assertRows(result.Rows, expect.Rows, expect.Ordered))
	}
	return errors
}

func assertError(result *Result, expect Expect) error {
	if result.Err == nil {
		return &AssertionError{
			Type:     "error",
			Expected: "failure",
			Actual:   fmt.Sprintf("%d rows", len(result.Rows)),
			Rows:     result.Rows,
		}
	}
	if expect.Code != "" && !feature.HasCode(result.Err, feature.ErrorCode(expect.Code)) {
		return &AssertionError{
			Type:     "code",
			Expected: expect.Code,
			Actual:   result.Err.Error(),
		}
	}
	if expect.Error != "" && !strings.Contains(result.Err.Error(), expect.Error) {
		return &AssertionError{
			Type:     "error",
			Expected: fmt.Sprintf("error containing %q", expect.Error),
			Actual:   result.Err.Error(),
		}
	}
	return nil
}

func assertCount(rows []map[string]any, want int) error {
	if len(rows) == want {
		return nil
	}
	return &AssertionError{
		Type:     "count",
		Expected: fmt.Sprintf("%d rows", want),
		Actual:   fmt.Sprintf("%d rows", len(rows)),
		Rows:     rows,
	}
}

// assertRows compares rows by canonical JSON, so 3 and 3.0 are equal and
// map key order does not matter.
func assertRows(actual, expected []map[string]any, ordered bool) error {
	got := canonicalRows(actual)
	want := canonicalRows(expected)
	if !ordered {
		slices.Sort(got)
		slices.Sort(want)
	}
	if slices.Equal(got, want) {
		return nil
	}

	kind := "rows"
	if ordered {
		kind = "ordered rows"
	}
	return &AssertionError{
		Type:     kind,
		Expected: "[" + strings.Join(want, ",") + "]",
		Actual:   "[" + strings.Join(got, ",") + "]",
		Rows:     actual,
	}
}

func canonicalRows(rows []map[string]any) []string {
	keys := make([]string, len(rows))
	for i, row := range rows {
		keys[i] = value.Key(row)
	}
	return keys
}
