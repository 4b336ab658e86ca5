package harness

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates every expectation held.
	Pass bool `json:"pass"`

	// RunID is the run ID the query ran under.
	RunID string `json:"run_id"`

	// Rows are the output rows in arrival order.
	Rows []map[string]any `json:"rows"`

	// Err is the compile or run failure, if any.
	Err error `json:"-"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(runID string) *Result {
	return &Result{
		Pass:   true,
		RunID:  runID,
		Rows:   []map[string]any{},
		Errors: []string{},
	}
}

// AddError records an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
