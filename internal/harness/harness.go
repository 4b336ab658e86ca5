package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/streamql/internal/compiler"
	"github.com/roach88/streamql/internal/querydoc"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/source"
	"github.com/roach88/streamql/internal/stream"
	"github.com/roach88/streamql/internal/supports"
	"github.com/roach88/streamql/internal/testutil"
	"github.com/roach88/streamql/internal/value"
)

// DefaultTimeout bounds a scenario run when the scenario sets none.
const DefaultTimeout = 10 * time.Second

// Harness runs scenarios against the real compiler and feature registry.
type Harness struct {
	logger *slog.Logger
	opts   []compiler.Option
}

// HarnessOption configures a Harness.
type HarnessOption func(*Harness)

// WithLogger sets the logger passed to the compiler. Logs are discarded by
// default.
func WithLogger(logger *slog.Logger) HarnessOption {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithCompilerOptions appends compiler options, e.g. metrics.
func WithCompilerOptions(opts ...compiler.Option) HarnessOption {
	return func(h *Harness) {
		h.opts = append(h.opts, opts...)
	}
}

// New creates a Harness.
func New(opts ...HarnessOption) *Harness {
	h := &Harness{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default Harness.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(context.Background(), scenario)
}

// Run executes a scenario and evaluates its expectations.
//
// The returned error reports a scenario that could not be executed at all,
// such as an unreadable query document. Compile and run failures of the
// query itself are recorded in Result.Err and checked against the
// expectations.
//
// Execution flow:
// 1. Decode the query document
// 2. Compile it with the default feature registry
// 3. Run it over in-memory sources with a fixed run ID
// 4. Evaluate expectations
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	doc, err := loadQuery(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load query: %w", err)
	}

	timeout := DefaultTimeout
	if scenario.Timeout != "" {
		if timeout, err = parseTimeout(scenario.Timeout); err != nil {
			return nil, fmt.Errorf("invalid timeout: %w", err)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	gen := testutil.NewFixedRunIDGenerator(scenario.RunID)
	result := NewResult(gen.Generate())

	md := doc.Metadata(supports.DefaultRegistry(), scenario.Settings, h.logger)
	opts := append([]compiler.Option{compiler.WithLogger(h.logger)}, h.opts...)
	pipeline, err := compiler.Compile(md, opts...)
	if err != nil {
		result.Err = err
	} else {
		mux := source.NewMux(source.NewMemory(scenario.Sources))
		rows, err := stream.Collect(ctx, pipeline.Run(mux.Resolver(), record.WithRunIDGenerator(gen)))
		if rows != nil {
			result.Rows = rows
		}
		result.Err = err
	}

	for _, msg := range EvaluateExpectations(result, scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

func loadQuery(scenario *Scenario) (*querydoc.Document, error) {
	if scenario.QueryFile != "" {
		return querydoc.Load(scenario.QueryFile)
	}
	doc, err := querydoc.Decode(scenario.Query)
	if err != nil {
		return nil, err
	}
	if doc.Name == "" {
		doc.Name = scenario.Name
	}
	return doc, nil
}

func parseTimeout(s string) (time.Duration, error) {
	d, err := value.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}
