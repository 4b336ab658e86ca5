package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/streamql/internal/compiler"
	"github.com/roach88/streamql/internal/metrics"
	"github.com/roach88/streamql/internal/querydoc"
	"github.com/roach88/streamql/internal/supports"
)

// QueryValidation is the validation outcome of one query document.
type QueryValidation struct {
	File      string    `json:"file"`
	Name      string    `json:"name,omitempty"`
	Valid     bool      `json:"valid"`
	Statement string    `json:"statement,omitempty"`
	Error     *CLIError `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Queries []QueryValidation `json:"queries"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <query-file>...",
		Short: "Compile queries without running them",
		Long: `Load and compile query documents without reading any source.

Every file is checked even when an earlier one fails. Compile errors are
reported with their error code (MISSING_FEATURE, UNSUPPORTED_GROUP_BY, ...).

Exit codes:
  0 - All queries compiled
  1 - One or more queries failed to load or compile

Examples:
  streamql validate ./queries/*.yaml
  streamql validate --format json ./hot.cue`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	result := ValidationResult{Valid: true, Queries: make([]QueryValidation, 0, len(files))}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		qv := validateQuery(opts, file)
		if !qv.Valid {
			result.Valid = false
		}
		result.Queries = append(result.Queries, qv)
	}

	if formatter.Format == "json" {
		if err := outputValidateJSON(formatter, result); err != nil {
			return err
		}
	} else {
		outputValidateText(formatter, result)
	}

	if !result.Valid {
		failed := 0
		for _, q := range result.Queries {
			if !q.Valid {
				failed++
			}
		}
		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed for %d of %d query file(s)", failed, len(files)))
	}
	return nil
}

// validateQuery loads and compiles one query document with the configured
// settings. Compiling consumes no rows.
func validateQuery(opts *RootOptions, file string) QueryValidation {
	qv := QueryValidation{File: file}

	doc, err := querydoc.Load(file)
	if err != nil {
		qv.Error = &CLIError{Code: ErrCodeLoad, Message: err.Error()}
		return qv
	}
	qv.Name = doc.Name
	qv.Statement = doc.Select.String()

	md := doc.Metadata(supports.DefaultRegistry(), opts.Config.QuerySettings(), opts.Logger)
	_, err = compiler.Compile(md,
		compiler.WithMetrics(metrics.New(prometheus.NewRegistry())),
		compiler.WithConcurrency(opts.Config.Engine.MaxConcurrency),
		compiler.WithLogger(opts.Logger),
	)
	if err != nil {
		qv.Error = &CLIError{Code: errorCode(err, ErrCodeLoad), Message: err.Error()}
		return qv
	}
	qv.Valid = true
	return qv
}

// outputValidateJSON outputs the validation result as a CLIResponse.
func outputValidateJSON(formatter *OutputFormatter, result ValidationResult) error {
	if result.Valid {
		return formatter.Success(result)
	}

	var first *CLIError
	for _, q := range result.Queries {
		if q.Error != nil {
			first = q.Error
			break
		}
	}
	return formatter.Respond(CLIResponse{
		Status: "error",
		Data:   result,
		Error:  first,
	})
}

// outputValidateText outputs one line per query file.
func outputValidateText(formatter *OutputFormatter, result ValidationResult) {
	w := formatter.Writer
	for _, q := range result.Queries {
		if q.Valid {
			fmt.Fprintf(w, "✓ %s\n", q.File)
			if formatter.Verbose {
				fmt.Fprintf(w, "  %s\n", q.Statement)
			}
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", q.File)
		fmt.Fprintf(w, "  %s: %s\n", q.Error.Code, q.Error.Message)
	}

	fmt.Fprintln(w)
	if result.Valid {
		fmt.Fprintln(w, "✓ All queries valid")
		return
	}
	fmt.Fprintln(w, "✗ Validation failed")
}
