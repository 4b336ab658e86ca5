package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/streamql/internal/compiler"
	"github.com/roach88/streamql/internal/metrics"
	"github.com/roach88/streamql/internal/querydoc"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/source"
	"github.com/roach88/streamql/internal/supports"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Sources     []string // name=path
	Database    string
	Follow      bool
	Poll        time.Duration
	Rate        float64
	BatchSize   int
	MetricsAddr string

	// RunIDGenerator allows overriding the run ID generator (for testing).
	// If nil, every run gets a fresh UUIDv7.
	RunIDGenerator record.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <query-file>",
		Short: "Run a query over data sources",
		Long: `Compile a query document and stream its output rows.

Sources are JSON-lines or YAML files bound to table names with --source,
and the tables of a SQLite database given with --db. With --follow the
database tables are tailed for new rows until the command is interrupted.

Example:
  streamql run --source temp=./temp.jsonl ./hot.yaml
  streamql run --db ./telemetry.db --follow --poll 500ms ./windowed.cue
  streamql run --source temp=./temp.jsonl --rate 10 --metrics-addr :9090 ./hot.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Sources, "source", nil, "bind a table to a file as name=path (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to a SQLite database whose tables are sources")
	cmd.Flags().BoolVar(&opts.Follow, "follow", false, "tail database tables for new rows")
	cmd.Flags().DurationVar(&opts.Poll, "poll", source.DefaultPollInterval, "poll interval for --follow")
	cmd.Flags().Float64Var(&opts.Rate, "rate", 0, "replay file sources at this many rows per second (0 = unlimited)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", source.DefaultBatchSize, "rows read per database query")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.addr)")

	return cmd
}

func runQuery(opts *RunOptions, queryPath string, cmd *cobra.Command) error {
	logger := opts.Logger
	cfg := opts.Config
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	// Errors go to stderr so they never interleave with rows.
	diag := &OutputFormatter{Format: opts.Format, Writer: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	fail := func(exit int, code, message string, err error) error {
		_ = diag.Error(code, fmt.Sprintf("%s: %v", message, err), nil)
		return WrapExitError(exit, message, err)
	}

	doc, err := querydoc.Load(queryPath)
	if err != nil {
		return fail(ExitCommandError, ErrCodeLoad, "failed to load query", err)
	}
	logger = logger.With("query", doc.Name)

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)

	md := doc.Metadata(supports.DefaultRegistry(), cfg.QuerySettings(), logger)
	pipeline, err := compiler.Compile(md,
		compiler.WithMetrics(collector),
		compiler.WithConcurrency(cfg.Engine.MaxConcurrency),
		compiler.WithLogger(logger),
	)
	if err != nil {
		return fail(ExitFailure, errorCode(err, ErrCodeRun), "failed to compile query", err)
	}
	logger.Debug("query compiled", "statement", doc.Select.String())

	mux, closeSources, err := openSources(opts)
	if err != nil {
		return fail(ExitCommandError, ErrCodeLoad, "failed to open sources", err)
	}
	defer closeSources()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	sigCtx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	addr := opts.MetricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		g.Go(func() error {
			return metrics.Serve(gctx, addr, reg, logger)
		})
	}

	var ctxOpts []record.ContextOption
	if opts.RunIDGenerator != nil {
		ctxOpts = append(ctxOpts, record.WithRunIDGenerator(opts.RunIDGenerator))
	}

	var rows int64
	g.Go(func() error {
		defer cancel()
		return pipeline.Run(mux.Resolver(), ctxOpts...)(gctx, func(row map[string]any) error {
			rows++
			return formatter.Row(row)
		})
	})

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, context.Canceled) && sigCtx.Err() != nil:
		logger.Debug("query stopped", "rows", rows)
		formatter.VerboseLog("%d row(s)", rows)
		return nil
	default:
		return fail(ExitFailure, errorCode(err, ErrCodeRun), "query failed", err)
	}
}

// openSources builds the source resolver from the file and database flags.
// Files are consulted before the database.
func openSources(opts *RunOptions) (*source.Mux, func(), error) {
	files := source.Files{}
	for _, spec := range opts.Sources {
		name, path, err := source.ParseSpec(spec)
		if err != nil {
			return nil, nil, err
		}
		if _, dup := files[name]; dup {
			return nil, nil, fmt.Errorf("source %q bound twice", name)
		}
		f, err := source.NewFile(path, source.WithRate(opts.Rate))
		if err != nil {
			return nil, nil, err
		}
		files[name] = f
	}

	mux := source.NewMux(files)
	closer := func() {}
	if opts.Database != "" {
		dbOpts := []source.DBOption{source.WithBatchSize(opts.BatchSize)}
		if opts.Follow {
			dbOpts = append(dbOpts, source.WithFollow(opts.Poll))
		}
		db, err := source.OpenDB(opts.Database, dbOpts...)
		if err != nil {
			return nil, nil, err
		}
		mux.AddProvider(db)
		closer = func() {
			if err := db.Close(); err != nil {
				opts.Logger.Error("error closing database", "error", err)
			}
		}
	}
	return mux, closer, nil
}
