package compiler

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/feature"
	"github.com/roach88/streamql/internal/metrics"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/stream"
)

// DefaultConcurrency bounds how many join right-hand sides run at once.
const DefaultConcurrency = 256

// Stage names used in logs and the stage_records metric.
const (
	StageFrom       = "from"
	StageJoin       = "join"
	StageWhere      = "where"
	StageProjection = "projection"
	StageGroupBy    = "group_by"
	StageOrderBy    = "order_by"
	StageDistinct   = "distinct"
	StageOffset     = "offset"
	StageLimit      = "limit"
)

type options struct {
	metrics     *metrics.Collector
	concurrency int
	logger      *slog.Logger
}

// Option configures compilation.
type Option func(*options)

// WithMetrics records stage and run metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) {
		o.metrics = c
	}
}

// WithConcurrency bounds join fan-out. n <= 0 means unbounded.
//
// Default: 256 (DefaultConcurrency)
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithLogger sets the logger for run lifecycle events. Compile-time
// warnings go to the Metadata's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Pipeline is a compiled statement. It is immutable and may be started any
// number of times, concurrently.
type Pipeline struct {
	md   *feature.Metadata
	opts options
	from feature.SourceMapper
	body feature.Transformer
}

// Compile builds the pipeline for md's statement. All unsupported
// constructs are reported here as *feature.CompileError.
func Compile(md *feature.Metadata, opts ...Option) (*Pipeline, error) {
	o := options{
		concurrency: DefaultConcurrency,
		logger:      md.Logger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	p, err := compileStatement(md, o)
	o.metrics.Compiled(err)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func compileStatement(md *feature.Metadata, o options) (*Pipeline, error) {
	sel := md.Select()
	if sel == nil {
		return nil, feature.Errorf(feature.ErrCodeInvalidQuery, nil, "missing statement")
	}
	if err := ast.Validate(sel); err != nil {
		ce := feature.Errorf(feature.ErrCodeInvalidQuery, nil, "invalid statement")
		ce.Err = err
		return nil, ce
	}

	c := &compiler{md: md, opts: o}
	return c.compile()
}

// Metadata returns the compilation unit the pipeline was built from.
func (p *Pipeline) Metadata() *feature.Metadata { return p.md }

// Start runs the pipeline in c. Each subscription of the returned stream is
// an independent execution.
func (p *Pipeline) Start(c *record.Context) stream.Stream[*record.Record] {
	return p.body(p.from(c))
}

// Run executes the pipeline against resolver and yields each output row as
// a column map. Each subscription gets a fresh Context carrying the
// statement's settings and a new run ID.
func (p *Pipeline) Run(resolver record.SourceResolver, opts ...record.ContextOption) stream.Stream[map[string]any] {
	return func(ctx context.Context, emit func(map[string]any) error) error {
		copts := append([]record.ContextOption{record.WithSettings(p.md.Settings())}, opts...)
		rc := record.NewContext(resolver, copts...)
		logger := p.opts.logger.With("run_id", rc.RunID())

		start := time.Now()
		logger.Debug("run started")

		var rows int64
		out := stream.Map(p.Start(rc), (*record.Record).AsMap)
		err := out(ctx, func(row map[string]any) error {
			rows++
			return emit(row)
		})

		elapsed := time.Since(start)
		p.opts.metrics.RunFinished(err, elapsed)
		if err != nil && ctx.Err() == nil {
			logger.Error("run failed", "rows", rows, "elapsed", elapsed, "error", err)
		} else {
			logger.Debug("run finished", "rows", rows, "elapsed", elapsed)
		}
		return err
	}
}

// compiler builds the stages of one statement.
type compiler struct {
	md   *feature.Metadata
	opts options
}

func (c *compiler) compile() (*Pipeline, error) {
	sel := c.md.Select()

	where, err := c.where(sel.Where)
	if err != nil {
		return nil, err
	}
	projection, err := c.projection(sel.Items, len(sel.GroupBy) > 0)
	if err != nil {
		return nil, err
	}
	limit := c.limit(sel.Limit)
	offset := c.offset(sel.Offset)
	having, err := c.having(sel.Having)
	if err != nil {
		return nil, err
	}
	groupBy, err := c.groupBy(sel.GroupBy, projection, having)
	if err != nil {
		return nil, err
	}
	joins, err := c.joins(sel.Joins)
	if err != nil {
		return nil, err
	}
	orderBy, err := c.orderBy(sel.OrderBy)
	if err != nil {
		return nil, err
	}
	distinct, err := c.distinct(sel.Distinct)
	if err != nil {
		return nil, err
	}
	from, err := c.from(sel.From)
	if err != nil {
		return nil, err
	}

	var shape feature.Transformer
	if groupBy != nil {
		shape = c.tap(StageGroupBy, groupBy)
	} else {
		shape = c.tap(StageProjection, projection)
		if having != nil {
			// HAVING without GROUP BY filters the projected rows.
			shape = compose(shape, having)
		}
	}

	body := compose(
		c.tap(StageJoin, joins),
		c.tap(StageWhere, where),
		shape,
		c.tap(StageOrderBy, orderBy),
		c.tap(StageDistinct, distinct),
		c.tap(StageOffset, offset),
		c.tap(StageLimit, limit),
	)

	return &Pipeline{
		md:   c.md,
		opts: c.opts,
		from: func(rc *record.Context) stream.Stream[*record.Record] {
			return c.tap(StageFrom, identity)(from(rc))
		},
		body: body,
	}, nil
}

// sub compiles a nested statement with the same registry, settings and
// options.
func (c *compiler) sub(sel *ast.Select) (*Pipeline, error) {
	return compileStatement(c.md.Sub(sel), c.opts)
}

func identity(s stream.Stream[*record.Record]) stream.Stream[*record.Record] { return s }

// compose applies stages left to right. nil stages are skipped.
func compose(stages ...feature.Transformer) feature.Transformer {
	return func(s stream.Stream[*record.Record]) stream.Stream[*record.Record] {
		for _, st := range stages {
			if st != nil {
				s = st(s)
			}
		}
		return s
	}
}

// tap counts the records leaving t under stage.
func (c *compiler) tap(stage string, t feature.Transformer) feature.Transformer {
	if t == nil || c.opts.metrics == nil {
		return t
	}
	m := c.opts.metrics
	return func(s stream.Stream[*record.Record]) stream.Stream[*record.Record] {
		return stream.Tap(t(s), func(*record.Record) { m.StageRecord(stage) })
	}
}

// where builds the WHERE filter; nil when absent.
func (c *compiler) where(expr ast.Expr) (feature.Transformer, error) {
	if expr == nil {
		return nil, nil
	}
	pred, err := feature.CreatePredicate(expr, c.md)
	if err != nil {
		return nil, err
	}
	return filter(pred), nil
}

// having builds the HAVING filter; nil when absent.
func (c *compiler) having(expr ast.Expr) (feature.Transformer, error) {
	return c.where(expr)
}

func filter(pred feature.Predicate) feature.Transformer {
	return func(s stream.Stream[*record.Record]) stream.Stream[*record.Record] {
		return stream.Filter(s, func(ctx context.Context, r *record.Record) (bool, error) {
			return pred(ctx, r)
		})
	}
}

// distinct resolves the distinct strategy named by the distinctBy setting.
func (c *compiler) distinct(d *ast.Distinct) (feature.Transformer, error) {
	if d == nil {
		return nil, nil
	}
	name := c.md.SettingString(feature.SettingDistinctBy, feature.DefaultDistinctName)
	f, err := feature.Require[feature.DistinctFeature](c.md.Registry(), feature.Distinct.Of(name), nil)
	if err != nil {
		return nil, err
	}
	return f.CreateDistinct(d, c.md)
}
