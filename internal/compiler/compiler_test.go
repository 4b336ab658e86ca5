package compiler_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/compiler"
	"github.com/roach88/streamql/internal/feature"
	"github.com/roach88/streamql/internal/metrics"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/stream"
	"github.com/roach88/streamql/internal/supports"
)

// AST shorthands.

func col(name string) *ast.Column                { return &ast.Column{Name: name} }
func qcol(table, name string) *ast.Column        { return &ast.Column{Table: table, Name: name} }
func long(v int64) *ast.LongValue                { return &ast.LongValue{Value: v} }
func fn(name string, args ...ast.Expr) *ast.Func { return &ast.Func{Name: name, Args: args} }
func countStar() *ast.Func                       { return &ast.Func{Name: "count", Star: true} }
func table(name, alias string) *ast.Table        { return &ast.Table{Name: name, Alias: alias} }
func bin(op string, l, r ast.Expr) *ast.Binary {
	return &ast.Binary{Op: op, Left: l, Right: r}
}

func item(e ast.Expr, alias string) ast.SelectItem { return ast.SelectItem{Expr: e, Alias: alias} }

func items(exprs ...ast.Expr) []ast.SelectItem {
	out := make([]ast.SelectItem, len(exprs))
	for i, e := range exprs {
		out[i] = ast.SelectItem{Expr: e}
	}
	return out
}

func sources(data map[string][]any) record.SourceResolver {
	return func(name string) stream.Stream[any] {
		rows, ok := data[name]
		if !ok {
			return stream.Fail[any](fmt.Errorf("unknown source %q", name))
		}
		return stream.FromSlice(rows)
	}
}

func compile(t *testing.T, sel *ast.Select, settings map[string]any, opts ...compiler.Option) *compiler.Pipeline {
	t.Helper()
	md := feature.NewMetadata(sel, supports.DefaultRegistry(), feature.WithSettings(settings))
	p, err := compiler.Compile(md, opts...)
	require.NoError(t, err)
	return p
}

func compileErr(sel *ast.Select) error {
	md := feature.NewMetadata(sel, supports.DefaultRegistry())
	_, err := compiler.Compile(md)
	return err
}

func run(t *testing.T, p *compiler.Pipeline, data map[string][]any) []map[string]any {
	t.Helper()
	rows, err := stream.Collect(context.Background(), p.Run(sources(data), record.WithRunID("test-run")))
	require.NoError(t, err)
	return rows
}

func column(rows []map[string]any, name string) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r[name]
	}
	return out
}

func temps(values ...int) []any {
	rows := make([]any, len(values))
	for i, v := range values {
		rows[i] = map[string]any{"deviceId": fmt.Sprintf("d%d", i+1), "value": v}
	}
	return rows
}

func TestWindowedCount(t *testing.T) {
	p := compile(t, &ast.Select{
		Items:   []ast.SelectItem{item(col("deviceId"), ""), item(countStar(), "total")},
		From:    table("temp", ""),
		GroupBy: []ast.Expr{fn("_window", long(3))},
	}, nil)

	rows := run(t, p, map[string][]any{"temp": temps(1, 2, 3, 4, 5, 6, 7)})

	assert.Equal(t, []map[string]any{
		{"deviceId": "d1", "total": int64(3)},
		{"deviceId": "d4", "total": int64(3)},
		{"deviceId": "d7", "total": int64(1)},
	}, rows)
}

func TestWhereOrderByLimit(t *testing.T) {
	p := compile(t, &ast.Select{
		Items:   items(col("value")),
		From:    table("temp", ""),
		Where:   bin(">", col("value"), long(10)),
		OrderBy: []ast.OrderByElement{{Expr: col("value"), Desc: true}},
		Limit:   long(2),
	}, nil)

	rows := run(t, p, map[string][]any{"temp": temps(5, 15, 20, 3, 25)})
	assert.Equal(t, []any{25, 20}, column(rows, "value"))
}

func TestOffsetLimit(t *testing.T) {
	p := compile(t, &ast.Select{
		Items:   items(col("value")),
		From:    table("temp", ""),
		OrderBy: []ast.OrderByElement{{Expr: col("value")}},
		Offset:  long(1),
		Limit:   long(2),
	}, nil)

	rows := run(t, p, map[string][]any{"temp": temps(4, 1, 3, 2, 5)})
	assert.Equal(t, []any{2, 3}, column(rows, "value"))
}

func TestNonLiteralLimitIsIgnored(t *testing.T) {
	p := compile(t, &ast.Select{
		Items: items(col("value")),
		From:  table("temp", ""),
		Limit: bin("+", long(1), long(1)),
	}, nil)

	rows := run(t, p, map[string][]any{"temp": temps(1, 2, 3)})
	assert.Len(t, rows, 3)
}

func TestOrderByKeyChain(t *testing.T) {
	p := compile(t, &ast.Select{
		Items: items(col("g"), col("v")),
		From:  table("t", ""),
		OrderBy: []ast.OrderByElement{
			{Expr: col("g")},
			{Expr: col("v"), Desc: true},
		},
	}, nil)

	rows := run(t, p, map[string][]any{"t": {
		map[string]any{"g": "b", "v": 1},
		map[string]any{"g": "a", "v": 1},
		map[string]any{"g": "b", "v": 2},
		map[string]any{"g": "a", "v": 3},
	}})

	assert.Equal(t, []any{"a", "a", "b", "b"}, column(rows, "g"))
	assert.Equal(t, []any{3, 1, 2, 1}, column(rows, "v"))
}

func TestGroupByLiteralFailsAtCompileTime(t *testing.T) {
	err := compileErr(&ast.Select{
		Items:   items(countStar()),
		From:    table("temp", ""),
		GroupBy: []ast.Expr{long(1)},
	})

	require.Error(t, err)
	assert.True(t, feature.HasCode(err, feature.ErrCodeUnsupportedGroupBy), err.Error())

	var ce *feature.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "1", ce.Expr)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		sel  *ast.Select
		code feature.ErrorCode
	}{
		{
			name: "unknown select function",
			sel:  &ast.Select{Items: items(fn("nosuch", col("v"))), From: table("t", "")},
			code: feature.ErrCodeUnsupportedSelectItem,
		},
		{
			name: "unknown filter operator",
			sel:  &ast.Select{Items: items(col("v")), From: table("t", ""), Where: bin("~~", col("v"), long(1))},
			code: feature.ErrCodeMissingFeature,
		},
		{
			name: "window without arguments",
			sel:  &ast.Select{Items: items(countStar()), From: table("t", ""), GroupBy: []ast.Expr{fn("_window")}},
			code: feature.ErrCodeInvalidArguments,
		},
		{
			name: "unknown grouping function",
			sel:  &ast.Select{Items: items(countStar()), From: table("t", ""), GroupBy: []ast.Expr{fn("hourly")}},
			code: feature.ErrCodeMissingFeature,
		},
		{
			name: "empty select list",
			sel:  &ast.Select{From: table("t", "")},
			code: feature.ErrCodeInvalidQuery,
		},
		{
			name: "error inside a sub-select",
			sel: &ast.Select{
				Items: items(col("v")),
				From:  &ast.SubSelect{Alias: "s", Select: &ast.Select{Items: items(fn("nosuch")), From: table("t", "")}},
			},
			code: feature.ErrCodeUnsupportedSelectItem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compileErr(tt.sel)
			require.Error(t, err)
			assert.True(t, feature.HasCode(err, tt.code), err.Error())
		})
	}
}

func TestUnknownDistinctStrategy(t *testing.T) {
	md := feature.NewMetadata(&ast.Select{
		Distinct: &ast.Distinct{},
		Items:    items(col("v")),
		From:     table("t", ""),
	}, supports.DefaultRegistry(), feature.WithSettings(map[string]any{feature.SettingDistinctBy: "bloom"}))

	_, err := compiler.Compile(md)
	require.Error(t, err)
	assert.True(t, feature.IsMissingFeature(err))
}

func devices() []any {
	return []any{
		map[string]any{"deviceId": "d1", "name": "pump"},
		map[string]any{"deviceId": "d2", "name": "fan"},
	}
}

func readings() []any {
	return []any{
		map[string]any{"deviceId": "d1", "value": 10},
		map[string]any{"deviceId": "d1", "value": 20},
		map[string]any{"deviceId": "d3", "value": 30},
	}
}

func joinSelect(typ ast.JoinType) *ast.Select {
	return &ast.Select{
		Items: []ast.SelectItem{
			item(qcol("r", "value"), "value"),
			item(qcol("d", "name"), "name"),
		},
		From: table("readings", "r"),
		Joins: []ast.Join{{
			Type:  typ,
			Right: table("devices", "d"),
			On:    bin("=", qcol("r", "deviceId"), qcol("d", "deviceId")),
		}},
	}
}

func TestInnerJoin(t *testing.T) {
	p := compile(t, joinSelect(ast.JoinInner), nil)
	rows := run(t, p, map[string][]any{"readings": readings(), "devices": devices()})

	assert.ElementsMatch(t, []map[string]any{
		{"value": 10, "name": "pump"},
		{"value": 20, "name": "pump"},
	}, rows)
}

func TestLeftJoinKeepsUnmatchedRows(t *testing.T) {
	p := compile(t, joinSelect(ast.JoinLeft), nil)
	rows := run(t, p, map[string][]any{"readings": readings(), "devices": devices()})

	assert.ElementsMatch(t, []map[string]any{
		{"value": 10, "name": "pump"},
		{"value": 20, "name": "pump"},
		{"value": 30, "name": nil},
	}, rows)
}

func TestRightJoinDropsUnmatchedLeft(t *testing.T) {
	p := compile(t, joinSelect(ast.JoinRight), nil)
	rows := run(t, p, map[string][]any{
		"readings": {map[string]any{"deviceId": "d1", "value": 10}},
		"devices":  devices(),
	})

	assert.ElementsMatch(t, []map[string]any{
		{"value": 10, "name": "pump"},
		{"value": nil, "name": "fan"},
	}, rows)
}

func TestRightJoinWithoutCandidatesKeepsLeft(t *testing.T) {
	p := compile(t, joinSelect(ast.JoinRight), nil)
	rows := run(t, p, map[string][]any{
		"readings": {map[string]any{"deviceId": "d1", "value": 10}},
		"devices":  {},
	})

	assert.Equal(t, []map[string]any{{"value": 10, "name": nil}}, rows)
}

func TestJoinWithoutOnPairsEverything(t *testing.T) {
	sel := joinSelect(ast.JoinInner)
	sel.Joins[0].On = nil
	p := compile(t, sel, nil)

	rows := run(t, p, map[string][]any{"readings": readings(), "devices": devices()})
	assert.Len(t, rows, 6)
}

func TestJoinTableUsesContextWrapper(t *testing.T) {
	p := compile(t, joinSelect(ast.JoinRight), nil)

	rc := record.NewContext(sources(map[string][]any{
		"readings": {map[string]any{"deviceId": "d1", "value": 10}},
		"devices":  devices(),
	})).Wrap(func(alias string, s stream.Stream[*record.Record]) stream.Stream[*record.Record] {
		if alias != "d" {
			return s
		}
		return stream.Filter(s, func(_ context.Context, r *record.Record) (bool, error) {
			row, _ := r.Value("d")
			return row.(map[string]any)["name"] != "fan", nil
		})
	})

	recs, err := stream.Collect(context.Background(), p.Start(rc))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, map[string]any{"value": 10, "name": "pump"}, recs[0].AsMap())
}

func TestCorrelatedSubSelectJoin(t *testing.T) {
	p := compile(t, &ast.Select{
		Items: []ast.SelectItem{
			item(qcol("d", "name"), "name"),
			item(qcol("s", "total"), "total"),
		},
		From: table("devices", "d"),
		Joins: []ast.Join{{
			Type: ast.JoinLeft,
			Right: &ast.SubSelect{
				Alias: "s",
				Select: &ast.Select{
					Items: []ast.SelectItem{item(countStar(), "total")},
					From:  table("readings", "r"),
					Where: bin("=", qcol("r", "deviceId"), qcol("d", "deviceId")),
				},
			},
		}},
	}, nil)

	rows := run(t, p, map[string][]any{"readings": readings(), "devices": devices()})
	assert.ElementsMatch(t, []map[string]any{
		{"name": "pump", "total": int64(2)},
		{"name": "fan", "total": int64(0)},
	}, rows)
}

func TestFromSubSelect(t *testing.T) {
	p := compile(t, &ast.Select{
		Items: []ast.SelectItem{item(qcol("s", "v"), "v")},
		From: &ast.SubSelect{
			Alias: "s",
			Select: &ast.Select{
				Items: []ast.SelectItem{item(bin("*", col("value"), long(2)), "v")},
				From:  table("temp", ""),
				Where: bin(">", col("value"), long(1)),
			},
		},
	}, nil)

	rows := run(t, p, map[string][]any{"temp": temps(1, 2, 3)})
	assert.Equal(t, []any{int64(4), int64(6)}, column(rows, "v"))
}

func TestSelectWithoutFrom(t *testing.T) {
	p := compile(t, &ast.Select{
		Items: []ast.SelectItem{item(bin("+", long(1), long(1)), "two")},
	}, nil)

	rows := run(t, p, nil)
	assert.Equal(t, []map[string]any{{"two": int64(2)}}, rows)
}

func TestSelectStar(t *testing.T) {
	p := compile(t, &ast.Select{
		Items: items(&ast.AllColumns{}, bin("*", col("value"), long(10))),
		From:  table("temp", ""),
	}, nil)

	rows := run(t, p, map[string][]any{"temp": temps(1)})
	assert.Equal(t, []map[string]any{{"deviceId": "d1", "value": 1, "value * 10": int64(10)}}, rows)
}

func TestGroupByColumnWithHaving(t *testing.T) {
	p := compile(t, &ast.Select{
		Items:   items(col("deviceId"), countStar()),
		From:    table("readings", ""),
		GroupBy: []ast.Expr{col("deviceId")},
		Having:  bin(">", countStar(), long(1)),
	}, nil)

	rows := run(t, p, map[string][]any{"readings": readings()})
	assert.Equal(t, []map[string]any{{"deviceId": "d1", "count(*)": int64(2)}}, rows)
}

func TestHavingAndOrderByReadAliasedAggregate(t *testing.T) {
	p := compile(t, &ast.Select{
		Items:   []ast.SelectItem{item(col("deviceId"), ""), item(countStar(), "total")},
		From:    table("readings", ""),
		GroupBy: []ast.Expr{col("deviceId")},
		Having:  bin(">", countStar(), long(1)),
	}, nil)

	rows := run(t, p, map[string][]any{"readings": readings()})
	assert.Equal(t, []map[string]any{{"deviceId": "d1", "total": int64(2)}}, rows)

	p = compile(t, &ast.Select{
		Items:   []ast.SelectItem{item(col("deviceId"), ""), item(countStar(), "total")},
		From:    table("readings", ""),
		GroupBy: []ast.Expr{col("deviceId")},
		OrderBy: []ast.OrderByElement{{Expr: countStar(), Desc: true}},
	}, nil)

	rows = run(t, p, map[string][]any{"readings": readings()})
	assert.Equal(t, []map[string]any{
		{"deviceId": "d1", "total": int64(2)},
		{"deviceId": "d3", "total": int64(1)},
	}, rows)
}

func TestHavingWithoutGroupByFiltersProjectedRow(t *testing.T) {
	sel := func(floor int64) *ast.Select {
		return &ast.Select{
			Items:  []ast.SelectItem{item(countStar(), "n")},
			From:   table("temp", ""),
			Having: bin(">", countStar(), long(floor)),
		}
	}
	data := map[string][]any{"temp": temps(1, 2, 3)}

	assert.Equal(t, []map[string]any{{"n": int64(3)}}, run(t, compile(t, sel(1), nil), data))
	assert.Empty(t, run(t, compile(t, sel(5), nil), data))
}

func TestGroupedWindowsFlowWhileSourceIsOpen(t *testing.T) {
	p := compile(t, &ast.Select{
		Items:   []ast.SelectItem{item(col("deviceId"), ""), item(countStar(), "total")},
		From:    table("events", ""),
		GroupBy: []ast.Expr{col("deviceId"), fn("_window", long(2))},
	}, nil)

	in := make(chan any)
	resolve := func(string) stream.Stream[any] { return stream.FromChan[any](in) }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan map[string]any, 8)
	done := make(chan error, 1)
	go func() {
		done <- p.Run(resolve, record.WithRunID("live"))(ctx, func(row map[string]any) error {
			out <- row
			return nil
		})
	}()

	// b stays open for as long as the source does.
	for _, id := range []string{"a", "b", "a", "a", "a"} {
		in <- map[string]any{"deviceId": id}
	}
	for i := 0; i < 2; i++ {
		select {
		case row := <-out:
			assert.Equal(t, map[string]any{"deviceId": "a", "total": int64(2)}, row)
		case <-time.After(2 * time.Second):
			t.Fatalf("window %d of a was not emitted while b is still open", i+1)
		}
	}

	close(in)
	require.NoError(t, <-done)
	close(out)
	var rest []map[string]any
	for row := range out {
		rest = append(rest, row)
	}
	assert.Equal(t, []map[string]any{{"deviceId": "b", "total": int64(1)}}, rest)
}

func TestGroupByWithoutAggregatesKeepsLastRow(t *testing.T) {
	p := compile(t, &ast.Select{
		Items:   items(col("deviceId"), col("value")),
		From:    table("readings", ""),
		GroupBy: []ast.Expr{col("deviceId")},
	}, nil)

	rows := run(t, p, map[string][]any{"readings": readings()})
	assert.ElementsMatch(t, []map[string]any{
		{"deviceId": "d1", "value": 20},
		{"deviceId": "d3", "value": 30},
	}, rows)
}

func TestNestedGroupBy(t *testing.T) {
	p := compile(t, &ast.Select{
		Items:   []ast.SelectItem{item(col("deviceId"), ""), item(countStar(), "n")},
		From:    table("readings", ""),
		GroupBy: []ast.Expr{fn("_window", long(2)), col("deviceId")},
	}, nil)

	rows := run(t, p, map[string][]any{"readings": readings()})
	assert.ElementsMatch(t, []map[string]any{
		{"deviceId": "d1", "n": int64(2)},
		{"deviceId": "d3", "n": int64(1)},
	}, rows)
}

func TestAggregateOverEmptyInput(t *testing.T) {
	p := compile(t, &ast.Select{
		Items: []ast.SelectItem{item(countStar(), "total"), item(fn("sum", col("value")), "sum")},
		From:  table("temp", ""),
	}, nil)

	rows := run(t, p, map[string][]any{"temp": {}})
	assert.Equal(t, []map[string]any{{"total": int64(0), "sum": int64(0)}}, rows)
}

func TestDistinct(t *testing.T) {
	sel := &ast.Select{
		Distinct: &ast.Distinct{},
		Items:    items(col("deviceId")),
		From:     table("readings", ""),
	}

	for _, strategy := range []string{"default", "lru"} {
		t.Run(strategy, func(t *testing.T) {
			p := compile(t, sel, map[string]any{feature.SettingDistinctBy: strategy})
			rows := run(t, p, map[string][]any{"readings": readings()})
			assert.Equal(t, []any{"d1", "d3"}, column(rows, "deviceId"))

			rows = run(t, p, map[string][]any{"readings": {}})
			assert.Empty(t, rows)
		})
	}
}

func TestRuntimeErrorFailsTheRun(t *testing.T) {
	p := compile(t, &ast.Select{
		Items: items(bin("/", col("value"), long(0))),
		From:  table("temp", ""),
	}, nil)

	_, err := stream.Collect(context.Background(), p.Run(sources(map[string][]any{"temp": temps(1)})))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestUnknownSourceFailsTheRun(t *testing.T) {
	p := compile(t, &ast.Select{Items: items(col("v")), From: table("missing", "")}, nil)

	_, err := stream.Collect(context.Background(), p.Run(sources(nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown source "missing"`)
}

func TestLimitStopsUnboundedSource(t *testing.T) {
	p := compile(t, &ast.Select{Items: items(col("n")), From: table("ticks", ""), Limit: long(3)}, nil)

	var produced atomic.Int64
	endless := func(ctx context.Context, emit func(any) error) error {
		for i := 0; ; i++ {
			produced.Add(1)
			if err := emit(map[string]any{"n": i}); err != nil {
				return err
			}
		}
	}
	resolver := func(string) stream.Stream[any] { return endless }

	rows, err := stream.Collect(context.Background(), p.Run(resolver))
	require.NoError(t, err)
	assert.Equal(t, []any{0, 1, 2}, column(rows, "n"))
	assert.Equal(t, int64(3), produced.Load())
}

func TestRunsAreIndependent(t *testing.T) {
	p := compile(t, &ast.Select{Items: items(col("value")), From: table("temp", "")}, nil)
	data := map[string][]any{"temp": temps(1, 2)}

	assert.Equal(t, run(t, p, data), run(t, p, data))
}

func TestStartUsesContextWrapper(t *testing.T) {
	p := compile(t, &ast.Select{Items: items(qcol("outer", "k"), col("value")), From: table("temp", "")}, nil)

	rc := record.NewContext(sources(map[string][]any{"temp": temps(1)})).
		Wrap(func(_ string, s stream.Stream[*record.Record]) stream.Stream[*record.Record] {
			return stream.Map(s, func(r *record.Record) *record.Record {
				return r.WithValue("outer", map[string]any{"k": "x"})
			})
		})

	recs, err := stream.Collect(context.Background(), p.Start(rc))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, map[string]any{"outer.k": "x", "value": 1}, recs[0].AsMap())
}

func TestStageMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := compile(t, &ast.Select{
		Items:   items(col("value")),
		From:    table("temp", ""),
		Where:   bin(">", col("value"), long(10)),
		OrderBy: []ast.OrderByElement{{Expr: col("value"), Desc: true}},
		Limit:   long(2),
	}, nil, compiler.WithMetrics(metrics.New(reg)))

	run(t, p, map[string][]any{"temp": temps(5, 15, 20, 3, 25)})

	expected := `
# HELP streamql_stage_records_total Total number of records leaving each pipeline stage
# TYPE streamql_stage_records_total counter
streamql_stage_records_total{stage="from"} 5
streamql_stage_records_total{stage="limit"} 2
streamql_stage_records_total{stage="order_by"} 2
streamql_stage_records_total{stage="projection"} 3
streamql_stage_records_total{stage="where"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "streamql_stage_records_total"))

	runs := `
# HELP streamql_runs_total Total number of finished pipeline runs
# TYPE streamql_runs_total counter
streamql_runs_total{status="ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(runs), "streamql_runs_total"))
}

func TestCompileMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	md := feature.NewMetadata(&ast.Select{Items: items(fn("nosuch")), From: table("t", "")}, supports.DefaultRegistry())
	_, err := compiler.Compile(md, compiler.WithMetrics(m))
	require.Error(t, err)
	assert.True(t, errors.As(err, new(*feature.CompileError)))

	expected := `
# HELP streamql_compile_total Total number of statement compilations
# TYPE streamql_compile_total counter
streamql_compile_total{status="error"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "streamql_compile_total"))
}
