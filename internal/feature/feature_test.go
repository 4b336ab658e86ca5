package feature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/stream"
	"github.com/roach88/streamql/internal/value"
)

type fakeProperty struct{}

func (fakeProperty) ID() ID { return ValueMap.Of(PropertyName) }
func (fakeProperty) CreateMapper(expr ast.Expr, _ *Metadata) (Mapper, error) {
	c := expr.(*ast.Column)
	return func(_ context.Context, r *record.Record) (any, error) {
		v, _ := r.Lookup(c.Table, c.Name)
		return v, nil
	}, nil
}

type fakeGreater struct{}

func (fakeGreater) ID() ID { return Filter.Of(">") }
func (fakeGreater) CreatePredicate(expr ast.Expr, md *Metadata) (Predicate, error) {
	b := expr.(*ast.Binary)
	left, err := CreateMapperNow(b.Left, md)
	if err != nil {
		return nil, err
	}
	right, err := CreateMapperNow(b.Right, md)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, r *record.Record) (bool, error) {
		l, _ := left(ctx, r)
		rv, _ := right(ctx, r)
		return value.Compare(l, rv) > 0, nil
	}, nil
}

type fakeCount struct{}

func (fakeCount) ID() ID { return ValueAggMap.Of("COUNT") }
func (fakeCount) CreateAggMapper(ast.Expr, *Metadata) (AggMapper, error) {
	return func(ctx context.Context, rows stream.Stream[*record.Record]) (any, error) {
		return stream.Count(ctx, rows)
	}, nil
}

func testMetadata() *Metadata {
	return NewMetadata(&ast.Select{}, NewRegistry(fakeProperty{}, fakeGreater{}, fakeCount{}).Freeze())
}

func testRecord(row map[string]any) *record.Record {
	return record.New("t", row, record.NewContext(nil, record.WithRunID("test")))
}

func TestIDNormalizesName(t *testing.T) {
	assert.Equal(t, ID{Category: ValueAggMap, Name: "count"}, ValueAggMap.Of(" COUNT "))
	assert.Equal(t, "group-by:_window", GroupBy.Of("_WINDOW").String())
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry(fakeProperty{})
	require.Error(t, reg.Register(fakeProperty{}), "duplicate IDs are rejected")
	require.NoError(t, reg.Register(fakeCount{}))

	_, ok := reg.Get(ValueAggMap.Of("Count"))
	assert.True(t, ok, "lookups are case-insensitive")

	reg.Freeze()
	require.ErrorIs(t, reg.Register(fakeGreater{}), ErrFrozen)

	clone := reg.Clone()
	require.NoError(t, clone.Register(fakeGreater{}))
	assert.Len(t, clone.IDs(), 3)
	assert.Len(t, reg.IDs(), 2)
}

func TestLookupAndRequire(t *testing.T) {
	reg := NewRegistry(fakeProperty{}, fakeCount{})

	_, ok := Lookup[ValueMapFeature](reg, ValueMap.Of("upper"))
	assert.False(t, ok)

	// Registered, but under a different interface.
	_, ok = Lookup[FilterFeature](reg, ValueAggMap.Of("count"))
	assert.False(t, ok)

	expr := &ast.Func{Name: "upper", Args: []ast.Expr{&ast.Column{Name: "name"}}}
	_, err := Require[ValueMapFeature](reg, ValueMap.Of("upper"), expr)
	require.Error(t, err)
	assert.True(t, IsMissingFeature(err))

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ValueMap.Of("upper"), ce.Feature)
	assert.Equal(t, "upper(name)", ce.Expr)
	assert.Contains(t, err.Error(), `unsupported value-map feature "upper"`)
}

func TestCreatePredicate(t *testing.T) {
	md := testMetadata()
	pred, err := CreatePredicate(&ast.Binary{Op: ">", Left: &ast.Column{Name: "value"}, Right: &ast.LongValue{Value: 10}}, md)
	require.NoError(t, err)

	ok, err := pred(context.Background(), testRecord(map[string]any{"value": 15}))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = pred(context.Background(), testRecord(map[string]any{"value": 5}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreatePredicateTruthyColumn(t *testing.T) {
	pred, err := CreatePredicate(&ast.Column{Name: "active"}, testMetadata())
	require.NoError(t, err)

	ok, err := pred(context.Background(), testRecord(map[string]any{"active": true}))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreatePredicateMissingOperator(t *testing.T) {
	_, err := CreatePredicate(&ast.Binary{Op: "=", Left: &ast.Column{Name: "a"}, Right: &ast.LongValue{Value: 1}}, testMetadata())
	require.Error(t, err)
	assert.True(t, IsMissingFeature(err))
	assert.Contains(t, err.Error(), `unsupported filter feature "="`)

	_, err = CreatePredicate(&ast.Not{Expr: &ast.Column{Name: "a"}}, testMetadata())
	assert.True(t, IsMissingFeature(err))

	_, err = CreatePredicate(nil, testMetadata())
	assert.True(t, HasCode(err, ErrCodeInvalidQuery))
}

func TestCreateMapper(t *testing.T) {
	md := testMetadata()
	r := testRecord(map[string]any{"value": 3})

	m, ok, err := CreateMapper(&ast.StringValue{Value: "x"}, md)
	require.NoError(t, err)
	require.True(t, ok)
	v, _ := m(context.Background(), r)
	assert.Equal(t, "x", v)

	m, ok, err = CreateMapper(&ast.Binary{Op: ">", Left: &ast.Column{Name: "value"}, Right: &ast.LongValue{Value: 1}}, md)
	require.NoError(t, err)
	require.True(t, ok, "comparisons map to booleans")
	v, _ = m(context.Background(), r)
	assert.Equal(t, true, v)

	_, ok, err = CreateMapper(&ast.Func{Name: "upper"}, md)
	require.NoError(t, err)
	assert.False(t, ok, "optional lookup does not fail")

	_, err = CreateMapperNow(&ast.Func{Name: "upper"}, md)
	assert.True(t, IsMissingFeature(err))

	_, _, err = CreateMapper(&ast.AllColumns{}, md)
	assert.True(t, HasCode(err, ErrCodeUnsupportedExpression))
}

func TestCreateMapperAggregateReadsResult(t *testing.T) {
	m, ok, err := CreateMapper(&ast.Func{Name: "count", Star: true}, testMetadata())
	require.NoError(t, err)
	require.True(t, ok)

	r := testRecord(nil).WithResults(record.ValuesOf("count(*)", int64(4)))
	v, err := m(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)
}

func TestMetadataSettings(t *testing.T) {
	md := NewMetadata(&ast.Select{}, NewRegistry(), WithSettings(map[string]any{
		SettingDistinctBy:        "lru",
		SettingDistinctCacheSize: "64",
	}))
	assert.Equal(t, "lru", md.SettingString(SettingDistinctBy, DefaultDistinctName))
	assert.Equal(t, 64, md.SettingInt(SettingDistinctCacheSize, 1024))
	assert.Equal(t, "x", md.SettingString("missing", "x"))

	sub := md.Sub(&ast.Select{})
	assert.Equal(t, "lru", sub.SettingString(SettingDistinctBy, ""), "sub-selects inherit settings")
	assert.Same(t, md.Registry(), sub.Registry())
}
