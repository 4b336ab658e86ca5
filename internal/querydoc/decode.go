package querydoc

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cast"

	"github.com/roach88/streamql/internal/ast"
)

// exprKinds are the discriminating keys of map-form expressions, with the
// extra keys each kind accepts.
var exprKinds = map[string][]string{
	"column":  {"table"},
	"string":  nil,
	"long":    nil,
	"double":  nil,
	"bool":    nil,
	"func":    {"args", "star"},
	"op":      {"left", "right"},
	"not":     nil,
	"is_null": {"negate"},
	"between": {"low", "high", "negate"},
	"in":      {"list", "negate"},
}

func decodeSelect(path string, v any) (*ast.Select, error) {
	m, err := object(path, v,
		"distinct", "items", "from", "joins", "where", "group_by",
		"having", "order_by", "limit", "offset")
	if err != nil {
		return nil, err
	}

	sel := &ast.Select{}
	if d, ok := m["distinct"]; ok {
		if sel.Distinct, err = decodeDistinct(path+".distinct", d); err != nil {
			return nil, err
		}
	}

	items, err := list(path+".items", m["items"])
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errorf(path+".items", "at least one item is required")
	}
	for i, item := range items {
		si, err := decodeItem(fmt.Sprintf("%s.items[%d]", path, i), item)
		if err != nil {
			return nil, err
		}
		sel.Items = append(sel.Items, si)
	}

	if f, ok := m["from"]; ok && f != nil {
		if sel.From, err = decodeFrom(path+".from", f); err != nil {
			return nil, err
		}
	}

	joins, err := list(path+".joins", m["joins"])
	if err != nil {
		return nil, err
	}
	for i, j := range joins {
		join, err := decodeJoin(fmt.Sprintf("%s.joins[%d]", path, i), j)
		if err != nil {
			return nil, err
		}
		sel.Joins = append(sel.Joins, join)
	}

	if sel.Where, err = optionalExpr(path+".where", m, "where"); err != nil {
		return nil, err
	}
	if sel.GroupBy, err = exprList(path+".group_by", m["group_by"]); err != nil {
		return nil, err
	}
	if sel.Having, err = optionalExpr(path+".having", m, "having"); err != nil {
		return nil, err
	}

	orders, err := list(path+".order_by", m["order_by"])
	if err != nil {
		return nil, err
	}
	for i, o := range orders {
		el, err := decodeOrder(fmt.Sprintf("%s.order_by[%d]", path, i), o)
		if err != nil {
			return nil, err
		}
		sel.OrderBy = append(sel.OrderBy, el)
	}

	if sel.Limit, err = optionalExpr(path+".limit", m, "limit"); err != nil {
		return nil, err
	}
	if sel.Offset, err = optionalExpr(path+".offset", m, "offset"); err != nil {
		return nil, err
	}
	return sel, nil
}

func decodeDistinct(path string, v any) (*ast.Distinct, error) {
	switch d := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if !d {
			return nil, nil
		}
		return &ast.Distinct{}, nil
	case map[string]any:
		m, err := object(path, d, "on")
		if err != nil {
			return nil, err
		}
		on, err := exprList(path+".on", m["on"])
		if err != nil {
			return nil, err
		}
		return &ast.Distinct{On: on}, nil
	default:
		return nil, errorf(path, "expected a bool or a map, got %s", kindOf(v))
	}
}

// decodeItem accepts either {expr, as} or a bare expression.
func decodeItem(path string, v any) (ast.SelectItem, error) {
	if m, ok := v.(map[string]any); ok {
		if _, wrapped := m["expr"]; wrapped {
			m, err := object(path, m, "expr", "as")
			if err != nil {
				return ast.SelectItem{}, err
			}
			e, err := decodeExpr(path+".expr", m["expr"])
			if err != nil {
				return ast.SelectItem{}, err
			}
			alias, err := optionalText(path+".as", m["as"])
			if err != nil {
				return ast.SelectItem{}, err
			}
			return ast.SelectItem{Expr: e, Alias: alias}, nil
		}
	}
	e, err := decodeExpr(path, v)
	if err != nil {
		return ast.SelectItem{}, err
	}
	return ast.SelectItem{Expr: e}, nil
}

func decodeFrom(path string, v any) (ast.FromItem, error) {
	if name, ok := v.(string); ok {
		if name == "" {
			return nil, errorf(path, "empty table name")
		}
		return &ast.Table{Name: name}, nil
	}
	m, err := object(path, v, "table", "select", "as")
	if err != nil {
		return nil, err
	}
	alias, err := optionalText(path+".as", m["as"])
	if err != nil {
		return nil, err
	}
	_, hasTable := m["table"]
	_, hasSelect := m["select"]
	switch {
	case hasTable && hasSelect:
		return nil, errorf(path, "table and select are mutually exclusive")
	case hasTable:
		name, err := text(path+".table", m["table"])
		if err != nil {
			return nil, err
		}
		return &ast.Table{Name: name, Alias: alias}, nil
	case hasSelect:
		sub, err := decodeSelect(path+".select", m["select"])
		if err != nil {
			return nil, err
		}
		return &ast.SubSelect{Select: sub, Alias: alias}, nil
	default:
		return nil, errorf(path, "one of table or select is required")
	}
}

func decodeJoin(path string, v any) (ast.Join, error) {
	m, err := object(path, v, "type", "from", "on")
	if err != nil {
		return ast.Join{}, err
	}
	typ, err := optionalText(path+".type", m["type"])
	if err != nil {
		return ast.Join{}, err
	}
	join := ast.Join{}
	switch strings.ToLower(typ) {
	case "", "inner":
		join.Type = ast.JoinInner
	case "left":
		join.Type = ast.JoinLeft
	case "right":
		join.Type = ast.JoinRight
	default:
		return ast.Join{}, errorf(path+".type", "unknown join type %q", typ)
	}
	f, ok := m["from"]
	if !ok || f == nil {
		return ast.Join{}, errorf(path+".from", "required")
	}
	if join.Right, err = decodeFrom(path+".from", f); err != nil {
		return ast.Join{}, err
	}
	if join.On, err = optionalExpr(path+".on", m, "on"); err != nil {
		return ast.Join{}, err
	}
	return join, nil
}

// decodeOrder accepts either {expr, desc} or a bare expression.
func decodeOrder(path string, v any) (ast.OrderByElement, error) {
	if m, ok := v.(map[string]any); ok {
		if _, wrapped := m["expr"]; wrapped {
			m, err := object(path, m, "expr", "desc")
			if err != nil {
				return ast.OrderByElement{}, err
			}
			e, err := decodeExpr(path+".expr", m["expr"])
			if err != nil {
				return ast.OrderByElement{}, err
			}
			desc, err := flag(path+".desc", m["desc"])
			if err != nil {
				return ast.OrderByElement{}, err
			}
			return ast.OrderByElement{Expr: e, Desc: desc}, nil
		}
	}
	e, err := decodeExpr(path, v)
	if err != nil {
		return ast.OrderByElement{}, err
	}
	return ast.OrderByElement{Expr: e}, nil
}

func decodeExpr(path string, v any) (ast.Expr, error) {
	switch x := v.(type) {
	case nil:
		return &ast.NullValue{}, nil
	case bool:
		return &ast.BoolValue{Value: x}, nil
	case string:
		return shorthand(path, x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return &ast.LongValue{Value: i}, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, errorf(path, "invalid number %s", x)
		}
		return &ast.DoubleValue{Value: f}, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		i, err := cast.ToInt64E(x)
		if err != nil {
			return nil, errorf(path, "%v", err)
		}
		return &ast.LongValue{Value: i}, nil
	case float32, float64:
		f, err := cast.ToFloat64E(x)
		if err != nil {
			return nil, errorf(path, "%v", err)
		}
		return &ast.DoubleValue{Value: f}, nil
	case map[string]any:
		return decodeExprMap(path, x)
	default:
		return nil, errorf(path, "expected an expression, got %s", kindOf(v))
	}
}

func shorthand(path, s string) (ast.Expr, error) {
	switch {
	case s == "":
		return nil, errorf(path, "empty expression")
	case len(s) >= 2 && strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'"):
		return &ast.StringValue{Value: strings.ReplaceAll(s[1:len(s)-1], "''", "'")}, nil
	case s == "*":
		return &ast.AllColumns{}, nil
	}
	table, name, qualified := strings.Cut(s, ".")
	if !qualified {
		return &ast.Column{Name: s}, nil
	}
	if table == "" || name == "" {
		return nil, errorf(path, "malformed column reference %q", s)
	}
	if name == "*" {
		return &ast.AllColumns{Table: table}, nil
	}
	return &ast.Column{Table: table, Name: name}, nil
}

func decodeExprMap(path string, m map[string]any) (ast.Expr, error) {
	var kinds []string
	for k := range m {
		if _, ok := exprKinds[k]; ok {
			kinds = append(kinds, k)
		}
	}
	slices.Sort(kinds)
	switch len(kinds) {
	case 0:
		return nil, errorf(path, "unknown expression, expected one of %s", strings.Join(sortedKinds(), ", "))
	case 1:
	default:
		return nil, errorf(path, "ambiguous expression, found %s", strings.Join(kinds, " and "))
	}
	kind := kinds[0]
	if _, err := object(path, m, append([]string{kind}, exprKinds[kind]...)...); err != nil {
		return nil, err
	}
	at := path + "." + kind

	switch kind {
	case "column":
		name, err := text(at, m["column"])
		if err != nil {
			return nil, err
		}
		table, err := optionalText(path+".table", m["table"])
		if err != nil {
			return nil, err
		}
		return &ast.Column{Table: table, Name: name}, nil

	case "string":
		s, err := cast.ToStringE(m["string"])
		if err != nil {
			return nil, errorf(at, "%v", err)
		}
		return &ast.StringValue{Value: s}, nil

	case "long":
		i, err := cast.ToInt64E(plain(m["long"]))
		if err != nil {
			return nil, errorf(at, "%v", err)
		}
		return &ast.LongValue{Value: i}, nil

	case "double":
		f, err := cast.ToFloat64E(plain(m["double"]))
		if err != nil {
			return nil, errorf(at, "%v", err)
		}
		return &ast.DoubleValue{Value: f}, nil

	case "bool":
		b, err := cast.ToBoolE(m["bool"])
		if err != nil {
			return nil, errorf(at, "%v", err)
		}
		return &ast.BoolValue{Value: b}, nil

	case "func":
		name, err := text(at, m["func"])
		if err != nil {
			return nil, err
		}
		args, err := exprList(path+".args", m["args"])
		if err != nil {
			return nil, err
		}
		star, err := flag(path+".star", m["star"])
		if err != nil {
			return nil, err
		}
		return &ast.Func{Name: name, Args: args, Star: star}, nil

	case "op":
		op, err := text(at, m["op"])
		if err != nil {
			return nil, err
		}
		left, err := requiredExpr(path+".left", m, "left")
		if err != nil {
			return nil, err
		}
		right, err := requiredExpr(path+".right", m, "right")
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Op: op, Left: left, Right: right}, nil

	case "not":
		inner, err := decodeExpr(at, m["not"])
		if err != nil {
			return nil, err
		}
		return &ast.Not{Expr: inner}, nil

	case "is_null":
		inner, err := decodeExpr(at, m["is_null"])
		if err != nil {
			return nil, err
		}
		negate, err := flag(path+".negate", m["negate"])
		if err != nil {
			return nil, err
		}
		return &ast.IsNull{Expr: inner, Negate: negate}, nil

	case "between":
		inner, err := decodeExpr(at, m["between"])
		if err != nil {
			return nil, err
		}
		low, err := requiredExpr(path+".low", m, "low")
		if err != nil {
			return nil, err
		}
		high, err := requiredExpr(path+".high", m, "high")
		if err != nil {
			return nil, err
		}
		negate, err := flag(path+".negate", m["negate"])
		if err != nil {
			return nil, err
		}
		return &ast.Between{Expr: inner, Low: low, High: high, Negate: negate}, nil

	default: // in
		inner, err := decodeExpr(at, m["in"])
		if err != nil {
			return nil, err
		}
		values, err := list(path+".list", m["list"])
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, errorf(path+".list", "at least one value is required")
		}
		exprs, err := exprList(path+".list", values)
		if err != nil {
			return nil, err
		}
		negate, err := flag(path+".negate", m["negate"])
		if err != nil {
			return nil, err
		}
		return &ast.In{Expr: inner, List: exprs, Negate: negate}, nil
	}
}

func sortedKinds() []string {
	kinds := make([]string, 0, len(exprKinds))
	for k := range exprKinds {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// exprList decodes a list of expressions. A single expression is accepted
// where a list is expected.
func exprList(path string, v any) ([]ast.Expr, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		e, err := decodeExpr(path, v)
		if err != nil {
			return nil, err
		}
		return []ast.Expr{e}, nil
	}
	out := make([]ast.Expr, 0, len(items))
	for i, item := range items {
		e, err := decodeExpr(fmt.Sprintf("%s[%d]", path, i), item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func optionalExpr(path string, m map[string]any, key string) (ast.Expr, error) {
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	return decodeExpr(path, v)
}

func requiredExpr(path string, m map[string]any, key string) (ast.Expr, error) {
	if _, ok := m[key]; !ok {
		return nil, errorf(path, "required")
	}
	return decodeExpr(path, m[key])
}

// object asserts v is a map holding only the allowed keys.
func object(path string, v any, allowed ...string) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errorf(path, "expected a map, got %s", kindOf(v))
	}
	var unknown []string
	for k := range m {
		if !slices.Contains(allowed, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, errorf(joinKey(path, unknown[0]), "unknown field")
	}
	return m, nil
}

func list(path string, v any) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, errorf(path, "expected a list, got %s", kindOf(v))
	}
	return items, nil
}

func text(path string, v any) (string, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", errorf(path, "expected a non-empty string, got %s", kindOf(v))
	}
	return s, nil
}

func optionalText(path string, v any) (string, error) {
	if v == nil {
		return "", nil
	}
	return text(path, v)
}

func flag(path string, v any) (bool, error) {
	if v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, errorf(path, "expected a bool, got %s", kindOf(v))
	}
	return b, nil
}

// plain unwraps JSON numbers for cast.
func plain(v any) any {
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	return v
}

// normalize replaces JSON numbers in a decoded tree with int64 or float64.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, item := range x {
			x[k] = normalize(item)
		}
		return x
	case []any:
		for i, item := range x {
			x[i] = normalize(item)
		}
		return x
	default:
		return v
	}
}

func joinKey(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case []any:
		return "list"
	case map[string]any:
		return "map"
	case json.Number, int, int64, uint64, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
