package ast

import (
	"strconv"
	"strings"
)

func (t *Table) String() string {
	if t.Alias != "" && t.Alias != t.Name {
		return t.Name + " " + t.Alias
	}
	return t.Name
}

func (s *SubSelect) String() string {
	inner := "<nil>"
	if s.Select != nil {
		inner = s.Select.String()
	}
	text := "(" + inner + ")"
	if s.Alias != "" {
		text += " " + s.Alias
	}
	return text
}

func (c *Column) String() string {
	if c.Table != "" {
		return c.Table + "." + c.Name
	}
	return c.Name
}

func (a *AllColumns) String() string {
	if a.Table != "" {
		return a.Table + ".*"
	}
	return "*"
}

func (f *Func) String() string {
	if f.Star {
		return f.Name + "(*)"
	}
	return f.Name + "(" + joinExprs(f.Args) + ")"
}

func (b *Binary) String() string {
	p := precedence(b.Op)
	left := b.Left.String()
	if precedenceOf(b.Left) < p {
		left = "(" + left + ")"
	}
	right := b.Right.String()
	if precedenceOf(b.Right) <= p {
		right = "(" + right + ")"
	}
	return left + " " + b.Op + " " + right
}

func (n *Not) String() string {
	inner := n.Expr.String()
	if _, ok := n.Expr.(*Binary); ok {
		inner = "(" + inner + ")"
	}
	return "NOT " + inner
}

func (n *IsNull) String() string {
	if n.Negate {
		return n.Expr.String() + " IS NOT NULL"
	}
	return n.Expr.String() + " IS NULL"
}

func (b *Between) String() string {
	kw := " BETWEEN "
	if b.Negate {
		kw = " NOT BETWEEN "
	}
	return b.Expr.String() + kw + b.Low.String() + " AND " + b.High.String()
}

func (in *In) String() string {
	kw := " IN ("
	if in.Negate {
		kw = " NOT IN ("
	}
	return in.Expr.String() + kw + joinExprs(in.List) + ")"
}

func (l *LongValue) String() string { return strconv.FormatInt(l.Value, 10) }

func (d *DoubleValue) String() string {
	s := strconv.FormatFloat(d.Value, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func (s *StringValue) String() string {
	return "'" + strings.ReplaceAll(s.Value, "'", "''") + "'"
}

func (b *BoolValue) String() string { return strconv.FormatBool(b.Value) }

func (*NullValue) String() string { return "NULL" }

// String renders the statement as SQL text.
func (s *Select) String() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if s.Distinct != nil {
		b.WriteString("DISTINCT ")
		if len(s.Distinct.On) > 0 {
			b.WriteString("ON (" + joinExprs(s.Distinct.On) + ") ")
		}
	}
	for i, item := range s.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(item.Expr.String())
		if item.Alias != "" {
			b.WriteString(" AS " + item.Alias)
		}
	}
	if s.From != nil {
		b.WriteString(" FROM " + s.From.String())
	}
	for _, j := range s.Joins {
		b.WriteString(" " + j.Type.String() + " JOIN " + j.Right.String())
		if j.On != nil {
			b.WriteString(" ON " + j.On.String())
		}
	}
	if s.Where != nil {
		b.WriteString(" WHERE " + s.Where.String())
	}
	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY " + joinExprs(s.GroupBy))
	}
	if s.Having != nil {
		b.WriteString(" HAVING " + s.Having.String())
	}
	for i, o := range s.OrderBy {
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(o.Expr.String())
		if o.Desc {
			b.WriteString(" DESC")
		}
	}
	if s.Limit != nil {
		b.WriteString(" LIMIT " + s.Limit.String())
	}
	if s.Offset != nil {
		b.WriteString(" OFFSET " + s.Offset.String())
	}
	return b.String()
}

// ItemAlias returns the output name of a select item: the explicit alias, or
// the expression text with one surrounding pair of double quotes removed.
func ItemAlias(item SelectItem) string {
	if item.Alias != "" {
		return Unquote(item.Alias)
	}
	return Unquote(item.Expr.String())
}

// Unquote strips a single layer of surrounding double quotes.
func Unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func joinExprs(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

func precedence(op string) int {
	switch strings.ToUpper(op) {
	case "OR":
		return 1
	case "AND":
		return 2
	case "=", "!=", "<>", ">", ">=", "<", "<=", "LIKE", "NOT LIKE":
		return 3
	case "+", "-", "||":
		return 4
	case "*", "/", "%":
		return 5
	default:
		return 6
	}
}

// precedenceOf treats everything but binary operators as atomic.
func precedenceOf(e Expr) int {
	if b, ok := e.(*Binary); ok {
		return precedence(b.Op)
	}
	return 7
}
