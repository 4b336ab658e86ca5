package ast

// Expr is any scalar or predicate expression.
type Expr interface {
	exprNode()
	String() string
}

// FromItem is a row source in FROM or on the right side of a JOIN.
type FromItem interface {
	fromNode()
	String() string
	// AliasName is the name records from this source are bound to.
	AliasName() string
}

// Select is a full SELECT statement. Nil/empty clauses are absent.
type Select struct {
	Distinct *Distinct
	Items    []SelectItem
	From     FromItem
	Joins    []Join
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderByElement
	Limit    Expr
	Offset   Expr
}

// SelectItem is one projected expression. Alias is empty when none was given.
type SelectItem struct {
	Expr  Expr
	Alias string
}

// Distinct marks SELECT DISTINCT. On lists DISTINCT ON expressions; empty
// means the whole output row is the key.
type Distinct struct {
	On []Expr
}

// JoinType selects join semantics.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
)

// String returns the SQL keyword of the join type.
func (t JoinType) String() string {
	switch t {
	case JoinLeft:
		return "LEFT"
	case JoinRight:
		return "RIGHT"
	default:
		return "INNER"
	}
}

// Join is one JOIN clause. A nil On joins every pair.
type Join struct {
	Type  JoinType
	Right FromItem
	On    Expr
}

// OrderByElement is one ORDER BY key.
type OrderByElement struct {
	Expr Expr
	Desc bool
}

// Table references a named data source.
//
// Semantics:
//
//	FROM <name> [<alias>]
//
// Records produced from the table are bound to Alias, or to Name when no
// alias is given.
type Table struct {
	Name  string
	Alias string
}

func (*Table) fromNode() {}

// AliasName returns Alias, falling back to Name.
func (t *Table) AliasName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// SubSelect is a parenthesized SELECT used as a row source.
//
// Semantics:
//
//	FROM (<select>) <alias>
//	JOIN (<select>) <alias> ON ...
//
// In FROM, the sub-select's output rows become records bound to Alias. In a
// JOIN, the sub-select is correlated: it runs once per left record with the
// left record's values visible to it.
type SubSelect struct {
	Select *Select
	Alias  string
}

func (*SubSelect) fromNode() {}

// AliasName returns Alias.
func (s *SubSelect) AliasName() string { return s.Alias }

// Column references a field, optionally qualified by a source alias.
// Name may be a dotted path into nested values.
type Column struct {
	Table string
	Name  string
}

func (*Column) exprNode() {}

// AllColumns is `*` or `<table>.*` in a select list.
type AllColumns struct {
	Table string
}

func (*AllColumns) exprNode() {}

// Func is a function call. Star marks `name(*)`.
//
// The function name selects a feature from the registry: a scalar value-map
// feature, an aggregate, a filter, or (in GROUP BY) a grouping feature such
// as `_window`.
type Func struct {
	Name string
	Args []Expr
	Star bool
}

func (*Func) exprNode() {}

// Binary is a binary operator expression. Op is the operator text
// ("=", ">", "+", "AND", "LIKE", ...); it is also the feature name the
// operator dispatches to.
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

func (*Binary) exprNode() {}

// Not negates a predicate.
type Not struct {
	Expr Expr
}

func (*Not) exprNode() {}

// IsNull is `<expr> IS [NOT] NULL`.
type IsNull struct {
	Expr   Expr
	Negate bool
}

func (*IsNull) exprNode() {}

// Between is `<expr> [NOT] BETWEEN <low> AND <high>`, inclusive.
type Between struct {
	Expr   Expr
	Low    Expr
	High   Expr
	Negate bool
}

func (*Between) exprNode() {}

// In is `<expr> [NOT] IN (<list>)`.
type In struct {
	Expr   Expr
	List   []Expr
	Negate bool
}

func (*In) exprNode() {}

// LongValue is an integer literal.
type LongValue struct {
	Value int64
}

func (*LongValue) exprNode() {}

// DoubleValue is a floating point literal.
type DoubleValue struct {
	Value float64
}

func (*DoubleValue) exprNode() {}

// StringValue is a string literal.
type StringValue struct {
	Value string
}

func (*StringValue) exprNode() {}

// BoolValue is a boolean literal.
type BoolValue struct {
	Value bool
}

func (*BoolValue) exprNode() {}

// NullValue is the NULL literal.
type NullValue struct{}

func (*NullValue) exprNode() {}

// Literal reports the Go value of a literal expression.
func Literal(e Expr) (any, bool) {
	switch v := e.(type) {
	case *LongValue:
		return v.Value, true
	case *DoubleValue:
		return v.Value, true
	case *StringValue:
		return v.Value, true
	case *BoolValue:
		return v.Value, true
	case *NullValue:
		return nil, true
	default:
		return nil, false
	}
}
