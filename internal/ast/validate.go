package ast

import (
	"errors"
	"fmt"
)

// ValidationError reports a structurally malformed statement.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate checks that a statement is well formed: a non-empty select list,
// no nil expressions, AllColumns only at the top of a select item, and
// aliases on joined sub-selects. It does not check that features exist;
// that happens at compile time against a registry.
//
// All problems are returned together, joined with errors.Join.
func Validate(sel *Select) error {
	v := &validator{}
	v.validateSelect("select", sel)
	return errors.Join(v.errs...)
}

type validator struct {
	errs []error
}

func (v *validator) addError(path, format string, args ...any) {
	v.errs = append(v.errs, &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) validateSelect(path string, sel *Select) {
	if sel == nil {
		v.addError(path, "nil select")
		return
	}
	if len(sel.Items) == 0 {
		v.addError(path+".items", "select list is empty")
	}
	for i, item := range sel.Items {
		p := fmt.Sprintf("%s.items[%d]", path, i)
		if _, ok := item.Expr.(*AllColumns); ok {
			if item.Alias != "" {
				v.addError(p, "%s cannot be aliased", item.Expr)
			}
			continue
		}
		v.validateExpr(p, item.Expr)
	}

	if sel.From != nil {
		v.validateFrom(path+".from", sel.From)
	}
	for i, j := range sel.Joins {
		p := fmt.Sprintf("%s.joins[%d]", path, i)
		if j.Right == nil {
			v.addError(p, "join without a source")
			continue
		}
		v.validateFrom(p+".from", j.Right)
		if sub, ok := j.Right.(*SubSelect); ok && sub.Alias == "" {
			v.addError(p, "joined sub-select requires an alias")
		}
		if j.On != nil {
			v.validateExpr(p+".on", j.On)
		}
	}

	v.validateOptional(path+".where", sel.Where)
	for i, g := range sel.GroupBy {
		v.validateExpr(fmt.Sprintf("%s.group_by[%d]", path, i), g)
	}
	v.validateOptional(path+".having", sel.Having)
	for i, o := range sel.OrderBy {
		v.validateExpr(fmt.Sprintf("%s.order_by[%d]", path, i), o.Expr)
	}
	if sel.Distinct != nil {
		for i, e := range sel.Distinct.On {
			v.validateExpr(fmt.Sprintf("%s.distinct.on[%d]", path, i), e)
		}
	}
	v.validateOptional(path+".limit", sel.Limit)
	v.validateOptional(path+".offset", sel.Offset)
}

func (v *validator) validateFrom(path string, item FromItem) {
	switch from := item.(type) {
	case *Table:
		if from.Name == "" {
			v.addError(path, "table name is empty")
		}
	case *SubSelect:
		v.validateSelect(path+".select", from.Select)
	default:
		v.addError(path, "unknown from item %T", item)
	}
}

func (v *validator) validateOptional(path string, e Expr) {
	if e != nil {
		v.validateExpr(path, e)
	}
}

func (v *validator) validateExpr(path string, e Expr) {
	switch expr := e.(type) {
	case nil:
		v.addError(path, "missing expression")
	case *Column:
		if expr.Name == "" {
			v.addError(path, "column name is empty")
		}
	case *AllColumns:
		v.addError(path, "%s is only allowed as a select item", expr)
	case *Func:
		if expr.Name == "" {
			v.addError(path, "function name is empty")
		}
		for i, arg := range expr.Args {
			v.validateExpr(fmt.Sprintf("%s.args[%d]", path, i), arg)
		}
	case *Binary:
		if expr.Op == "" {
			v.addError(path, "operator is empty")
		}
		v.validateExpr(path+".left", expr.Left)
		v.validateExpr(path+".right", expr.Right)
	case *Not:
		v.validateExpr(path+".not", expr.Expr)
	case *IsNull:
		v.validateExpr(path+".is_null", expr.Expr)
	case *Between:
		v.validateExpr(path+".between", expr.Expr)
		v.validateExpr(path+".low", expr.Low)
		v.validateExpr(path+".high", expr.High)
	case *In:
		v.validateExpr(path+".in", expr.Expr)
		for i, item := range expr.List {
			v.validateExpr(fmt.Sprintf("%s.list[%d]", path, i), item)
		}
	case *LongValue, *DoubleValue, *StringValue, *BoolValue, *NullValue:
	default:
		v.addError(path, "unknown expression %T", e)
	}
}
