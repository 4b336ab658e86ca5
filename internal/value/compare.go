package value

import (
	"cmp"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Number is a normalized numeric value. Integers keep full int64 precision;
// everything else is carried as float64.
type Number struct {
	Int   int64
	Float float64
	IsInt bool
}

// Compare orders two numbers, comparing exactly when both are integers.
func (n Number) Compare(o Number) int {
	if n.IsInt && o.IsInt {
		return cmp.Compare(n.Int, o.Int)
	}
	return cmp.Compare(n.Value(), o.Value())
}

// Value returns the number as float64.
func (n Number) Value() float64 {
	if n.IsInt {
		return float64(n.Int)
	}
	return n.Float
}

// Any returns the number as int64 or float64.
func (n Number) Any() any {
	if n.IsInt {
		return n.Int
	}
	return n.Float
}

// AsNumber reports whether v is a Go numeric value (or json.Number) and
// returns it normalized. Strings are not numbers here; see ParseNumber.
func AsNumber(v any) (Number, bool) {
	switch n := v.(type) {
	case int, int8, int16, int32, int64:
		return Number{Int: cast.ToInt64(n), IsInt: true}, true
	case uint, uint8, uint16, uint32:
		return Number{Int: cast.ToInt64(n), IsInt: true}, true
	case uint64:
		if n > math.MaxInt64 {
			return Number{Float: float64(n)}, true
		}
		return Number{Int: int64(n), IsInt: true}, true
	case float32:
		return Number{Float: float64(n)}, true
	case float64:
		return Number{Float: n}, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return Number{Int: i, IsInt: true}, true
		}
		if f, err := n.Float64(); err == nil {
			return Number{Float: f}, true
		}
	}
	return Number{}, false
}

// ParseNumber is AsNumber extended to numeric strings.
func ParseNumber(v any) (Number, bool) {
	if n, ok := AsNumber(v); ok {
		return n, true
	}
	s, ok := v.(string)
	if !ok {
		return Number{}, false
	}
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Number{Int: i, IsInt: true}, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Number{Float: f}, true
	}
	return Number{}, false
}

// Compare returns -1, 0 or +1 ordering a before, equal to, or after b.
//
// nil sorts before every other value. Numbers compare numerically, and a
// number compared with a numeric string compares numerically too. Strings,
// booleans and times compare naturally. Anything else falls back to the
// order of canonical encodings so Compare is total.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if na, ok := AsNumber(a); ok {
		if nb, ok := ParseNumber(b); ok {
			return na.Compare(nb)
		}
	} else if nb, ok := AsNumber(b); ok {
		if na, ok := ParseNumber(a); ok {
			return na.Compare(nb)
		}
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}

	return strings.Compare(Key(a), Key(b))
}

// Equal reports whether a and b compare equal.
func Equal(a, b any) bool {
	return Compare(a, b) == 0
}

// Truthy interprets v as a boolean condition. nil, false, zero numbers, empty
// strings and strings that parse as false are false.
func Truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		if parsed, err := cast.ToBoolE(b); err == nil {
			return parsed
		}
		return b != ""
	}
	if n, ok := AsNumber(v); ok {
		return n.Value() != 0
	}
	return true
}
