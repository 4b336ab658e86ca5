package value

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"
	"unicode/utf16"

	"github.com/spf13/cast"
	"golang.org/x/text/unicode/norm"
)

// Object is an ordered, string-keyed container that canonical encoding and
// field access treat like a map.
type Object interface {
	Keys() []string
	Get(key string) (any, bool)
}

// Canonical encodes v as canonical JSON: object keys sorted by UTF-16 code
// units, strings NFC normalized, no HTML escaping, no insignificant
// whitespace. Integral floats encode like integers so 3 and 3.0 produce the
// same key.
func Canonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Key returns the canonical encoding of v as a string, suitable as a map key
// for grouping and de-duplication. Values that cannot be encoded fall back to
// their fmt representation.
func Key(v any) string {
	b, err := Canonical(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(b)
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		writeString(buf, val)
	case []byte:
		writeString(buf, string(val))
	case float32:
		return writeFloat(buf, float64(val))
	case float64:
		return writeFloat(buf, val)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		buf.WriteString(cast.ToString(val))
	case time.Time:
		writeString(buf, val.UTC().Format(time.RFC3339Nano))
	case time.Duration:
		writeString(buf, val.String())
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		return writeObject(buf, keys, func(k string) any { return val[k] })
	case Object:
		return writeObject(buf, val.Keys(), func(k string) any {
			elem, _ := val.Get(k)
			return elem
		})
	default:
		if m, err := cast.ToStringMapE(v); err == nil {
			return writeCanonical(buf, m)
		}
		if s, err := cast.ToSliceE(v); err == nil {
			return writeCanonical(buf, s)
		}
		if s, err := cast.ToStringE(v); err == nil {
			writeString(buf, s)
			return nil
		}
		return fmt.Errorf("unsupported type for canonical encoding: %T", v)
	}
	return nil
}

func writeObject(buf *bytes.Buffer, keys []string, get func(string) any) error {
	keys = slices.Clone(keys)
	slices.SortFunc(keys, compareUTF16)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, k)
		buf.WriteByte(':')
		if err := writeCanonical(buf, get(k)); err != nil {
			return fmt.Errorf("object[%q]: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("non-finite number: %v", f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		buf.WriteString(strconv.FormatInt(int64(f), 10))
		return nil
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

// writeString escapes only quote, backslash and control characters.
// U+2028 and U+2029 stay literal.
func writeString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

func sortStrings(s []string) {
	slices.SortFunc(s, compareUTF16)
}

// compareUTF16 orders strings by UTF-16 code units (RFC 8785), which differs
// from Go's byte-wise string comparison for characters outside the BMP.
func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}
