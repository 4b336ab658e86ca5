package value

import (
	"reflect"
	"strings"
)

// Field returns the named field of a map-like value.
func Field(v any, name string) (any, bool) {
	switch m := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		f, ok := m[name]
		return f, ok
	case Object:
		return m.Get(name)
	case map[string]string:
		f, ok := m[name]
		return f, ok
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		f := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !f.IsValid() {
			return nil, false
		}
		return f.Interface(), true
	}
	return nil, false
}

// Path walks a dotted path ("a.b.c") through nested map-like values.
func Path(v any, path string) (any, bool) {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		next, ok := Field(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// IsMap reports whether v supports field access.
func IsMap(v any) bool {
	switch v.(type) {
	case map[string]any, Object, map[string]string:
		return true
	case nil:
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
}

// Fields returns the keys and values of a map-like value. Plain maps are
// returned in sorted key order; Objects keep their own order.
func Fields(v any) ([]string, map[string]any) {
	switch m := v.(type) {
	case Object:
		keys := m.Keys()
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			out[k], _ = m.Get(k)
		}
		return keys, out
	case map[string]any:
		return sortedKeys(m), m
	}

	if !IsMap(v) {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return sortedKeys(out), out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortStrings(keys)
	return keys
}
