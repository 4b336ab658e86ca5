package record

import "slices"

// Values is an insertion-ordered string map. A nil *Values is empty.
//
// Values implements value.Object, so canonical encoding and field access
// treat it like a map.
type Values struct {
	keys []string
	m    map[string]any
}

// NewValues returns an empty Values.
func NewValues() *Values {
	return &Values{m: make(map[string]any)}
}

// ValuesOf builds Values from alternating key, value pairs.
func ValuesOf(pairs ...any) *Values {
	v := NewValues()
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Set(pairs[i].(string), pairs[i+1])
	}
	return v
}

// Set adds or replaces key. New keys are appended to the order.
func (v *Values) Set(key string, val any) {
	if _, ok := v.m[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.m[key] = val
}

// SetIfAbsent adds key only when it is not already present.
func (v *Values) SetIfAbsent(key string, val any) bool {
	if _, ok := v.m[key]; ok {
		return false
	}
	v.Set(key, val)
	return true
}

// Get returns the value for key.
func (v *Values) Get(key string) (any, bool) {
	if v == nil {
		return nil, false
	}
	val, ok := v.m[key]
	return val, ok
}

// Keys returns the keys in insertion order.
func (v *Values) Keys() []string {
	if v == nil {
		return nil
	}
	return slices.Clone(v.keys)
}

// Len returns the number of keys.
func (v *Values) Len() int {
	if v == nil {
		return 0
	}
	return len(v.keys)
}

// Clone returns an independent copy.
func (v *Values) Clone() *Values {
	out := &Values{m: make(map[string]any, v.Len())}
	if v == nil {
		return out
	}
	out.keys = slices.Clone(v.keys)
	for k, val := range v.m {
		out.m[k] = val
	}
	return out
}

// Delete removes key.
func (v *Values) Delete(key string) {
	if _, ok := v.m[key]; !ok {
		return
	}
	delete(v.m, key)
	v.keys = slices.DeleteFunc(v.keys, func(k string) bool { return k == key })
}

// Map returns a plain map copy.
func (v *Values) Map() map[string]any {
	out := make(map[string]any, v.Len())
	if v == nil {
		return out
	}
	for k, val := range v.m {
		out[k] = val
	}
	return out
}
