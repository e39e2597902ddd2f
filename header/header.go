// Package header holds request header and trailer fields in the two shapes a
// mock request exposes: a canonical map keyed by lower-cased name, and the raw
// name/value sequence in the order the caller supplied.
package header

import (
	"fmt"
	"strings"
)

// Field is a single input header. A nil Value marks the field as undefined and
// it is skipped during population.
type Field struct {
	Name  string
	Value any
}

// Fields is an ordered list of input headers.
type Fields []Field

// Pairs builds Fields from alternating name and value arguments. A trailing
// name without a value is treated as undefined.
func Pairs(kv ...any) Fields {
	fields := make(Fields, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		f := Field{Name: fmt.Sprint(kv[i])}
		if i+1 < len(kv) {
			f.Value = kv[i+1]
		}
		fields = append(fields, f)
	}
	return fields
}

// Map is the canonical header map. Keys are always lower-case.
type Map map[string]string

// Get returns the value for key, matched case-insensitively.
func (m Map) Get(key string) string {
	if m == nil {
		return ""
	}
	return m[strings.ToLower(key)]
}

// Has reports whether key is present, matched case-insensitively.
func (m Map) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m[strings.ToLower(key)]
	return ok
}

// Set stores value under the lower-cased key.
func (m Map) Set(key, value string) {
	m[strings.ToLower(key)] = value
}

// Del removes key.
func (m Map) Del(key string) {
	delete(m, strings.ToLower(key))
}

// Clone returns a copy of m. The copy of a nil Map is an empty Map.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Stringify converts a field value to its string form. It reports false for
// nil, which callers treat as an undefined field.
func Stringify(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case []byte:
		return string(val), true
	default:
		return fmt.Sprint(val), true
	}
}

// Populate converts fields into a canonical Map and a raw sequence holding the
// original name followed by the stringified value for every defined field, in
// input order. The raw sequence therefore always has an even length.
func Populate(fields Fields) (Map, []string) {
	m := make(Map, len(fields))
	raw := make([]string, 0, len(fields)*2)

	for _, f := range fields {
		val, ok := Stringify(f.Value)
		if !ok {
			continue
		}
		m[strings.ToLower(f.Name)] = val
		raw = append(raw, f.Name, val)
	}

	return m, raw
}
