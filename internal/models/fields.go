// Package models provides data model definitions for the tripcore library.
package models

// Fields is the generic document representation exchanged with the remote
// document store. Values survive a JSON round trip, so numeric fields may
// come back as float64.
type Fields map[string]any

// StringField returns the string value for key, or "" when absent or not a
// string.
func (f Fields) StringField(key string) string {
	if v, ok := f[key].(string); ok {
		return v
	}
	return ""
}

// BoolField returns the bool value for key, or false when absent.
func (f Fields) BoolField(key string) bool {
	if v, ok := f[key].(bool); ok {
		return v
	}
	return false
}

// Int64Field returns the integer value for key, tolerating the float64
// representation produced by JSON decoding.
func (f Fields) Int64Field(key string) int64 {
	switch v := f[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Clone returns a shallow copy of the field set.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
