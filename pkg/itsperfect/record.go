package itsperfect

import (
	"encoding/json"
	"strconv"
)

// Record is one raw API record: a mapping of field name to scalar or nested
// object, as decoded from the JSON response (numbers kept as json.Number).
// All accessors are total: a missing field or a field of the wrong shape
// yields the accessor's explicit absent value, never a panic.
type Record map[string]any

// Object is a nested mapping inside a Record. A nil Object is valid and all
// its accessors report absent.
type Object map[string]any

// Str returns the named scalar field rendered as a string, or "" when the
// field is missing, null, or not a scalar.
func (r Record) Str(field string) string {
	return scalarString(r[field])
}

// Int returns the named field as an integer enum code.
func (r Record) Int(field string) (int64, bool) {
	return scalarInt(r[field])
}

// Object returns the named nested object, or nil when the field is missing
// or not an object.
func (r Record) Object(field string) Object {
	if m, ok := r[field].(map[string]any); ok {
		return Object(m)
	}
	return nil
}

// List returns the named nested collection, keeping only object elements.
// Missing or non-list fields yield nil.
func (r Record) List(field string) []Object {
	raw, ok := r[field].([]any)
	if !ok {
		return nil
	}
	out := make([]Object, 0, len(raw))
	for _, el := range raw {
		if m, ok := el.(map[string]any); ok {
			out = append(out, Object(m))
		}
	}
	return out
}

// Str returns the named field of a nested object as a string, or "" when the
// object or the field is absent.
func (o Object) Str(field string) string {
	if o == nil {
		return ""
	}
	return scalarString(o[field])
}

// Has reports whether the object carries a non-null value for the field.
func (o Object) Has(field string) bool {
	if o == nil {
		return false
	}
	v, ok := o[field]
	return ok && v != nil
}

// Object returns a nested object of a nested object (payment_method and the
// like), or nil.
func (o Object) Object(field string) Object {
	if o == nil {
		return nil
	}
	if m, ok := o[field].(map[string]any); ok {
		return Object(m)
	}
	return nil
}

func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

func scalarInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
