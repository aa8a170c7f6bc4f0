package condition

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// present is the shared definition behind exists/is_not_empty: not nil and
// not the empty string.
func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return !rv.IsNil()
	}
	return true
}

// equal compares without cross-type coercion, except that all numeric kinds
// compare by value so 3 (int) equals 3.0 (float64 from JSON).
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, ok := numeric(a); ok {
		bn, ok := numeric(b)
		return ok && an == bn
	}
	if _, ok := numeric(b); ok {
		return false
	}
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// numeric returns the float64 value of Go and JSON number types only.
// Strings are not numbers here; see toNumber for coercion.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// toNumber coerces numbers and numeric strings. Anything else fails.
func toNumber(v any) (float64, bool) {
	if n, ok := numeric(v); ok {
		return n, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

// sequence returns the elements of slice-like values.
func sequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func member(items []any, needle any) bool {
	for _, item := range items {
		if equal(item, needle) {
			return true
		}
	}
	return false
}

func normalize(v any) any {
	switch s := v.(type) {
	case []string:
		items, _ := sequence(s)
		return items
	case map[string]string:
		out := make(map[string]any, len(s))
		for k, item := range s {
			out[k] = item
		}
		return out
	default:
		return v
	}
}
