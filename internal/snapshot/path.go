package snapshot

import (
	"reflect"
	"strings"
)

// Lookup resolves a dotted path ("a.b.c") inside nested JSON objects.
// Returns false when any segment is missing or not an object.
func Lookup(m map[string]any, path string) (any, bool) {
	if path == "" {
		return m, true
	}
	var cur any = m
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// MatchArgs reports whether every dotted-path key of args resolves in params
// to an equal value. Empty args match everything.
func MatchArgs(params map[string]any, args map[string]any) bool {
	for path, want := range args {
		got, ok := Lookup(params, path)
		if !ok || !ValuesEqual(got, want) {
			return false
		}
	}
	return true
}

// ValuesEqual compares decoded JSON values, treating all numeric types alike.
func ValuesEqual(a, b any) bool {
	if fa, ok := AsFloat(a); ok {
		fb, ok := AsFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// AsFloat converts a decoded numeric value to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}
