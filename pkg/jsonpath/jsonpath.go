// Package jsonpath reads values out of decoded JSON trees without ever failing.
//
// Supported path syntax:
//   - Nested fields: "masterVariant.sku"
//   - Array indices: "images[0]", "lineItems[-1]" (negative counts from the end)
//   - Array wildcards: "categories[*].id"
//
// Every accessor is total: a missing key, a wrong type or a malformed path
// yields the zero value and false, never a panic.
package jsonpath

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Segment represents a single segment in a path
type Segment struct {
	Field string
	Type  SegmentType
	Index int // For array indices
}

type SegmentType int

const (
	FieldSegment  SegmentType = iota // Regular field access
	ArrayIndex                       // Specific array index [0], [-1]
	ArrayWildcard                    // Array wildcard [*]
)

// Lookup extracts the value at path from data.
func Lookup(data any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	segments, err := Parse(path)
	if err != nil {
		return nil, false
	}

	return traverse(data, segments)
}

// Parse converts a string path into structured segments
func Parse(path string) ([]Segment, error) {
	var segments []Segment

	// Handle paths that start with array notation (e.g., "[0].field")
	if strings.HasPrefix(path, "[") {
		path = "." + path
	}

	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}

		idx := strings.Index(part, "[")
		if idx == -1 {
			segments = append(segments, Segment{Field: part, Type: FieldSegment})
			continue
		}

		if idx > 0 {
			segments = append(segments, Segment{Field: part[:idx], Type: FieldSegment})
		}

		remaining := part[idx:]
		for len(remaining) > 0 {
			if !strings.HasPrefix(remaining, "[") {
				return nil, fmt.Errorf("invalid syntax after bracket: %s", part)
			}

			endIdx := strings.Index(remaining, "]")
			if endIdx == -1 {
				return nil, fmt.Errorf("unclosed bracket in path: %s", part)
			}

			indexStr := remaining[1:endIdx]
			if indexStr == "*" {
				segments = append(segments, Segment{Type: ArrayWildcard})
			} else {
				index, err := strconv.Atoi(indexStr)
				if err != nil {
					return nil, fmt.Errorf("invalid array index: %s", indexStr)
				}
				segments = append(segments, Segment{Type: ArrayIndex, Index: index})
			}

			// Chained access like [0][1] keeps looping
			remaining = remaining[endIdx+1:]
		}
	}

	return segments, nil
}

// traverse walks through data following the path segments
func traverse(data any, segments []Segment) (any, bool) {
	current := data

	for i, segment := range segments {
		switch segment.Type {
		case FieldSegment:
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			val, ok := m[segment.Field]
			if !ok {
				return nil, false
			}
			current = val

		case ArrayIndex:
			arr, ok := current.([]any)
			if !ok {
				return nil, false
			}

			index := segment.Index
			if index < 0 {
				index = len(arr) + index
			}
			if index < 0 || index >= len(arr) {
				return nil, false
			}
			current = arr[index]

		case ArrayWildcard:
			arr, ok := current.([]any)
			if !ok {
				return nil, false
			}

			// Trailing wildcard returns the whole array
			if i == len(segments)-1 {
				return arr, true
			}

			results := make([]any, 0, len(arr))
			rest := segments[i+1:]
			for _, elem := range arr {
				result, ok := traverse(elem, rest)
				if !ok {
					continue
				}
				// Nested wildcards flatten
				if nested, isArr := result.([]any); isArr && hasWildcard(rest) {
					results = append(results, nested...)
				} else {
					results = append(results, result)
				}
			}
			return results, true
		}
	}

	return current, true
}

func hasWildcard(segments []Segment) bool {
	for _, s := range segments {
		if s.Type == ArrayWildcard {
			return true
		}
	}
	return false
}

// String returns the string at path. Numbers and booleans are formatted;
// null, objects and arrays count as missing.
func String(data any, path string) (string, bool) {
	v, ok := Lookup(data, path)
	if !ok {
		return "", false
	}
	return scalarString(v)
}

// StringOr returns the string at path or def.
func StringOr(data any, path, def string) string {
	if s, ok := String(data, path); ok {
		return s
	}
	return def
}

// Int64 returns the integer at path. Fractional numbers count as missing.
func Int64(data any, path string) (int64, bool) {
	v, ok := Lookup(data, path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// Map returns the object at path.
func Map(data any, path string) (map[string]any, bool) {
	v, ok := Lookup(data, path)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// Slice returns the array at path.
func Slice(data any, path string) ([]any, bool) {
	v, ok := Lookup(data, path)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	return arr, ok
}

// Strings collects the scalar strings at path, typically a wildcard path such
// as "categories[*].id". Non-scalar entries are skipped. The result is never nil.
func Strings(data any, path string) []string {
	out := []string{}
	v, ok := Lookup(data, path)
	if !ok {
		return out
	}
	arr, ok := v.([]any)
	if !ok {
		if s, ok := scalarString(v); ok {
			out = append(out, s)
		}
		return out
	}
	for _, elem := range arr {
		if s, ok := scalarString(elem); ok {
			out = append(out, s)
		}
	}
	return out
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	default:
		return "", false
	}
}
