// Package project partitions flattened records into declared relational
// columns and a structured overflow, and handles the key-shape conversions
// (camelCase to snake_case, nested sub-record hoisting) that precede it.
package project

import "strings"

// Split partitions a flat snake_case record into declared-column pairs and
// an overflow map of everything else, keyed by original name. The overflow
// map is nil (not empty) when nothing overflows: downstream treats an
// absent extra column differently from an empty one. The id field never
// overflows. An unknown table returns the record unprojected with ok=false
// rather than failing; projection is a migration aid, not a validator.
func Split(table string, record map[string]any) (cols map[string]any, extra map[string]any, ok bool) {
	declared := tableColumns[table]
	if declared == nil {
		cols = make(map[string]any, len(record))
		for k, v := range record {
			cols[k] = v
		}
		return cols, nil, false
	}

	allowed := make(map[string]struct{}, len(declared))
	for _, c := range declared {
		allowed[c] = struct{}{}
	}

	cols = make(map[string]any, len(record))
	for k, v := range record {
		if k == "id" {
			cols[k] = v
			continue
		}
		if _, inSchema := allowed[k]; inSchema {
			cols[k] = v
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}
	return cols, extra, true
}

// SnakeKeys rewrites every map key in the structure from camelCase to
// snake_case, recursively. Values are untouched.
func SnakeKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[SnakeCase(k)] = SnakeKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = SnakeKeys(el)
		}
		return out
	default:
		return v
	}
}

// SnakeCase converts a camelCase identifier to snake_case. Runs of upper
// case letters collapse into one word (orderID -> order_id).
func SnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	runes := []rune(s)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			prevLower := i > 0 && isLowerAlnum(runes[i-1])
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || (i > 0 && nextLower && runes[i-1] != '_') {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isLowerAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
