package fsvalue

import "time"

// maxDepth caps recursion; v3 documents nest at most ~10 levels.
const maxDepth = 32

// Normalize walks an already-decoded structure and rewrites every
// store-native timestamp (time.Time or a {seconds, nanoseconds} pair)
// into an RFC 3339 string. Arrays map element-wise, scalars pass through,
// and anything deeper than maxDepth is returned untouched.
func Normalize(v any) any {
	return normalize(v, 0)
}

// NormalizeMap is Normalize for a document's top-level fields.
func NormalizeMap(fields map[string]any) map[string]any {
	out, _ := normalize(fields, 0).(map[string]any)
	return out
}

func normalize(v any, depth int) any {
	if depth > maxDepth {
		return v
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case map[string]any:
		if iso, ok := secondsPair(t); ok {
			return iso
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = normalize(el, depth+1)
		}
		return out
	default:
		return v
	}
}

// secondsPair recognizes the serialized store timestamp shape
// {seconds, nanoseconds} (and the underscore-prefixed variant some v3
// exports carry). A map with any other key is not a timestamp.
func secondsPair(m map[string]any) (string, bool) {
	if len(m) == 0 || len(m) > 2 {
		return "", false
	}
	var seconds, nanos int64
	var haveSeconds bool
	for k, v := range m {
		n, ok := asInt64(v)
		if !ok {
			return "", false
		}
		switch k {
		case "seconds", "_seconds":
			seconds = n
			haveSeconds = true
		case "nanoseconds", "_nanoseconds", "nanos":
			nanos = n
		default:
			return "", false
		}
	}
	if !haveSeconds {
		return "", false
	}
	return time.Unix(seconds, nanos).UTC().Format(time.RFC3339), true
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
