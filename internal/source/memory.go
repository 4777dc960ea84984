package source

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// MemoryReader serves canned documents for tests, applying the same
// filter/order/offset/limit semantics as the remote store.
type MemoryReader struct {
	collections map[string][]Document
}

func NewMemoryReader() *MemoryReader {
	return &MemoryReader{collections: make(map[string][]Document)}
}

func (m *MemoryReader) Add(collection string, docs ...Document) {
	m.collections[collection] = append(m.collections[collection], docs...)
}

func (m *MemoryReader) Query(_ context.Context, collection string, opts Options) ([]Document, error) {
	byField := opts.OrderBy != "" && opts.OrderBy != "__name__"
	docs := make([]Document, 0, len(m.collections[collection]))
	for _, doc := range m.collections[collection] {
		// The remote store excludes documents that lack the ordered-by
		// field; the fake has to agree or call sites cannot see it.
		if byField {
			if _, has := doc.Fields[opts.OrderBy]; !has {
				continue
			}
		}
		if matchesAll(doc, opts.Filters) {
			docs = append(docs, doc)
		}
	}

	if byField {
		field := opts.OrderBy
		sort.SliceStable(docs, func(i, j int) bool {
			less := compareValues(docs[i].Fields[field], docs[j].Fields[field]) < 0
			if opts.Desc {
				return !less
			}
			return less
		})
	} else {
		sort.SliceStable(docs, func(i, j int) bool {
			less := docs[i].ID < docs[j].ID
			if opts.Desc {
				return !less
			}
			return less
		})
	}

	if opts.Offset >= len(docs) {
		return nil, nil
	}
	docs = docs[opts.Offset:]
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}

	out := make([]Document, len(docs))
	copy(out, docs)
	return out, nil
}

func matchesAll(doc Document, filters []Filter) bool {
	for _, f := range filters {
		cmp := compareValues(doc.Fields[f.Field], f.Value)
		switch f.Op {
		case "==":
			if cmp != 0 {
				return false
			}
		case "<":
			if cmp >= 0 {
				return false
			}
		case "<=":
			if cmp > 0 {
				return false
			}
		case ">":
			if cmp <= 0 {
				return false
			}
		case ">=":
			if cmp < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func compareValues(a, b any) int {
	at, aok := timeLike(a)
	bt, bok := timeLike(b)
	if aok && bok {
		switch {
		case at.Before(bt):
			return -1
		case at.After(bt):
			return 1
		default:
			return 0
		}
	}

	an, aok := numberLike(a)
	bn, bok := numberLike(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}

	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func timeLike(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

func numberLike(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
