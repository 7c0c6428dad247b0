package realtime

import (
	"sort"
	"strings"
)

// Ranks follow the store's ordering of mixed child values.
const (
	rankNull = iota
	rankFalse
	rankTrue
	rankNumber
	rankString
	rankObject
)

func valueRank(val any) int {
	switch v := val.(type) {
	case nil:
		return rankNull
	case bool:
		if v {
			return rankTrue
		}
		return rankFalse
	case float64, int, int64:
		return rankNumber
	case string:
		return rankString
	default:
		return rankObject
	}
}

func toFloat(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func compareValues(a, b any) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case rankNumber:
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
	case rankString:
		return strings.Compare(a.(string), b.(string))
	}
	return 0
}

func orderField(node any, field string) any {
	if m, ok := node.(map[string]any); ok {
		return m[field]
	}
	return nil
}

// sortChildren orders children by the query field, falling back to the key
// so that equal field values resolve the same way on every client.
func sortChildren(children []Snapshot, query Query) {
	sort.SliceStable(children, func(i, j int) bool {
		if len(query.OrderBy) > 0 {
			cmp := compareValues(orderField(children[i].Value, query.OrderBy), orderField(children[j].Value, query.OrderBy))
			if cmp != 0 {
				return cmp < 0
			}
		}
		return children[i].Key < children[j].Key
	})
}
