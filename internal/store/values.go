package store

import (
	"fmt"
	"math"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// normalizeStage round-trips a stage through BSON so literals in pipelines
// have the same Go types as decoded documents (int32/int64, bson.D, bson.A).
func normalizeStage(stage bson.D) (bson.D, error) {
	if stage == nil {
		return bson.D{}, nil
	}
	data, err := bson.Marshal(stage)
	if err != nil {
		return nil, fmt.Errorf("marshal stage: %w", err)
	}
	var out bson.D
	if err := bson.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal stage: %w", err)
	}
	return out, nil
}

func normalizePipeline(stages []bson.D) ([]bson.D, error) {
	out := make([]bson.D, len(stages))
	for i, s := range stages {
		n, err := normalizeStage(s)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

func lookupKey(doc bson.D, key string) (any, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

// queryValues resolves a dotted path with query semantics: arrays met along
// the way are traversed element by element.
func queryValues(v any, parts []string) []any {
	if len(parts) == 0 {
		return []any{v}
	}
	switch t := v.(type) {
	case bson.D:
		next, ok := lookupKey(t, parts[0])
		if !ok {
			return nil
		}
		return queryValues(next, parts[1:])
	case bson.A:
		var out []any
		for _, elem := range t {
			if _, isDoc := elem.(bson.D); isDoc {
				out = append(out, queryValues(elem, parts)...)
			}
		}
		return out
	default:
		return nil
	}
}

// expand adds the elements of array candidates, mirroring how a scalar
// condition matches arrays containing the scalar.
func expand(vals []any) []any {
	out := make([]any, 0, len(vals))
	for _, v := range vals {
		out = append(out, v)
		if arr, ok := v.(bson.A); ok {
			out = append(out, arr...)
		}
	}
	return out
}

// exactValue resolves a dotted path through documents only.
func exactValue(doc bson.D, parts []string) (any, bool) {
	var cur any = doc
	for _, p := range parts {
		d, ok := cur.(bson.D)
		if !ok {
			return nil, false
		}
		if cur, ok = lookupKey(d, p); !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath returns a copy of doc with the dotted path set to v, creating
// intermediate documents as needed.
func setPath(doc bson.D, parts []string, v any) bson.D {
	out := make(bson.D, len(doc), len(doc)+1)
	copy(out, doc)
	for i, e := range out {
		if e.Key != parts[0] {
			continue
		}
		if len(parts) == 1 {
			out[i].Value = v
		} else {
			sub, _ := e.Value.(bson.D)
			out[i].Value = setPath(sub, parts[1:], v)
		}
		return out
	}
	if len(parts) == 1 {
		return append(out, bson.E{Key: parts[0], Value: v})
	}
	return append(out, bson.E{Key: parts[0], Value: setPath(nil, parts[1:], v)})
}

// removePath returns a copy of doc without the dotted path.
func removePath(doc bson.D, parts []string) bson.D {
	out := make(bson.D, 0, len(doc))
	for _, e := range doc {
		if e.Key != parts[0] {
			out = append(out, e)
			continue
		}
		if len(parts) == 1 {
			continue
		}
		if sub, ok := e.Value.(bson.D); ok {
			e.Value = removePath(sub, parts[1:])
		}
		out = append(out, e)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// typeRank orders BSON types the way the document store sorts mixed values.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 1
	case int32, int64, int, float64, float32:
		return 2
	case string:
		return 3
	case bson.D:
		return 4
	case bson.A:
		return 5
	case bson.Binary:
		return 6
	case bson.ObjectID:
		return 7
	case bool:
		return 8
	case bson.DateTime:
		return 9
	case bson.Timestamp:
		return 10
	case bson.Regex:
		return 11
	default:
		return 12
	}
}

// compareValues totally orders two values.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch x := a.(type) {
	case nil:
		return 0
	case string:
		return strings.Compare(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case bson.DateTime:
		return cmpInt64(int64(x), int64(b.(bson.DateTime)))
	case bson.ObjectID:
		return strings.Compare(x.Hex(), b.(bson.ObjectID).Hex())
	case bson.D:
		y := b.(bson.D)
		for i := 0; i < len(x) && i < len(y); i++ {
			if c := strings.Compare(x[i].Key, y[i].Key); c != 0 {
				return c
			}
			if c := compareValues(x[i].Value, y[i].Value); c != 0 {
				return c
			}
		}
		return cmpInt(len(x), len(y))
	case bson.A:
		y := b.(bson.A)
		for i := 0; i < len(x) && i < len(y); i++ {
			if c := compareValues(x[i], y[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(x), len(y))
	}
	if fa, ok := toFloat(a); ok {
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func valuesEqual(a, b any) bool {
	return typeRank(a) == typeRank(b) && compareValues(a, b) == 0
}

// sameBracket reports whether a and b fall in the same type bracket, which
// range operators require.
func sameBracket(a, b any) bool {
	return typeRank(a) == typeRank(b)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int32, int64, int, float64, float32:
		f, _ := toFloat(t)
		return f != 0
	default:
		return true
	}
}
