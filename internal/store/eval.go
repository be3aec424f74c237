package store

import (
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// evaluator runs aggregation pipelines over in-memory documents. Foreign
// collections for $lookup are loaded once per evaluator.
type evaluator struct {
	load  func(collection string) ([]bson.D, error)
	cache map[string][]bson.D
}

func newEvaluator(load func(string) ([]bson.D, error)) *evaluator {
	return &evaluator{load: load, cache: make(map[string][]bson.D)}
}

func (e *evaluator) collection(name string) ([]bson.D, error) {
	if docs, ok := e.cache[name]; ok {
		return docs, nil
	}
	if e.load == nil {
		return nil, fmt.Errorf("no loader for collection %q", name)
	}
	docs, err := e.load(name)
	if err != nil {
		return nil, err
	}
	e.cache[name] = docs
	return docs, nil
}

func (e *evaluator) run(docs []bson.D, pipeline []bson.D, vars map[string]any) ([]bson.D, error) {
	for i, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("stage %d must have exactly one operator", i)
		}
		var err error
		docs, err = e.stage(docs, stage[0], vars)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i, stage[0].Key, err)
		}
	}
	return docs, nil
}

func (e *evaluator) stage(docs []bson.D, st bson.E, vars map[string]any) ([]bson.D, error) {
	switch st.Key {
	case "$match":
		filter, ok := st.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("needs a document")
		}
		out := make([]bson.D, 0, len(docs))
		for _, d := range docs {
			m, err := e.matches(d, filter, vars)
			if err != nil {
				return nil, err
			}
			if m {
				out = append(out, d)
			}
		}
		return out, nil
	case "$lookup":
		spec, ok := st.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("needs a document")
		}
		return e.lookup(docs, spec, vars)
	case "$unwind":
		return unwind(docs, st.Value)
	case "$project":
		spec, ok := st.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("needs a document")
		}
		return e.project(docs, spec, vars)
	case "$addFields", "$set":
		spec, ok := st.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("needs a document")
		}
		out := make([]bson.D, len(docs))
		for i, d := range docs {
			next := d
			for _, f := range spec {
				v, err := e.eval(f.Value, exprScope{root: d, current: d, vars: vars})
				if err != nil {
					return nil, err
				}
				next = setPath(next, splitPath(f.Key), v)
			}
			out[i] = next
		}
		return out, nil
	case "$sort":
		spec, ok := st.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("needs a document")
		}
		return sortDocs(docs, spec)
	case "$skip":
		n, ok := toInt(st.Value)
		if !ok || n < 0 {
			return nil, fmt.Errorf("needs a non-negative integer")
		}
		if n >= len(docs) {
			return []bson.D{}, nil
		}
		return docs[n:], nil
	case "$limit":
		n, ok := toInt(st.Value)
		if !ok || n <= 0 {
			return nil, fmt.Errorf("needs a positive integer")
		}
		if n < len(docs) {
			return docs[:n], nil
		}
		return docs, nil
	case "$count":
		name, ok := st.Value.(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("needs a field name")
		}
		if len(docs) == 0 {
			return []bson.D{}, nil
		}
		return []bson.D{{{Key: name, Value: int32(len(docs))}}}, nil
	case "$facet":
		spec, ok := st.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("needs a document")
		}
		result := bson.D{}
		for _, branch := range spec {
			stages, err := stageList(branch.Value)
			if err != nil {
				return nil, fmt.Errorf("facet %s: %w", branch.Key, err)
			}
			out, err := e.run(docs, stages, vars)
			if err != nil {
				return nil, fmt.Errorf("facet %s: %w", branch.Key, err)
			}
			arr := make(bson.A, len(out))
			for i, d := range out {
				arr[i] = d
			}
			result = append(result, bson.E{Key: branch.Key, Value: arr})
		}
		return []bson.D{result}, nil
	case "$group":
		spec, ok := st.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("needs a document")
		}
		return e.group(docs, spec, vars)
	default:
		return nil, fmt.Errorf("unsupported pipeline stage")
	}
}

func stageList(v any) ([]bson.D, error) {
	arr, ok := v.(bson.A)
	if !ok {
		return nil, fmt.Errorf("pipeline must be an array")
	}
	out := make([]bson.D, len(arr))
	for i, item := range arr {
		d, ok := item.(bson.D)
		if !ok {
			return nil, fmt.Errorf("pipeline stage %d must be a document", i)
		}
		out[i] = d
	}
	return out, nil
}

func specString(spec bson.D, key string) string {
	v, _ := lookupKey(spec, key)
	s, _ := v.(string)
	return s
}

func (e *evaluator) lookup(docs []bson.D, spec bson.D, vars map[string]any) ([]bson.D, error) {
	from, as := specString(spec, "from"), specString(spec, "as")
	if from == "" || as == "" {
		return nil, fmt.Errorf("from and as are required")
	}
	foreign, err := e.collection(from)
	if err != nil {
		return nil, err
	}

	if raw, ok := lookupKey(spec, "pipeline"); ok {
		stages, err := stageList(raw)
		if err != nil {
			return nil, err
		}
		letSpec, _ := lookupKey(spec, "let")
		let, _ := letSpec.(bson.D)
		out := make([]bson.D, len(docs))
		for i, d := range docs {
			bound := make(map[string]any, len(vars)+len(let))
			for k, v := range vars {
				bound[k] = v
			}
			for _, l := range let {
				v, err := e.eval(l.Value, exprScope{root: d, current: d, vars: vars})
				if err != nil {
					return nil, err
				}
				bound[l.Key] = v
			}
			joined, err := e.run(foreign, stages, bound)
			if err != nil {
				return nil, err
			}
			arr := make(bson.A, len(joined))
			for j, jd := range joined {
				arr[j] = jd
			}
			out[i] = setPath(d, splitPath(as), arr)
		}
		return out, nil
	}

	localField, foreignField := specString(spec, "localField"), specString(spec, "foreignField")
	if localField == "" || foreignField == "" {
		return nil, fmt.Errorf("localField and foreignField are required")
	}
	out := make([]bson.D, len(docs))
	for i, d := range docs {
		local := expand(queryValues(d, splitPath(localField)))
		if len(local) == 0 {
			local = []any{nil}
		}
		arr := bson.A{}
		for _, f := range foreign {
			remote := expand(queryValues(f, splitPath(foreignField)))
			if len(remote) == 0 {
				remote = []any{nil}
			}
			if anyEqual(local, remote) {
				arr = append(arr, f)
			}
		}
		out[i] = setPath(d, splitPath(as), arr)
	}
	return out, nil
}

func anyEqual(a, b []any) bool {
	for _, x := range a {
		for _, y := range b {
			if valuesEqual(x, y) {
				return true
			}
		}
	}
	return false
}

func unwind(docs []bson.D, spec any) ([]bson.D, error) {
	var (
		path     string
		preserve bool
	)
	switch t := spec.(type) {
	case string:
		path = t
	case bson.D:
		path = specString(t, "path")
		if p, ok := lookupKey(t, "preserveNullAndEmptyArrays"); ok {
			preserve = truthy(p)
		}
	default:
		return nil, fmt.Errorf("needs a path")
	}
	if !strings.HasPrefix(path, "$") {
		return nil, fmt.Errorf("path must start with $")
	}
	parts := splitPath(path[1:])

	out := make([]bson.D, 0, len(docs))
	for _, d := range docs {
		v, ok := exactValue(d, parts)
		arr, isArr := v.(bson.A)
		switch {
		case !ok || v == nil:
			if preserve {
				out = append(out, d)
			}
		case isArr && len(arr) == 0:
			if preserve {
				out = append(out, removePath(d, parts))
			}
		case isArr:
			for _, item := range arr {
				out = append(out, setPath(d, parts, item))
			}
		default:
			out = append(out, d)
		}
	}
	return out, nil
}

func (e *evaluator) project(docs []bson.D, spec bson.D, vars map[string]any) ([]bson.D, error) {
	exclusion := true
	keepID := true
	for _, f := range spec {
		flag, isFlag := toInt(f.Value)
		if b, isBool := f.Value.(bool); isBool {
			flag, isFlag = 0, true
			if b {
				flag = 1
			}
		}
		if f.Key == "_id" && isFlag {
			keepID = flag != 0
			continue
		}
		if !isFlag || flag != 0 {
			exclusion = false
		}
	}

	out := make([]bson.D, len(docs))
	for i, d := range docs {
		if exclusion {
			next := d
			for _, f := range spec {
				if f.Key == "_id" && keepID {
					continue
				}
				next = removePath(next, splitPath(f.Key))
			}
			out[i] = next
			continue
		}
		next := bson.D{}
		if keepID {
			if id, ok := lookupKey(d, "_id"); ok {
				next = append(next, bson.E{Key: "_id", Value: id})
			}
		}
		for _, f := range spec {
			if f.Key == "_id" {
				continue
			}
			parts := splitPath(f.Key)
			if flag, isFlag := toInt(f.Value); isFlag && flag != 0 {
				if v, ok := exactValue(d, parts); ok {
					next = setPath(next, parts, v)
				}
				continue
			}
			if b, isBool := f.Value.(bool); isBool && b {
				if v, ok := exactValue(d, parts); ok {
					next = setPath(next, parts, v)
				}
				continue
			}
			v, err := e.eval(f.Value, exprScope{root: d, current: d, vars: vars})
			if err != nil {
				return nil, err
			}
			next = setPath(next, parts, v)
		}
		out[i] = next
	}
	return out, nil
}

// sortKey reduces an array to its smallest (ascending) or largest
// (descending) element, as the document store does.
func sortKey(v any, order int) any {
	arr, ok := v.(bson.A)
	if !ok {
		return v
	}
	if len(arr) == 0 {
		return nil
	}
	best := arr[0]
	for _, item := range arr[1:] {
		c := compareValues(item, best)
		if (order > 0 && c < 0) || (order < 0 && c > 0) {
			best = item
		}
	}
	return best
}

func sortDocs(docs []bson.D, spec bson.D) ([]bson.D, error) {
	type key struct {
		parts []string
		order int
	}
	keys := make([]key, 0, len(spec))
	for _, f := range spec {
		o, ok := toInt(f.Value)
		if !ok || (o != 1 && o != -1) {
			return nil, fmt.Errorf("sort order for %q must be 1 or -1", f.Key)
		}
		keys = append(keys, key{parts: splitPath(f.Key), order: o})
	}
	out := make([]bson.D, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range keys {
			a, _ := exactValue(out[i], k.parts)
			b, _ := exactValue(out[j], k.parts)
			c := compareValues(sortKey(a, k.order), sortKey(b, k.order))
			if c != 0 {
				return c*k.order < 0
			}
		}
		return false
	})
	return out, nil
}

func (e *evaluator) group(docs []bson.D, spec bson.D, vars map[string]any) ([]bson.D, error) {
	idExpr, ok := lookupKey(spec, "_id")
	if !ok {
		return nil, fmt.Errorf("_id is required")
	}
	type bucket struct {
		id      any
		members []bson.D
	}
	var buckets []*bucket
	for _, d := range docs {
		id, err := e.eval(idExpr, exprScope{root: d, current: d, vars: vars})
		if err != nil {
			return nil, err
		}
		var b *bucket
		for _, existing := range buckets {
			if valuesEqual(existing.id, id) {
				b = existing
				break
			}
		}
		if b == nil {
			b = &bucket{id: id}
			buckets = append(buckets, b)
		}
		b.members = append(b.members, d)
	}

	out := make([]bson.D, 0, len(buckets))
	for _, b := range buckets {
		result := bson.D{{Key: "_id", Value: b.id}}
		for _, acc := range spec {
			if acc.Key == "_id" {
				continue
			}
			accSpec, ok := acc.Value.(bson.D)
			if !ok || len(accSpec) != 1 {
				return nil, fmt.Errorf("accumulator %q must have one operator", acc.Key)
			}
			v, err := e.accumulate(accSpec[0], b.members, vars)
			if err != nil {
				return nil, fmt.Errorf("accumulator %q: %w", acc.Key, err)
			}
			result = append(result, bson.E{Key: acc.Key, Value: v})
		}
		out = append(out, result)
	}
	return out, nil
}

func (e *evaluator) accumulate(acc bson.E, members []bson.D, vars map[string]any) (any, error) {
	vals := make([]any, len(members))
	for i, d := range members {
		v, err := e.eval(acc.Value, exprScope{root: d, current: d, vars: vars})
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	switch acc.Key {
	case "$sum", "$avg":
		var sum float64
		allInt := true
		n := 0
		for _, v := range vals {
			f, ok := toFloat(v)
			if !ok {
				continue
			}
			if _, isFloat := v.(float64); isFloat {
				allInt = false
			}
			sum += f
			n++
		}
		if acc.Key == "$avg" {
			if n == 0 {
				return nil, nil
			}
			return sum / float64(n), nil
		}
		if allInt {
			return int64(sum), nil
		}
		return sum, nil
	case "$first":
		if len(vals) == 0 {
			return nil, nil
		}
		return vals[0], nil
	case "$last":
		if len(vals) == 0 {
			return nil, nil
		}
		return vals[len(vals)-1], nil
	case "$push":
		return bson.A(vals), nil
	case "$addToSet":
		set := bson.A{}
		for _, v := range vals {
			dup := false
			for _, s := range set {
				if valuesEqual(s, v) {
					dup = true
					break
				}
			}
			if !dup {
				set = append(set, v)
			}
		}
		return set, nil
	case "$min", "$max":
		var best any
		for _, v := range vals {
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c := compareValues(v, best)
			if (acc.Key == "$min" && c < 0) || (acc.Key == "$max" && c > 0) {
				best = v
			}
		}
		return best, nil
	default:
		return nil, fmt.Errorf("unsupported accumulator %q", acc.Key)
	}
}
