package store

import (
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// exprScope is the evaluation context of an aggregation expression.
type exprScope struct {
	root    bson.D
	current any
	vars    map[string]any
}

func (s exprScope) with(name string, v any) exprScope {
	vars := make(map[string]any, len(s.vars)+1)
	for k, val := range s.vars {
		vars[k] = val
	}
	vars[name] = v
	return exprScope{root: s.root, current: s.current, vars: vars}
}

// exprPath resolves a path with expression semantics: arrays of documents
// map to arrays of the addressed field.
func exprPath(v any, parts []string) any {
	if len(parts) == 0 {
		return v
	}
	switch t := v.(type) {
	case bson.D:
		next, ok := lookupKey(t, parts[0])
		if !ok {
			return nil
		}
		return exprPath(next, parts[1:])
	case bson.A:
		out := bson.A{}
		for _, elem := range t {
			if _, isDoc := elem.(bson.D); !isDoc {
				continue
			}
			if r := exprPath(elem, parts); r != nil {
				out = append(out, r)
			}
		}
		return out
	default:
		return nil
	}
}

func (e *evaluator) eval(expr any, s exprScope) (any, error) {
	switch t := expr.(type) {
	case string:
		switch {
		case strings.HasPrefix(t, "$$"):
			parts := splitPath(t[2:])
			var base any
			switch parts[0] {
			case "ROOT":
				base = s.root
			case "CURRENT":
				base = s.current
			default:
				v, ok := s.vars[parts[0]]
				if !ok {
					return nil, fmt.Errorf("undefined variable %q", parts[0])
				}
				base = v
			}
			return exprPath(base, parts[1:]), nil
		case strings.HasPrefix(t, "$"):
			return exprPath(s.current, splitPath(t[1:])), nil
		default:
			return t, nil
		}
	case bson.A:
		out := make(bson.A, len(t))
		for i, item := range t {
			v, err := e.eval(item, s)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case bson.D:
		if len(t) == 1 && strings.HasPrefix(t[0].Key, "$") {
			return e.evalOperator(t[0].Key, t[0].Value, s)
		}
		out := make(bson.D, 0, len(t))
		for _, el := range t {
			v, err := e.eval(el.Value, s)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.E{Key: el.Key, Value: v})
		}
		return out, nil
	default:
		return t, nil
	}
}

func (e *evaluator) evalArgs(arg any, s exprScope, n int) (bson.A, error) {
	v, err := e.eval(arg, s)
	if err != nil {
		return nil, err
	}
	args, ok := v.(bson.A)
	if !ok {
		args = bson.A{v}
	}
	if n >= 0 && len(args) != n {
		return nil, fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	return args, nil
}

func (e *evaluator) evalOperator(name string, arg any, s exprScope) (any, error) {
	switch name {
	case "$literal":
		return arg, nil
	case "$eq", "$ne", "$gt", "$gte", "$lt", "$lte":
		args, err := e.evalArgs(arg, s, 2)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		c := compareValues(args[0], args[1])
		switch name {
		case "$eq":
			return c == 0, nil
		case "$ne":
			return c != 0, nil
		case "$gt":
			return c > 0, nil
		case "$gte":
			return c >= 0, nil
		case "$lt":
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case "$and", "$or":
		args, err := e.evalArgs(arg, s, -1)
		if err != nil {
			return nil, err
		}
		for _, a := range args {
			if name == "$and" && !truthy(a) {
				return false, nil
			}
			if name == "$or" && truthy(a) {
				return true, nil
			}
		}
		return name == "$and", nil
	case "$not":
		args, err := e.evalArgs(arg, s, 1)
		if err != nil {
			return nil, err
		}
		return !truthy(args[0]), nil
	case "$in":
		args, err := e.evalArgs(arg, s, 2)
		if err != nil {
			return nil, err
		}
		arr, ok := args[1].(bson.A)
		if !ok {
			return nil, fmt.Errorf("$in needs an array")
		}
		for _, item := range arr {
			if valuesEqual(args[0], item) {
				return true, nil
			}
		}
		return false, nil
	case "$ifNull":
		args, err := e.evalArgs(arg, s, -1)
		if err != nil {
			return nil, err
		}
		for _, a := range args {
			if a != nil {
				return a, nil
			}
		}
		return nil, nil
	case "$size":
		args, err := e.evalArgs(arg, s, 1)
		if err != nil {
			return nil, err
		}
		arr, ok := args[0].(bson.A)
		if !ok {
			return nil, fmt.Errorf("$size needs an array")
		}
		return int32(len(arr)), nil
	case "$arrayElemAt":
		args, err := e.evalArgs(arg, s, 2)
		if err != nil {
			return nil, err
		}
		arr, ok := args[0].(bson.A)
		idx, okIdx := toInt(args[1])
		if !ok || !okIdx {
			return nil, fmt.Errorf("$arrayElemAt needs an array and an index")
		}
		if idx < 0 {
			idx += len(arr)
		}
		if idx < 0 || idx >= len(arr) {
			return nil, nil
		}
		return arr[idx], nil
	case "$toString":
		v, err := e.eval(arg, s)
		if err != nil {
			return nil, err
		}
		return stringify(v), nil
	case "$concat":
		args, err := e.evalArgs(arg, s, -1)
		if err != nil {
			return nil, err
		}
		var b strings.Builder
		for _, a := range args {
			if a == nil {
				return nil, nil
			}
			b.WriteString(stringify(a))
		}
		return b.String(), nil
	case "$filter":
		spec, ok := arg.(bson.D)
		if !ok {
			return nil, fmt.Errorf("$filter needs a document")
		}
		inputExpr, _ := lookupKey(spec, "input")
		cond, _ := lookupKey(spec, "cond")
		as := "this"
		if v, ok := lookupKey(spec, "as"); ok {
			as, _ = v.(string)
		}
		input, err := e.eval(inputExpr, s)
		if err != nil {
			return nil, err
		}
		arr, ok := input.(bson.A)
		if !ok {
			return nil, nil
		}
		out := bson.A{}
		for _, item := range arr {
			keep, err := e.eval(cond, s.with(as, item))
			if err != nil {
				return nil, err
			}
			if truthy(keep) {
				out = append(out, item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported expression operator %q", name)
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case bson.ObjectID:
		return t.Hex()
	default:
		return fmt.Sprint(t)
	}
}
