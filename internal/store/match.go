package store

import (
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// matches evaluates a query document against doc. vars carries the
// variables bound by an enclosing $lookup for $expr.
func (e *evaluator) matches(doc bson.D, filter bson.D, vars map[string]any) (bool, error) {
	for _, cond := range filter {
		ok, err := e.matchTop(doc, cond, vars)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (e *evaluator) matchTop(doc bson.D, cond bson.E, vars map[string]any) (bool, error) {
	switch cond.Key {
	case "$and", "$or", "$nor":
		clauses, ok := cond.Value.(bson.A)
		if !ok {
			return false, fmt.Errorf("%s needs an array", cond.Key)
		}
		for _, c := range clauses {
			sub, ok := c.(bson.D)
			if !ok {
				return false, fmt.Errorf("%s clause must be a document", cond.Key)
			}
			m, err := e.matches(doc, sub, vars)
			if err != nil {
				return false, err
			}
			switch {
			case cond.Key == "$and" && !m:
				return false, nil
			case cond.Key == "$or" && m:
				return true, nil
			case cond.Key == "$nor" && m:
				return false, nil
			}
		}
		return cond.Key != "$or", nil
	case "$expr":
		v, err := e.eval(cond.Value, exprScope{root: doc, current: doc, vars: vars})
		if err != nil {
			return false, err
		}
		return truthy(v), nil
	}
	if strings.HasPrefix(cond.Key, "$") {
		return false, fmt.Errorf("unsupported query operator %q", cond.Key)
	}
	return e.matchField(queryValues(doc, splitPath(cond.Key)), cond.Value)
}

func isOperatorDoc(v any) (bson.D, bool) {
	d, ok := v.(bson.D)
	if !ok || len(d) == 0 {
		return nil, false
	}
	for _, el := range d {
		if !strings.HasPrefix(el.Key, "$") {
			return nil, false
		}
	}
	return d, true
}

// matchField tests the values found at a path against a condition, which is
// either an operator document or a literal to compare for equality.
func (e *evaluator) matchField(vals []any, cond any) (bool, error) {
	ops, ok := isOperatorDoc(cond)
	if !ok {
		if re, isRe := cond.(bson.Regex); isRe {
			return regexMatch(vals, re.Pattern, re.Options)
		}
		return eqMatch(vals, cond), nil
	}
	var options string
	if o, ok := lookupKey(ops, "$options"); ok {
		options, _ = o.(string)
	}
	for _, o := range ops {
		ok, err := e.matchOperator(vals, o, options)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func eqMatch(vals []any, want any) bool {
	if want == nil && len(vals) == 0 {
		return true
	}
	for _, v := range expand(vals) {
		if valuesEqual(v, want) {
			return true
		}
	}
	return false
}

func (e *evaluator) matchOperator(vals []any, o bson.E, options string) (bool, error) {
	switch o.Key {
	case "$eq":
		return eqMatch(vals, o.Value), nil
	case "$ne":
		return !eqMatch(vals, o.Value), nil
	case "$gt", "$gte", "$lt", "$lte":
		for _, v := range expand(vals) {
			if !sameBracket(v, o.Value) {
				continue
			}
			c := compareValues(v, o.Value)
			if (o.Key == "$gt" && c > 0) || (o.Key == "$gte" && c >= 0) ||
				(o.Key == "$lt" && c < 0) || (o.Key == "$lte" && c <= 0) {
				return true, nil
			}
		}
		return false, nil
	case "$in", "$nin":
		arr, ok := o.Value.(bson.A)
		if !ok {
			return false, fmt.Errorf("%s needs an array", o.Key)
		}
		found := false
		for _, want := range arr {
			if eqMatch(vals, want) {
				found = true
				break
			}
		}
		return found == (o.Key == "$in"), nil
	case "$all":
		arr, ok := o.Value.(bson.A)
		if !ok {
			return false, fmt.Errorf("$all needs an array")
		}
		if len(arr) == 0 || len(vals) == 0 {
			return false, nil
		}
		for _, want := range arr {
			if !eqMatch(vals, want) {
				return false, nil
			}
		}
		return true, nil
	case "$exists":
		return (len(vals) > 0) == truthy(o.Value), nil
	case "$regex":
		pattern, ok := o.Value.(string)
		if !ok {
			if re, isRe := o.Value.(bson.Regex); isRe {
				pattern, options = re.Pattern, re.Options+options
			} else {
				return false, fmt.Errorf("$regex needs a string")
			}
		}
		return regexMatch(vals, pattern, options)
	case "$options":
		return true, nil
	case "$size":
		n, ok := toInt(o.Value)
		if !ok {
			return false, fmt.Errorf("$size needs an integer")
		}
		for _, v := range vals {
			if arr, isArr := v.(bson.A); isArr && len(arr) == n {
				return true, nil
			}
		}
		return false, nil
	case "$elemMatch":
		crit, ok := o.Value.(bson.D)
		if !ok {
			return false, fmt.Errorf("$elemMatch needs a document")
		}
		_, opForm := isOperatorDoc(crit)
		for _, v := range vals {
			arr, isArr := v.(bson.A)
			if !isArr {
				continue
			}
			for _, elem := range arr {
				var (
					m   bool
					err error
				)
				if opForm {
					m, err = e.matchField([]any{elem}, crit)
				} else if sub, isDoc := elem.(bson.D); isDoc {
					m, err = e.matches(sub, crit, nil)
				}
				if err != nil {
					return false, err
				}
				if m {
					return true, nil
				}
			}
		}
		return false, nil
	case "$not":
		m, err := e.matchField(vals, o.Value)
		return !m, err
	default:
		return false, fmt.Errorf("unsupported query operator %q", o.Key)
	}
}

func regexMatch(vals []any, pattern, options string) (bool, error) {
	flags := ""
	for _, f := range options {
		switch f {
		case 'i', 'm', 's':
			flags += string(f)
		}
	}
	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("compile regex: %w", err)
	}
	for _, v := range expand(vals) {
		if s, ok := v.(string); ok && re.MatchString(s) {
			return true, nil
		}
	}
	return false, nil
}
