package store

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// applyUpdate returns doc with the update operators applied. Only the
// operators the managers issue are supported.
func applyUpdate(doc bson.D, update bson.D) (bson.D, error) {
	out := doc
	for _, op := range update {
		fields, ok := op.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("%s needs a document", op.Key)
		}
		for _, f := range fields {
			if f.Key == "_id" {
				return nil, fmt.Errorf("%s: _id is immutable", op.Key)
			}
			parts := splitPath(f.Key)
			switch op.Key {
			case "$set":
				out = setPath(out, parts, f.Value)
			case "$unset":
				out = removePath(out, parts)
			case "$inc":
				cur, _ := exactValue(out, parts)
				next, err := increment(cur, f.Value)
				if err != nil {
					return nil, fmt.Errorf("$inc %s: %w", f.Key, err)
				}
				out = setPath(out, parts, next)
			default:
				return nil, fmt.Errorf("unsupported update operator %q", op.Key)
			}
		}
	}
	return out, nil
}

func increment(cur, by any) (any, error) {
	if cur == nil {
		return by, nil
	}
	switch c := cur.(type) {
	case int32:
		if b, ok := by.(int32); ok {
			return c + b, nil
		}
	case int64:
		switch b := by.(type) {
		case int32:
			return c + int64(b), nil
		case int64:
			return c + b, nil
		}
	}
	cf, ok := toFloat(cur)
	if !ok {
		return nil, fmt.Errorf("field is not numeric")
	}
	bf, ok := toFloat(by)
	if !ok {
		return nil, fmt.Errorf("increment is not numeric")
	}
	if _, isInt32 := cur.(int32); isInt32 {
		if _, ok := by.(int64); ok {
			return int64(cf + bf), nil
		}
	}
	return cf + bf, nil
}
