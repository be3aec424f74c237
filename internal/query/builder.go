// Package query translates collection parameters into document-store
// aggregation pipelines. Builder functions return fresh bson.D fragments
// and never mutate their inputs; resource builders compose them in a fixed
// stage order shared by every manager.
package query

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrInvalidSortOrder is returned by Sort for an order other than 1 or -1.
var ErrInvalidSortOrder = errors.New("sort order must be 1 or -1")

// Sort directions.
const (
	Ascending  = 1
	Descending = -1
)

func op(name string, value any) bson.D {
	return bson.D{{Key: name, Value: value}}
}

func fieldOp(field, name string, value any) bson.D {
	return bson.D{{Key: field, Value: op(name, value)}}
}

func list(fragments []bson.D) bson.A {
	out := make(bson.A, len(fragments))
	for i, f := range fragments {
		out[i] = f
	}
	return out
}

func values[T any](vs []T) bson.A {
	out := make(bson.A, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

// And matches documents satisfying every expression.
func And(exprs ...bson.D) bson.D { return op("$and", list(exprs)) }

// Or matches documents satisfying at least one expression.
func Or(exprs ...bson.D) bson.D { return op("$or", list(exprs)) }

// Nor matches documents satisfying none of the expressions.
func Nor(exprs ...bson.D) bson.D { return op("$nor", list(exprs)) }

// Not negates an operator expression.
func Not(expr bson.D) bson.D { return op("$not", expr) }

// Eq matches field == value.
func Eq(field string, value any) bson.D { return fieldOp(field, "$eq", value) }

// Ne matches field != value.
func Ne(field string, value any) bson.D { return fieldOp(field, "$ne", value) }

// Gt matches field > value.
func Gt(field string, value any) bson.D { return fieldOp(field, "$gt", value) }

// Gte matches field >= value.
func Gte(field string, value any) bson.D { return fieldOp(field, "$gte", value) }

// Lt matches field < value.
func Lt(field string, value any) bson.D { return fieldOp(field, "$lt", value) }

// Lte matches field <= value.
func Lte(field string, value any) bson.D { return fieldOp(field, "$lte", value) }

// In matches field values contained in vs.
func In[T any](field string, vs ...T) bson.D { return fieldOp(field, "$in", values(vs)) }

// Nin matches field values not contained in vs.
func Nin[T any](field string, vs ...T) bson.D { return fieldOp(field, "$nin", values(vs)) }

// Exists matches documents where field is (or is not) present.
func Exists(field string, exists bool) bson.D { return fieldOp(field, "$exists", exists) }

// ElemMatch matches array fields with at least one element satisfying criteria.
func ElemMatch(field string, criteria bson.D) bson.D {
	return fieldOp(field, "$elemMatch", criteria)
}

// Regex matches string values against pattern. Options default to
// case-insensitive.
func Regex(field, pattern, options string) bson.D {
	if options == "" {
		options = "i"
	}
	return bson.D{{Key: field, Value: bson.D{
		{Key: "$regex", Value: pattern},
		{Key: "$options", Value: options},
	}}}
}

// ExprEq compares two aggregation expressions, typically a field path and a
// let-bound variable inside a correlated lookup.
func ExprEq(a, b any) bson.D {
	return op("$expr", op("$eq", bson.A{a, b}))
}

// Match filters documents.
func Match(filter bson.D) bson.D {
	if filter == nil {
		filter = bson.D{}
	}
	return op("$match", filter)
}

// Count replaces the stream with a single document holding the count under name.
func Count(name string) bson.D { return op("$count", name) }

// Skip drops the first n documents.
func Skip(n int) bson.D { return op("$skip", n) }

// Limit passes at most n documents.
func Limit(n int) bson.D { return op("$limit", n) }

// Branch is one named sub-pipeline of a facet stage.
type Branch struct {
	Name     string
	Pipeline Pipeline
}

// Facet runs named sub-pipelines over the same input.
func Facet(branches ...Branch) bson.D {
	doc := make(bson.D, 0, len(branches))
	for _, b := range branches {
		doc = append(doc, bson.E{Key: b.Name, Value: b.Pipeline.Stages()})
	}
	return op("$facet", doc)
}

// Group groups documents by id and applies accumulators.
func Group(id any, accumulators bson.D) bson.D {
	doc := bson.D{{Key: "_id", Value: id}}
	doc = append(doc, accumulators...)
	return op("$group", doc)
}

// Lookup performs an equality join.
func Lookup(from, localField, foreignField, as string) bson.D {
	return op("$lookup", bson.D{
		{Key: "from", Value: from},
		{Key: "localField", Value: localField},
		{Key: "foreignField", Value: foreignField},
		{Key: "as", Value: as},
	})
}

// LookupSub performs a join with a sub-pipeline and bound variables.
func LookupSub(from string, let bson.D, pipeline Pipeline, as string) bson.D {
	return op("$lookup", bson.D{
		{Key: "from", Value: from},
		{Key: "let", Value: let},
		{Key: "pipeline", Value: pipeline.Stages()},
		{Key: "as", Value: as},
	})
}

// Unwind deconstructs an array field. With preserve set, documents whose
// array is missing or empty are kept.
func Unwind(path string, preserve bool) bson.D {
	spec := bson.D{{Key: "path", Value: path}}
	if preserve {
		spec = append(spec, bson.E{Key: "preserveNullAndEmptyArrays", Value: true})
	}
	return op("$unwind", spec)
}

// Project reshapes documents.
func Project(projection bson.D) bson.D { return op("$project", projection) }

// AddFields adds computed fields.
func AddFields(fields bson.D) bson.D { return op("$addFields", fields) }

// Sort orders documents by field.
func Sort(field string, order int) (bson.D, error) {
	if order != Ascending && order != Descending {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSortOrder, order)
	}
	return op("$sort", bson.D{{Key: field, Value: order}}), nil
}
