package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/HerbHall/rackledger/pkg/models"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// SearchReferencesQueryBuilder lists objects pointing at one object through a
// ref field of their type.
type SearchReferencesQueryBuilder struct{ resourceBuilder }

// refFieldsKey holds the joined type's ref fields that accept the target type
// while the reference match runs.
const refFieldsKey = "ref_fields"

// NewSearchReferencesQueryBuilder returns a builder for objects referencing
// objectID, whose type is typeID. Only values stored under a ref field that
// accepts typeID count; a ref field without ref_types accepts every type.
func NewSearchReferencesQueryBuilder(objectID, typeID int) *SearchReferencesQueryBuilder {
	preset := func() []bson.D {
		return []bson.D{
			Lookup(models.CollectionTypes, "type_id", "public_id", "type"),
			Unwind("$type", false),
			Match(Ne("public_id", objectID)),
			AddFields(bson.D{{Key: refFieldsKey, Value: filterExpr("$type.fields", "def", op("$and", bson.A{
				op("$eq", bson.A{"$$def.type", string(models.FieldTypeRef)}),
				op("$or", bson.A{
					op("$in", bson.A{typeID, ifNullArray("$$def.ref_types")}),
					op("$eq", bson.A{op("$size", bson.A{ifNullArray("$$def.ref_types")}), 0}),
				}),
			}))}}),
			Match(op("$expr", op("$gt", bson.A{
				op("$size", bson.A{filterExpr("$fields", "fv", op("$and", bson.A{
					op("$in", bson.A{"$$fv.name", "$" + refFieldsKey + ".name"}),
					op("$eq", bson.A{"$$fv.value", objectID}),
				}))}),
				0,
			}))),
			Project(bson.D{{Key: refFieldsKey, Value: 0}}),
		}
	}
	return &SearchReferencesQueryBuilder{newResourceBuilder(preset, NewAccessControlQueryBuilder().BuildJoined)}
}

func filterExpr(input, as string, cond bson.D) bson.D {
	return op("$filter", bson.D{
		{Key: "input", Value: ifNullArray(input)},
		{Key: "as", Value: as},
		{Key: "cond", Value: cond},
	})
}

func ifNullArray(expr string) bson.D {
	return op("$ifNull", bson.A{expr, bson.A{}})
}

// SearchCondition matches objects whose field values contain term. Values
// are compared as strings; an integer term also matches numeric values and
// the public id.
func SearchCondition(term string) bson.D {
	term = strings.TrimSpace(term)
	conds := []bson.D{Regex("fields.value", regexp.QuoteMeta(term), "i")}
	if n, err := strconv.Atoi(term); err == nil {
		conds = append(conds, Eq("fields.value", n), Eq("public_id", n))
	}
	if len(conds) == 1 {
		return conds[0]
	}
	return Or(conds...)
}

// QuickSearchQueryBuilder counts search hits split by active state.
type QuickSearchQueryBuilder struct {
	*PipelineBuilder
}

// NewQuickSearchQueryBuilder returns a QuickSearchQueryBuilder.
func NewQuickSearchQueryBuilder() *QuickSearchQueryBuilder {
	return &QuickSearchQueryBuilder{PipelineBuilder: NewPipelineBuilder()}
}

// Quick search facet names.
const (
	FacetActive   = "active"
	FacetInactive = "inactive"
	FacetTotal    = "total"
)

// Build returns a single-document pipeline with active, inactive and total
// hit counts for term.
func (b *QuickSearchQueryBuilder) Build(term string, access *Access) Pipeline {
	b.Clear()
	b.Add(Match(SearchCondition(term)))
	if access != nil {
		b.Add(NewAccessControlQueryBuilder().Build(*access)...)
	}
	b.Add(Facet(
		Branch{Name: FacetActive, Pipeline: Pipeline{Match(Eq("active", true)), Count("count")}},
		Branch{Name: FacetInactive, Pipeline: Pipeline{Match(Eq("active", false)), Count("count")}},
		Branch{Name: FacetTotal, Pipeline: Pipeline{Count("count")}},
	))
	return b.Pipeline()
}
