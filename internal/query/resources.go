package query

import (
	"strings"

	"github.com/HerbHall/rackledger/pkg/models"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// dynamicSortPrefix addresses a named entry of an object's fields array.
const dynamicSortPrefix = "fields."

// dynamicSortField is the synthetic field projected for dynamic sorts.
const dynamicSortField = "order"

// TotalField is the output field of count pipelines.
const TotalField = "total"

// resourceBuilder implements the stage order shared by every resource:
// join preset, filter, access control, sort, pagination.
type resourceBuilder struct {
	*PipelineBuilder
	preset func() []bson.D
	access func(Access) Pipeline
}

func newResourceBuilder(preset func() []bson.D, access func(Access) Pipeline) resourceBuilder {
	return resourceBuilder{PipelineBuilder: NewPipelineBuilder(), preset: preset, access: access}
}

func (b *resourceBuilder) base(filter Filter, access *Access) {
	b.Clear()
	if b.preset != nil {
		b.Add(b.preset()...)
	}
	b.Add(filter.Stages()...)
	if access != nil && b.access != nil {
		b.Add(b.access(*access)...)
	}
}

// Build returns the page pipeline.
func (b *resourceBuilder) Build(filter Filter, limit, skip int, sort string, order int, access *Access) (Pipeline, error) {
	b.base(filter, access)
	stages, err := SortStages(sort, order)
	if err != nil {
		return nil, err
	}
	b.Add(stages...)
	b.Add(Paginate(limit, skip)...)
	return b.Pipeline(), nil
}

// Count returns the total pipeline: the same joins, filter and access
// stages followed by a single $count.
func (b *resourceBuilder) Count(filter Filter, access *Access) (Pipeline, error) {
	b.base(filter, access)
	b.Add(Count(TotalField))
	return b.Pipeline(), nil
}

// SortStages returns the sort stage for field. A "fields.<name>" key first
// projects the matching entry of the fields array into a synthetic field and
// sorts on that.
func SortStages(field string, order int) ([]bson.D, error) {
	if field == "" {
		field = DefaultSort
	}
	if name, ok := strings.CutPrefix(field, dynamicSortPrefix); ok && name != "" {
		s, err := Sort(dynamicSortField, order)
		if err != nil {
			return nil, err
		}
		return []bson.D{AddFields(bson.D{{Key: dynamicSortField, Value: bson.D{{Key: "$filter", Value: bson.D{
			{Key: "input", Value: "$fields"},
			{Key: "as", Value: "fields"},
			{Key: "cond", Value: bson.D{{Key: "$eq", Value: bson.A{"$$fields.name", name}}}},
		}}}}}), s}, nil
	}
	s, err := Sort(field, order)
	if err != nil {
		return nil, err
	}
	return []bson.D{s}, nil
}

// Paginate returns the skip and limit stages for a page. A zero limit means
// unbounded and yields no stages at all.
func Paginate(limit, skip int) []bson.D {
	if limit <= 0 {
		return nil
	}
	return []bson.D{Skip(skip), Limit(limit)}
}

// DefaultQueryBuilder has no joins and no access control. It serves types,
// links, users and groups.
type DefaultQueryBuilder struct{ resourceBuilder }

// NewDefaultQueryBuilder returns a DefaultQueryBuilder.
func NewDefaultQueryBuilder() *DefaultQueryBuilder {
	return &DefaultQueryBuilder{newResourceBuilder(nil, nil)}
}

// ObjectQueryBuilder joins objects to their type and author/editor users.
// Objects whose type no longer exists are dropped by the type unwind.
type ObjectQueryBuilder struct{ resourceBuilder }

// NewObjectQueryBuilder returns an ObjectQueryBuilder.
func NewObjectQueryBuilder() *ObjectQueryBuilder {
	return &ObjectQueryBuilder{newResourceBuilder(objectPreset, NewAccessControlQueryBuilder().BuildJoined)}
}

func objectPreset() []bson.D {
	return []bson.D{
		Lookup(models.CollectionTypes, "type_id", "public_id", "type"),
		Unwind("$type", false),
		lookupUser("$author_id", "author"),
		Unwind("$author", true),
		lookupUser("$editor_id", "editor"),
		Unwind("$editor", true),
	}
}

func lookupUser(idExpr, as string) bson.D {
	return LookupSub(
		models.CollectionUsers,
		bson.D{{Key: "user_id", Value: idExpr}},
		Pipeline{
			Match(ExprEq("$public_id", "$$user_id")),
			Project(bson.D{{Key: "password", Value: 0}}),
		},
		as,
	)
}

// LocationQueryBuilder filters locations by the ACL of the located object's type.
type LocationQueryBuilder struct{ resourceBuilder }

// NewLocationQueryBuilder returns a LocationQueryBuilder.
func NewLocationQueryBuilder() *LocationQueryBuilder {
	return &LocationQueryBuilder{newResourceBuilder(nil, NewAccessControlQueryBuilder().Build)}
}

// CategoryQueryBuilder joins each category to its direct children.
type CategoryQueryBuilder struct{ resourceBuilder }

// NewCategoryQueryBuilder returns a CategoryQueryBuilder.
func NewCategoryQueryBuilder() *CategoryQueryBuilder {
	return &CategoryQueryBuilder{newResourceBuilder(func() []bson.D {
		return []bson.D{Lookup(models.CollectionCategories, "public_id", "parent", "children")}
	}, nil)}
}

// LogQueryBuilder filters object logs by the ACL of the logged object's type.
type LogQueryBuilder struct{ resourceBuilder }

// NewLogQueryBuilder returns a LogQueryBuilder.
func NewLogQueryBuilder() *LogQueryBuilder {
	return &LogQueryBuilder{newResourceBuilder(nil, NewAccessControlQueryBuilder().BuildLooked)}
}
