package query

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestOperators(t *testing.T) {
	tests := []struct {
		name string
		got  bson.D
		want bson.D
	}{
		{"eq", Eq("a", 1), bson.D{{Key: "a", Value: bson.D{{Key: "$eq", Value: 1}}}}},
		{"ne", Ne("a", 1), bson.D{{Key: "a", Value: bson.D{{Key: "$ne", Value: 1}}}}},
		{"gt", Gt("a", 1), bson.D{{Key: "a", Value: bson.D{{Key: "$gt", Value: 1}}}}},
		{"gte", Gte("a", 1), bson.D{{Key: "a", Value: bson.D{{Key: "$gte", Value: 1}}}}},
		{"lt", Lt("a", 1), bson.D{{Key: "a", Value: bson.D{{Key: "$lt", Value: 1}}}}},
		{"lte", Lte("a", 1), bson.D{{Key: "a", Value: bson.D{{Key: "$lte", Value: 1}}}}},
		{"in", In("a", 1, 2), bson.D{{Key: "a", Value: bson.D{{Key: "$in", Value: bson.A{1, 2}}}}}},
		{"nin", Nin("a", "x"), bson.D{{Key: "a", Value: bson.D{{Key: "$nin", Value: bson.A{"x"}}}}}},
		{"exists", Exists("a", false), bson.D{{Key: "a", Value: bson.D{{Key: "$exists", Value: false}}}}},
		{"and", And(Eq("a", 1), Eq("b", 2)), bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "a", Value: bson.D{{Key: "$eq", Value: 1}}}},
			bson.D{{Key: "b", Value: bson.D{{Key: "$eq", Value: 2}}}},
		}}}},
		{"or of none", Or(), bson.D{{Key: "$or", Value: bson.A{}}}},
		{"regex default options", Regex("a", "^x", ""), bson.D{{Key: "a", Value: bson.D{
			{Key: "$regex", Value: "^x"}, {Key: "$options", Value: "i"},
		}}}},
		{"match nil", Match(nil), bson.D{{Key: "$match", Value: bson.D{}}}},
		{"count", Count("total"), bson.D{{Key: "$count", Value: "total"}}},
		{"skip", Skip(20), bson.D{{Key: "$skip", Value: 20}}},
		{"limit", Limit(10), bson.D{{Key: "$limit", Value: 10}}},
		{"unwind", Unwind("$type", false), bson.D{{Key: "$unwind", Value: bson.D{{Key: "path", Value: "$type"}}}}},
		{"unwind preserve", Unwind("$author", true), bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$author"}, {Key: "preserveNullAndEmptyArrays", Value: true},
		}}}},
		{"lookup", Lookup("framework.types", "type_id", "public_id", "type"), bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "framework.types"}, {Key: "localField", Value: "type_id"},
			{Key: "foreignField", Value: "public_id"}, {Key: "as", Value: "type"},
		}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, tc.got); diff != "" {
				t.Errorf("%s mismatch (-want +got):\n%s", tc.name, diff)
			}
		})
	}
}

func TestOperators_DoNotMutateInputs(t *testing.T) {
	a := Eq("a", 1)
	_ = And(a, Eq("b", 2))
	_ = Not(a)
	_ = Match(a)
	assert.Equal(t, Eq("a", 1), a)
}

func TestSort(t *testing.T) {
	s, err := Sort("public_id", Descending)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$sort", Value: bson.D{{Key: "public_id", Value: -1}}}}, s)

	for _, order := range []int{0, 2, -2} {
		_, err := Sort("public_id", order)
		assert.True(t, errors.Is(err, ErrInvalidSortOrder), "order %d", order)
	}
}

func TestFacet(t *testing.T) {
	got := Facet(
		Branch{Name: "a", Pipeline: Pipeline{Count("count")}},
		Branch{Name: "b", Pipeline: Pipeline{Skip(1)}},
	)
	want := bson.D{{Key: "$facet", Value: bson.D{
		{Key: "a", Value: bson.A{bson.D{{Key: "$count", Value: "count"}}}},
		{Key: "b", Value: bson.A{bson.D{{Key: "$skip", Value: 1}}}},
	}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Facet mismatch (-want +got):\n%s", diff)
	}
}

func TestGroup(t *testing.T) {
	got := Group("$type_id", bson.D{{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}}})
	want := bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: "$type_id"},
		{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
	}}}
	assert.Equal(t, want, got)
}
