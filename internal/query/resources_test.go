package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HerbHall/rackledger/internal/acl"
	"github.com/HerbHall/rackledger/pkg/models"
)

func hasStage(p Pipeline, name string) bool {
	for _, s := range p {
		if len(s) == 1 && s[0].Key == name {
			return true
		}
	}
	return false
}

func TestDefaultQueryBuilder_Build(t *testing.T) {
	b := NewDefaultQueryBuilder()
	got, err := b.Build(MatchFilter(Eq("active", true)), 10, 20, "public_id", Ascending, nil)
	require.NoError(t, err)

	want := Pipeline{
		Match(Eq("active", true)),
		bson.D{{Key: "$sort", Value: bson.D{{Key: "public_id", Value: 1}}}},
		Skip(20),
		Limit(10),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pipeline mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_ZeroLimitOmitsPagination(t *testing.T) {
	builders := map[string]Builder{
		"default":  NewDefaultQueryBuilder(),
		"object":   NewObjectQueryBuilder(),
		"location": NewLocationQueryBuilder(),
		"category": NewCategoryQueryBuilder(),
		"log":      NewLogQueryBuilder(),
	}
	for name, b := range builders {
		t.Run(name, func(t *testing.T) {
			got, err := b.Build(Filter{}, 0, 40, "", Ascending, &Access{GroupID: 2, Permission: acl.PermissionRead})
			require.NoError(t, err)
			assert.False(t, hasStage(got, "$skip"), "limit 0 must not emit $skip")
			assert.False(t, hasStage(got, "$limit"), "limit 0 must not emit $limit")
		})
	}
}

func TestCount_IsBuildPrefixPlusCount(t *testing.T) {
	access := &Access{GroupID: 2, Permission: acl.PermissionRead}
	filter := MatchFilter(Eq("type_id", 3))

	b := NewObjectQueryBuilder()
	page, err := b.Build(filter, 10, 0, "public_id", Ascending, access)
	require.NoError(t, err)
	count, err := b.Count(filter, access)
	require.NoError(t, err)

	// Build appends one sort stage and two pagination stages.
	prefix := page[:len(page)-3]
	want := append(append(Pipeline{}, prefix...), Count(TotalField))
	if diff := cmp.Diff(want, count); diff != "" {
		t.Errorf("count pipeline mismatch (-want +got):\n%s", diff)
	}
}

func TestObjectQueryBuilder_StageOrder(t *testing.T) {
	access := &Access{GroupID: 2, Permission: acl.PermissionRead}
	got, err := NewObjectQueryBuilder().Build(MatchFilter(Eq("active", true)), 10, 0, "", Ascending, access)
	require.NoError(t, err)

	preset := objectPreset()
	require.Greater(t, len(got), len(preset))
	assert.Equal(t, Pipeline(preset), got[:len(preset)], "joins come first")
	assert.Equal(t, Match(Eq("active", true)), got[len(preset)], "filter follows the joins")

	assert.Equal(t, Match(acl.MatchCondition("type", 2, acl.PermissionRead)), got[len(preset)+1],
		"access control follows the filter")

	typeJoins := 0
	for _, s := range got {
		if s[0].Key != "$lookup" {
			continue
		}
		if from, _ := s[0].Value.(bson.D)[0].Value.(string); from == models.CollectionTypes {
			typeJoins++
		}
	}
	assert.Equal(t, 1, typeJoins, "the preset type join is reused by access control")
}

func TestSearchReferencesQueryBuilder_ACLReusesTypeJoin(t *testing.T) {
	access := &Access{GroupID: 2, Permission: acl.PermissionRead}
	got, err := NewSearchReferencesQueryBuilder(7, 3).Build(Filter{}, 10, 0, "", Ascending, access)
	require.NoError(t, err)
	assert.True(t, hasStage(got, "$addFields"))
	lookups := 0
	for _, s := range got {
		if s[0].Key == "$lookup" {
			lookups++
		}
	}
	assert.Equal(t, 1, lookups)
}

func TestBuild_ListFilterAppendedVerbatim(t *testing.T) {
	stages := []bson.D{Match(Eq("a", 1)), AddFields(bson.D{{Key: "x", Value: 1}})}
	got, err := NewDefaultQueryBuilder().Build(StageFilter(stages...), 0, 0, "", Ascending, nil)
	require.NoError(t, err)
	assert.Equal(t, Pipeline(stages), got[:2])
}

func TestBuild_NilAccessSkipsACL(t *testing.T) {
	got, err := NewLocationQueryBuilder().Build(Filter{}, 10, 0, "", Ascending, nil)
	require.NoError(t, err)
	assert.False(t, hasStage(got, "$lookup"))
}

func TestBuild_InvalidOrder(t *testing.T) {
	_, err := NewDefaultQueryBuilder().Build(Filter{}, 10, 0, "public_id", 3, nil)
	assert.ErrorIs(t, err, ErrInvalidSortOrder)
}

func TestSortStages_DynamicField(t *testing.T) {
	stages, err := SortStages("fields.hostname", Descending)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "$addFields", stages[0][0].Key)
	assert.Equal(t, bson.D{{Key: "$sort", Value: bson.D{{Key: "order", Value: -1}}}}, stages[1])
}

func TestLogQueryBuilder_LooksUpObjectFirst(t *testing.T) {
	got, err := NewLogQueryBuilder().Build(Filter{}, 10, 0, "", Ascending, &Access{GroupID: 2, Permission: acl.PermissionRead})
	require.NoError(t, err)
	assert.Equal(t, Lookup(models.CollectionObjects, "object_id", "public_id", "object"), got[1])
}

func TestSearchCondition(t *testing.T) {
	assert.Equal(t, Regex("fields.value", `web\.01`, "i"), SearchCondition(" web.01 "))
	assert.Equal(t, Or(
		Regex("fields.value", "42", "i"),
		Eq("fields.value", 42),
		Eq("public_id", 42),
	), SearchCondition("42"))
}

func TestQuickSearchQueryBuilder(t *testing.T) {
	got := NewQuickSearchQueryBuilder().Build("web", nil)
	require.Len(t, got, 2)
	assert.Equal(t, "$facet", got[1][0].Key)

	withACL := NewQuickSearchQueryBuilder().Build("web", &Access{GroupID: 2, Permission: acl.PermissionRead})
	assert.Len(t, withACL, 5)
}
