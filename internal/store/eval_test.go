package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func mustNormalize(t *testing.T, stages ...bson.D) []bson.D {
	t.Helper()
	out, err := normalizePipeline(stages)
	if err != nil {
		t.Fatalf("normalizePipeline: %v", err)
	}
	return out
}

func publicIDs(t *testing.T, docs []bson.D) []int {
	t.Helper()
	ids := make([]int, 0, len(docs))
	for _, d := range docs {
		v, ok := lookupKey(d, "public_id")
		if !ok {
			t.Fatalf("document without public_id: %v", d)
		}
		n, _ := toInt(v)
		ids = append(ids, n)
	}
	return ids
}

func sampleObjects() []bson.D {
	return []bson.D{
		{{Key: "public_id", Value: int32(1)}, {Key: "type_id", Value: int32(1)}, {Key: "active", Value: true},
			{Key: "fields", Value: bson.A{
				bson.D{{Key: "name", Value: "hostname"}, {Key: "value", Value: "web-01"}},
				bson.D{{Key: "name", Value: "units"}, {Key: "value", Value: int32(2)}},
			}}},
		{{Key: "public_id", Value: int32(2)}, {Key: "type_id", Value: int32(2)}, {Key: "active", Value: false},
			{Key: "fields", Value: bson.A{
				bson.D{{Key: "name", Value: "hostname"}, {Key: "value", Value: "db-01"}},
				bson.D{{Key: "name", Value: "units"}, {Key: "value", Value: int32(4)}},
			}}},
		{{Key: "public_id", Value: int32(3)}, {Key: "type_id", Value: int32(1)}, {Key: "active", Value: true},
			{Key: "fields", Value: bson.A{
				bson.D{{Key: "name", Value: "hostname"}, {Key: "value", Value: "web-02"}},
			}}},
	}
}

func sampleTypes() []bson.D {
	return []bson.D{
		{{Key: "public_id", Value: int32(1)}, {Key: "name", Value: "server"}},
		{{Key: "public_id", Value: int32(2)}, {Key: "name", Value: "database"}},
	}
}

func sampleLoader(collection string) ([]bson.D, error) {
	switch collection {
	case "types":
		return sampleTypes(), nil
	case "objects":
		return sampleObjects(), nil
	default:
		return nil, nil
	}
}

func TestEvaluator_Match(t *testing.T) {
	tests := []struct {
		name   string
		filter bson.D
		want   []int
	}{
		{"empty", bson.D{}, []int{1, 2, 3}},
		{"equality", bson.D{{Key: "active", Value: true}}, []int{1, 3}},
		{"nested array path", bson.D{{Key: "fields.value", Value: "db-01"}}, []int{2}},
		{"gt same bracket only", bson.D{{Key: "fields.value", Value: bson.D{{Key: "$gt", Value: 3}}}}, []int{2}},
		{"in", bson.D{{Key: "public_id", Value: bson.D{{Key: "$in", Value: bson.A{1, 3}}}}}, []int{1, 3}},
		{"nin", bson.D{{Key: "public_id", Value: bson.D{{Key: "$nin", Value: bson.A{1, 3}}}}}, []int{2}},
		{"or", bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "public_id", Value: 1}},
			bson.D{{Key: "type_id", Value: 2}},
		}}}, []int{1, 2}},
		{"nor", bson.D{{Key: "$nor", Value: bson.A{bson.D{{Key: "type_id", Value: 1}}}}}, []int{2}},
		{"regex case insensitive", bson.D{{Key: "fields.value", Value: bson.D{
			{Key: "$regex", Value: "^WEB"}, {Key: "$options", Value: "i"},
		}}}, []int{1, 3}},
		{"exists false", bson.D{{Key: "missing", Value: bson.D{{Key: "$exists", Value: false}}}}, []int{1, 2, 3}},
		{"equality with null matches missing", bson.D{{Key: "missing", Value: nil}}, []int{1, 2, 3}},
		{"elemMatch", bson.D{{Key: "fields", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
			{Key: "name", Value: "units"}, {Key: "value", Value: 4},
		}}}}}, []int{2}},
		{"size", bson.D{{Key: "fields", Value: bson.D{{Key: "$size", Value: 1}}}}, []int{3}},
		{"not", bson.D{{Key: "type_id", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$eq", Value: 1}}}}}}, []int{2}},
		{"expr", bson.D{{Key: "$expr", Value: bson.D{{Key: "$eq", Value: bson.A{"$type_id", "$public_id"}}}}}, []int{1, 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pipeline := mustNormalize(t, bson.D{{Key: "$match", Value: tc.filter}})
			out, err := newEvaluator(nil).run(sampleObjects(), pipeline, nil)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if diff := cmp.Diff(tc.want, publicIDs(t, out)); diff != "" {
				t.Errorf("public ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEvaluator_LookupSimple(t *testing.T) {
	pipeline := mustNormalize(t,
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "types"}, {Key: "localField", Value: "type_id"},
			{Key: "foreignField", Value: "public_id"}, {Key: "as", Value: "type"},
		}}},
		bson.D{{Key: "$unwind", Value: "$type"}},
		bson.D{{Key: "$match", Value: bson.D{{Key: "type.name", Value: "server"}}}},
	)
	out, err := newEvaluator(sampleLoader).run(sampleObjects(), pipeline, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]int{1, 3}, publicIDs(t, out)); diff != "" {
		t.Errorf("public ids mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluator_LookupPipeline(t *testing.T) {
	pipeline := mustNormalize(t,
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "types"},
			{Key: "let", Value: bson.D{{Key: "type_id", Value: "$type_id"}}},
			{Key: "pipeline", Value: bson.A{
				bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{
					{Key: "$eq", Value: bson.A{"$public_id", "$$type_id"}},
				}}}}},
			}},
			{Key: "as", Value: "type"},
		}}},
		bson.D{{Key: "$unwind", Value: "$type"}},
	)
	out, err := newEvaluator(sampleLoader).run(sampleObjects(), pipeline, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	name, _ := exactValue(out[1], []string{"type", "name"})
	if name != "database" {
		t.Errorf("out[1].type.name = %v, want database", name)
	}
}

func TestEvaluator_UnwindPreserve(t *testing.T) {
	docs := []bson.D{
		{{Key: "public_id", Value: int32(1)}, {Key: "tags", Value: bson.A{"a", "b"}}},
		{{Key: "public_id", Value: int32(2)}, {Key: "tags", Value: bson.A{}}},
		{{Key: "public_id", Value: int32(3)}},
		{{Key: "public_id", Value: int32(4)}, {Key: "tags", Value: "solo"}},
	}
	dropped, err := newEvaluator(nil).run(docs, mustNormalize(t, bson.D{{Key: "$unwind", Value: "$tags"}}), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]int{1, 1, 4}, publicIDs(t, dropped)); diff != "" {
		t.Errorf("without preserve (-want +got):\n%s", diff)
	}

	kept, err := newEvaluator(nil).run(docs, mustNormalize(t, bson.D{{Key: "$unwind", Value: bson.D{
		{Key: "path", Value: "$tags"}, {Key: "preserveNullAndEmptyArrays", Value: true},
	}}}), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]int{1, 1, 2, 3, 4}, publicIDs(t, kept)); diff != "" {
		t.Errorf("with preserve (-want +got):\n%s", diff)
	}
	if _, ok := lookupKey(kept[2], "tags"); ok {
		t.Error("empty array should be removed when preserved")
	}
}

func TestEvaluator_SortSkipLimit(t *testing.T) {
	pipeline := mustNormalize(t,
		bson.D{{Key: "$sort", Value: bson.D{{Key: "type_id", Value: -1}, {Key: "public_id", Value: 1}}}},
		bson.D{{Key: "$skip", Value: 1}},
		bson.D{{Key: "$limit", Value: 1}},
	)
	out, err := newEvaluator(nil).run(sampleObjects(), pipeline, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]int{1}, publicIDs(t, out)); diff != "" {
		t.Errorf("public ids mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluator_SortByFieldValue(t *testing.T) {
	pipeline := mustNormalize(t,
		bson.D{{Key: "$addFields", Value: bson.D{{Key: "order", Value: bson.D{{Key: "$filter", Value: bson.D{
			{Key: "input", Value: "$fields"},
			{Key: "as", Value: "fields"},
			{Key: "cond", Value: bson.D{{Key: "$eq", Value: bson.A{"$$fields.name", "hostname"}}}},
		}}}}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "order", Value: 1}}}},
	)
	out, err := newEvaluator(nil).run(sampleObjects(), pipeline, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]int{2, 1, 3}, publicIDs(t, out)); diff != "" {
		t.Errorf("public ids mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluator_CountEmpty(t *testing.T) {
	pipeline := mustNormalize(t,
		bson.D{{Key: "$match", Value: bson.D{{Key: "public_id", Value: 99}}}},
		bson.D{{Key: "$count", Value: "total"}},
	)
	out, err := newEvaluator(nil).run(sampleObjects(), pipeline, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("count over no documents emitted %v", out)
	}
}

func TestEvaluator_Facet(t *testing.T) {
	pipeline := mustNormalize(t, bson.D{{Key: "$facet", Value: bson.D{
		{Key: "active", Value: bson.A{
			bson.D{{Key: "$match", Value: bson.D{{Key: "active", Value: true}}}},
			bson.D{{Key: "$count", Value: "count"}},
		}},
		{Key: "total", Value: bson.A{bson.D{{Key: "$count", Value: "count"}}}},
	}}})
	out, err := newEvaluator(nil).run(sampleObjects(), pipeline, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []bson.D{{
		{Key: "active", Value: bson.A{bson.D{{Key: "count", Value: int32(2)}}}},
		{Key: "total", Value: bson.A{bson.D{{Key: "count", Value: int32(3)}}}},
	}}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("facet mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluator_Group(t *testing.T) {
	pipeline := mustNormalize(t,
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$type_id"},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "ids", Value: bson.D{{Key: "$push", Value: "$public_id"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	)
	out, err := newEvaluator(nil).run(sampleObjects(), pipeline, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []bson.D{
		{{Key: "_id", Value: int32(1)}, {Key: "n", Value: int64(2)}, {Key: "ids", Value: bson.A{int32(1), int32(3)}}},
		{{Key: "_id", Value: int32(2)}, {Key: "n", Value: int64(1)}, {Key: "ids", Value: bson.A{int32(2)}}},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("group mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluator_Project(t *testing.T) {
	docs := []bson.D{{{Key: "_id", Value: "x"}, {Key: "public_id", Value: int32(1)}, {Key: "password", Value: "secret"}}}

	excluded, err := newEvaluator(nil).run(docs, mustNormalize(t, bson.D{{Key: "$project", Value: bson.D{{Key: "password", Value: 0}}}}), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []bson.D{{{Key: "_id", Value: "x"}, {Key: "public_id", Value: int32(1)}}}
	if diff := cmp.Diff(want, excluded); diff != "" {
		t.Errorf("exclusion mismatch (-want +got):\n%s", diff)
	}

	included, err := newEvaluator(nil).run(docs, mustNormalize(t, bson.D{{Key: "$project", Value: bson.D{
		{Key: "_id", Value: 0}, {Key: "public_id", Value: 1},
	}}}), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want = []bson.D{{{Key: "public_id", Value: int32(1)}}}
	if diff := cmp.Diff(want, included); diff != "" {
		t.Errorf("inclusion mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluator_UnknownStage(t *testing.T) {
	_, err := newEvaluator(nil).run(sampleObjects(), mustNormalize(t, bson.D{{Key: "$out", Value: "x"}}), nil)
	if err == nil {
		t.Fatal("expected error for unsupported stage")
	}
}

func TestApplyUpdate(t *testing.T) {
	doc := bson.D{{Key: "public_id", Value: int32(1)}, {Key: "counter", Value: int32(5)}, {Key: "old", Value: "x"}}
	upd := bson.D{
		{Key: "$set", Value: bson.D{{Key: "meta.name", Value: "n"}}},
		{Key: "$unset", Value: bson.D{{Key: "old", Value: ""}}},
		{Key: "$inc", Value: bson.D{{Key: "counter", Value: int32(2)}}},
	}
	got, err := applyUpdate(doc, upd)
	if err != nil {
		t.Fatalf("applyUpdate: %v", err)
	}
	want := bson.D{
		{Key: "public_id", Value: int32(1)},
		{Key: "counter", Value: int32(7)},
		{Key: "meta", Value: bson.D{{Key: "name", Value: "n"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("update mismatch (-want +got):\n%s", diff)
	}

	if _, err := applyUpdate(doc, bson.D{{Key: "$push", Value: bson.D{{Key: "x", Value: 1}}}}); err == nil {
		t.Error("expected error for unsupported operator")
	}
}
