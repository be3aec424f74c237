package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/HerbHall/rackledger/internal/acl"
	"github.com/HerbHall/rackledger/internal/database"
	"github.com/HerbHall/rackledger/internal/query"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestNew_MigratesOnce(t *testing.T) {
	s := newTestStore(t)
	if err := s.Migrate(context.Background(), "documents", schema); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM _migrations WHERE component = 'documents'`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != len(schema) {
		t.Errorf("applied migrations = %d, want %d", n, len(schema))
	}
}

func TestSQLiteDatabase_CRUD(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t).Database("crud")

	for i := 1; i <= 3; i++ {
		doc := bson.D{{Key: "public_id", Value: i}, {Key: "name", Value: fmt.Sprintf("item-%d", i)}}
		if err := db.InsertOne(ctx, "things", doc); err != nil {
			t.Fatalf("InsertOne: %v", err)
		}
	}

	got, err := db.FindOne(ctx, "things", bson.D{{Key: "public_id", Value: 2}})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if got["name"] != "item-2" {
		t.Errorf("name = %v, want item-2", got["name"])
	}
	if _, ok := got["_id"].(bson.ObjectID); !ok {
		t.Errorf("_id = %T, want generated ObjectID", got["_id"])
	}

	matched, err := db.UpdateOne(ctx, "things",
		bson.D{{Key: "public_id", Value: 2}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "name", Value: "renamed"}}}})
	if err != nil || matched != 1 {
		t.Fatalf("UpdateOne = %d, %v; want 1, nil", matched, err)
	}
	got, _ = db.FindOne(ctx, "things", bson.D{{Key: "public_id", Value: 2}})
	if got["name"] != "renamed" {
		t.Errorf("name after update = %v, want renamed", got["name"])
	}

	matched, err = db.UpdateOne(ctx, "things", bson.D{{Key: "public_id", Value: 42}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "name", Value: "x"}}}})
	if err != nil || matched != 0 {
		t.Errorf("UpdateOne on missing = %d, %v; want 0, nil", matched, err)
	}

	docs, err := db.Find(ctx, "things", bson.D{}, database.FindOptions{
		Sort:  bson.D{{Key: "public_id", Value: -1}},
		Limit: 2,
	})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(docs) != 2 || docs[0]["name"] != "item-3" {
		t.Errorf("Find sorted desc = %v", docs)
	}

	deleted, err := db.DeleteMany(ctx, "things", bson.D{{Key: "public_id", Value: bson.D{{Key: "$gte", Value: 2}}}})
	if err != nil || deleted != 2 {
		t.Fatalf("DeleteMany = %d, %v; want 2, nil", deleted, err)
	}
	n, err := db.CountDocuments(ctx, "things", bson.D{})
	if err != nil || n != 1 {
		t.Errorf("CountDocuments = %d, %v; want 1, nil", n, err)
	}

	if _, err := db.FindOne(ctx, "things", bson.D{{Key: "public_id", Value: 3}}); !errors.Is(err, database.ErrNoDocuments) {
		t.Errorf("FindOne deleted: err = %v, want ErrNoDocuments", err)
	}
}

func TestSQLiteDatabase_ReplaceOneDropsMissingKeys(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t).Database("replace")

	doc := bson.D{{Key: "public_id", Value: 1}, {Key: "name", Value: "rack"}, {Key: "acl", Value: bson.D{{Key: "activated", Value: true}}}}
	if err := db.InsertOne(ctx, "types", doc); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	before, err := db.FindOne(ctx, "types", bson.D{{Key: "public_id", Value: 1}})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}

	matched, err := db.ReplaceOne(ctx, "types", bson.D{{Key: "public_id", Value: 1}},
		bson.D{{Key: "public_id", Value: 1}, {Key: "name", Value: "cabinet"}})
	if err != nil || matched != 1 {
		t.Fatalf("ReplaceOne = %d, %v; want 1, nil", matched, err)
	}
	after, err := db.FindOne(ctx, "types", bson.D{{Key: "public_id", Value: 1}})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if _, ok := after["acl"]; ok {
		t.Errorf("acl survived replace: %v", after["acl"])
	}
	if after["name"] != "cabinet" {
		t.Errorf("name = %v, want cabinet", after["name"])
	}
	if after["_id"] != before["_id"] {
		t.Errorf("_id changed from %v to %v", before["_id"], after["_id"])
	}

	matched, err = db.ReplaceOne(ctx, "types", bson.D{{Key: "public_id", Value: 9}}, bson.D{{Key: "name", Value: "x"}})
	if err != nil || matched != 0 {
		t.Errorf("ReplaceOne on missing = %d, %v; want 0, nil", matched, err)
	}
	if _, err := db.ReplaceOne(ctx, "types", bson.D{{Key: "public_id", Value: 1}},
		bson.D{{Key: "_id", Value: "other"}}); err == nil {
		t.Error("ReplaceOne with _id: expected error")
	}
}

func TestSQLiteDatabase_TenantsIsolated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, b := s.Database("tenant_a"), s.Database("tenant_b")

	if err := a.InsertOne(ctx, "things", bson.D{{Key: "public_id", Value: 1}}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	n, err := b.CountDocuments(ctx, "things", bson.D{})
	if err != nil || n != 0 {
		t.Errorf("tenant_b count = %d, %v; want 0, nil", n, err)
	}

	idA, _ := a.NextPublicID(ctx, "things")
	idB, _ := b.NextPublicID(ctx, "things")
	if idA != 1 || idB != 1 {
		t.Errorf("first ids = %d, %d; want 1, 1", idA, idB)
	}
}

func TestSQLiteDatabase_NextPublicIDConcurrent(t *testing.T) {
	ctx := context.Background()
	db := newTestStore(t).Database("ids")

	const workers = 20
	ids := make(chan int, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := db.NextPublicID(ctx, "objects")
			if err != nil {
				t.Errorf("NextPublicID: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate public id %d", id)
		}
		seen[id] = true
	}
	for i := 1; i <= workers; i++ {
		if !seen[i] {
			t.Errorf("public id %d never issued", i)
		}
	}
}

// The access-control stages evaluated by the store must agree with the
// policy function for every list shape.
func TestAccessControlStages_AgreeWithPolicy(t *testing.T) {
	ctx := context.Background()

	granted := acl.New()
	granted.Grant(2, acl.PermissionRead)
	otherPerm := acl.New()
	otherPerm.Grant(2, acl.PermissionUpdate)
	otherGroup := acl.New()
	otherGroup.Grant(3, acl.PermissionRead)
	inactive := acl.New()
	inactive.Activated = false
	empty := acl.New()

	lists := []*acl.AccessControlList{nil, granted, otherPerm, otherGroup, inactive, empty}

	for i, l := range lists {
		t.Run(fmt.Sprintf("list_%d", i), func(t *testing.T) {
			db := newTestStore(t).Database("acl")
			typ := bson.D{{Key: "public_id", Value: 1}}
			if l != nil {
				typ = append(typ, bson.E{Key: "acl", Value: l})
			}
			if err := db.InsertOne(ctx, "framework.types", typ); err != nil {
				t.Fatalf("insert type: %v", err)
			}
			if err := db.InsertOne(ctx, "framework.objects", bson.D{
				{Key: "public_id", Value: 1}, {Key: "type_id", Value: 1},
			}); err != nil {
				t.Fatalf("insert object: %v", err)
			}

			for _, perm := range acl.Permissions() {
				pipeline := query.NewAccessControlQueryBuilder().Build(query.Access{GroupID: 2, Permission: perm})
				docs, err := db.Aggregate(ctx, "framework.objects", pipeline)
				if err != nil {
					t.Fatalf("Aggregate: %v", err)
				}
				want := acl.Evaluate(l, 2, perm)
				if got := len(docs) == 1; got != want {
					t.Errorf("%s: visible = %v, policy = %v", perm, got, want)
				}
			}
		})
	}
}
