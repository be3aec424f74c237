package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/HerbHall/rackledger/pkg/models"
)

func TestNonNil(t *testing.T) {
	if got := nonNil(nil); got == nil || len(got) != 0 {
		t.Errorf("nonNil(nil) = %#v, want empty document", got)
	}
	f := bson.D{{Key: "public_id", Value: 1}}
	if got := nonNil(f); len(got) != 1 {
		t.Errorf("nonNil kept %d elements, want 1", len(got))
	}
}

func TestNewMongoConnector_InvalidURI(t *testing.T) {
	_, err := NewMongoConnector(context.Background(), MongoConfig{URI: "not-a-uri"}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for invalid URI")
	}
}

// TestMongoDatabase_Integration runs against a live server when
// RACKLEDGER_TEST_MONGO_URI is set.
func TestMongoDatabase_Integration(t *testing.T) {
	uri := os.Getenv("RACKLEDGER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("RACKLEDGER_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := NewMongoConnector(ctx, MongoConfig{URI: uri, ConnectRetries: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close(context.Background())

	db := conn.Database("rackledger_it_" + time.Now().Format("150405"))
	defer conn.client.Database(db.(*MongoDatabase).db.Name()).Drop(context.Background())

	id, err := db.NextPublicID(ctx, models.CollectionTypes)
	if err != nil || id != 1 {
		t.Fatalf("NextPublicID = %d, %v; want 1", id, err)
	}
	if err := db.InsertOne(ctx, models.CollectionTypes, bson.D{{Key: "public_id", Value: id}, {Key: "name", Value: "server"}}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	doc, err := db.FindOne(ctx, models.CollectionTypes, bson.D{{Key: "public_id", Value: id}})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if doc["name"] != "server" {
		t.Errorf("name = %v", doc["name"])
	}
	matched, err := db.ReplaceOne(ctx, models.CollectionTypes, bson.D{{Key: "public_id", Value: id}},
		bson.D{{Key: "public_id", Value: id}, {Key: "label", Value: "Server"}})
	if err != nil || matched != 1 {
		t.Fatalf("ReplaceOne = %d, %v; want 1, nil", matched, err)
	}
	doc, err = db.FindOne(ctx, models.CollectionTypes, bson.D{{Key: "public_id", Value: id}})
	if err != nil {
		t.Fatalf("FindOne after replace: %v", err)
	}
	if _, ok := doc["name"]; ok {
		t.Errorf("name survived replace: %v", doc["name"])
	}
	if _, err := db.FindOne(ctx, models.CollectionTypes, bson.D{{Key: "public_id", Value: 99}}); !errors.Is(err, ErrNoDocuments) {
		t.Errorf("missing document err = %v, want ErrNoDocuments", err)
	}
}
