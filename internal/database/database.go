// Package database defines the document-store contract the managers depend
// on and its MongoDB implementation.
package database

import (
	"context"
	"errors"

	"github.com/HerbHall/rackledger/internal/query"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrNoDocuments is returned by FindOne when nothing matches.
var ErrNoDocuments = errors.New("no documents in result")

// FindOptions controls Find.
type FindOptions struct {
	Sort       bson.D
	Skip       int
	Limit      int // 0 means unbounded.
	Projection bson.D
}

// Database is one logical document database.
type Database interface {
	// Aggregate runs pipeline against collection.
	Aggregate(ctx context.Context, collection string, pipeline query.Pipeline) ([]bson.M, error)

	// Find returns documents matching filter.
	Find(ctx context.Context, collection string, filter bson.D, opts FindOptions) ([]bson.M, error)

	// FindOne returns the first document matching filter or ErrNoDocuments.
	FindOne(ctx context.Context, collection string, filter bson.D) (bson.M, error)

	// CountDocuments counts documents matching filter.
	CountDocuments(ctx context.Context, collection string, filter bson.D) (int64, error)

	// InsertOne stores doc.
	InsertOne(ctx context.Context, collection string, doc any) error

	// UpdateOne applies an update document ($set, $unset, $inc) to the first
	// match and returns the matched count.
	UpdateOne(ctx context.Context, collection string, filter, update bson.D) (int64, error)

	// ReplaceOne swaps the first match for doc, keeping its _id, and returns
	// the matched count.
	ReplaceOne(ctx context.Context, collection string, filter bson.D, doc any) (int64, error)

	// DeleteOne removes the first match and returns the deleted count.
	DeleteOne(ctx context.Context, collection string, filter bson.D) (int64, error)

	// DeleteMany removes every match and returns the deleted count.
	DeleteMany(ctx context.Context, collection string, filter bson.D) (int64, error)

	// NextPublicID atomically increments and returns the public id counter
	// of collection.
	NextPublicID(ctx context.Context, collection string) (int, error)
}

// Connector hands out logical databases by name.
type Connector interface {
	Database(name string) Database
	Close(ctx context.Context) error
}
