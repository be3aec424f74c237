package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/rackledger/internal/query"
	"github.com/HerbHall/rackledger/pkg/models"
	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ Connector = (*MongoConnector)(nil)
	_ Database  = (*MongoDatabase)(nil)
)

// MongoConfig configures NewMongoConnector.
type MongoConfig struct {
	URI            string
	MaxPoolSize    uint64
	ConnectRetries uint64
	ConnectTimeout time.Duration
}

// MongoConnector implements Connector on a MongoDB client.
type MongoConnector struct {
	client *mongo.Client
}

// NewMongoConnector connects to MongoDB and pings it, retrying with
// exponential backoff until ConnectRetries is exhausted.
func NewMongoConnector(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*MongoConnector, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	attempt := 0
	ping := func() error {
		attempt++
		err := client.Ping(ctx, nil)
		if err != nil {
			logger.Warn("mongodb ping failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.ConnectRetries), ctx)
	if err := backoff.Retry(ping, policy); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &MongoConnector{client: client}, nil
}

// Database returns the named database.
func (c *MongoConnector) Database(name string) Database {
	return &MongoDatabase{db: c.client.Database(name)}
}

// Close disconnects the client.
func (c *MongoConnector) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// MongoDatabase implements Database on one MongoDB database.
type MongoDatabase struct {
	db *mongo.Database
}

func (d *MongoDatabase) coll(name string) *mongo.Collection {
	return d.db.Collection(name)
}

// Aggregate runs pipeline on the server and decodes every result.
func (d *MongoDatabase) Aggregate(ctx context.Context, collection string, pipeline query.Pipeline) ([]bson.M, error) {
	cur, err := d.coll(collection).Aggregate(ctx, mongo.Pipeline(pipeline))
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", collection, err)
	}
	var out []bson.M
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("aggregate %s: decode: %w", collection, err)
	}
	return out, nil
}

// Find returns documents matching filter, applying opts.
func (d *MongoDatabase) Find(ctx context.Context, collection string, filter bson.D, opts FindOptions) ([]bson.M, error) {
	fo := options.Find()
	if len(opts.Sort) > 0 {
		fo.SetSort(opts.Sort)
	}
	if opts.Skip > 0 {
		fo.SetSkip(int64(opts.Skip))
	}
	if opts.Limit > 0 {
		fo.SetLimit(int64(opts.Limit))
	}
	if len(opts.Projection) > 0 {
		fo.SetProjection(opts.Projection)
	}
	cur, err := d.coll(collection).Find(ctx, nonNil(filter), fo)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	var out []bson.M
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("find %s: decode: %w", collection, err)
	}
	return out, nil
}

// FindOne returns the first match, mapping mongo.ErrNoDocuments to
// ErrNoDocuments.
func (d *MongoDatabase) FindOne(ctx context.Context, collection string, filter bson.D) (bson.M, error) {
	var out bson.M
	err := d.coll(collection).FindOne(ctx, nonNil(filter)).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoDocuments
	}
	if err != nil {
		return nil, fmt.Errorf("find one %s: %w", collection, err)
	}
	return out, nil
}

// CountDocuments counts documents matching filter.
func (d *MongoDatabase) CountDocuments(ctx context.Context, collection string, filter bson.D) (int64, error) {
	n, err := d.coll(collection).CountDocuments(ctx, nonNil(filter))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// InsertOne stores doc.
func (d *MongoDatabase) InsertOne(ctx context.Context, collection string, doc any) error {
	if _, err := d.coll(collection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert %s: %w", collection, err)
	}
	return nil
}

// UpdateOne applies update to the first match and returns the matched count.
func (d *MongoDatabase) UpdateOne(ctx context.Context, collection string, filter, update bson.D) (int64, error) {
	res, err := d.coll(collection).UpdateOne(ctx, nonNil(filter), update)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", collection, err)
	}
	return res.MatchedCount, nil
}

// ReplaceOne replaces the first document matching filter with doc.
func (d *MongoDatabase) ReplaceOne(ctx context.Context, collection string, filter bson.D, doc any) (int64, error) {
	res, err := d.coll(collection).ReplaceOne(ctx, nonNil(filter), doc)
	if err != nil {
		return 0, fmt.Errorf("replace %s: %w", collection, err)
	}
	return res.MatchedCount, nil
}

// DeleteOne removes the first match.
func (d *MongoDatabase) DeleteOne(ctx context.Context, collection string, filter bson.D) (int64, error) {
	res, err := d.coll(collection).DeleteOne(ctx, nonNil(filter))
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", collection, err)
	}
	return res.DeletedCount, nil
}

// DeleteMany removes every match.
func (d *MongoDatabase) DeleteMany(ctx context.Context, collection string, filter bson.D) (int64, error) {
	res, err := d.coll(collection).DeleteMany(ctx, nonNil(filter))
	if err != nil {
		return 0, fmt.Errorf("delete many %s: %w", collection, err)
	}
	return res.DeletedCount, nil
}

// NextPublicID increments the collection counter with a single
// findAndModify, so concurrent inserts never observe the same value.
func (d *MongoDatabase) NextPublicID(ctx context.Context, collection string) (int, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	var doc struct {
		Counter int `bson:"counter"`
	}
	err := d.coll(models.CollectionCounters).FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: collection}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "counter", Value: 1}}}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next public id %s: %w", collection, err)
	}
	return doc.Counter, nil
}

func nonNil(filter bson.D) bson.D {
	if filter == nil {
		return bson.D{}
	}
	return filter
}
