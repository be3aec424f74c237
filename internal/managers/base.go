package managers

import (
	"context"
	"errors"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/HerbHall/rackledger/internal/database"
	"github.com/HerbHall/rackledger/internal/query"
)

// core implements the storage operations shared by every manager.
type core[T any] struct {
	db         database.Database
	kind       Kind
	newBuilder func() query.Builder
	logger     *zap.Logger
	deps       Deps
}

func newCore[T any](db database.Database, kind Kind, newBuilder func() query.Builder, deps Deps) core[T] {
	deps = deps.withDefaults()
	return core[T]{
		db:         db,
		kind:       kind,
		newBuilder: newBuilder,
		logger:     deps.Logger.Named(kind.String()),
		deps:       deps,
	}
}

func (c *core[T]) collection() string { return c.kind.Collection() }

func (c *core[T]) resource() string { return c.kind.String() }

func (c *core[T]) observe(op string, start time.Time, err error) {
	c.deps.Metrics.ObserveOperation(c.resource(), op, time.Since(start), err)
	if err != nil {
		c.logger.Debug("operation failed", zap.String("op", op), zap.Error(err))
	}
}

// iterate runs the page and count pipelines concurrently and hydrates the
// page. A count pipeline that yields no document means a total of zero.
func (c *core[T]) iterate(ctx context.Context, params query.Parameters, access *query.Access) (*query.IterationResult[T], error) {
	return c.iterateWith(ctx, c.newBuilder(), params, access)
}

func (c *core[T]) iterateWith(ctx context.Context, builder query.Builder, params query.Parameters, access *query.Access) (_ *query.IterationResult[T], err error) {
	defer func(start time.Time) { c.observe("iterate", start, err) }(time.Now())

	page, err := builder.Build(params.Filter, params.Limit, params.Skip(), params.Sort, params.Order, access)
	if err != nil {
		return nil, &IterationError{Resource: c.resource(), Err: err}
	}
	if len(params.Projection) > 0 {
		page = append(page, query.Project(params.Projection))
	}
	count, err := builder.Count(params.Filter, access)
	if err != nil {
		return nil, &IterationError{Resource: c.resource(), Err: err}
	}

	var (
		raw   []bson.M
		total int
	)
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		docs, err := c.db.Aggregate(ctx, c.collection(), page)
		raw = docs
		return err
	})
	p.Go(func(ctx context.Context) error {
		docs, err := c.db.Aggregate(ctx, c.collection(), count)
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			total = intValue(docs[0][query.TotalField])
		}
		return nil
	})
	if err := p.Wait(); err != nil {
		return nil, &IterationError{Resource: c.resource(), Err: &GetError{Resource: c.resource(), Err: err}}
	}

	results, err := hydrateAll[T](raw)
	if err != nil {
		return nil, &IterationError{Resource: c.resource(), Err: err}
	}
	return query.NewIterationResult(results, total), nil
}

// aggregate runs an arbitrary pipeline and hydrates every record.
func (c *core[T]) aggregate(ctx context.Context, pipeline query.Pipeline) (_ []T, err error) {
	defer func(start time.Time) { c.observe("aggregate", start, err) }(time.Now())
	docs, err := c.db.Aggregate(ctx, c.collection(), pipeline)
	if err != nil {
		return nil, &GetError{Resource: c.resource(), Err: err}
	}
	return hydrateAll[T](docs)
}

func (c *core[T]) get(ctx context.Context, id int) (_ *T, err error) {
	defer func(start time.Time) { c.observe("get", start, err) }(time.Now())
	out, err := c.findOne(ctx, bson.D{{Key: "public_id", Value: id}})
	if err != nil {
		var ge *GetError
		if errors.As(err, &ge) {
			ge.ID = id
		}
		return nil, err
	}
	return out, nil
}

func (c *core[T]) findOne(ctx context.Context, filter bson.D) (*T, error) {
	doc, err := c.db.FindOne(ctx, c.collection(), filter)
	if errors.Is(err, database.ErrNoDocuments) {
		return nil, &GetError{Resource: c.resource(), Err: ErrNotFound}
	}
	if err != nil {
		return nil, &GetError{Resource: c.resource(), Err: err}
	}
	out, err := query.Hydrate[T](doc)
	if err != nil {
		return nil, &GetError{Resource: c.resource(), Err: err}
	}
	return &out, nil
}

func (c *core[T]) find(ctx context.Context, filter bson.D, opts database.FindOptions) ([]T, error) {
	docs, err := c.db.Find(ctx, c.collection(), filter, opts)
	if err != nil {
		return nil, &GetError{Resource: c.resource(), Err: err}
	}
	return hydrateAll[T](docs)
}

func (c *core[T]) count(ctx context.Context, filter bson.D) (int, error) {
	n, err := c.db.CountDocuments(ctx, c.collection(), filter)
	if err != nil {
		return 0, &GetError{Resource: c.resource(), Err: err}
	}
	return int(n), nil
}

func (c *core[T]) nextID(ctx context.Context) (int, error) {
	id, err := c.db.NextPublicID(ctx, c.collection())
	if err != nil {
		return 0, &InsertError{Resource: c.resource(), Err: err}
	}
	return id, nil
}

func (c *core[T]) insert(ctx context.Context, doc *T) (err error) {
	defer func(start time.Time) { c.observe("insert", start, err) }(time.Now())
	if err := c.db.InsertOne(ctx, c.collection(), doc); err != nil {
		return &InsertError{Resource: c.resource(), Err: err}
	}
	return nil
}

// update replaces the stored document with doc. Fields doc leaves empty
// under omitempty are gone afterwards.
func (c *core[T]) update(ctx context.Context, id int, doc *T) (err error) {
	defer func(start time.Time) { c.observe("update", start, err) }(time.Now())
	matched, err := c.db.ReplaceOne(ctx, c.collection(), bson.D{{Key: "public_id", Value: id}}, doc)
	if err != nil {
		return &UpdateError{Resource: c.resource(), ID: id, Err: err}
	}
	if matched != 1 {
		return &UpdateError{Resource: c.resource(), ID: id, Err: ErrNotFound}
	}
	return nil
}

// set applies a $set to one document; anything but exactly one match fails.
func (c *core[T]) set(ctx context.Context, id int, fields bson.D) (err error) {
	defer func(start time.Time) { c.observe("update", start, err) }(time.Now())
	matched, err := c.db.UpdateOne(ctx, c.collection(),
		bson.D{{Key: "public_id", Value: id}},
		bson.D{{Key: "$set", Value: fields}})
	if err != nil {
		return &UpdateError{Resource: c.resource(), ID: id, Err: err}
	}
	if matched != 1 {
		return &UpdateError{Resource: c.resource(), ID: id, Err: ErrNotFound}
	}
	return nil
}

func (c *core[T]) delete(ctx context.Context, id int) (err error) {
	defer func(start time.Time) { c.observe("delete", start, err) }(time.Now())
	n, err := c.db.DeleteOne(ctx, c.collection(), bson.D{{Key: "public_id", Value: id}})
	if err != nil {
		return &DeleteError{Resource: c.resource(), ID: id, Err: err}
	}
	if n == 0 {
		return &DeleteError{Resource: c.resource(), ID: id, Err: ErrNotFound}
	}
	return nil
}

func hydrateAll[T any](docs []bson.M) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := query.Hydrate[T](d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func intValue(v any) int {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
