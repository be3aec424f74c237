package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/HerbHall/rackledger/internal/database"
	"github.com/HerbHall/rackledger/internal/query"
	"github.com/HerbHall/rackledger/pkg/models"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Compile-time interface guard.
var _ database.Database = (*SQLiteDatabase)(nil)

// SQLiteDatabase is one logical database inside a SQLiteStore.
type SQLiteDatabase struct {
	store *SQLiteStore
	name  string
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type row struct {
	id  string
	doc bson.D
}

func (d *SQLiteDatabase) key(collection string) string {
	return d.name + "/" + collection
}

func (d *SQLiteDatabase) loadRows(ctx context.Context, q queryer, collection string) ([]row, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, body FROM documents WHERE collection = ? ORDER BY rowid`, d.key(collection))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		var doc bson.D
		if err := bson.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		out = append(out, row{id: id, doc: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

func (d *SQLiteDatabase) loader(ctx context.Context) func(string) ([]bson.D, error) {
	return func(collection string) ([]bson.D, error) {
		rows, err := d.loadRows(ctx, d.store.db, collection)
		if err != nil {
			return nil, err
		}
		docs := make([]bson.D, len(rows))
		for i, r := range rows {
			docs[i] = r.doc
		}
		return docs, nil
	}
}

func (d *SQLiteDatabase) run(ctx context.Context, collection string, stages []bson.D) ([]bson.M, error) {
	pipeline, err := normalizePipeline(stages)
	if err != nil {
		return nil, err
	}
	load := d.loader(ctx)
	docs, err := load(collection)
	if err != nil {
		return nil, err
	}
	out, err := newEvaluator(load).run(docs, pipeline, nil)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", collection, err)
	}
	results := make([]bson.M, len(out))
	for i, doc := range out {
		results[i] = toM(doc)
	}
	return results, nil
}

// Aggregate evaluates pipeline in process over the collection's documents.
func (d *SQLiteDatabase) Aggregate(ctx context.Context, collection string, pipeline query.Pipeline) ([]bson.M, error) {
	return d.run(ctx, collection, pipeline)
}

// Find returns documents matching filter, sorted, paged and projected per opts.
func (d *SQLiteDatabase) Find(ctx context.Context, collection string, filter bson.D, opts database.FindOptions) ([]bson.M, error) {
	stages := []bson.D{query.Match(filter)}
	if len(opts.Sort) > 0 {
		stages = append(stages, bson.D{{Key: "$sort", Value: opts.Sort}})
	}
	if opts.Skip > 0 {
		stages = append(stages, query.Skip(opts.Skip))
	}
	if opts.Limit > 0 {
		stages = append(stages, query.Limit(opts.Limit))
	}
	if len(opts.Projection) > 0 {
		stages = append(stages, query.Project(opts.Projection))
	}
	return d.run(ctx, collection, stages)
}

// FindOne returns the first match or database.ErrNoDocuments.
func (d *SQLiteDatabase) FindOne(ctx context.Context, collection string, filter bson.D) (bson.M, error) {
	docs, err := d.Find(ctx, collection, filter, database.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, database.ErrNoDocuments
	}
	return docs[0], nil
}

// CountDocuments counts documents matching filter.
func (d *SQLiteDatabase) CountDocuments(ctx context.Context, collection string, filter bson.D) (int64, error) {
	docs, err := d.run(ctx, collection, []bson.D{query.Match(filter)})
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// InsertOne stores doc, generating an ObjectID _id when it has none.
func (d *SQLiteDatabase) InsertOne(ctx context.Context, collection string, doc any) error {
	body, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("insert %s: marshal: %w", collection, err)
	}
	var parsed bson.D
	if err := bson.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("insert %s: %w", collection, err)
	}
	id, ok := lookupKey(parsed, "_id")
	if !ok {
		id = bson.NewObjectID()
		parsed = append(bson.D{{Key: "_id", Value: id}}, parsed...)
		if body, err = bson.Marshal(parsed); err != nil {
			return fmt.Errorf("insert %s: marshal: %w", collection, err)
		}
	}
	_, err = d.store.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)`,
		d.key(collection), idString(id), body)
	if err != nil {
		return fmt.Errorf("insert %s: %w", collection, err)
	}
	return nil
}

// modify applies fn to every document matching filter (or only the first
// when one is set) inside a single transaction. fn returns the replacement
// document, or nil to delete.
func (d *SQLiteDatabase) modify(ctx context.Context, collection string, filter bson.D, one bool, fn func(bson.D) (bson.D, error)) (int64, error) {
	match, err := normalizeStage(filter)
	if err != nil {
		return 0, err
	}
	var n int64
	err = d.store.Tx(ctx, func(tx *sql.Tx) error {
		rows, err := d.loadRows(ctx, tx, collection)
		if err != nil {
			return err
		}
		ev := newEvaluator(nil)
		for _, r := range rows {
			ok, err := ev.matches(r.doc, match, nil)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			n++
			next, err := fn(r.doc)
			if err != nil {
				return err
			}
			if next == nil {
				_, err = tx.ExecContext(ctx,
					`DELETE FROM documents WHERE collection = ? AND id = ?`, d.key(collection), r.id)
			} else {
				var body []byte
				if body, err = bson.Marshal(next); err != nil {
					return err
				}
				_, err = tx.ExecContext(ctx,
					`UPDATE documents SET body = ? WHERE collection = ? AND id = ?`, body, d.key(collection), r.id)
			}
			if err != nil {
				return err
			}
			if one {
				break
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("modify %s: %w", collection, err)
	}
	return n, nil
}

// UpdateOne applies the $set, $unset and $inc operators of update to the
// first match and returns the matched count.
func (d *SQLiteDatabase) UpdateOne(ctx context.Context, collection string, filter, update bson.D) (int64, error) {
	upd, err := normalizeStage(update)
	if err != nil {
		return 0, err
	}
	return d.modify(ctx, collection, filter, true, func(doc bson.D) (bson.D, error) {
		return applyUpdate(doc, upd)
	})
}

// ReplaceOne rewrites the body of the first document matching filter. The
// stored _id survives; doc must not carry one.
func (d *SQLiteDatabase) ReplaceOne(ctx context.Context, collection string, filter bson.D, doc any) (int64, error) {
	body, err := bson.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("replace %s: marshal: %w", collection, err)
	}
	var next bson.D
	if err := bson.Unmarshal(body, &next); err != nil {
		return 0, fmt.Errorf("replace %s: %w", collection, err)
	}
	if _, ok := lookupKey(next, "_id"); ok {
		return 0, fmt.Errorf("replace %s: _id is immutable", collection)
	}
	return d.modify(ctx, collection, filter, true, func(cur bson.D) (bson.D, error) {
		out := make(bson.D, 0, len(next)+1)
		if id, ok := lookupKey(cur, "_id"); ok {
			out = append(out, bson.E{Key: "_id", Value: id})
		}
		return append(out, next...), nil
	})
}

// DeleteOne removes the first match.
func (d *SQLiteDatabase) DeleteOne(ctx context.Context, collection string, filter bson.D) (int64, error) {
	return d.modify(ctx, collection, filter, true, func(bson.D) (bson.D, error) { return nil, nil })
}

// DeleteMany removes every match and returns how many went.
func (d *SQLiteDatabase) DeleteMany(ctx context.Context, collection string, filter bson.D) (int64, error) {
	return d.modify(ctx, collection, filter, false, func(bson.D) (bson.D, error) { return nil, nil })
}

// NextPublicID increments the counter in one statement; SQLite serialises
// writers, so concurrent callers never share a value.
func (d *SQLiteDatabase) NextPublicID(ctx context.Context, collection string) (int, error) {
	var next int
	err := d.store.db.QueryRowContext(ctx, `
		INSERT INTO counters (collection, value) VALUES (?, 1)
		ON CONFLICT(collection) DO UPDATE SET value = value + 1
		RETURNING value`, d.key(models.CollectionCounters+"/"+collection),
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next public id %s: %w", collection, err)
	}
	return next, nil
}

func idString(id any) string {
	switch v := id.(type) {
	case bson.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func toM(doc bson.D) bson.M {
	m := make(bson.M, len(doc))
	for _, e := range doc {
		m[e.Key] = e.Value
	}
	return m
}
