package managers

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/HerbHall/rackledger/internal/acl"
	"github.com/HerbHall/rackledger/internal/database"
	"github.com/HerbHall/rackledger/internal/query"
	"github.com/HerbHall/rackledger/pkg/models"
)

// LogsManager manages object change logs. Listings are filtered by the ACL
// of the logged object's type.
type LogsManager struct {
	core[models.Log]
	types *TypesManager
}

// NewLogsManager returns a LogsManager on db.
func NewLogsManager(db database.Database, deps Deps) *LogsManager {
	return &LogsManager{
		core: newCore[models.Log](db, KindLogs,
			func() query.Builder { return query.NewLogQueryBuilder() }, deps),
		types: NewTypesManager(db, deps),
	}
}

// Iterate returns one page of the logs req may read.
func (m *LogsManager) Iterate(ctx context.Context, params query.Parameters, req *Requester) (*query.IterationResult[models.Log], error) {
	return m.iterate(ctx, params, req.access(acl.PermissionRead))
}

// ByObject pages through one object's history in the order params ask for,
// oldest first by default.
func (m *LogsManager) ByObject(ctx context.Context, objectID int, params query.Parameters, req *Requester) (*query.IterationResult[models.Log], error) {
	params.Filter = params.Filter.With(query.Eq("object_id", objectID))
	return m.Iterate(ctx, params, req)
}

// Get returns one log entry after checking the read permission of the
// logged object's type.
func (m *LogsManager) Get(ctx context.Context, id int, req *Requester) (*models.Log, error) {
	return m.getChecked(ctx, id, req, acl.PermissionRead)
}

// getChecked applies the listing rule to a single entry: the logged object
// and its type must still exist for a requester to see it.
func (m *LogsManager) getChecked(ctx context.Context, id int, req *Requester, perm acl.Permission) (*models.Log, error) {
	l, err := m.get(ctx, id)
	if err != nil || req == nil {
		return l, err
	}
	denied := &AccessDeniedError{Resource: m.resource(), ID: id, GroupID: req.GroupID, Permission: perm}
	doc, err := m.db.FindOne(ctx, models.CollectionObjects, bson.D{{Key: "public_id", Value: l.ObjectID}})
	if errors.Is(err, database.ErrNoDocuments) {
		return nil, denied
	}
	if err != nil {
		return nil, &GetError{Resource: m.resource(), ID: id, Err: err}
	}
	typ, err := m.types.Get(ctx, intValue(doc["type_id"]))
	if errors.Is(err, ErrNotFound) {
		return nil, denied
	}
	if err != nil {
		return nil, err
	}
	if err := req.verify(m.resource(), id, typ.ACL, perm); err != nil {
		return nil, err
	}
	return l, nil
}

// Insert stores a log entry and returns its public id.
func (m *LogsManager) Insert(ctx context.Context, l *models.Log) (int, error) {
	id, err := m.nextID(ctx)
	if err != nil {
		return 0, err
	}
	l.PublicID = id
	if l.LogType == "" {
		l.LogType = models.ObjectLogType
	}
	if l.LogTime.IsZero() {
		l.LogTime = m.deps.Now()
	}
	if err := m.insert(ctx, l); err != nil {
		return 0, err
	}
	return id, nil
}

// Delete removes one log entry. req needs the delete permission on the
// logged object's type.
func (m *LogsManager) Delete(ctx context.Context, id int, req *Requester) error {
	if _, err := m.getChecked(ctx, id, req, acl.PermissionDelete); err != nil {
		return err
	}
	return m.delete(ctx, id)
}

// DeleteByObject removes an object's whole history.
func (m *LogsManager) DeleteByObject(ctx context.Context, objectID int) (int, error) {
	n, err := m.db.DeleteMany(ctx, m.collection(), bson.D{{Key: "object_id", Value: objectID}})
	if err != nil {
		return 0, &DeleteError{Resource: m.resource(), ID: objectID, Err: err}
	}
	return int(n), nil
}

// record writes a change log for obj. A failed log write does not undo the
// change it describes; it is logged and dropped.
func (m *LogsManager) record(ctx context.Context, action models.LogAction, obj *models.Object, req *Requester, changes []models.FieldChange, comment string) {
	entry := &models.Log{
		Action:   action,
		ObjectID: obj.PublicID,
		Version:  obj.Version,
		UserID:   req.userID(),
		UserName: req.userName(),
		Changes:  changes,
		Comment:  comment,
	}
	if _, err := m.Insert(ctx, entry); err != nil {
		m.logger.Warn("change log not written",
			zap.String("action", string(action)), zapID(obj.PublicID), zap.Error(err))
	}
}
