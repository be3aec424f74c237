package managers

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HerbHall/rackledger/internal/acl"
	"github.com/HerbHall/rackledger/internal/database"
	"github.com/HerbHall/rackledger/internal/query"
	"github.com/HerbHall/rackledger/pkg/models"
)

// LinksManager manages links between objects.
type LinksManager struct {
	core[models.Link]
	objects *ObjectsManager
}

// NewLinksManager returns a LinksManager on db.
func NewLinksManager(db database.Database, deps Deps) *LinksManager {
	return &LinksManager{
		core: newCore[models.Link](db, KindLinks,
			func() query.Builder { return query.NewDefaultQueryBuilder() }, deps),
		objects: NewObjectsManager(db, deps),
	}
}

// Iterate returns one page of links.
func (m *LinksManager) Iterate(ctx context.Context, params query.Parameters) (*query.IterationResult[models.Link], error) {
	return m.iterate(ctx, params, nil)
}

// ByObject returns one page of the links touching objectID on either end.
func (m *LinksManager) ByObject(ctx context.Context, objectID int, params query.Parameters) (*query.IterationResult[models.Link], error) {
	params.Filter = params.Filter.With(query.Or(
		query.Eq("primary", objectID), query.Eq("secondary", objectID),
	))
	return m.iterate(ctx, params, nil)
}

// Get returns one link.
func (m *LinksManager) Get(ctx context.Context, id int) (*models.Link, error) {
	return m.get(ctx, id)
}

// Insert links two distinct existing objects. req needs update permission on
// the primary object's type.
func (m *LinksManager) Insert(ctx context.Context, l *models.Link, req *Requester) (int, error) {
	if l.Primary == l.Secondary {
		return 0, &InsertError{Resource: m.resource(), Err: validationf("an object cannot link to itself")}
	}
	if _, _, err := m.objects.getChecked(ctx, l.Primary, req, acl.PermissionUpdate); err != nil {
		return 0, m.endpointError(err, "primary", l.Primary)
	}
	if _, _, err := m.objects.getChecked(ctx, l.Secondary, req, acl.PermissionRead); err != nil {
		return 0, m.endpointError(err, "secondary", l.Secondary)
	}
	n, err := m.count(ctx, bson.D{
		{Key: "primary", Value: l.Primary},
		{Key: "secondary", Value: l.Secondary},
	})
	if err != nil {
		return 0, &InsertError{Resource: m.resource(), Err: err}
	}
	if n > 0 {
		return 0, &InsertError{Resource: m.resource(), Err: ErrAlreadyExists}
	}
	id, err := m.nextID(ctx)
	if err != nil {
		return 0, err
	}
	l.PublicID = id
	l.CreationTime = m.deps.Now()
	if err := m.insert(ctx, l); err != nil {
		return 0, err
	}
	return id, nil
}

// endpointError keeps access denials intact and reports missing endpoints as
// validation failures.
func (m *LinksManager) endpointError(err error, end string, id int) error {
	var denied *AccessDeniedError
	if errors.As(err, &denied) {
		return err
	}
	return &InsertError{Resource: m.resource(), Err: validationf("%s object %d does not exist", end, id)}
}

// Delete removes a link.
func (m *LinksManager) Delete(ctx context.Context, id int, req *Requester) error {
	l, err := m.get(ctx, id)
	if err != nil {
		return err
	}
	// A link whose primary object is gone can always be removed.
	_, _, err = m.objects.getChecked(ctx, l.Primary, req, acl.PermissionUpdate)
	var denied *AccessDeniedError
	if errors.As(err, &denied) {
		return err
	}
	return m.delete(ctx, id)
}
