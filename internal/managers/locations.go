package managers

import (
	"context"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HerbHall/rackledger/internal/acl"
	"github.com/HerbHall/rackledger/internal/database"
	"github.com/HerbHall/rackledger/internal/query"
	"github.com/HerbHall/rackledger/pkg/models"
)

// LocationsManager manages the physical location tree. Each object has at
// most one location.
type LocationsManager struct {
	core[models.Location]
	objects *ObjectsManager
}

// NewLocationsManager returns a LocationsManager on db.
func NewLocationsManager(db database.Database, deps Deps) *LocationsManager {
	return &LocationsManager{
		core: newCore[models.Location](db, KindLocations,
			func() query.Builder { return query.NewLocationQueryBuilder() }, deps),
		objects: NewObjectsManager(db, deps),
	}
}

// Iterate returns one page of the locations req may read.
func (m *LocationsManager) Iterate(ctx context.Context, params query.Parameters, req *Requester) (*query.IterationResult[models.Location], error) {
	return m.iterate(ctx, params, req.access(acl.PermissionRead))
}

// Get returns one location after checking read access to its object's type.
func (m *LocationsManager) Get(ctx context.Context, id int, req *Requester) (*models.Location, error) {
	loc, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.verify(ctx, loc, req, acl.PermissionRead); err != nil {
		return nil, err
	}
	return loc, nil
}

// ByObject returns the location of an object.
func (m *LocationsManager) ByObject(ctx context.Context, objectID int, req *Requester) (*models.Location, error) {
	loc, err := m.findOne(ctx, bson.D{{Key: "object_id", Value: objectID}})
	if err != nil {
		return nil, err
	}
	if err := m.verify(ctx, loc, req, acl.PermissionRead); err != nil {
		return nil, err
	}
	return loc, nil
}

func (m *LocationsManager) verify(ctx context.Context, loc *models.Location, req *Requester, perm acl.Permission) error {
	if req == nil {
		return nil
	}
	typ, err := m.objects.types.Get(ctx, loc.TypeID)
	if err != nil {
		return err
	}
	return req.verify(m.resource(), loc.PublicID, typ.ACL, perm)
}

// Tree returns the readable locations nested under their parents.
func (m *LocationsManager) Tree(ctx context.Context, req *Requester) ([]models.LocationNode, error) {
	params := query.DefaultParameters()
	params.Limit = 0
	res, err := m.Iterate(ctx, params, req)
	if err != nil {
		return nil, err
	}
	return buildLocationTree(res.Results), nil
}

func buildLocationTree(locs []models.Location) []models.LocationNode {
	known := make(map[int]bool, len(locs))
	for _, l := range locs {
		known[l.PublicID] = true
	}
	children := make(map[int][]models.Location)
	var roots []models.Location
	for _, l := range locs {
		if l.Parent == models.RootLocationID || !known[l.Parent] || l.Parent == l.PublicID {
			roots = append(roots, l)
			continue
		}
		children[l.Parent] = append(children[l.Parent], l)
	}
	var build func(l models.Location, depth int) models.LocationNode
	build = func(l models.Location, depth int) models.LocationNode {
		node := models.LocationNode{Location: l, Children: []models.LocationNode{}}
		if depth > len(locs) {
			return node
		}
		for _, child := range children[l.PublicID] {
			node.Children = append(node.Children, build(child, depth+1))
		}
		return node
	}
	out := make([]models.LocationNode, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r, 0))
	}
	return out
}

// fill completes a location from its object and type and checks the
// placement rules.
func (m *LocationsManager) fill(ctx context.Context, loc *models.Location, req *Requester, perm acl.Permission) error {
	obj, typ, err := m.objects.getChecked(ctx, loc.ObjectID, req, perm)
	if err != nil {
		return err
	}
	loc.TypeID = obj.TypeID
	loc.TypeLabel = typ.Label
	loc.TypeIcon = typ.RenderMeta.Icon
	if strings.TrimSpace(loc.Name) == "" {
		loc.Name = typ.Label + " #" + strconv.Itoa(obj.PublicID)
	}
	if loc.Parent != models.RootLocationID {
		if loc.Parent == loc.PublicID {
			return validationf("location cannot be its own parent")
		}
		if _, err := m.get(ctx, loc.Parent); err != nil {
			return validationf("parent location %d does not exist", loc.Parent)
		}
	}
	return nil
}

// Insert places an object in the tree.
func (m *LocationsManager) Insert(ctx context.Context, loc *models.Location, req *Requester) (int, error) {
	loc.PublicID = 0
	if err := m.fill(ctx, loc, req, acl.PermissionCreate); err != nil {
		return 0, &InsertError{Resource: m.resource(), Err: err}
	}
	n, err := m.count(ctx, bson.D{{Key: "object_id", Value: loc.ObjectID}})
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
	loc.PublicID = id
	if err := m.insert(ctx, loc); err != nil {
		return 0, err
	}
	return id, nil
}

// Update moves or renames a location. The located object cannot change.
func (m *LocationsManager) Update(ctx context.Context, loc *models.Location, req *Requester) error {
	current, err := m.get(ctx, loc.PublicID)
	if err != nil {
		return err
	}
	if loc.ObjectID != 0 && loc.ObjectID != current.ObjectID {
		return &UpdateError{Resource: m.resource(), ID: loc.PublicID, Err: validationf("located object cannot change")}
	}
	loc.ObjectID = current.ObjectID
	if err := m.fill(ctx, loc, req, acl.PermissionUpdate); err != nil {
		return &UpdateError{Resource: m.resource(), ID: loc.PublicID, Err: err}
	}
	if loc.Parent != models.RootLocationID {
		all, err := m.find(ctx, bson.D{}, database.FindOptions{})
		if err != nil {
			return err
		}
		if locationBelow(all, loc.Parent, loc.PublicID) {
			return &UpdateError{Resource: m.resource(), ID: loc.PublicID,
				Err: validationf("location %d cannot move below its own descendant", loc.PublicID)}
		}
	}
	return m.update(ctx, loc.PublicID, loc)
}

func locationBelow(locs []models.Location, id, ancestor int) bool {
	parents := make(map[int]int, len(locs))
	for _, l := range locs {
		parents[l.PublicID] = l.Parent
	}
	for steps := 0; steps <= len(locs); steps++ {
		if id == ancestor {
			return true
		}
		p, ok := parents[id]
		if !ok || p == models.RootLocationID {
			return false
		}
		id = p
	}
	return false
}

// Delete removes a leaf location.
func (m *LocationsManager) Delete(ctx context.Context, id int, req *Requester) error {
	loc, err := m.get(ctx, id)
	if err != nil {
		return err
	}
	if err := m.verify(ctx, loc, req, acl.PermissionDelete); err != nil {
		return err
	}
	n, err := m.count(ctx, bson.D{{Key: "parent", Value: id}})
	if err != nil {
		return &DeleteError{Resource: m.resource(), ID: id, Err: err}
	}
	if n > 0 {
		return &DeleteError{Resource: m.resource(), ID: id, Err: ErrInUse}
	}
	return m.delete(ctx, id)
}
