package managers

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HerbHall/rackledger/internal/acl"
	"github.com/HerbHall/rackledger/internal/database"
	"github.com/HerbHall/rackledger/internal/query"
	"github.com/HerbHall/rackledger/pkg/models"
)

// SearchCounts is the quick search summary.
type SearchCounts struct {
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
	Total    int `json:"total"`
}

// ObjectsManager manages CMDB objects. Every change writes an entry to the
// object's log.
type ObjectsManager struct {
	core[models.Object]
	types *TypesManager
	logs  *LogsManager
}

// NewObjectsManager returns an ObjectsManager on db.
func NewObjectsManager(db database.Database, deps Deps) *ObjectsManager {
	return &ObjectsManager{
		core: newCore[models.Object](db, KindObjects,
			func() query.Builder { return query.NewObjectQueryBuilder() }, deps),
		types: NewTypesManager(db, deps),
		logs:  NewLogsManager(db, deps),
	}
}

// Iterate returns one page of the objects req may read.
func (m *ObjectsManager) Iterate(ctx context.Context, params query.Parameters, req *Requester) (*query.IterationResult[models.Object], error) {
	return m.iterate(ctx, params, req.access(acl.PermissionRead))
}

// Search pages through objects whose field values match term.
func (m *ObjectsManager) Search(ctx context.Context, term string, params query.Parameters, req *Requester) (*query.IterationResult[models.Object], error) {
	params.Filter = params.Filter.With(query.SearchCondition(term))
	return m.Iterate(ctx, params, req)
}

// QuickSearch counts the readable objects matching term by active state.
func (m *ObjectsManager) QuickSearch(ctx context.Context, term string, req *Requester) (SearchCounts, error) {
	pipeline := query.NewQuickSearchQueryBuilder().Build(term, req.access(acl.PermissionRead))
	docs, err := m.db.Aggregate(ctx, m.collection(), pipeline)
	if err != nil {
		return SearchCounts{}, &GetError{Resource: m.resource(), Err: err}
	}
	var out SearchCounts
	if len(docs) == 0 {
		return out, nil
	}
	out.Active = facetCount(docs[0][query.FacetActive])
	out.Inactive = facetCount(docs[0][query.FacetInactive])
	out.Total = facetCount(docs[0][query.FacetTotal])
	return out, nil
}

func facetCount(v any) int {
	arr, ok := v.(bson.A)
	if !ok || len(arr) == 0 {
		return 0
	}
	switch d := arr[0].(type) {
	case bson.D:
		for _, e := range d {
			if e.Key == "count" {
				return intValue(e.Value)
			}
		}
	case bson.M:
		return intValue(d["count"])
	}
	return 0
}

// References pages through the readable objects whose ref fields point at id.
func (m *ObjectsManager) References(ctx context.Context, id int, params query.Parameters, req *Requester) (*query.IterationResult[models.Object], error) {
	obj, err := m.Get(ctx, id, req)
	if err != nil {
		return nil, err
	}
	builder := query.NewSearchReferencesQueryBuilder(obj.PublicID, obj.TypeID)
	return m.iterateWith(ctx, builder, params, req.access(acl.PermissionRead))
}

// CountByType returns how many objects use the type.
func (m *ObjectsManager) CountByType(ctx context.Context, typeID int) (int, error) {
	return m.count(ctx, bson.D{{Key: "type_id", Value: typeID}})
}

// ByType returns every object of a type ordered by public id, filtered by
// the type ACL.
func (m *ObjectsManager) ByType(ctx context.Context, typeID int, req *Requester) ([]models.Object, error) {
	typ, err := m.types.Get(ctx, typeID)
	if err != nil {
		return nil, err
	}
	if err := req.verify(m.types.resource(), typeID, typ.ACL, acl.PermissionRead); err != nil {
		return nil, err
	}
	return m.find(ctx, bson.D{{Key: "type_id", Value: typeID}},
		database.FindOptions{Sort: bson.D{{Key: "public_id", Value: 1}}})
}

// Get returns one object after checking the read permission of its type.
func (m *ObjectsManager) Get(ctx context.Context, id int, req *Requester) (*models.Object, error) {
	obj, _, err := m.getChecked(ctx, id, req, acl.PermissionRead)
	return obj, err
}

func (m *ObjectsManager) getChecked(ctx context.Context, id int, req *Requester, perm acl.Permission) (*models.Object, *models.Type, error) {
	obj, err := m.get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	typ, err := m.types.Get(ctx, obj.TypeID)
	if err != nil {
		return nil, nil, err
	}
	if err := req.verify(m.resource(), id, typ.ACL, perm); err != nil {
		return nil, nil, err
	}
	return obj, typ, nil
}

// Insert validates obj against its type, assigns a public id, stores it and
// logs the creation.
func (m *ObjectsManager) Insert(ctx context.Context, obj *models.Object, req *Requester) (int, error) {
	typ, err := m.types.Get(ctx, obj.TypeID)
	if err != nil {
		return 0, &InsertError{Resource: m.resource(), Err: validationf("type %d does not exist", obj.TypeID)}
	}
	if err := req.verify(m.resource(), 0, typ.ACL, acl.PermissionCreate); err != nil {
		return 0, err
	}
	if err := m.validate(ctx, typ, obj); err != nil {
		return 0, &InsertError{Resource: m.resource(), Err: err}
	}

	id, err := m.nextID(ctx)
	if err != nil {
		return 0, err
	}
	obj.PublicID = id
	obj.AuthorID = req.userID()
	obj.EditorID = 0
	obj.CreationTime = m.deps.Now()
	obj.LastEditTime = nil
	if obj.Version == "" {
		obj.Version = "1.0.0"
	}
	if err := m.insert(ctx, obj); err != nil {
		return 0, err
	}
	m.logs.record(ctx, models.LogActionCreate, obj, req, nil, "")
	m.logger.Info("object created", zapID(id), zapTypeID(obj.TypeID))
	return id, nil
}

// Update replaces an object's field values. The type of an object cannot
// change.
func (m *ObjectsManager) Update(ctx context.Context, obj *models.Object, req *Requester) error {
	current, typ, err := m.getChecked(ctx, obj.PublicID, req, acl.PermissionUpdate)
	if err != nil {
		return err
	}
	if obj.TypeID != 0 && obj.TypeID != current.TypeID {
		return &UpdateError{Resource: m.resource(), ID: obj.PublicID, Err: validationf("type of an object cannot change")}
	}
	obj.TypeID = current.TypeID
	obj.Active = current.Active
	if err := m.validate(ctx, typ, obj); err != nil {
		return &UpdateError{Resource: m.resource(), ID: obj.PublicID, Err: err}
	}

	changes := diffFields(current.Fields, obj.Fields)
	now := m.deps.Now()
	obj.AuthorID = current.AuthorID
	obj.CreationTime = current.CreationTime
	obj.EditorID = req.userID()
	obj.LastEditTime = &now
	obj.Version = bumpMinor(current.Version)
	if err := m.update(ctx, obj.PublicID, obj); err != nil {
		return err
	}
	m.logs.record(ctx, models.LogActionEdit, obj, req, changes, "")
	return nil
}

// SetActive switches an object's active state. Setting the current state is
// a no-op.
func (m *ObjectsManager) SetActive(ctx context.Context, id int, active bool, req *Requester) error {
	current, _, err := m.getChecked(ctx, id, req, acl.PermissionUpdate)
	if err != nil {
		return err
	}
	if current.Active == active {
		return nil
	}
	now := m.deps.Now()
	current.Active = active
	current.EditorID = req.userID()
	current.LastEditTime = &now
	current.Version = bumpVersion(current.Version)
	if err := m.set(ctx, id, bson.D{
		{Key: "active", Value: active},
		{Key: "editor_id", Value: current.EditorID},
		{Key: "last_edit_time", Value: now},
		{Key: "version", Value: current.Version},
	}); err != nil {
		return err
	}
	m.logs.record(ctx, models.LogActionActiveChange, current, req,
		[]models.FieldChange{{Name: "active", Before: !active, After: active}}, "")
	return nil
}

// Delete removes an object together with its links and its location.
func (m *ObjectsManager) Delete(ctx context.Context, id int, req *Requester) error {
	current, _, err := m.getChecked(ctx, id, req, acl.PermissionDelete)
	if err != nil {
		return err
	}
	if err := m.delete(ctx, id); err != nil {
		return err
	}
	if _, err := m.db.DeleteMany(ctx, models.CollectionLinks, query.Or(
		query.Eq("primary", id), query.Eq("secondary", id),
	)); err != nil {
		return &DeleteError{Resource: KindLinks.String(), ID: id, Err: err}
	}
	if _, err := m.db.DeleteMany(ctx, models.CollectionLocations, query.Eq("object_id", id)); err != nil {
		return &DeleteError{Resource: KindLocations.String(), ID: id, Err: err}
	}
	m.logs.record(ctx, models.LogActionDelete, current, req, nil, "")
	return nil
}

// validate checks obj's values against typ and normalises them in place.
func (m *ObjectsManager) validate(ctx context.Context, typ *models.Type, obj *models.Object) error {
	if !typ.Active {
		return validationf("type %q is inactive", typ.Name)
	}
	seen := make(map[string]bool, len(obj.Fields))
	for i, fv := range obj.Fields {
		if seen[fv.Name] {
			return validationf("duplicate field %q", fv.Name)
		}
		seen[fv.Name] = true
		def, ok := typ.Field(fv.Name)
		if !ok {
			return validationf("field %q is not defined by type %q", fv.Name, typ.Name)
		}
		v, err := m.normalizeValue(ctx, def, fv.Value)
		if err != nil {
			return err
		}
		obj.Fields[i].Value = v
	}
	for _, name := range typ.RequiredFields() {
		v, ok := obj.Value(name)
		if !ok || isEmpty(v) {
			return validationf("field %q is required", name)
		}
	}
	return nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func (m *ObjectsManager) normalizeValue(ctx context.Context, def models.TypeField, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch def.Type {
	case models.FieldTypeText, models.FieldTypeTextArea:
		s, ok := v.(string)
		if !ok {
			return nil, validationf("field %q must be text", def.Name)
		}
		return s, nil
	case models.FieldTypeNumber:
		n, ok := numeric(v)
		if !ok {
			return nil, validationf("field %q must be a number", def.Name)
		}
		return n, nil
	case models.FieldTypeCheckbox:
		b, ok := v.(bool)
		if !ok {
			return nil, validationf("field %q must be true or false", def.Name)
		}
		return b, nil
	case models.FieldTypeDate:
		return parseDate(def.Name, v)
	case models.FieldTypeSelect:
		s, ok := v.(string)
		if !ok || !slices.Contains(def.Options, s) {
			return nil, validationf("field %q must be one of %v", def.Name, def.Options)
		}
		return s, nil
	case models.FieldTypeRef:
		n, ok := numeric(v)
		id, isInt := n.(int)
		if !ok || !isInt {
			return nil, validationf("field %q must reference an object id", def.Name)
		}
		ref, err := m.get(ctx, id)
		if err != nil {
			return nil, validationf("field %q references missing object %d", def.Name, id)
		}
		if len(def.RefTypes) > 0 && !slices.Contains(def.RefTypes, ref.TypeID) {
			return nil, validationf("field %q cannot reference objects of type %d", def.Name, ref.TypeID)
		}
		return id, nil
	default:
		return v, nil
	}
}

// numeric accepts the number shapes JSON and BSON decoding produce. Whole
// floats become ints.
func numeric(v any) (any, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < math.MaxInt32 {
			return int(n), true
		}
		return n, true
	default:
		return nil, false
	}
}

func parseDate(name string, v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Truncate(time.Millisecond), nil
	case bson.DateTime:
		return t.Time().UTC(), nil
	case string:
		for _, layout := range []string{time.RFC3339, time.DateOnly} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC().Truncate(time.Millisecond), nil
			}
		}
	}
	return nil, validationf("field %q must be a date (RFC 3339 or YYYY-MM-DD)", name)
}

// diffFields lists the fields whose value differs between before and after.
func diffFields(before, after []models.FieldValue) []models.FieldChange {
	old := make(map[string]any, len(before))
	for _, f := range before {
		old[f.Name] = f.Value
	}
	var changes []models.FieldChange
	seen := make(map[string]bool, len(after))
	for _, f := range after {
		seen[f.Name] = true
		prev, existed := old[f.Name]
		if existed && sameValue(prev, f.Value) {
			continue
		}
		changes = append(changes, models.FieldChange{Name: f.Name, Before: prev, After: f.Value})
	}
	for _, f := range before {
		if !seen[f.Name] {
			changes = append(changes, models.FieldChange{Name: f.Name, Before: f.Value, After: nil})
		}
	}
	return changes
}

// sameValue compares values that may have crossed a BSON round trip, where
// int becomes int32 and times lose their location.
func sameValue(a, b any) bool {
	ta, aTime := asTime(a)
	tb, bTime := asTime(b)
	if aTime || bTime {
		return aTime && bTime && ta.Equal(tb)
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case bson.DateTime:
		return t.Time(), true
	default:
		return time.Time{}, false
	}
}
