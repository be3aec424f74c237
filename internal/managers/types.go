package managers

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HerbHall/rackledger/internal/database"
	"github.com/HerbHall/rackledger/internal/query"
	"github.com/HerbHall/rackledger/pkg/models"
)

var validFieldTypes = map[models.FieldType]bool{
	models.FieldTypeText:     true,
	models.FieldTypeTextArea: true,
	models.FieldTypeNumber:   true,
	models.FieldTypeCheckbox: true,
	models.FieldTypeDate:     true,
	models.FieldTypeRef:      true,
	models.FieldTypeSelect:   true,
}

// TypesManager manages object schemas.
type TypesManager struct {
	core[models.Type]
}

// NewTypesManager returns a TypesManager on db.
func NewTypesManager(db database.Database, deps Deps) *TypesManager {
	return &TypesManager{newCore[models.Type](db, KindTypes,
		func() query.Builder { return query.NewDefaultQueryBuilder() }, deps)}
}

// Iterate returns one page of types.
func (m *TypesManager) Iterate(ctx context.Context, params query.Parameters) (*query.IterationResult[models.Type], error) {
	return m.iterate(ctx, params, nil)
}

// Get returns the type with the given public id.
func (m *TypesManager) Get(ctx context.Context, id int) (*models.Type, error) {
	return m.get(ctx, id)
}

// All returns every type ordered by public id.
func (m *TypesManager) All(ctx context.Context) ([]models.Type, error) {
	return m.find(ctx, bson.D{}, database.FindOptions{Sort: bson.D{{Key: "public_id", Value: 1}}})
}

func validateType(t *models.Type) error {
	if strings.TrimSpace(t.Name) == "" {
		return validationf("type name is required")
	}
	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if f.Name == "" {
			return validationf("field name is required")
		}
		if seen[f.Name] {
			return validationf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		if !validFieldTypes[f.Type] {
			return validationf("field %q has unknown type %q", f.Name, f.Type)
		}
		if f.Type == models.FieldTypeSelect && len(f.Options) == 0 {
			return validationf("select field %q needs options", f.Name)
		}
	}
	if err := t.ACL.Validate(); err != nil {
		return validationf("%v", err)
	}
	return nil
}

func (m *TypesManager) nameTaken(ctx context.Context, name string, except int) (bool, error) {
	n, err := m.count(ctx, bson.D{
		{Key: "name", Value: name},
		{Key: "public_id", Value: bson.D{{Key: "$ne", Value: except}}},
	})
	return n > 0, err
}

// Insert validates t, assigns its public id and stores it.
func (m *TypesManager) Insert(ctx context.Context, t *models.Type, req *Requester) (int, error) {
	if err := validateType(t); err != nil {
		return 0, &InsertError{Resource: m.resource(), Err: err}
	}
	taken, err := m.nameTaken(ctx, t.Name, 0)
	if err != nil {
		return 0, &InsertError{Resource: m.resource(), Err: err}
	}
	if taken {
		return 0, &InsertError{Resource: m.resource(), Err: ErrAlreadyExists}
	}
	id, err := m.nextID(ctx)
	if err != nil {
		return 0, err
	}
	t.PublicID = id
	t.AuthorID = req.userID()
	t.CreationTime = m.deps.Now()
	if t.Version == "" {
		t.Version = "1.0.0"
	}
	if t.Label == "" {
		t.Label = t.Name
	}
	if err := m.insert(ctx, t); err != nil {
		return 0, err
	}
	m.logger.Info("type created", zapID(id), zapName(t.Name))
	return id, nil
}

// Update replaces the stored type.
func (m *TypesManager) Update(ctx context.Context, t *models.Type, req *Requester) error {
	if err := validateType(t); err != nil {
		return &UpdateError{Resource: m.resource(), ID: t.PublicID, Err: err}
	}
	current, err := m.Get(ctx, t.PublicID)
	if err != nil {
		return err
	}
	taken, err := m.nameTaken(ctx, t.Name, t.PublicID)
	if err != nil {
		return &UpdateError{Resource: m.resource(), ID: t.PublicID, Err: err}
	}
	if taken {
		return &UpdateError{Resource: m.resource(), ID: t.PublicID, Err: ErrAlreadyExists}
	}
	now := m.deps.Now()
	t.AuthorID = current.AuthorID
	t.CreationTime = current.CreationTime
	t.EditorID = req.userID()
	t.LastEditTime = &now
	t.Version = bumpMinor(current.Version)
	return m.update(ctx, t.PublicID, t)
}

// Delete removes a type that no object uses any more.
func (m *TypesManager) Delete(ctx context.Context, id int) error {
	n, err := m.db.CountDocuments(ctx, models.CollectionObjects, bson.D{{Key: "type_id", Value: id}})
	if err != nil {
		return &DeleteError{Resource: m.resource(), ID: id, Err: err}
	}
	if n > 0 {
		return &DeleteError{Resource: m.resource(), ID: id, Err: ErrInUse}
	}
	if err := m.delete(ctx, id); err != nil {
		return err
	}
	// Drop the type from any category listing it.
	cats := NewCategoriesManager(m.db, m.deps)
	return cats.removeType(ctx, id)
}
