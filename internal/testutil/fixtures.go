package testutil

import (
	"time"

	"github.com/HerbHall/rackledger/internal/acl"
	"github.com/HerbHall/rackledger/pkg/models"
)

// NewType returns a Type with sensible defaults, suitable for test fixtures.
// The default type has a required text field "hostname" and an optional
// number field "rack_units".
func NewType(opts ...func(*models.Type)) models.Type {
	t := models.Type{
		PublicID:     1,
		Name:         "server",
		Label:        "Server",
		Active:       true,
		Version:      "1.0.0",
		AuthorID:     1,
		CreationTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Fields: []models.TypeField{
			{Name: "hostname", Label: "Hostname", Type: models.FieldTypeText, Required: true},
			{Name: "rack_units", Label: "Rack units", Type: models.FieldTypeNumber},
		},
		RenderMeta: models.RenderMeta{Icon: "fas fa-server", Summary: []string{"hostname"}},
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// WithTypeID sets the type public id.
func WithTypeID(id int) func(*models.Type) {
	return func(t *models.Type) { t.PublicID = id }
}

// WithTypeName sets the type name and label.
func WithTypeName(name string) func(*models.Type) {
	return func(t *models.Type) { t.Name, t.Label = name, name }
}

// WithFields replaces the type's field definitions.
func WithFields(fields ...models.TypeField) func(*models.Type) {
	return func(t *models.Type) { t.Fields = fields }
}

// WithACL activates the type ACL and grants perms to groupID.
func WithACL(groupID int, perms ...acl.Permission) func(*models.Type) {
	return func(t *models.Type) {
		l := acl.New()
		l.Grant(groupID, perms...)
		t.ACL = l
	}
}

// NewObject returns an active Object of type 1 with a hostname.
func NewObject(opts ...func(*models.Object)) models.Object {
	o := models.Object{
		PublicID:     1,
		TypeID:       1,
		Version:      "1.0.0",
		Active:       true,
		AuthorID:     1,
		CreationTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Fields:       []models.FieldValue{{Name: "hostname", Value: "srv-01"}},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithObjectID sets the object public id.
func WithObjectID(id int) func(*models.Object) {
	return func(o *models.Object) { o.PublicID = id }
}

// WithObjectType sets the object's type id.
func WithObjectType(typeID int) func(*models.Object) {
	return func(o *models.Object) { o.TypeID = typeID }
}

// WithValue sets one field value.
func WithValue(name string, value any) func(*models.Object) {
	return func(o *models.Object) { o.SetValue(name, value) }
}

// WithActive sets the object's active flag.
func WithActive(active bool) func(*models.Object) {
	return func(o *models.Object) { o.Active = active }
}
