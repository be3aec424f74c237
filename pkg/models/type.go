package models

import (
	"time"

	"github.com/HerbHall/rackledger/internal/acl"
)

// FieldType enumerates the value kinds a Type field may hold.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeTextArea FieldType = "textarea"
	FieldTypeNumber   FieldType = "number"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeDate     FieldType = "date"
	FieldTypeRef      FieldType = "ref"
	FieldTypeSelect   FieldType = "select"
)

// TypeField describes one named, typed attribute of a Type.
type TypeField struct {
	Name     string    `json:"name" bson:"name"`
	Label    string    `json:"label" bson:"label"`
	Type     FieldType `json:"type" bson:"type"`
	Required bool      `json:"required,omitempty" bson:"required,omitempty"`
	RefTypes []int     `json:"ref_types,omitempty" bson:"ref_types,omitempty"`
	Options  []string  `json:"options,omitempty" bson:"options,omitempty"`
}

// RenderSection groups field names for display.
type RenderSection struct {
	Name   string   `json:"name" bson:"name"`
	Label  string   `json:"label" bson:"label"`
	Fields []string `json:"fields" bson:"fields"`
}

// RenderMeta carries presentation hints for a Type.
type RenderMeta struct {
	Icon     string          `json:"icon,omitempty" bson:"icon,omitempty"`
	Sections []RenderSection `json:"sections,omitempty" bson:"sections,omitempty"`
	Summary  []string        `json:"summary,omitempty" bson:"summary,omitempty"`
}

// Type is a user-defined schema for one kind of CMDB object.
type Type struct {
	PublicID     int                    `json:"public_id" bson:"public_id"`
	Name         string                 `json:"name" bson:"name"`
	Label        string                 `json:"label" bson:"label"`
	Description  string                 `json:"description,omitempty" bson:"description,omitempty"`
	Active       bool                   `json:"active" bson:"active"`
	Version      string                 `json:"version" bson:"version"`
	AuthorID     int                    `json:"author_id" bson:"author_id"`
	EditorID     int                    `json:"editor_id,omitempty" bson:"editor_id,omitempty"`
	CreationTime time.Time              `json:"creation_time" bson:"creation_time"`
	LastEditTime *time.Time             `json:"last_edit_time,omitempty" bson:"last_edit_time,omitempty"`
	Fields       []TypeField            `json:"fields" bson:"fields"`
	RenderMeta   RenderMeta             `json:"render_meta" bson:"render_meta"`
	CategoryID   int                    `json:"category_id,omitempty" bson:"category_id,omitempty"`
	ACL          *acl.AccessControlList `json:"acl,omitempty" bson:"acl,omitempty"`
}

// Field returns the named field definition.
func (t *Type) Field(name string) (TypeField, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return TypeField{}, false
}

// RequiredFields returns the names of all required fields.
func (t *Type) RequiredFields() []string {
	var names []string
	for _, f := range t.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}
