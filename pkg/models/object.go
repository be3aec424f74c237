package models

import "time"

// FieldValue is one name/value pair stored on an Object. Values are
// heterogeneous: strings, numbers, booleans, dates or referenced public ids.
type FieldValue struct {
	Name  string `json:"name" bson:"name"`
	Value any    `json:"value" bson:"value"`
}

// Object is a record conforming to a Type.
type Object struct {
	PublicID     int          `json:"public_id" bson:"public_id"`
	TypeID       int          `json:"type_id" bson:"type_id"`
	Version      string       `json:"version" bson:"version"`
	Active       bool         `json:"active" bson:"active"`
	AuthorID     int          `json:"author_id" bson:"author_id"`
	EditorID     int          `json:"editor_id,omitempty" bson:"editor_id,omitempty"`
	CreationTime time.Time    `json:"creation_time" bson:"creation_time"`
	LastEditTime *time.Time   `json:"last_edit_time,omitempty" bson:"last_edit_time,omitempty"`
	Fields       []FieldValue `json:"fields" bson:"fields"`
}

// Value returns the value stored under name.
func (o *Object) Value(name string) (any, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// SetValue replaces or appends the named value.
func (o *Object) SetValue(name string, value any) {
	for i := range o.Fields {
		if o.Fields[i].Name == name {
			o.Fields[i].Value = value
			return
		}
	}
	o.Fields = append(o.Fields, FieldValue{Name: name, Value: value})
}
