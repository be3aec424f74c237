package models

// Location places an object in the physical location tree.
type Location struct {
	PublicID       int    `json:"public_id" bson:"public_id"`
	Name           string `json:"name" bson:"name"`
	Parent         int    `json:"parent" bson:"parent"`
	ObjectID       int    `json:"object_id" bson:"object_id"`
	TypeID         int    `json:"type_id" bson:"type_id"`
	TypeLabel      string `json:"type_label,omitempty" bson:"type_label,omitempty"`
	TypeIcon       string `json:"type_icon,omitempty" bson:"type_icon,omitempty"`
	TypeSelectable bool   `json:"type_selectable" bson:"type_selectable"`
}

// RootLocationID is the parent value of top-level locations.
const RootLocationID = 0

// LocationNode is a location with its resolved children.
type LocationNode struct {
	Location Location       `json:"location"`
	Children []LocationNode `json:"children"`
}
