package models

// CategoryMeta carries display hints for a category.
type CategoryMeta struct {
	Icon  string `json:"icon,omitempty" bson:"icon,omitempty"`
	Order int    `json:"order,omitempty" bson:"order,omitempty"`
}

// Category is a node in the type category tree.
type Category struct {
	PublicID int          `json:"public_id" bson:"public_id"`
	Name     string       `json:"name" bson:"name"`
	Label    string       `json:"label" bson:"label"`
	Meta     CategoryMeta `json:"meta" bson:"meta"`
	Parent   *int         `json:"parent" bson:"parent"`
	Types    []int        `json:"types" bson:"types"`
}

// CategoryNode is a category with its resolved children.
type CategoryNode struct {
	Category Category       `json:"category"`
	Children []CategoryNode `json:"children"`
}
