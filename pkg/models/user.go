package models

import "time"

// User is an account that authenticates against the API.
type User struct {
	PublicID         int       `json:"public_id" bson:"public_id"`
	UserName         string    `json:"user_name" bson:"user_name"`
	Email            string    `json:"email,omitempty" bson:"email,omitempty"`
	Password         string    `json:"-" bson:"password"`
	GroupID          int       `json:"group_id" bson:"group_id"`
	Database         string    `json:"database,omitempty" bson:"database,omitempty"`
	RegistrationTime time.Time `json:"registration_time" bson:"registration_time"`
}

// Group is a set of users sharing access-control grants.
type Group struct {
	PublicID int    `json:"public_id" bson:"public_id"`
	Name     string `json:"name" bson:"name"`
	Label    string `json:"label" bson:"label"`
}

// Default group ids created by setup.
const (
	AdminGroupID = 1
	UserGroupID  = 2
)
