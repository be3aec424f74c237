package models

import "time"

// LogAction is the kind of change recorded for an object.
type LogAction string

const (
	LogActionCreate       LogAction = "CREATE"
	LogActionEdit         LogAction = "EDIT"
	LogActionDelete       LogAction = "DELETE"
	LogActionActiveChange LogAction = "ACTIVE_CHANGE"
)

// ObjectLogType is the log_type value of object change logs.
const ObjectLogType = "CmdbObjectLog"

// FieldChange records one field's value before and after an edit.
type FieldChange struct {
	Name   string `json:"name" bson:"name"`
	Before any    `json:"before" bson:"before"`
	After  any    `json:"after" bson:"after"`
}

// Log is one entry of an object's change history.
type Log struct {
	PublicID int           `json:"public_id" bson:"public_id"`
	LogType  string        `json:"log_type" bson:"log_type"`
	LogTime  time.Time     `json:"log_time" bson:"log_time"`
	Action   LogAction     `json:"action" bson:"action"`
	ObjectID int           `json:"object_id" bson:"object_id"`
	Version  string        `json:"version" bson:"version"`
	UserID   int           `json:"user_id" bson:"user_id"`
	UserName string        `json:"user_name" bson:"user_name"`
	Changes  []FieldChange `json:"changes,omitempty" bson:"changes,omitempty"`
	Comment  string        `json:"comment,omitempty" bson:"comment,omitempty"`
}
