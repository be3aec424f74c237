package models

import "time"

// Link relates two objects by public id.
type Link struct {
	PublicID     int       `json:"public_id" bson:"public_id"`
	Primary      int       `json:"primary" bson:"primary"`
	Secondary    int       `json:"secondary" bson:"secondary"`
	CreationTime time.Time `json:"creation_time" bson:"creation_time"`
}
