// Package models defines the CMDB records shared by the query layer,
// the managers and the HTTP API.
package models

// Collection names in the document store.
const (
	CollectionTypes      = "framework.types"
	CollectionObjects    = "framework.objects"
	CollectionCategories = "framework.categories"
	CollectionLocations  = "framework.locations"
	CollectionLinks      = "framework.links"
	CollectionLogs       = "framework.logs"
	CollectionCounters   = "framework.__counter"
	CollectionUsers      = "management.users"
	CollectionGroups     = "management.groups"
)
