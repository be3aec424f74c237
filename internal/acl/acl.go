// Package acl implements per-Type access control lists. A single policy
// function decides access; list queries express the same policy as a
// document-store match stage and single-item paths call Verify.
package acl

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Permission is an operation a group may be granted on objects of a type.
type Permission string

// Supported permissions.
const (
	PermissionCreate Permission = "CREATE"
	PermissionRead   Permission = "READ"
	PermissionUpdate Permission = "UPDATE"
	PermissionDelete Permission = "DELETE"
)

// ErrAccessDenied is returned by Verify when the policy rejects a request.
var ErrAccessDenied = errors.New("access denied")

// Permissions lists every known permission in display order.
func Permissions() []Permission {
	return []Permission{PermissionCreate, PermissionRead, PermissionUpdate, PermissionDelete}
}

// Valid reports whether p is a known permission.
func (p Permission) Valid() bool {
	return slices.Contains(Permissions(), p)
}

// GroupACL maps group ids (decimal strings, as stored) to granted permissions.
type GroupACL struct {
	Includes map[string][]Permission `json:"includes" bson:"includes"`
}

// AccessControlList gates which groups may act on objects of one type.
type AccessControlList struct {
	Activated bool     `json:"activated" bson:"activated"`
	Groups    GroupACL `json:"groups" bson:"groups"`
}

// New returns an activated list with no grants.
func New() *AccessControlList {
	return &AccessControlList{
		Activated: true,
		Groups:    GroupACL{Includes: map[string][]Permission{}},
	}
}

// Grant adds permissions for a group.
func (l *AccessControlList) Grant(groupID int, perms ...Permission) {
	if l.Groups.Includes == nil {
		l.Groups.Includes = map[string][]Permission{}
	}
	key := strconv.Itoa(groupID)
	for _, p := range perms {
		if !slices.Contains(l.Groups.Includes[key], p) {
			l.Groups.Includes[key] = append(l.Groups.Includes[key], p)
		}
	}
}

// Revoke removes a group's permission set entirely.
func (l *AccessControlList) Revoke(groupID int) {
	delete(l.Groups.Includes, strconv.Itoa(groupID))
}

// Validate rejects unknown permissions and non-numeric group keys.
func (l *AccessControlList) Validate() error {
	if l == nil {
		return nil
	}
	for key, perms := range l.Groups.Includes {
		if _, err := strconv.Atoi(key); err != nil {
			return fmt.Errorf("acl: invalid group id %q", key)
		}
		for _, p := range perms {
			if !p.Valid() {
				return fmt.Errorf("acl: unknown permission %q for group %s", p, key)
			}
		}
	}
	return nil
}

// Evaluate is the access policy. A nil or inactive list grants everything;
// otherwise the group must hold exactly the requested permission.
func Evaluate(l *AccessControlList, groupID int, perm Permission) bool {
	if l == nil || !l.Activated {
		return true
	}
	return slices.Contains(l.Groups.Includes[strconv.Itoa(groupID)], perm)
}

// Verify turns Evaluate into an error for single-resource paths.
func Verify(l *AccessControlList, groupID int, perm Permission) error {
	if Evaluate(l, groupID, perm) {
		return nil
	}
	return fmt.Errorf("%w: group %d lacks %s", ErrAccessDenied, groupID, perm)
}

// MatchCondition expresses Evaluate as a query predicate over a joined type
// document stored under prefix (for example "type").
func MatchCondition(prefix string, groupID int, perm Permission) bson.D {
	aclField := prefix + ".acl"
	includes := aclField + ".groups.includes." + strconv.Itoa(groupID)
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: aclField, Value: bson.D{{Key: "$exists", Value: false}}}},
		bson.D{{Key: aclField, Value: nil}},
		bson.D{{Key: aclField + ".activated", Value: false}},
		bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: includes, Value: bson.D{{Key: "$exists", Value: true}}}},
			bson.D{{Key: includes, Value: bson.D{{Key: "$all", Value: bson.A{string(perm)}}}}},
		}}},
	}}}
}
