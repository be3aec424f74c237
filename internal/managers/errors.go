package managers

import (
	"errors"
	"fmt"

	"github.com/HerbHall/rackledger/internal/acl"
)

// Sentinel causes wrapped by the typed manager errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrValidation         = errors.New("validation failed")
	ErrInUse              = errors.New("still referenced")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoTenant           = errors.New("no tenant database in request")
)

// GetError reports a failed read, including a read that found nothing when
// one result was required.
type GetError struct {
	Resource string
	ID       int
	Err      error
}

func (e *GetError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("get %s %d: %v", e.Resource, e.ID, e.Err)
	}
	return fmt.Sprintf("get %s: %v", e.Resource, e.Err)
}

func (e *GetError) Unwrap() error { return e.Err }

// IterationError reports a failed paged listing. Err is usually a *GetError.
type IterationError struct {
	Resource string
	Err      error
}

func (e *IterationError) Error() string {
	return fmt.Sprintf("iterate %s: %v", e.Resource, e.Err)
}

func (e *IterationError) Unwrap() error { return e.Err }

// InsertError reports a rejected or failed insert.
type InsertError struct {
	Resource string
	Err      error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("insert %s: %v", e.Resource, e.Err)
}

func (e *InsertError) Unwrap() error { return e.Err }

// UpdateError reports a rejected update or one that did not match exactly
// one document.
type UpdateError struct {
	Resource string
	ID       int
	Err      error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update %s %d: %v", e.Resource, e.ID, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

// DeleteError reports a rejected delete or one that removed nothing.
type DeleteError struct {
	Resource string
	ID       int
	Err      error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete %s %d: %v", e.Resource, e.ID, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// AccessDeniedError is returned by single-resource paths when the type ACL
// refuses the caller. Listings never return it; they filter instead.
type AccessDeniedError struct {
	Resource   string
	ID         int
	GroupID    int
	Permission acl.Permission
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("%s %d: group %d lacks %s permission", e.Resource, e.ID, e.GroupID, e.Permission)
}

func (e *AccessDeniedError) Unwrap() error { return acl.ErrAccessDenied }

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
