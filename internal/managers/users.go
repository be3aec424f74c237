package managers

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/HerbHall/rackledger/internal/database"
	"github.com/HerbHall/rackledger/internal/query"
	"github.com/HerbHall/rackledger/pkg/models"
)

// UsersManager manages API accounts. Passwords are stored as bcrypt hashes.
type UsersManager struct {
	core[models.User]
	groups *GroupsManager
	cost   int
}

// NewUsersManager returns a UsersManager on db.
func NewUsersManager(db database.Database, deps Deps) *UsersManager {
	return &UsersManager{
		core: newCore[models.User](db, KindUsers,
			func() query.Builder { return query.NewDefaultQueryBuilder() }, deps),
		groups: NewGroupsManager(db, deps),
		cost:   bcrypt.DefaultCost,
	}
}

// Iterate returns one page of users.
func (m *UsersManager) Iterate(ctx context.Context, params query.Parameters) (*query.IterationResult[models.User], error) {
	return m.iterate(ctx, params, nil)
}

// Get returns one user.
func (m *UsersManager) Get(ctx context.Context, id int) (*models.User, error) {
	return m.get(ctx, id)
}

// GetByName returns the user with the given user name.
func (m *UsersManager) GetByName(ctx context.Context, name string) (*models.User, error) {
	return m.findOne(ctx, bson.D{{Key: "user_name", Value: name}})
}

// Insert hashes u.Password and stores the user. The user name must be unique
// and the group must exist.
func (m *UsersManager) Insert(ctx context.Context, u *models.User) (int, error) {
	u.UserName = strings.TrimSpace(u.UserName)
	if u.UserName == "" {
		return 0, &InsertError{Resource: m.resource(), Err: validationf("user name is required")}
	}
	if u.Password == "" {
		return 0, &InsertError{Resource: m.resource(), Err: validationf("password is required")}
	}
	if _, err := m.groups.Get(ctx, u.GroupID); err != nil {
		return 0, &InsertError{Resource: m.resource(), Err: validationf("group %d does not exist", u.GroupID)}
	}
	n, err := m.count(ctx, bson.D{{Key: "user_name", Value: u.UserName}})
	if err != nil {
		return 0, &InsertError{Resource: m.resource(), Err: err}
	}
	if n > 0 {
		return 0, &InsertError{Resource: m.resource(), Err: ErrAlreadyExists}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), m.cost)
	if err != nil {
		return 0, &InsertError{Resource: m.resource(), Err: err}
	}
	id, err := m.nextID(ctx)
	if err != nil {
		return 0, err
	}
	u.PublicID = id
	u.Password = string(hash)
	u.RegistrationTime = m.deps.Now()
	if err := m.insert(ctx, u); err != nil {
		return 0, err
	}
	m.logger.Info("user created", zapID(id), zapName(u.UserName))
	return id, nil
}

// Delete removes a user.
func (m *UsersManager) Delete(ctx context.Context, id int) error {
	return m.delete(ctx, id)
}

// Authenticate returns the user whose name and password match.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (m *UsersManager) Authenticate(ctx context.Context, name, password string) (*models.User, error) {
	u, err := m.GetByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// GroupsManager manages user groups.
type GroupsManager struct {
	core[models.Group]
}

// NewGroupsManager returns a GroupsManager on db.
func NewGroupsManager(db database.Database, deps Deps) *GroupsManager {
	return &GroupsManager{newCore[models.Group](db, KindGroups,
		func() query.Builder { return query.NewDefaultQueryBuilder() }, deps)}
}

// Iterate returns one page of groups.
func (m *GroupsManager) Iterate(ctx context.Context, params query.Parameters) (*query.IterationResult[models.Group], error) {
	return m.iterate(ctx, params, nil)
}

// Get returns one group.
func (m *GroupsManager) Get(ctx context.Context, id int) (*models.Group, error) {
	return m.get(ctx, id)
}

// Insert stores a group with a unique name.
func (m *GroupsManager) Insert(ctx context.Context, g *models.Group) (int, error) {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return 0, &InsertError{Resource: m.resource(), Err: validationf("group name is required")}
	}
	n, err := m.count(ctx, bson.D{{Key: "name", Value: g.Name}})
	if err != nil {
		return 0, &InsertError{Resource: m.resource(), Err: err}
	}
	if n > 0 {
		return 0, &InsertError{Resource: m.resource(), Err: ErrAlreadyExists}
	}
	id, err := m.nextID(ctx)
	if err != nil {
		return 0, err
	}
	g.PublicID = id
	if g.Label == "" {
		g.Label = g.Name
	}
	if err := m.insert(ctx, g); err != nil {
		return 0, err
	}
	return id, nil
}

// Delete removes a group. The default groups and groups with members stay.
func (m *GroupsManager) Delete(ctx context.Context, id int) error {
	if id == models.AdminGroupID || id == models.UserGroupID {
		return &DeleteError{Resource: m.resource(), ID: id, Err: validationf("default group cannot be deleted")}
	}
	n, err := m.db.CountDocuments(ctx, models.CollectionUsers, bson.D{{Key: "group_id", Value: id}})
	if err != nil {
		return &DeleteError{Resource: m.resource(), ID: id, Err: err}
	}
	if n > 0 {
		return &DeleteError{Resource: m.resource(), ID: id, Err: ErrInUse}
	}
	return m.delete(ctx, id)
}

// EnsureDefaults creates the admin and user groups when missing.
func (m *GroupsManager) EnsureDefaults(ctx context.Context) error {
	defaults := []models.Group{
		{PublicID: models.AdminGroupID, Name: "admin", Label: "Administrator"},
		{PublicID: models.UserGroupID, Name: "user", Label: "User"},
	}
	for _, g := range defaults {
		if _, err := m.get(ctx, g.PublicID); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := m.insert(ctx, &g); err != nil {
			return err
		}
	}
	// Keep the counter ahead of the fixed ids.
	for {
		id, err := m.nextID(ctx)
		if err != nil {
			return err
		}
		if id > models.UserGroupID {
			return nil
		}
	}
}
