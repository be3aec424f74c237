// Package managers implements one manager per CMDB resource. Managers own a
// query builder, run its page and count pipelines against a
// database.Database and translate driver failures into typed errors.
package managers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/rackledger/internal/acl"
	"github.com/HerbHall/rackledger/internal/database"
	"github.com/HerbHall/rackledger/internal/metrics"
	"github.com/HerbHall/rackledger/internal/query"
	"github.com/HerbHall/rackledger/pkg/models"
)

// Kind enumerates the managed resources.
type Kind int

const (
	KindTypes Kind = iota
	KindObjects
	KindCategories
	KindLocations
	KindLinks
	KindLogs
	KindUsers
	KindGroups
)

var kindNames = [...]string{"types", "objects", "categories", "locations", "links", "logs", "users", "groups"}

var kindCollections = [...]string{
	models.CollectionTypes,
	models.CollectionObjects,
	models.CollectionCategories,
	models.CollectionLocations,
	models.CollectionLinks,
	models.CollectionLogs,
	models.CollectionUsers,
	models.CollectionGroups,
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Collection returns the collection holding this kind's documents.
func (k Kind) Collection() string {
	return kindCollections[k]
}

// Mode selects how the provider picks a database.
type Mode string

const (
	// ModeSingle serves every request from the configured database.
	ModeSingle Mode = "single"
	// ModeCloud serves each request from the tenant database named in the
	// caller's token. Users and groups stay in the configured database.
	ModeCloud Mode = "cloud"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeSingle || m == ModeCloud
}

// Requester identifies the caller of a manager operation. A nil *Requester
// disables access control, which internal callers such as setup rely on.
type Requester struct {
	UserID   int
	UserName string
	GroupID  int
}

func (r *Requester) access(p acl.Permission) *query.Access {
	if r == nil {
		return nil
	}
	return &query.Access{GroupID: r.GroupID, Permission: p}
}

func (r *Requester) verify(resource string, id int, l *acl.AccessControlList, p acl.Permission) error {
	if r == nil || acl.Evaluate(l, r.GroupID, p) {
		return nil
	}
	return &AccessDeniedError{Resource: resource, ID: id, GroupID: r.GroupID, Permission: p}
}

func (r *Requester) userID() int {
	if r == nil {
		return 0
	}
	return r.UserID
}

func (r *Requester) userName() string {
	if r == nil {
		return "system"
	}
	return r.UserName
}

type tenantKey struct{}

// WithTenant returns a context naming the tenant database for cloud mode.
func WithTenant(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, tenantKey{}, name)
}

// TenantFromContext returns the tenant set by WithTenant.
func TenantFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(tenantKey{}).(string)
	return name, ok && name != ""
}

// Deps are the collaborators shared by every manager.
type Deps struct {
	Logger  *zap.Logger
	Metrics *metrics.Recorder
	Now     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// Provider hands out managers bound to the right database for a request.
type Provider struct {
	mode      Mode
	connector database.Connector
	database  string
	deps      Deps
}

// NewProvider returns a Provider. name is the database used in single mode
// and for users and groups in cloud mode.
func NewProvider(mode Mode, connector database.Connector, name string, deps Deps) (*Provider, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown manager mode %q", mode)
	}
	if name == "" {
		return nil, fmt.Errorf("database name is required")
	}
	return &Provider{mode: mode, connector: connector, database: name, deps: deps.withDefaults()}, nil
}

// Mode returns the provider's mode.
func (p *Provider) Mode() Mode { return p.mode }

// Database returns the database serving resource data for ctx.
func (p *Provider) Database(ctx context.Context) (database.Database, error) {
	if p.mode == ModeSingle {
		return p.connector.Database(p.database), nil
	}
	name, ok := TenantFromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	return p.connector.Database(name), nil
}

func (p *Provider) managementDatabase() database.Database {
	return p.connector.Database(p.database)
}

// Types returns the types manager for ctx.
func (p *Provider) Types(ctx context.Context) (*TypesManager, error) {
	db, err := p.Database(ctx)
	if err != nil {
		return nil, err
	}
	return NewTypesManager(db, p.deps), nil
}

// Objects returns the objects manager for ctx.
func (p *Provider) Objects(ctx context.Context) (*ObjectsManager, error) {
	db, err := p.Database(ctx)
	if err != nil {
		return nil, err
	}
	return NewObjectsManager(db, p.deps), nil
}

// Categories returns the categories manager for ctx.
func (p *Provider) Categories(ctx context.Context) (*CategoriesManager, error) {
	db, err := p.Database(ctx)
	if err != nil {
		return nil, err
	}
	return NewCategoriesManager(db, p.deps), nil
}

// Locations returns the locations manager for ctx.
func (p *Provider) Locations(ctx context.Context) (*LocationsManager, error) {
	db, err := p.Database(ctx)
	if err != nil {
		return nil, err
	}
	return NewLocationsManager(db, p.deps), nil
}

// Links returns the links manager for ctx.
func (p *Provider) Links(ctx context.Context) (*LinksManager, error) {
	db, err := p.Database(ctx)
	if err != nil {
		return nil, err
	}
	return NewLinksManager(db, p.deps), nil
}

// Logs returns the logs manager for ctx.
func (p *Provider) Logs(ctx context.Context) (*LogsManager, error) {
	db, err := p.Database(ctx)
	if err != nil {
		return nil, err
	}
	return NewLogsManager(db, p.deps), nil
}

// Users returns the users manager. Users live in the management database
// in both modes.
func (p *Provider) Users() *UsersManager {
	return NewUsersManager(p.managementDatabase(), p.deps)
}

// Groups returns the groups manager.
func (p *Provider) Groups() *GroupsManager {
	return NewGroupsManager(p.managementDatabase(), p.deps)
}
