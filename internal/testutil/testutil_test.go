package testutil

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HerbHall/rackledger/internal/acl"
	"github.com/HerbHall/rackledger/pkg/models"
)

func TestLogger_NotNil(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewStore_Usable(t *testing.T) {
	db := NewStore(t)
	if db == nil {
		t.Fatal("expected non-nil store")
	}
	if err := db.DB().PingContext(context.Background()); err != nil {
		t.Fatalf("PingContext: %v", err)
	}
}

func TestNewDatabase_RoundTrip(t *testing.T) {
	db := NewDatabase(t)
	ctx := context.Background()

	obj := NewObject()
	if err := db.InsertOne(ctx, models.CollectionObjects, obj); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	n, err := db.CountDocuments(ctx, models.CollectionObjects, bson.D{{Key: "public_id", Value: 1}})
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if n != 1 {
		t.Errorf("CountDocuments = %d, want 1", n)
	}
}

func TestClock_Advance(t *testing.T) {
	c := NewClock()
	start := c.Now()
	c.Advance(5 * time.Minute)
	if got := c.Now().Sub(start); got != 5*time.Minute {
		t.Errorf("Advance: elapsed = %v, want 5m", got)
	}
}

func TestClock_Set(t *testing.T) {
	c := NewClock()
	target := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)
	c.Set(target)
	if !c.Now().Equal(target) {
		t.Errorf("Set: got %v, want %v", c.Now(), target)
	}
}

func TestNewType_Defaults(t *testing.T) {
	typ := NewType()
	if typ.Name != "server" {
		t.Errorf("Name = %q, want server", typ.Name)
	}
	if !typ.Active {
		t.Error("expected active type")
	}
	if got := typ.RequiredFields(); len(got) != 1 || got[0] != "hostname" {
		t.Errorf("RequiredFields = %v, want [hostname]", got)
	}
	if typ.ACL != nil {
		t.Error("expected no ACL by default")
	}
}

func TestNewType_WithOptions(t *testing.T) {
	typ := NewType(
		WithTypeID(7),
		WithTypeName("switch"),
		WithFields(models.TypeField{Name: "ports", Type: models.FieldTypeNumber}),
		WithACL(models.AdminGroupID, acl.PermissionRead),
	)
	if typ.PublicID != 7 {
		t.Errorf("PublicID = %d, want 7", typ.PublicID)
	}
	if typ.Name != "switch" || typ.Label != "switch" {
		t.Errorf("Name, Label = %q, %q, want switch", typ.Name, typ.Label)
	}
	if len(typ.Fields) != 1 || typ.Fields[0].Name != "ports" {
		t.Errorf("Fields = %v, want [ports]", typ.Fields)
	}
	if !acl.Evaluate(typ.ACL, models.AdminGroupID, acl.PermissionRead) {
		t.Error("admin group should be granted read")
	}
	if acl.Evaluate(typ.ACL, models.UserGroupID, acl.PermissionRead) {
		t.Error("user group should not be granted read")
	}
}

func TestNewObject_WithOptions(t *testing.T) {
	o := NewObject(
		WithObjectID(3),
		WithObjectType(2),
		WithValue("hostname", "srv-99"),
		WithValue("rack_units", 2),
		WithActive(false),
	)
	if o.PublicID != 3 || o.TypeID != 2 {
		t.Errorf("ids = %d/%d, want 3/2", o.PublicID, o.TypeID)
	}
	if v, _ := o.Value("hostname"); v != "srv-99" {
		t.Errorf("hostname = %v, want srv-99", v)
	}
	if v, ok := o.Value("rack_units"); !ok || v != 2 {
		t.Errorf("rack_units = %v, want 2", v)
	}
	if o.Active {
		t.Error("expected inactive object")
	}
}
