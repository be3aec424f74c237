package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HerbHall/rackledger/internal/store"
	"github.com/HerbHall/rackledger/pkg/models"
)

func seedDatabase(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()
	st, err := store.New(path)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer st.Close(ctx)
	doc := bson.D{{Key: "public_id", Value: 1}, {Key: "name", Value: "server"}}
	if err := st.Database("cmdb").InsertOne(ctx, models.CollectionTypes, doc); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
}

func TestBackupRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	dbPath := filepath.Join(src, "rackledger.db")
	cfgPath := filepath.Join(src, "rackledger.yaml")
	seedDatabase(t, dbPath)
	if err := os.WriteFile(cfgPath, []byte("server:\n  port: 4000\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	archive := filepath.Join(t.TempDir(), "backup.tar.gz")
	m, err := Backup(ctx, dbPath, cfgPath, archive)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if m.Database != "rackledger.db" || m.Config != "rackledger.yaml" {
		t.Errorf("manifest = %+v", m)
	}

	dst := t.TempDir()
	restored, err := Restore(ctx, archive, dst, false)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Service != "rackledger" {
		t.Errorf("service = %q, want rackledger", restored.Service)
	}
	if _, err := os.Stat(filepath.Join(dst, "rackledger.yaml")); err != nil {
		t.Errorf("config not restored: %v", err)
	}

	st, err := store.New(filepath.Join(dst, "rackledger.db"))
	if err != nil {
		t.Fatalf("open restored store: %v", err)
	}
	defer st.Close(ctx)
	doc, err := st.Database("cmdb").FindOne(ctx, models.CollectionTypes, bson.D{{Key: "public_id", Value: 1}})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if doc["name"] != "server" {
		t.Errorf("name = %v, want server", doc["name"])
	}
}

func TestRestore_RefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	dbPath := filepath.Join(src, "rackledger.db")
	seedDatabase(t, dbPath)

	archive := filepath.Join(t.TempDir(), "backup.tar.gz")
	if _, err := Backup(ctx, dbPath, "", archive); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	dst := t.TempDir()
	if _, err := Restore(ctx, archive, dst, false); err != nil {
		t.Fatalf("first Restore: %v", err)
	}
	_, err := Restore(ctx, archive, dst, false)
	if !errors.Is(err, ErrExists) {
		t.Fatalf("second Restore err = %v, want ErrExists", err)
	}
	if _, err := Restore(ctx, archive, dst, true); err != nil {
		t.Fatalf("forced Restore: %v", err)
	}
}

func TestBackup_MissingDatabase(t *testing.T) {
	_, err := Backup(context.Background(), filepath.Join(t.TempDir(), "nope.db"), "",
		filepath.Join(t.TempDir(), "out.tar.gz"))
	if err == nil {
		t.Fatal("expected error for missing database")
	}
}
