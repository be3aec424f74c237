package testutil

import (
	"context"
	"testing"

	"github.com/HerbHall/rackledger/internal/database"
	"github.com/HerbHall/rackledger/internal/store"
)

// TestDatabase is the logical database name used by NewDatabase.
const TestDatabase = "rackledger_test"

// NewStore creates an in-memory SQLiteStore for testing.
// The store is automatically closed when the test completes.
func NewStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("testutil.NewStore: %v", err)
	}
	t.Cleanup(func() { db.Close(context.Background()) })
	return db
}

// NewDatabase returns the TestDatabase of a fresh in-memory store.
func NewDatabase(t *testing.T) database.Database {
	t.Helper()
	return NewStore(t).Database(TestDatabase)
}
