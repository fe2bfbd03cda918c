// README: Shared helpers for DB-backed tests; skipped unless FREIGHT_TEST_DSN is set.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus/hooks/test"

	"freightbid/internal/infra"
	"freightbid/migrations"
)

// NewPool connects to FREIGHT_TEST_DSN and applies all migrations.
// Tests share the database, so they must scope data by fresh identities.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("FREIGHT_TEST_DSN")
	if dsn == "" {
		t.Skip("FREIGHT_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := infra.NewDB(ctx, infra.DBOptions{DSN: dsn, MaxConns: 20})
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	log, _ := test.NewNullLogger()
	if err := infra.Migrate(ctx, db, migrations.FS, log); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

// UniqueID returns an identity reference no other test run uses.
func UniqueID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
