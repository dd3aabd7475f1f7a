// Package testutil opens PostgreSQL-backed fixtures for integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"shopfloor.io/mes/internal/infrastructure"
)

// TestDSN returns TEST_DATABASE_URL, falling back to DATABASE_URL.
func TestDSN() string {
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	return dsn
}

// PGDatabase is a migrated, per-test PostgreSQL schema.
type PGDatabase struct {
	Pool *pgxpool.Pool
	// DSN connects to the same schema, for dedicated LISTEN connections.
	DSN string
}

// OpenPGXPool opens a pgxpool backed by PostgreSQL with an isolated, migrated
// schema per test. The test is skipped when no DSN is configured.
func OpenPGXPool(t *testing.T, prefix string) *PGDatabase {
	t.Helper()

	dsn := TestDSN()
	if dsn == "" {
		t.Skip("PostgreSQL test DSN not set: set TEST_DATABASE_URL or DATABASE_URL")
	}

	schema := newSchemaName(prefix)
	ctx := context.Background()

	adminPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres admin pool: %v", err)
	}
	t.Cleanup(adminPool.Close)

	if err := adminPool.Ping(ctx); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}

	if _, err := adminPool.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA "%s"`, schema)); err != nil {
		t.Fatalf("create test schema %q: %v", schema, err)
	}
	t.Cleanup(func() {
		_, _ = adminPool.Exec(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS "%s" CASCADE`, schema))
	})

	schemaDSN, err := dsnWithSearchPath(dsn, schema)
	if err != nil {
		t.Fatalf("build postgres DSN with search_path: %v", err)
	}

	testPool, err := pgxpool.New(ctx, schemaDSN)
	if err != nil {
		t.Fatalf("open postgres test pool: %v", err)
	}
	t.Cleanup(testPool.Close)

	if err := testPool.Ping(ctx); err != nil {
		t.Fatalf("ping postgres test pool: %v", err)
	}
	if _, err := infrastructure.MigrateSchema(ctx, testPool); err != nil {
		t.Fatalf("migrate test schema: %v", err)
	}

	return &PGDatabase{Pool: testPool, DSN: schemaDSN}
}
