// Package testutil starts throwaway Postgres instances for repository tests.
package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/missoes/backend/pkg/database"
)

// TestDB is a migrated database running in a container.
type TestDB struct {
	Pool *pgxpool.Pool
	DSN  string
}

// NewTestDB starts Postgres and applies every migration. The test is skipped
// under -short or when no Docker daemon is reachable.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	db := start(t)
	if err := database.Migrate(db.DSN); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	return db
}

// NewTestDBAt is NewTestDB stopped at migration version, for seeding data
// that a later migration transforms.
func NewTestDBAt(t *testing.T, version uint) *TestDB {
	t.Helper()
	db := start(t)
	if err := database.MigrateTo(db.DSN, version); err != nil {
		t.Fatalf("migrate to %d: %v", version, err)
	}
	return db
}

// MigrateUp applies the remaining migrations.
func (db *TestDB) MigrateUp(t *testing.T) {
	t.Helper()
	if err := database.Migrate(db.DSN); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
}

func start(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("missoes_test"),
		tcpostgres.WithUsername("missoes"),
		tcpostgres.WithPassword("missoes"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := ctr.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool: %v", err)
	}
	t.Cleanup(pool.Close)
	return &TestDB{Pool: pool, DSN: dsn}
}

// SeedUser inserts an account and its users row. metadata is the account JSON metadata.
func SeedUser(t *testing.T, pool *pgxpool.Pool, email, profile, metadata string) uuid.UUID {
	t.Helper()
	if metadata == "" {
		metadata = "{}"
	}
	ctx := context.Background()
	var id uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO accounts (email, password_hash, metadata) VALUES ($1, 'x', $2::jsonb) RETURNING id`,
		email, metadata).Scan(&id)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, name, email, profile_type) VALUES ($1, $2, $2, $3)`, id, email, profile)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}
