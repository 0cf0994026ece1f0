package testutil

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/bissquit/campus-reservations/internal/pkg/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// MigrationsDir returns the absolute path of the repository's migrations directory.
func MigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

// NewMigratedPostgres starts a PostgreSQL container, applies all migrations
// and returns a pool connected to it. Everything is released on test cleanup.
func NewMigratedPostgres(t *testing.T) (*PostgresContainer, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	container, err := NewPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	require.NoError(t, postgres.Migrate(container.ConnectionString, MigrationsDir()))

	pool, err := pgxpool.New(ctx, container.ConnectionString)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return container, pool
}

// InsertUser creates a user profile row with an optional role.
func InsertUser(t *testing.T, pool *pgxpool.Pool, id, email, role string) {
	t.Helper()
	ctx := context.Background()

	_, err := pool.Exec(ctx, `INSERT INTO users (id, email) VALUES ($1, $2)`, id, email)
	require.NoError(t, err)

	if role != "" {
		_, err = pool.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, id, role)
		require.NoError(t, err)
	}
}
