package database

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}

	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestOpenRequiresURL(t *testing.T) {
	_, err := Open(context.Background(), "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is required")
}

func TestRunMigrationsIntegration(t *testing.T) {
	dsn := os.Getenv("THINGS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("THINGS_TEST_DATABASE_URL not set, skipping PostgreSQL integration test")
	}

	db, err := Open(context.Background(), dsn, 2)
	if err != nil {
		t.Skipf("PostgreSQL not reachable, skipping integration test: %v", err)
	}
	db.Close()

	require.NoError(t, RunMigrations(dsn))
	// a second run is a no-op
	require.NoError(t, RunMigrations(dsn))

	m, err := NewMigrator(dsn)
	require.NoError(t, err)
	defer m.Close()

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}
