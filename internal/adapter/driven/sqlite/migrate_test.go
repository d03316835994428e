package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const latestSchemaVersion = 2

func TestRunMigrations_ReportsVersionAndIsRepeatable(t *testing.T) {
	db := setupTestDB(t)

	version, err := RunMigrations(db.Writer)
	require.NoError(t, err)
	assert.Equal(t, uint(latestSchemaVersion), version)

	var tables int
	err = db.Reader.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('pages_urls', 'cloudflare_records', 'tokens', 'installations')`,
	).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 4, tables)
}

func TestRunMigrations_RefusesDirtySchema(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Writer.Exec(`UPDATE schema_migrations SET dirty = 1`)
	require.NoError(t, err)

	version, err := RunMigrations(db.Writer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dirty")
	assert.Equal(t, uint(latestSchemaVersion), version)
}
