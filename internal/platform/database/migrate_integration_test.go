//go:build integration

package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reloop/internal/platform/database"
	"reloop/migrations"
	"reloop/pkg/testutil/containers"
)

func TestMigrateIsRepeatable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)
	ctx := context.Background()

	applied, err := database.Migrate(ctx, pg.DB, migrations.FS)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"000001_activity_events.up.sql",
		"000002_security_signals.up.sql",
		"000003_activity_events_device.up.sql",
	}, applied)

	for _, table := range containers.ModuleTables {
		var exists bool
		require.NoError(t, pg.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", table).Scan(&exists))
		assert.True(t, exists, table)
	}
}
