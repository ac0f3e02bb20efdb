package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationSourceListsPairedFiles(t *testing.T) {
	source, err := MigrationSource()
	require.NoError(t, err)
	defer source.Close()

	first, err := source.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	next, err := source.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, ups, downs)
}

func TestMigrationsCreateReconcilerTables(t *testing.T) {
	var schema strings.Builder
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			data, err := fs.ReadFile(migrationsFS, "migrations/"+e.Name())
			require.NoError(t, err)
			schema.Write(data)
		}
	}

	for _, table := range []string{"students", "legacy_enrollments", "terms", "academic_journeys", "academic_journey_segments", "journey_rejections"} {
		assert.Contains(t, schema.String(), "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
	assert.Contains(t, schema.String(), "EXCLUDE USING gist (student_id WITH =, run_id WITH <>)")
}

func TestRunMigrationsRejectsUnknownDirection(t *testing.T) {
	_, err := RunMigrations(nil, Direction("sideways"), nil)
	require.ErrorContains(t, err, "unknown migration direction")
}
