package state

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMigrated(tempDBPath(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Path())
	_, err = os.Stat(path)
	assert.NoError(t, err, "database file exists")
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "test.db")

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpen_InvalidPath(t *testing.T) {
	// A regular file where a directory is expected.
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, err := Open(filepath.Join(blocker, "test.db"))
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"schema_version", "runs", "cycles"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s exists", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestMigrate_SchemaVersionTracking(t *testing.T) {
	db := setupTestDB(t)

	var version int
	require.NoError(t, db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version))
	assert.Equal(t, 2, version)
}

func TestTransaction_Rollback(t *testing.T) {
	db := setupTestDB(t)

	err := db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO runs (id, command, status, started_at) VALUES ('r1', 'validate', 'running', '2026-01-01')`)
		require.NoError(t, err)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	r, err := db.GetRun("r1")
	require.NoError(t, err)
	assert.Nil(t, r, "insert was rolled back")
}

func TestGlobalDBPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, filepath.Join("/data", "llm-owl", "history.db"), GlobalDBPath())

	t.Setenv("XDG_DATA_HOME", "")
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".local", "share", "llm-owl", "history.db"), GlobalDBPath())
}

func TestProjectDBPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/proj", ".llm-owl", "history.db"), ProjectDBPath("/proj"))
}

func TestFormatAndParseTime(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 800, time.FixedZone("x", 3600))

	s := formatTime(now)
	assert.Equal(t, "2026-03-04T04:06:07.000000800Z", s)

	parsed, err := parseTime(s)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(now))

	// Fixed width keeps text order equal to time order.
	assert.Less(t, formatTime(now), formatTime(now.Add(time.Nanosecond*200)))
}

func TestParseNullableTime(t *testing.T) {
	assert.Nil(t, parseNullableTime(sql.NullString{}))
	assert.Nil(t, parseNullableTime(sql.NullString{String: "garbage", Valid: true}))

	got := parseNullableTime(sql.NullString{String: "2026-03-04T04:06:07.000000000Z", Valid: true})
	require.NotNil(t, got)
	assert.Equal(t, 2026, got.Year())
}

func TestPurgeOldRuns(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateRun(&Run{ID: "old", Command: "fix", StartedAt: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, db.CreateRun(&Run{ID: "new", Command: "fix"}))
	require.NoError(t, db.RecordCycle(&CycleRecord{RunID: "old", Document: "x", Report: "r"}))

	n, err := db.PurgeOldRuns(24 * time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	runs, err := db.ListRuns(nil, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].ID)

	cycles, err := db.ListCycles("old")
	require.NoError(t, err)
	assert.Empty(t, cycles, "cycles cascade with their run")
}
