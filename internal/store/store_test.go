package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	createTestUnit(t, s1, "h1", 1)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	units, err := s2.ReadUnits(testCtx(t))
	require.NoError(t, err)
	assert.Len(t, units, 1)
}

func TestOpen_MigratesLegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE invocations (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			unit_hash TEXT NOT NULL,
			method TEXT NOT NULL,
			args TEXT NOT NULL,
			ctx TEXT NOT NULL,
			status TEXT NOT NULL,
			result TEXT NOT NULL,
			error TEXT NOT NULL,
			engine_version TEXT NOT NULL,
			ir_version TEXT NOT NULL
		)
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	var n int
	require.NoError(t, s.db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info('invocations') WHERE name = 'state_hash'`,
	).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := OpenContext(testCtx(t), ":memory:")
	require.NoError(t, err)
	defer s.Close()

	createTestUnit(t, s, "h1", 1)
	units, err := s.ReadUnits(testCtx(t))
	require.NoError(t, err)
	assert.Len(t, units, 1, "the single connection keeps the in-memory database alive")
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}
