package audit_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/milosgajdos/go-tftp/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	l, err := audit.Open(path)
	require.NoError(t, err)

	defer l.Close()

	require.NoError(t, l.Record("127.0.0.1:12345", "boot.img", "RRQ", true, "ok"))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)

	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM transfers").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRecordFailureIsPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	l, err := audit.Open(path)
	require.NoError(t, err)

	defer l.Close()

	require.NoError(t, l.Record("127.0.0.1:12345", "missing.img", "RRQ", false, "file not found"))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)

	defer db.Close()

	var success int
	require.NoError(t, db.QueryRow("SELECT success FROM transfers WHERE filename = ?", "missing.img").Scan(&success))
	assert.Equal(t, 0, success)
}
