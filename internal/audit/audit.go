// Package audit is an optional transfer ledger for the server
// dispatcher: one row per completed or failed session, so an operator
// can answer "who pulled what, when, and did it succeed" without
// grepping logs. It never gates protocol behavior.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS transfers (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	peer        TEXT NOT NULL,
	filename    TEXT NOT NULL,
	opcode      TEXT NOT NULL,
	success     INTEGER NOT NULL,
	detail      TEXT NOT NULL,
	occurred_at TEXT NOT NULL
);`

// Logger records transfer outcomes to a SQLite file under the server's
// root directory.
type Logger struct {
	db *sql.DB
}

// Open creates (or reopens) the audit database at path and ensures its
// schema exists.
func Open(path string) (*Logger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("error while opening audit db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("error while creating audit schema: %w", err)
	}

	return &Logger{db: db}, nil
}

// Record inserts one row describing a finished transfer.
func (l *Logger) Record(peer, filename, opcode string, success bool, detail string) error {
	_, err := l.db.Exec(
		`INSERT INTO transfers (peer, filename, opcode, success, detail, occurred_at) VALUES (?, ?, ?, ?, ?, ?)`,
		peer, filename, opcode, boolToInt(success), detail, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("error while recording transfer: %w", err)
	}

	return nil
}

func (l *Logger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("error while closing audit db: %w", err)
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
