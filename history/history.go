// Package history persists the interactive command history between
// runs. Storage is SQLite (modernc.org/sqlite — pure Go, no CGO); the
// database file is standard SQLite format, inspectable with the
// sqlite3 CLI.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a persistent command history.
type Store struct {
	db *sql.DB
}

// DefaultPath returns $XDG_DATA_HOME/source-console-shell/history.db
// (or the ~/.local/share equivalent), "" if no home can be determined.
func DefaultPath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "source-console-shell", "history.db")
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		command TEXT NOT NULL,
		entered_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_entered_at ON history(entered_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate history schema: %w", err)
	}
	return nil
}

// Append records a submitted command. Blank commands and immediate
// repeats of the previous entry are dropped.
func (s *Store) Append(command string) error {
	if command == "" {
		return nil
	}

	var last string
	err := s.db.QueryRow(`SELECT command FROM history ORDER BY id DESC LIMIT 1`).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read last history entry: %w", err)
	}
	if last == command {
		return nil
	}

	_, err = s.db.Exec(
		`INSERT INTO history (command, entered_at) VALUES (?, ?)`,
		command, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Recent returns up to n commands, newest first.
func (s *Store) Recent(n int) ([]string, error) {
	rows, err := s.db.Query(`SELECT command FROM history ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()

	var commands []string
	for rows.Next() {
		var cmd string
		if err := rows.Scan(&cmd); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		commands = append(commands, cmd)
	}
	return commands, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
