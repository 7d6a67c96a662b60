package session

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nugget/ore-agent/internal/llm"
)

// SQLiteStore persists sessions in a single SQLite database. Useful
// when many small sessions make one-file-per-session unwieldy.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		name TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_messages (
		session_name TEXT NOT NULL,
		seq INTEGER NOT NULL,
		id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		PRIMARY KEY (session_name, seq),
		FOREIGN KEY (session_name) REFERENCES sessions(name) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save replaces the stored session of the given name in one
// transaction.
func (s *SQLiteStore) Save(session *Session, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM session_messages WHERE session_name = ?`, name); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO sessions (name, id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET id = excluded.id, created_at = excluded.created_at
	`, name, session.ID, session.CreatedAt.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	for i, m := range session.Messages {
		if _, err := tx.Exec(`
			INSERT INTO session_messages (session_name, seq, id, role, content, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)
		`, name, i, m.ID, m.Role, m.Content, m.Timestamp.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Load retrieves a session and its messages, ordered by sequence.
func (s *SQLiteStore) Load(name string) (*Session, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	var session Session
	var createdAt string
	err := s.db.QueryRow(`SELECT id, created_at FROM sessions WHERE name = ?`, name).
		Scan(&session.ID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	session.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	rows, err := s.db.Query(`
		SELECT id, role, content, timestamp
		FROM session_messages WHERE session_name = ? ORDER BY seq
	`, name)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m llm.Message
		var ts string
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		session.Messages = append(session.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return &session, nil
}

// List returns the stored session names, sorted.
func (s *SQLiteStore) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	sort.Strings(names)
	return names, nil
}
