package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/renatogalera/ai-chat/pkg/ai"
)

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT    NOT NULL UNIQUE,
	summary    TEXT    NOT NULL DEFAULT '',
	messages   TEXT    NOT NULL DEFAULT '[]',
	updated_at INTEGER NOT NULL
);`

// SQLiteStore keeps sessions in a single-table SQLite database. Messages are
// stored as a JSON column; updated_at is unix seconds.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	if _, err := db.Exec(createSessionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func scanSession(scan func(...any) error) (*Session, error) {
	var (
		s       Session
		payload string
		updated int64
	)
	if err := scan(&s.ID, &s.Name, &s.Summary, &payload, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &s.Messages); err != nil {
		return nil, fmt.Errorf("failed to parse session %d messages: %w", s.ID, err)
	}
	s.UpdatedAt = time.Unix(updated, 0)
	return &s, nil
}

func marshalMessages(messages []ai.Message) (string, error) {
	if messages == nil {
		messages = []ai.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session messages: %w", err)
	}
	return string(data), nil
}

func (ss *SQLiteStore) List(ctx context.Context) ([]Session, error) {
	rows, err := ss.db.QueryContext(ctx,
		"SELECT id, name, summary, messages, updated_at FROM sessions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (ss *SQLiteStore) Load(ctx context.Context, id int64) (*Session, error) {
	row := ss.db.QueryRowContext(ctx,
		"SELECT id, name, summary, messages, updated_at FROM sessions WHERE id = ?", id)
	s, err := scanSession(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %d: %w", id, err)
	}
	return s, nil
}

func (ss *SQLiteStore) nameTaken(ctx context.Context, name string) bool {
	var one int
	err := ss.db.QueryRowContext(ctx,
		"SELECT 1 FROM sessions WHERE name = ?", name).Scan(&one)
	return err == nil
}

func (ss *SQLiteStore) Create(ctx context.Context, name string, messages []ai.Message) (*Session, error) {
	payload, err := marshalMessages(messages)
	if err != nil {
		return nil, err
	}
	finalName := uniqueName(name, func(n string) bool { return ss.nameTaken(ctx, n) })
	res, err := ss.db.ExecContext(ctx,
		"INSERT INTO sessions (name, summary, messages, updated_at) VALUES (?, '', ?, ?)",
		finalName, payload, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return ss.Load(ctx, id)
}

func (ss *SQLiteStore) Update(ctx context.Context, s *Session) error {
	payload, err := marshalMessages(s.Messages)
	if err != nil {
		return err
	}
	res, err := ss.db.ExecContext(ctx,
		"UPDATE sessions SET name = ?, summary = ?, messages = ?, updated_at = ? WHERE id = ?",
		s.Name, s.Summary, payload, time.Now().Unix(), s.ID)
	if err != nil {
		return fmt.Errorf("failed to update session %d: %w", s.ID, err)
	}
	return ss.requireRow(res, s.ID)
}

func (ss *SQLiteStore) UpdateSummary(ctx context.Context, id int64, summary string) error {
	res, err := ss.db.ExecContext(ctx,
		"UPDATE sessions SET summary = ?, updated_at = ? WHERE id = ?",
		summary, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update session %d summary: %w", id, err)
	}
	return ss.requireRow(res, id)
}

func (ss *SQLiteStore) Delete(ctx context.Context, id int64) error {
	res, err := ss.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session %d: %w", id, err)
	}
	return ss.requireRow(res, id)
}

func (ss *SQLiteStore) requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	return nil
}

func (ss *SQLiteStore) Close() error { return ss.db.Close() }

var _ Store = (*SQLiteStore)(nil)
