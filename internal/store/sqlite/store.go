package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/a-essam23/go-relay/internal/store"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE,
    conn_id TEXT NOT NULL DEFAULT '',
    online INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sender TEXT NOT NULL,
    receiver TEXT NOT NULL,
    body TEXT NOT NULL,
    private INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_private ON messages (private, id);
CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages (sender, receiver, id);
`

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements chat persistence over SQLite.
//
// A single SQLite file backs the message log and the user bookkeeping table
// so history and presence audit share one visibility boundary, matching the
// single-process deployment model.
type Store struct {
	sqlDB *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens the chat SQLite store and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) UpsertUserOnline(ctx context.Context, username, connID string) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (username, conn_id, online, created_at)
VALUES (?, ?, 1, ?)
ON CONFLICT (username) DO UPDATE SET conn_id = excluded.conn_id, online = 1;
`, username, connID, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("upsert user %q: %w", username, err)
	}
	return nil
}

func (s *Store) MarkOfflineByConnection(ctx context.Context, connID string) error {
	_, err := s.sqlDB.ExecContext(ctx, `
UPDATE users SET online = 0 WHERE conn_id = ?;
`, connID)
	if err != nil {
		return fmt.Errorf("mark offline for connection %q: %w", connID, err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (store.User, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT username, conn_id, online, created_at FROM users WHERE username = ?;
`, username)

	var user store.User
	var online int64
	var createdAt int64
	if err := row.Scan(&user.Username, &user.ConnID, &online, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, store.ErrNotFound
		}
		return store.User{}, fmt.Errorf("get user %q: %w", username, err)
	}
	user.Online = online != 0
	user.CreatedAt = fromMillis(createdAt)
	return user, nil
}

func (s *Store) InsertMessage(ctx context.Context, sender, receiver, body string, private bool) (store.Message, error) {
	createdAt := time.Now()
	privateFlag := 0
	if private {
		privateFlag = 1
	}

	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO messages (sender, receiver, body, private, created_at)
VALUES (?, ?, ?, ?, ?);
`, sender, receiver, body, privateFlag, toMillis(createdAt))
	if err != nil {
		return store.Message{}, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return store.Message{}, fmt.Errorf("insert message id: %w", err)
	}

	return store.Message{
		ID:        id,
		Sender:    sender,
		Receiver:  receiver,
		Body:      body,
		Private:   private,
		CreatedAt: fromMillis(toMillis(createdAt)),
	}, nil
}

func (s *Store) PublicHistory(ctx context.Context, limit int) ([]store.Message, error) {
	// Newest-first under the cap, then reversed, so the most recent window
	// is retained when the log exceeds the limit.
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, sender, receiver, body, private, created_at
FROM messages
WHERE private = 0
ORDER BY id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query public history: %w", err)
	}
	defer rows.Close()

	return collectOldestFirst(rows)
}

func (s *Store) PrivateHistory(ctx context.Context, userA, userB string, limit int) ([]store.Message, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, sender, receiver, body, private, created_at
FROM messages
WHERE private = 1
  AND ((sender = ?1 AND receiver = ?2) OR (sender = ?2 AND receiver = ?1))
ORDER BY id DESC
LIMIT ?3;
`, userA, userB, limit)
	if err != nil {
		return nil, fmt.Errorf("query private history: %w", err)
	}
	defer rows.Close()

	return collectOldestFirst(rows)
}

// collectOldestFirst scans a newest-first result set and reverses it.
func collectOldestFirst(rows *sql.Rows) ([]store.Message, error) {
	var messages []store.Message
	for rows.Next() {
		var msg store.Message
		var privateFlag int64
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Receiver, &msg.Body, &privateFlag, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Private = privateFlag != 0
		msg.CreatedAt = fromMillis(createdAt)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
