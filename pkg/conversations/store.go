// Package conversations persists chat history for the assistant in a local
// SQLite database, so interactive sessions and the web UI share one record of
// what was said and which commands ran.
package conversations

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Role identifies who produced a message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Conversation is one chat session.
type Conversation struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Message is one turn within a conversation. Tool messages record the
// command line that ran and its output.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversationId"`
	Role           string    `db:"role" json:"role"`
	Content        string    `db:"content" json:"content"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// Summary is a conversation plus its message count, for listings.
type Summary struct {
	Conversation
	MessageCount int `db:"message_count" json:"messageCount"`
}

// ErrNotFound reports a lookup for a conversation ID that does not exist.
var ErrNotFound = errors.New("conversation not found")

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation_id, created_at);
CREATE INDEX IF NOT EXISTS idx_conversations_updated
	ON conversations(updated_at DESC);
`

// Store is a SQLite-backed conversation store.
type Store struct {
	dbPath string
	db     *sqlx.DB
}

// NewStore opens (creating if needed) the database at dbPath.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if err := configureDatabase(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to configure database")
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	return &Store{dbPath: dbPath, db: db}, nil
}

// configureDatabase sets up SQLite pragmas for WAL mode operation.
func configureDatabase(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}
	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}
	if strings.ToLower(journalMode) != "wal" {
		return errors.Errorf("WAL mode not enabled, current mode: %s", journalMode)
	}
	return nil
}

// Create starts a new conversation titled title and returns it.
func (s *Store) Create(ctx context.Context, title string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `INSERT INTO conversations (id, title, created_at, updated_at)
		VALUES (:id, :title, :created_at, :updated_at)`
	if _, err := s.db.NamedExecContext(ctx, query, conv); err != nil {
		return nil, errors.Wrap(err, "failed to create conversation")
	}
	return conv, nil
}

// AppendMessage records one turn and bumps the conversation's updated_at.
func (s *Store) AppendMessage(ctx context.Context, conversationID, role, content string) (*Message, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	msg := &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}

	query := `INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES (:id, :conversation_id, :role, :content, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, msg); err != nil {
		return nil, errors.Wrap(err, "failed to append message")
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE conversations SET updated_at = ? WHERE id = ?", msg.CreatedAt, conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to touch conversation")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to check conversation update")
	}
	if affected == 0 {
		return nil, errors.Wrapf(ErrNotFound, "%s", conversationID)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit message")
	}
	return msg, nil
}

// Get returns a conversation and its messages in chronological order.
func (s *Store) Get(ctx context.Context, id string) (*Conversation, []Message, error) {
	var conv Conversation
	err := s.db.GetContext(ctx, &conv,
		"SELECT id, title, created_at, updated_at FROM conversations WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, errors.Wrapf(ErrNotFound, "%s", id)
		}
		return nil, nil, errors.Wrap(err, "failed to load conversation")
	}

	var messages []Message
	err = s.db.SelectContext(ctx, &messages,
		`SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load messages")
	}
	return &conv, messages, nil
}

// List returns conversation summaries, most recently updated first. A
// non-empty searchTerm filters titles case-insensitively; limit <= 0 means
// no limit.
func (s *Store) List(ctx context.Context, searchTerm string, limit int) ([]Summary, error) {
	query := `SELECT c.id, c.title, c.created_at, c.updated_at,
		COUNT(m.id) AS message_count
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id`
	args := []interface{}{}

	if searchTerm != "" {
		query += " WHERE LOWER(c.title) LIKE ?"
		args = append(args, "%"+strings.ToLower(searchTerm)+"%")
	}
	query += " GROUP BY c.id ORDER BY c.updated_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var summaries []Summary
	if err := s.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	return summaries, nil
}

// Delete removes a conversation and its messages.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "failed to delete conversation")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check deletion")
	}
	if affected == 0 {
		return errors.Wrapf(ErrNotFound, "%s", id)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
