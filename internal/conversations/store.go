/*-------------------------------------------------------------------------
 *
 * sqlpilot - Conversation Store
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package conversations

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sqlpilot/internal/llm"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrNotFound is returned when a session ID has no stored row.
var ErrNotFound = errors.New("session not found")

// Session is one stored conversation.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Turn is one stored conversation turn. Content holds the JSON encoding of
// the message content: a plain string for user and final assistant turns, a
// block array when the turn carries tool calls or tool results.
type Turn struct {
	Seq       int             `json:"seq"`
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store persists sessions and their turns in a SQLite file so a restarted
// process can list and resume earlier conversations. Turns are append-only:
// nothing recorded is ever rewritten.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens (creating if needed) the store at path. The parent
// directory is created when missing.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// WAL keeps readers unblocked while a turn is being recorded
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS sessions (
        id         TEXT PRIMARY KEY,
        title      TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS turns (
        session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
        seq        INTEGER NOT NULL,
        role       TEXT NOT NULL,
        content    TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        PRIMARY KEY (session_id, seq)
    );

    CREATE INDEX IF NOT EXISTS idx_sessions_updated_at
        ON sessions(updated_at DESC);
    `
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new empty session.
func (s *Store) CreateSession(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	session := &Session{
		ID:        id,
		Title:     "New conversation",
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.Title, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return session, nil
}

// AppendTurns records messages at the end of a session's history, in order,
// in one transaction. The session row is created if it does not exist yet,
// and its title is derived from the first user turn.
func (s *Store) AppendTurns(sessionID string, messages []llm.Message) error {
	if len(messages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	now := time.Now().UTC()

	var title string
	var next int
	err = tx.QueryRow(`SELECT title FROM sessions WHERE id = ?`, sessionID).Scan(&title)
	switch {
	case err == sql.ErrNoRows:
		title = "New conversation"
		if _, err := tx.Exec(
			`INSERT INTO sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			sessionID, title, now, now,
		); err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to query session: %w", err)
	default:
		if err := tx.QueryRow(
			`SELECT COALESCE(MAX(seq), -1) + 1 FROM turns WHERE session_id = ?`, sessionID,
		).Scan(&next); err != nil {
			return fmt.Errorf("failed to query turn count: %w", err)
		}
	}

	for _, msg := range messages {
		content, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("failed to encode turn content: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO turns (session_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			sessionID, next, msg.Role, string(content), now,
		); err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}

		if next == 0 && title == "New conversation" {
			if derived := deriveTitle(msg); derived != "" {
				title = derived
			}
		}
		next++
	}

	if _, err := tx.Exec(
		`UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`,
		title, now, sessionID,
	); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return tx.Commit()
}

// deriveTitle truncates the first user message into a list-friendly title.
func deriveTitle(msg llm.Message) string {
	if msg.Role != "user" {
		return ""
	}
	text, ok := msg.Content.(string)
	if !ok || text == "" {
		return ""
	}
	if len(text) > 50 {
		return text[:47] + "..."
	}
	return text
}

// GetSession returns one session's metadata, or ErrNotFound.
func (s *Store) GetSession(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var session Session
	err := s.db.QueryRow(
		`SELECT s.id, s.title, s.created_at, s.updated_at,
		        (SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id)
		 FROM sessions s WHERE s.id = ?`, id,
	).Scan(&session.ID, &session.Title, &session.CreatedAt, &session.UpdatedAt, &session.Turns)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return &session, nil
}

// ListSessions returns sessions most recently updated first.
func (s *Store) ListSessions(limit int) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT s.id, s.title, s.created_at, s.updated_at,
		        (SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id)
		 FROM sessions s
		 ORDER BY s.updated_at DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var session Session
		if err := rows.Scan(&session.ID, &session.Title, &session.CreatedAt,
			&session.UpdatedAt, &session.Turns); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// LoadTurns returns a session's raw turns in order.
func (s *Store) LoadTurns(sessionID string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT seq, role, content, created_at FROM turns
		 WHERE session_id = ? ORDER BY seq`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var turn Turn
		var content string
		if err := rows.Scan(&turn.Seq, &turn.Role, &content, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Content = json.RawMessage(content)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}
	return turns, nil
}

// LoadHistory returns a session's turns revived as reasoning-client messages,
// ready to seed a resumed session.
func (s *Store) LoadHistory(sessionID string) ([]llm.Message, error) {
	turns, err := s.LoadTurns(sessionID)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		content, err := llm.DecodeContent(turn.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to decode turn %d: %w", turn.Seq, err)
		}
		history = append(history, llm.Message{Role: turn.Role, Content: content})
	}
	return history, nil
}

// DeleteSession removes a session and, via the foreign key, its turns.
func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
