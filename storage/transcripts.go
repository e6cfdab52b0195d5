package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"byom/config"
	"byom/model"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SessionMetadata describes one stored conversation.
type SessionMetadata struct {
	ID           string
	Name         string
	Model        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// MessageMatch is a search hit inside a stored conversation.
type MessageMatch struct {
	SessionID    string
	SessionName  string
	MessageIndex int
	Role         model.Role
	Preview      string
	Timestamp    time.Time
}

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// TranscriptStore keeps conversations in a SQLite database.
type TranscriptStore struct {
	db *sql.DB
}

func NewTranscriptStore(dataDir string) (*TranscriptStore, error) {
	dbPath := filepath.Join(dataDir, "transcripts.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &TranscriptStore{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *TranscriptStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		model TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		tool_calls TEXT NOT NULL DEFAULT '',
		tool_call_id TEXT NOT NULL DEFAULT '',
		is_error INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateSession starts an empty conversation.
func (s *TranscriptStore) CreateSession(name, modelName string) (*Transcript, error) {
	now := time.Now()
	id := uuid.New().String()
	if name == "" {
		name = GenerateSessionName("")
	}

	_, err := s.db.Exec(`INSERT INTO sessions (id, name, model, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, modelName, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Storage] Created session %s (%s)", id, name)
	}
	return &Transcript{store: s, sessionID: id}, nil
}

// Open loads an existing conversation.
func (s *TranscriptStore) Open(id string) (*Transcript, error) {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	messages, err := s.loadMessages(id)
	if err != nil {
		return nil, err
	}
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Storage] Opened session %s with %d messages", id, len(messages))
	}
	return &Transcript{store: s, sessionID: id, messages: messages}, nil
}

// ListSessions returns all sessions, most recently updated first.
func (s *TranscriptStore) ListSessions() ([]SessionMetadata, error) {
	rows, err := s.db.Query(`
	SELECT s.id, s.name, s.model, s.created_at, s.updated_at, COUNT(m.seq)
	FROM sessions s
	LEFT JOIN messages m ON m.session_id = s.id
	GROUP BY s.id
	ORDER BY s.updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionMetadata
	for rows.Next() {
		var meta SessionMetadata
		if err := rows.Scan(&meta.ID, &meta.Name, &meta.Model, &meta.CreatedAt, &meta.UpdatedAt, &meta.MessageCount); err != nil {
			return nil, err
		}
		sessions = append(sessions, meta)
	}
	return sessions, rows.Err()
}

func (s *TranscriptStore) RenameSession(id, name string) error {
	result, err := s.db.Exec(`UPDATE sessions SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

func (s *TranscriptStore) DeleteSession(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return tx.Commit()
}

// Search finds messages whose content contains query, case-insensitively,
// newest sessions first.
func (s *TranscriptStore) Search(query string, limit int) ([]MessageMatch, error) {
	if strings.TrimSpace(query) == "" {
		return []MessageMatch{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
	SELECT m.session_id, s.name, m.seq, m.role, m.content, m.created_at
	FROM messages m
	JOIN sessions s ON s.id = m.session_id
	WHERE m.content LIKE ? ESCAPE '\'
	ORDER BY s.updated_at DESC, m.seq
	LIMIT ?
	`, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []MessageMatch
	for rows.Next() {
		var match MessageMatch
		var role, content string
		if err := rows.Scan(&match.SessionID, &match.SessionName, &match.MessageIndex, &role, &content, &match.Timestamp); err != nil {
			return nil, err
		}
		match.Role = model.Role(role)
		match.Preview = preview(content, query)
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

func (s *TranscriptStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type storedToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func (s *TranscriptStore) appendMessage(sessionID string, seq int, msg model.Message) error {
	var toolCalls string
	if len(msg.ToolCalls) > 0 {
		stored := make([]storedToolCall, len(msg.ToolCalls))
		for i, call := range msg.ToolCalls {
			stored[i] = storedToolCall{ID: call.ID, Name: call.Name, Arguments: call.Arguments}
		}
		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to encode tool calls: %w", err)
		}
		toolCalls = string(data)
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
	INSERT INTO messages (session_id, seq, role, content, tool_calls, tool_call_id, is_error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionID, seq, string(msg.Role), msg.Content, toolCalls, msg.ToolCallID, msg.IsError, ts)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	if _, err := tx.Exec(`UPDATE sessions SET updated_at = ? WHERE id = ?`, time.Now(), sessionID); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return tx.Commit()
}

func (s *TranscriptStore) loadMessages(sessionID string) ([]model.Message, error) {
	rows, err := s.db.Query(`
	SELECT role, content, tool_calls, tool_call_id, is_error, created_at
	FROM messages
	WHERE session_id = ?
	ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		var role, toolCalls string
		if err := rows.Scan(&role, &msg.Content, &toolCalls, &msg.ToolCallID, &msg.IsError, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.Role = model.Role(role)
		if toolCalls != "" {
			var stored []storedToolCall
			if err := json.Unmarshal([]byte(toolCalls), &stored); err != nil {
				return nil, fmt.Errorf("failed to decode tool calls: %w", err)
			}
			for _, call := range stored {
				msg.ToolCalls = append(msg.ToolCalls, model.ToolCallRequest{ID: call.ID, Name: call.Name, Arguments: call.Arguments})
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Transcript is one stored conversation. Appends are written through to the
// database before they become visible in Snapshot.
type Transcript struct {
	store     *TranscriptStore
	sessionID string

	mu       sync.RWMutex
	messages []model.Message
}

func (t *Transcript) ID() string {
	return t.sessionID
}

func (t *Transcript) Append(msg model.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.appendMessage(t.sessionID, len(t.messages), msg); err != nil {
		return err
	}
	t.messages = append(t.messages, msg)
	return nil
}

func (t *Transcript) Snapshot() []model.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]model.Message(nil), t.messages...)
}

// GenerateSessionName generates a session name from the first user message
func GenerateSessionName(firstMessage string) string {
	// Remove newlines
	name := strings.ReplaceAll(firstMessage, "\n", " ")
	name = strings.ReplaceAll(name, "\r", " ")
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Sprintf("Session %s", time.Now().Format("Jan 2, 3:04 PM"))
	}

	// Take first 30 characters
	if r := []rune(name); len(r) > 30 {
		name = string(r[:30]) + "..."
	}
	return name
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// preview returns up to 40 characters on each side of the first match.
func preview(content, query string) string {
	content = strings.ReplaceAll(content, "\n", " ")
	idx := strings.Index(strings.ToLower(content), strings.ToLower(query))
	if idx < 0 {
		idx = 0
	}
	start := idx - 40
	if start < 0 {
		start = 0
	}
	end := idx + len(query) + 40
	if end > len(content) {
		end = len(content)
	}
	// Keep the cut on rune boundaries.
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}

	out := content[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(content) {
		out += "..."
	}
	return out
}
