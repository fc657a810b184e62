package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ReminderStore is the persistence contract for reminder records.
// Records are partitioned by owner; every write touches a single record
// so one tenant's traffic never blocks another's sweep scan.
type ReminderStore interface {
	Get(ownerID string, id int64) (Reminder, error)
	Put(ownerID string, r Reminder) error
	Delete(ownerID string, id int64) error
	List(ownerID string) ([]Reminder, error)
	// ListPending returns un-notified reminders. With allOwners the scan
	// crosses every tenant partition (used by the sweep); otherwise only
	// ownerID's records are returned.
	ListPending(allOwners bool, ownerID string) ([]Reminder, error)
	// Update applies a partial patch and resets is_notified so an edited
	// time gets re-evaluated by the sweep.
	Update(ownerID string, id int64, patch ReminderPatch) error
	// MarkNotified flips a pending reminder to fired. Returns false if the
	// reminder was already fired (or gone), which makes firing idempotent.
	MarkNotified(ownerID string, id int64) (bool, error)
}

// ReminderPatch is a partial update; nil fields are left untouched.
type ReminderPatch struct {
	Title    *string `json:"title,omitempty"`
	Time     *string `json:"time,omitempty"`
	Date     *string `json:"date,omitempty"`
	Category *string `json:"category,omitempty"`
	Color    *string `json:"color,omitempty"`
}

// ChatMessage is one stored conversation turn.
type ChatMessage struct {
	Role      string `json:"role"` // "user" or "assistant"
	Content   string `json:"content"`
	CreatedAt string `json:"time"`
}

// ChatLog persists per-owner conversation history.
type ChatLog interface {
	AppendChat(ownerID, role, content string) error
	ChatHistory(ownerID string, limit int) ([]ChatMessage, error)
}

var errNotFound = fmt.Errorf("not found")

// --- SQLite implementation ---

// sqliteStore backs ReminderStore and ChatLog with a single SQLite file.
type sqliteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

func openStore(dbPath string) (*sqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &sqliteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reminders (
		owner_id     TEXT NOT NULL,
		id           INTEGER NOT NULL,
		title        TEXT NOT NULL,
		time         TEXT NOT NULL,
		date         TEXT NOT NULL,
		category     TEXT NOT NULL DEFAULT 'personal',
		color        TEXT NOT NULL DEFAULT '',
		is_notified  INTEGER NOT NULL DEFAULT 0,
		is_defaulted INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (owner_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_reminders_pending ON reminders(is_notified);

	CREATE TABLE IF NOT EXISTS chat_logs (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id   TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_owner ON chat_logs(owner_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

const reminderCols = `owner_id, id, title, time, date, category, color, is_notified, is_defaulted`

func scanReminder(row interface{ Scan(...any) error }) (Reminder, error) {
	var r Reminder
	var notified, defaulted int
	err := row.Scan(&r.OwnerID, &r.ID, &r.Title, &r.Time, &r.Date,
		&r.Category, &r.Color, &notified, &defaulted)
	if err != nil {
		return Reminder{}, err
	}
	r.IsNotified = notified != 0
	r.IsDefaulted = defaulted != 0
	return r, nil
}

func (s *sqliteStore) Get(ownerID string, id int64) (Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(
		`SELECT `+reminderCols+` FROM reminders WHERE owner_id = ? AND id = ?`,
		ownerID, id)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return Reminder{}, errNotFound
	}
	if err != nil {
		return Reminder{}, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

func (s *sqliteStore) Put(ownerID string, r Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO reminders (`+reminderCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ownerID, r.ID, r.Title, r.Time, r.Date, r.Category, r.Color,
		boolToInt(r.IsNotified), boolToInt(r.IsDefaulted))
	if err != nil {
		return fmt.Errorf("put reminder: %w", err)
	}
	return nil
}

func (s *sqliteStore) Delete(ownerID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM reminders WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return nil
}

func (s *sqliteStore) List(ownerID string) ([]Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryReminders(
		`SELECT `+reminderCols+` FROM reminders WHERE owner_id = ? ORDER BY id`, ownerID)
}

func (s *sqliteStore) ListPending(allOwners bool, ownerID string) ([]Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if allOwners {
		return s.queryReminders(
			`SELECT ` + reminderCols + ` FROM reminders WHERE is_notified = 0 ORDER BY id`)
	}
	return s.queryReminders(
		`SELECT `+reminderCols+` FROM reminders WHERE is_notified = 0 AND owner_id = ? ORDER BY id`,
		ownerID)
}

func (s *sqliteStore) queryReminders(query string, args ...any) ([]Reminder, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			// One bad row must not abort the scan.
			logWarn("skip malformed reminder row", "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Update(ownerID string, id int64, patch ReminderPatch) error {
	set := "is_notified = 0"
	var args []any
	for col, v := range map[string]*string{
		"title": patch.Title, "time": patch.Time, "date": patch.Date,
		"category": patch.Category, "color": patch.Color,
	} {
		if v != nil {
			set += ", " + col + " = ?"
			args = append(args, *v)
		}
	}
	args = append(args, ownerID, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		`UPDATE reminders SET `+set+` WHERE owner_id = ? AND id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotFound
	}
	return nil
}

func (s *sqliteStore) MarkNotified(ownerID string, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		`UPDATE reminders SET is_notified = 1 WHERE owner_id = ? AND id = ? AND is_notified = 0`,
		ownerID, id)
	if err != nil {
		return false, fmt.Errorf("mark notified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) AppendChat(ownerID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO chat_logs (owner_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		ownerID, role, content, time.Now().Format("2006-01-02 15:04:05"))
	if err != nil {
		return fmt.Errorf("append chat: %w", err)
	}
	return nil
}

// ChatHistory returns the owner's most recent turns, oldest first.
func (s *sqliteStore) ChatHistory(ownerID string, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(
		`SELECT role, content, created_at FROM (
			SELECT seq, role, content, created_at FROM chat_logs
			WHERE owner_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
