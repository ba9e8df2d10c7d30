package persist

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded onboarding run. The history is an audit log and the
// re-verification source; it is never consulted for de-duplication.
type Run struct {
	ID              string
	SourceMessageID string
	Platform        string
	ChannelID       string
	Organization    string
	Broker          string
	AccountNumber   string
	MatchedTemplate string
	Success         bool
	Connected       bool
	FailureReason   string
	CreatedAt       time.Time
}

// Store persists onboarding run history using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a new SQLite-backed run store at the given path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL keeps recheck reads from blocking run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &Store{db: db}

	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id                TEXT PRIMARY KEY,
			source_message_id TEXT NOT NULL,
			platform          TEXT,
			channel_id        TEXT,
			organization      TEXT,
			broker            TEXT,
			account_number    TEXT NOT NULL,
			matched_template  TEXT,
			success           INTEGER NOT NULL,
			connected         INTEGER NOT NULL,
			failure_reason    TEXT,
			created_at        INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
		CREATE INDEX IF NOT EXISTS idx_runs_account ON runs(account_number);
	`)
	return err
}

// Record inserts one completed run.
func (s *Store) Record(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (id, source_message_id, platform, channel_id, organization,
			broker, account_number, matched_template, success, connected, failure_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SourceMessageID, run.Platform, run.ChannelID, run.Organization,
		run.Broker, run.AccountNumber, run.MatchedTemplate,
		boolInt(run.Success), boolInt(run.Connected), run.FailureReason,
		run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// RecentConnected returns runs within the window whose accounts were last
// seen connected, newest first, one entry per account.
func (s *Store) RecentConnected(window time.Duration) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := time.Now().Add(-window).Unix()
	rows, err := s.db.Query(`
		SELECT id, source_message_id, platform, channel_id, organization,
			broker, account_number, matched_template, success, connected, failure_reason, created_at
		FROM runs
		WHERE connected = 1 AND created_at >= ?
		ORDER BY created_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	seen := map[string]bool{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		if seen[r.AccountNumber] {
			continue
		}
		seen[r.AccountNumber] = true
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// History returns the most recent runs, newest first.
func (s *Store) History(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, source_message_id, platform, channel_id, organization,
			broker, account_number, matched_template, success, connected, failure_reason, created_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanRun(rows *sql.Rows) (Run, error) {
	var r Run
	var success, connected int
	var createdAt int64
	if err := rows.Scan(&r.ID, &r.SourceMessageID, &r.Platform, &r.ChannelID, &r.Organization,
		&r.Broker, &r.AccountNumber, &r.MatchedTemplate, &success, &connected, &r.FailureReason, &createdAt); err != nil {
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}
	r.Success = success == 1
	r.Connected = connected == 1
	r.CreatedAt = time.Unix(createdAt, 0)
	return r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
