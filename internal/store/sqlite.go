package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ara/internal/logging"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Playbook represents a row in the playbooks table.
type Playbook struct {
	ID        string     `json:"id"`
	Path      string     `json:"path"`
	TimeStart time.Time  `json:"time_start"`
	TimeEnd   *time.Time `json:"time_end,omitempty"`
	Complete  bool       `json:"complete"`
	Results   int        `json:"results"`
	Failed    int        `json:"failed"`
}

// Duration is the playbook's run time, or nil while it is still running.
func (p *Playbook) Duration() *time.Duration {
	if p.TimeEnd == nil {
		return nil
	}
	d := p.TimeEnd.Sub(p.TimeStart)
	return &d
}

// Result represents a row in the results table: one task on one host.
type Result struct {
	ID         int64           `json:"id"`
	PlaybookID string          `json:"playbook_id"`
	Host       string          `json:"host"`
	Task       string          `json:"task"`
	Path       string          `json:"path"`
	Lineno     int             `json:"lineno"`
	Status     string          `json:"status"`
	Payload    json.RawMessage `json:"result"`
	TimeStart  time.Time       `json:"time_start"`
	TimeEnd    *time.Time      `json:"time_end,omitempty"`
}

// Duration is the task's run time, or nil when it has no end time.
func (r *Result) Duration() *time.Duration {
	if r.TimeEnd == nil {
		return nil
	}
	d := r.TimeEnd.Sub(r.TimeStart)
	return &d
}

// Result statuses.
const (
	StatusOK          = "ok"
	StatusChanged     = "changed"
	StatusFailed      = "failed"
	StatusSkipped     = "skipped"
	StatusUnreachable = "unreachable"
)

// Store wraps an sql.DB and provides typed helpers.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates a SQLite database at the given path and ensures schema.
// MemoryPath gives a database that lives as long as the Store.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	if path == MemoryPath {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	s := &Store{db: db, now: time.Now}
	if err := s.CreateAll(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

const ddl = `
CREATE TABLE IF NOT EXISTS playbooks (
    id TEXT PRIMARY KEY,
    path TEXT NOT NULL,
    time_start TEXT NOT NULL,
    time_end TEXT,
    complete INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS results (
    id INTEGER PRIMARY KEY,
    playbook_id TEXT NOT NULL REFERENCES playbooks(id) ON DELETE CASCADE,
    host TEXT NOT NULL,
    task TEXT,
    path TEXT,
    lineno INTEGER,
    status TEXT NOT NULL,
    result TEXT,
    time_start TEXT NOT NULL,
    time_end TEXT
);
CREATE INDEX IF NOT EXISTS idx_playbooks_time_start ON playbooks(time_start);
CREATE INDEX IF NOT EXISTS idx_results_playbook ON results(playbook_id);
CREATE INDEX IF NOT EXISTS idx_results_status ON results(status);
`

// CreateAll creates every table and index that does not exist yet.
func (s *Store) CreateAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, ddl)
	logging.LogSchema("create_all", err)
	return err
}

// DropAll removes every table, discarding all data.
func (s *Store) DropAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS results; DROP TABLE IF EXISTS playbooks;`)
	logging.LogSchema("drop_all", err)
	return err
}

// Close closes the underlying DB.
func (s *Store) Close() error { return s.db.Close() }

// CreatePlaybook records the start of a playbook run and returns its ID.
func (s *Store) CreatePlaybook(ctx context.Context, path string) (*Playbook, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrEmptyPath
	}
	p := &Playbook{
		ID:        uuid.NewString(),
		Path:      path,
		TimeStart: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO playbooks (id, path, time_start, complete) VALUES (?, ?, ?, 0)`,
		p.ID, p.Path, formatTime(p.TimeStart))
	if err != nil {
		return nil, err
	}
	logging.LogDBCreate("playbooks", p.ID, map[string]any{"path": p.Path})
	return p, nil
}

// CompletePlaybook stamps the end time and marks the playbook complete.
func (s *Store) CompletePlaybook(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE playbooks SET time_end = ?, complete = 1 WHERE id = ?`,
		formatTime(s.now().UTC()), id)
	if err != nil {
		logging.LogDBOperation("complete_playbook", id, err)
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	logging.LogDBOperation("complete_playbook", id, nil)
	return nil
}

// GetPlaybook loads one playbook with its result counters.
func (s *Store) GetPlaybook(ctx context.Context, id string) (*Playbook, error) {
	row := s.db.QueryRowContext(ctx, playbookSelect+` WHERE p.id = ? GROUP BY p.id`, id)
	p, err := scanPlaybook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListPlaybooks returns all playbooks, most recent first.
func (s *Store) ListPlaybooks(ctx context.Context) ([]Playbook, error) {
	rows, err := s.db.QueryContext(ctx, playbookSelect+` GROUP BY p.id ORDER BY p.time_start DESC, p.rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Playbook
	for rows.Next() {
		p, err := scanPlaybook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

const playbookSelect = `
SELECT p.id, p.path, p.time_start, p.time_end, p.complete,
       COUNT(r.id),
       COALESCE(SUM(CASE WHEN r.status IN ('failed', 'unreachable') THEN 1 ELSE 0 END), 0)
FROM playbooks p
LEFT JOIN results r ON r.playbook_id = p.id`

// NewResult is the input to AddResult.
type NewResult struct {
	PlaybookID string          `json:"playbook_id"`
	Host       string          `json:"host"`
	Task       string          `json:"task"`
	Path       string          `json:"path"`
	Lineno     int             `json:"lineno"`
	Status     string          `json:"status"`
	Payload    json.RawMessage `json:"result"`
	TimeStart  time.Time       `json:"time_start"`
	TimeEnd    *time.Time      `json:"time_end,omitempty"`
}

// AddResult stores a task result and returns its ID.
func (s *Store) AddResult(ctx context.Context, in NewResult) (int64, error) {
	status, err := normalizeStatus(in.Status)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(in.Path) == "" {
		return 0, ErrEmptyPath
	}
	payload := "{}"
	if len(in.Payload) > 0 {
		if !json.Valid(in.Payload) {
			return 0, ErrInvalidPayload
		}
		payload = string(in.Payload)
	}
	start := in.TimeStart
	if start.IsZero() {
		start = s.now()
	}
	var end any
	if in.TimeEnd != nil {
		end = formatTime(*in.TimeEnd)
	}

	if _, err := s.GetPlaybook(ctx, in.PlaybookID); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO results (playbook_id, host, task, path, lineno, status, result, time_start, time_end)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.PlaybookID, in.Host, in.Task, in.Path, in.Lineno, status, payload, formatTime(start), end)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get insert id: %w", err)
	}
	logging.LogDBCreate("results", id, map[string]any{
		"playbook_id": in.PlaybookID,
		"host":        in.Host,
		"status":      status,
	})
	return id, nil
}

// ListResults returns the results of one playbook in insertion order.
func (s *Store) ListResults(ctx context.Context, playbookID string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, playbook_id, host, task, path, lineno, status, result, time_start, time_end
FROM results WHERE playbook_id = ? ORDER BY id ASC`, playbookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var (
			r          Result
			task, path sql.NullString
			lineno     sql.NullInt64
			payload    sql.NullString
			start      string
			end        sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.PlaybookID, &r.Host, &task, &path, &lineno, &r.Status, &payload, &start, &end); err != nil {
			return nil, err
		}
		r.Task, r.Path, r.Lineno = task.String, path.String, int(lineno.Int64)
		r.Payload = json.RawMessage(payload.String)
		if r.TimeStart, err = parseTime(start); err != nil {
			return nil, err
		}
		if r.TimeEnd, err = parseNullTime(end); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlaybook(sc scanner) (*Playbook, error) {
	var (
		p        Playbook
		start    string
		end      sql.NullString
		complete int
	)
	if err := sc.Scan(&p.ID, &p.Path, &start, &end, &complete, &p.Results, &p.Failed); err != nil {
		return nil, err
	}
	var err error
	if p.TimeStart, err = parseTime(start); err != nil {
		return nil, err
	}
	if p.TimeEnd, err = parseNullTime(end); err != nil {
		return nil, err
	}
	p.Complete = complete != 0
	return &p, nil
}

func normalizeStatus(s string) (string, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case StatusOK, StatusChanged, StatusFailed, StatusSkipped, StatusUnreachable:
		return v, nil
	case "":
		return StatusOK, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Fixed width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
