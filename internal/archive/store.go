// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive keeps a local SQLite record of submitted checks and
// their finished reports. It belongs to the caller: the check core never
// reads or writes it.
package archive

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/antiplagiat/pkg/types"
)

const dbFile = "archive.db"

var (
	// ErrNotArchived is returned when the archive holds no report for a task.
	ErrNotArchived = errors.New("no archived report")

	// ErrReportExists is returned by SaveReport when the task already has a
	// report. Archived reports are never overwritten.
	ErrReportExists = errors.New("report already archived")

	// ErrTerminal matches every *TerminalError.
	ErrTerminal = errors.New("task already finished")
)

// TerminalError is returned when a write would move a task out of the
// terminal status it already holds in the archive.
type TerminalError struct {
	TaskID types.TaskID
	Status types.Status
	To     types.Status
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("task %s is %s, not moving to %s: %v", e.TaskID, e.Status, e.To, ErrTerminal)
}

// Is makes errors.Is(err, ErrTerminal) hold.
func (e *TerminalError) Is(target error) bool { return target == ErrTerminal }

// Entry is one archived task with its report summary, if any.
type Entry struct {
	TaskID      types.TaskID    `json:"task_id" yaml:"task_id"`
	Mode        types.Mode      `json:"mode,omitempty" yaml:"mode,omitempty"`
	Lang        types.Language  `json:"lang,omitempty" yaml:"lang,omitempty"`
	TextSHA256  string          `json:"text_sha256,omitempty" yaml:"text_sha256,omitempty"`
	Chars       int             `json:"chars" yaml:"chars"`
	Status      types.Status    `json:"status" yaml:"status"`
	SubmittedAt types.Timestamp `json:"submitted_at" yaml:"submitted_at"`
	UpdatedAt   types.Timestamp `json:"updated_at" yaml:"updated_at"`
	Originality *float64        `json:"originality,omitempty" yaml:"originality,omitempty"`
	Sources     int             `json:"sources" yaml:"sources"`
}

// Store manages the archive database.
type Store struct {
	db  *sql.DB
	dir string
	now func() time.Time
}

// NewStore opens or creates the archive at cfg.Dir/archive.db and
// creates the schema if it does not exist.
func NewStore(cfg types.ArchiveConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = ".antiplagiat"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: dir, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Dir returns the directory holding the database.
func (s *Store) Dir() string { return s.dir }

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			mode TEXT,
			lang TEXT,
			text_sha256 TEXT,
			chars INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			submitted_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reports (
			task_id TEXT PRIMARY KEY REFERENCES tasks(task_id) ON DELETE CASCADE,
			originality REAL NOT NULL,
			total_words INTEGER NOT NULL,
			total_chars INTEGER NOT NULL,
			sources INTEGER NOT NULL,
			matches INTEGER NOT NULL,
			body TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// RecordSubmission stores a freshly submitted task as pending. The text
// itself is not kept, only its digest and length. Recording the same
// task twice is a no-op.
func (s *Store) RecordSubmission(ctx context.Context, id types.TaskID, req types.CheckRequest) error {
	sum := sha256.Sum256([]byte(req.Text))
	now := s.stamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (task_id, mode, lang, text_sha256, chars, status, submitted_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(task_id) DO NOTHING`,
		string(id), string(req.Mode), string(req.Lang), hex.EncodeToString(sum[:]),
		utf8.RuneCountInString(req.Text), string(types.StatusPending), now, now,
	)
	if err != nil {
		return fmt.Errorf("recording task %s: %w", id, err)
	}
	return nil
}

// UpdateStatus records the latest observed status of a task. Tasks not
// yet in the archive are added. A task that reached a terminal status
// keeps it: repeating it is a no-op, anything else returns *TerminalError.
func (s *Store) UpdateStatus(ctx context.Context, id types.TaskID, status types.Status) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM tasks WHERE task_id = ?`, string(id)).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		now := s.stamp()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (task_id, status, submitted_at, updated_at) VALUES (?, ?, ?, ?)`,
			string(id), string(status), now, now,
		); err != nil {
			return fmt.Errorf("inserting task %s: %w", id, err)
		}
	case err != nil:
		return fmt.Errorf("reading task %s: %w", id, err)
	default:
		cur := types.Status(current)
		if cur == status {
			return nil
		}
		if cur.Terminal() {
			return &TerminalError{TaskID: id, Status: cur, To: status}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status = ?, updated_at = ? WHERE task_id = ?`,
			string(status), s.stamp(), string(id),
		); err != nil {
			return fmt.Errorf("updating task %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// SaveReport archives a completed report and marks its task completed.
// It returns ErrReportExists if the task already has a report and
// *TerminalError if the task already finished as failed.
func (s *Store) SaveReport(ctx context.Context, r types.Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM reports WHERE task_id = ?`, string(r.TaskID),
	).Scan(&exists); err != nil {
		return fmt.Errorf("checking report %s: %w", r.TaskID, err)
	}
	if exists > 0 {
		return fmt.Errorf("task %s: %w", r.TaskID, ErrReportExists)
	}

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM tasks WHERE task_id = ?`, string(r.TaskID)).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("reading task %s: %w", r.TaskID, err)
	default:
		if cur := types.Status(current); cur.Terminal() && cur != types.StatusCompleted {
			return &TerminalError{TaskID: r.TaskID, Status: cur, To: types.StatusCompleted}
		}
	}

	now := s.stamp()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tasks (task_id, chars, status, submitted_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		string(r.TaskID), r.TotalChars, string(types.StatusCompleted), now, now,
	); err != nil {
		return fmt.Errorf("updating task %s: %w", r.TaskID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reports (task_id, originality, total_words, total_chars, sources, matches, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.TaskID), r.Originality, r.TotalWords, r.TotalChars, len(r.Sources), len(r.Matches), string(body),
	); err != nil {
		return fmt.Errorf("inserting report %s: %w", r.TaskID, err)
	}

	return tx.Commit()
}

// GetReport returns the archived report for id, or ErrNotArchived.
func (s *Store) GetReport(ctx context.Context, id types.TaskID) (types.Report, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM reports WHERE task_id = ?`, string(id)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Report{}, fmt.Errorf("task %s: %w", id, ErrNotArchived)
	}
	if err != nil {
		return types.Report{}, fmt.Errorf("reading report %s: %w", id, err)
	}

	var r types.Report
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return types.Report{}, fmt.Errorf("decoding report %s: %w", id, err)
	}
	return r, nil
}

// Delete removes a task and its report from the archive. Deleting an
// unknown task is not an error.
func (s *Store) Delete(ctx context.Context, id types.TaskID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = ?`, string(id)); err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	return nil
}

// ListOptions filters List.
type ListOptions struct {
	// Status keeps only tasks in this status; empty keeps all.
	Status types.Status

	// Limit caps the number of entries; 0 means no limit.
	Limit int
}

// List returns archived tasks, newest submission first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	query := `SELECT t.task_id, t.mode, t.lang, t.text_sha256, t.chars, t.status,
		t.submitted_at, t.updated_at, r.originality, r.sources
		FROM tasks t LEFT JOIN reports r ON r.task_id = t.task_id`
	var args []interface{}
	if opts.Status != "" {
		query += ` WHERE t.status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY t.submitted_at DESC, t.task_id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                  Entry
			mode, lang, digest sql.NullString
			status             string
			submitted, updated string
			originality        sql.NullFloat64
			sources            sql.NullInt64
		)
		if err := rows.Scan(&e.TaskID, &mode, &lang, &digest, &e.Chars, &status,
			&submitted, &updated, &originality, &sources); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		e.Mode = types.Mode(mode.String)
		e.Lang = types.Language(lang.String)
		e.TextSHA256 = digest.String
		e.Status = types.Status(status)
		e.SubmittedAt, _ = types.ParseTimestamp(submitted)
		e.UpdatedAt, _ = types.ParseTimestamp(updated)
		if originality.Valid {
			v := originality.Float64
			e.Originality = &v
		}
		e.Sources = int(sources.Int64)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PendingTasks returns the ids of tasks not yet in a terminal status,
// oldest first.
func (s *Store) PendingTasks(ctx context.Context) ([]types.TaskID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id FROM tasks WHERE status NOT IN (?, ?) ORDER BY submitted_at, task_id`,
		string(types.StatusCompleted), string(types.StatusFailed),
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending tasks: %w", err)
	}
	defer rows.Close()

	var ids []types.TaskID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning task id: %w", err)
		}
		ids = append(ids, types.TaskID(id))
	}
	return ids, rows.Err()
}
