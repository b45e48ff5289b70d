package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/loveplay1983/pydirector-cn/internal/models"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

// timestampLayouts covers our own RFC 3339 timestamps and the Python
// isoformat() strings found in older actions.db files.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

type Storage struct {
	db  *sql.DB
	now func() time.Time
}

func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}

	s := &Storage{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	// The actions table keeps the legacy column names so an
	// existing actions.db can be opened in place.
	schema := `
	CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action_name TEXT,
		action_type TEXT,
		parameters TEXT,
		timestamp TEXT
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		loop_count INTEGER NOT NULL,
		effective_loops INTEGER NOT NULL,
		iterations INTEGER NOT NULL,
		actions_executed INTEGER NOT NULL,
		failure_count INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		reason TEXT
	);

	CREATE TABLE IF NOT EXISTS action_failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		iteration INTEGER NOT NULL,
		target TEXT,
		action_id INTEGER NOT NULL,
		action_name TEXT,
		action_type TEXT,
		reason TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_outcome ON runs(outcome);
	CREATE INDEX IF NOT EXISTS idx_action_failures_run ON action_failures(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Storage) timestamp() string {
	return s.now().Format(time.RFC3339Nano)
}

// CreateAction inserts an action and returns its id. Ids come from
// AUTOINCREMENT and are never reused.
func (s *Storage) CreateAction(name string, kind models.Kind, parameters string) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO actions (action_name, action_type, parameters, timestamp)
		 VALUES (?, ?, ?, ?)`,
		name, string(kind), parameters, s.timestamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create action: %w", err)
	}
	return result.LastInsertId()
}

// ListActions returns every action in ascending id order.
func (s *Storage) ListActions() ([]models.Action, error) {
	rows, err := s.db.Query(
		`SELECT id, action_name, action_type, parameters, timestamp
		 FROM actions ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []models.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, *a)
	}

	return actions, rows.Err()
}

func (s *Storage) GetAction(id int64) (*models.Action, error) {
	row := s.db.QueryRow(
		`SELECT id, action_name, action_type, parameters, timestamp
		 FROM actions WHERE id = ?`, id,
	)

	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("action %d: %w", id, ErrNotFound)
	}
	return a, err
}

func (s *Storage) UpdateAction(id int64, name string, kind models.Kind, parameters string) error {
	result, err := s.db.Exec(
		`UPDATE actions
		 SET action_name = ?, action_type = ?, parameters = ?, timestamp = ?
		 WHERE id = ?`,
		name, string(kind), parameters, s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update action: %w", err)
	}
	return requireRow(result, id)
}

func (s *Storage) DeleteAction(id int64) error {
	result, err := s.db.Exec(`DELETE FROM actions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete action: %w", err)
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("action %d: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAction(row scanner) (*models.Action, error) {
	var a models.Action
	var name, kind, params, ts sql.NullString

	if err := row.Scan(&a.ID, &name, &kind, &params, &ts); err != nil {
		return nil, err
	}

	a.Name = name.String
	a.Kind = models.Kind(kind.String)
	a.Parameters = params.String
	if ts.Valid {
		a.RecordedAt = parseTimestamp(ts.String)
	}
	return &a, nil
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// RecordRun stores a finished run and its per-action failures in one
// transaction and returns the run id.
func (s *Storage) RecordRun(run *models.Run, failures []models.ActionFailure) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO runs (started_at, finished_at, loop_count, effective_loops, iterations,
		                   actions_executed, failure_count, outcome, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt, run.FinishedAt, run.LoopCount, run.EffectiveLoops, run.Iterations,
		run.ActionsExecuted, run.FailureCount, string(run.Outcome), run.Reason,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, f := range failures {
		if _, err := tx.Exec(
			`INSERT INTO action_failures (run_id, iteration, target, action_id, action_name, action_type, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, f.Iteration, f.Target, f.ActionID, f.ActionName, string(f.Kind), f.Reason,
		); err != nil {
			return 0, fmt.Errorf("failed to record action failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	run.ID = runID
	return runID, nil
}

func (s *Storage) GetRun(id int64) (*models.Run, error) {
	row := s.db.QueryRow(
		`SELECT id, started_at, finished_at, loop_count, effective_loops, iterations,
		        actions_executed, failure_count, outcome, reason
		 FROM runs WHERE id = ?`, id,
	)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	return run, err
}

func (s *Storage) ListRuns(limit int) ([]*models.Run, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, loop_count, effective_loops, iterations,
		        actions_executed, failure_count, outcome, reason
		 FROM runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func scanRun(row scanner) (*models.Run, error) {
	var run models.Run
	var outcome string
	var reason sql.NullString

	err := row.Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &run.LoopCount, &run.EffectiveLoops,
		&run.Iterations, &run.ActionsExecuted, &run.FailureCount, &outcome, &reason,
	)
	if err != nil {
		return nil, err
	}

	run.Outcome = models.Outcome(outcome)
	run.Reason = reason.String
	return &run, nil
}

func (s *Storage) GetFailuresForRun(runID int64) ([]models.ActionFailure, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, iteration, target, action_id, action_name, action_type, reason
		 FROM action_failures WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []models.ActionFailure
	for rows.Next() {
		var f models.ActionFailure
		var target, name, kind sql.NullString

		if err := rows.Scan(&f.ID, &f.RunID, &f.Iteration, &target, &f.ActionID, &name, &kind, &f.Reason); err != nil {
			return nil, err
		}

		f.Target = target.String
		f.ActionName = name.String
		f.Kind = models.Kind(kind.String)
		failures = append(failures, f)
	}

	return failures, rows.Err()
}

func (s *Storage) DeleteRun(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM action_failures WHERE run_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %d: %w", id, ErrNotFound)
	}

	return tx.Commit()
}

// Helper to format time for display
func FormatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2")
	}
}
