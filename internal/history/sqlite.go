// Package history records finished runs in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meow-stack/promptchain/internal/types"
)

// ErrNotFound is returned when a run is not in the history.
var ErrNotFound = errors.New("run not found in history")

// Filter for listing runs.
type Filter struct {
	PromptID string          // Only runs of this prompt (empty = all)
	Status   types.RunStatus // Only runs with this status (empty = all)
	Limit    int             // Maximum rows (0 = 50)
}

// Store is the SQLite run history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history db: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		prompt_id TEXT NOT NULL,
		prompt_name TEXT NOT NULL,
		status TEXT NOT NULL,
		abort_reason TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT
	);

	CREATE TABLE IF NOT EXISTS run_steps (
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		step_index INTEGER NOT NULL,
		step_id TEXT NOT NULL,
		input_prompt TEXT NOT NULL,
		output_text TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, step_index)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_prompt ON runs(prompt_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun records a run, replacing any earlier record with the same ID.
func (s *Store) SaveRun(ctx context.Context, r *types.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var finished sql.NullString
	if r.FinishedAt != nil {
		finished = sql.NullString{String: formatTime(*r.FinishedAt), Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_steps WHERE run_id = ?`, r.RunID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (run_id, prompt_id, prompt_name, status, abort_reason, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.PromptID, r.PromptName, string(r.Status), string(r.AbortReason), formatTime(r.StartedAt), finished,
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", r.RunID, err)
	}

	for _, step := range r.Steps {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_steps (run_id, step_index, step_id, input_prompt, output_text, error)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.RunID, step.StepIndex, step.StepID, step.InputPrompt, step.OutputText, step.Error,
		)
		if err != nil {
			return fmt.Errorf("saving step %d of run %s: %w", step.StepIndex, r.RunID, err)
		}
	}

	return tx.Commit()
}

// GetRun returns a recorded run with its steps.
func (s *Store) GetRun(ctx context.Context, runID string) (*types.RunResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, prompt_id, prompt_name, status, abort_reason, started_at, finished_at
		 FROM runs WHERE run_id = ?`, runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT step_index, step_id, input_prompt, output_text, error
		 FROM run_steps WHERE run_id = ? ORDER BY step_index`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var step types.RunResultStep
		if err := rows.Scan(&step.StepIndex, &step.StepID, &step.InputPrompt, &step.OutputText, &step.Error); err != nil {
			return nil, err
		}
		r.Steps = append(r.Steps, step)
	}
	return r, rows.Err()
}

// ListRuns returns recorded runs, newest first, without their steps.
func (s *Store) ListRuns(ctx context.Context, filter Filter) ([]*types.RunResult, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, prompt_id, prompt_name, status, abort_reason, started_at, finished_at
		 FROM runs
		 WHERE (? = '' OR prompt_id = ?) AND (? = '' OR status = ?)
		 ORDER BY started_at DESC LIMIT ?`,
		filter.PromptID, filter.PromptID, string(filter.Status), string(filter.Status), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*types.RunResult
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its steps.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_steps WHERE run_id = ?`, runID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*types.RunResult, error) {
	var r types.RunResult
	var status, abortReason, startedAt string
	var finishedAt sql.NullString

	err := row.Scan(&r.RunID, &r.PromptID, &r.PromptName, &status, &abortReason, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	r.Status = types.RunStatus(status)
	r.AbortReason = types.AbortReason(abortReason)
	r.Steps = []types.RunResultStep{}

	if r.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, err
		}
		r.FinishedAt = &t
	}
	return &r, nil
}

// timeLayout is fixed-width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}
