package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/turingloom/internal/machine"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// Run is a recorded execution.
type Run struct {
	ID             string    `json:"id"`
	ProgramHash    string    `json:"programHash"`
	InitialContent string    `json:"initialContent"`
	StartedAt      time.Time `json:"startedAt"`
	FinalState     string    `json:"finalState"`
	Halted         bool      `json:"halted"`
	Steps          int       `json:"steps"`
	ErrorCode      string    `json:"errorCode,omitempty"`
}

// StepRecord is one recorded transition.
type StepRecord struct {
	Seq        int64  `json:"seq"`
	RuleID     string `json:"ruleId"`
	FromState  string `json:"fromState"`
	ToState    string `json:"toState"`
	TapeIndex  int    `json:"tapeIndex"`
	HeadBefore int    `json:"headBefore"`
	HeadAfter  int    `json:"headAfter"`
	Written    string `json:"written"`
	Grew       bool   `json:"grew"`
	Halted     bool   `json:"halted"`
}

// NewRunID generates a time-sortable run id (UUIDv7).
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// StepRecordFrom converts an engine step result.
func StepRecordFrom(res machine.StepResult) StepRecord {
	return StepRecord{
		Seq:        res.Seq,
		RuleID:     res.Rule.ID,
		FromState:  res.FromState,
		ToState:    res.ToState,
		TapeIndex:  res.TapeIndex,
		HeadBefore: res.HeadBefore,
		HeadAfter:  res.HeadAfter,
		Written:    res.Rule.WriteSymbol,
		Grew:       res.Grew,
		Halted:     res.Halted,
	}
}

// CreateRun inserts a new run. The id must be unique.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("create run: id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, program_hash, initial_content, started_at, final_state, halted, steps, error_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.ProgramHash,
		run.InitialContent,
		run.StartedAt.UnixMilli(),
		run.FinalState,
		boolToInt(run.Halted),
		run.Steps,
		run.ErrorCode,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// WriteStep appends a step to a run.
// Uses ON CONFLICT DO NOTHING for idempotency - rewriting the same seq is
// silently ignored.
func (s *Store) WriteStep(ctx context.Context, runID string, rec StepRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO steps
		(run_id, seq, rule_id, from_state, to_state, tape_index, head_before, head_after, written, grew, halted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID,
		rec.Seq,
		rec.RuleID,
		rec.FromState,
		rec.ToState,
		rec.TapeIndex,
		rec.HeadBefore,
		rec.HeadAfter,
		rec.Written,
		boolToInt(rec.Grew),
		boolToInt(rec.Halted),
	)
	if err != nil {
		return fmt.Errorf("write step %d of run %s: %w", rec.Seq, runID, err)
	}
	return nil
}

// FinishRun records how a run ended.
func (s *Store) FinishRun(ctx context.Context, runID string, state machine.State, steps int, errorCode machine.ErrorCode) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET final_state = ?, halted = ?, steps = ?, error_code = ? WHERE id = ?
	`, state.Current, boolToInt(state.Halted), steps, string(errorCode), runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// RecordRun writes a complete run and its steps in one transaction.
func (s *Store) RecordRun(ctx context.Context, run Run, steps []StepRecord) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, program_hash, initial_content, started_at, final_state, halted, steps, error_code)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, run.ProgramHash, run.InitialContent, run.StartedAt.UnixMilli(),
			run.FinalState, boolToInt(run.Halted), run.Steps, run.ErrorCode)
		if err != nil {
			return fmt.Errorf("record run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO steps
			(run_id, seq, rule_id, from_state, to_state, tape_index, head_before, head_after, written, grew, halted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		defer stmt.Close()

		for _, rec := range steps {
			_, err := stmt.ExecContext(ctx, run.ID, rec.Seq, rec.RuleID, rec.FromState, rec.ToState,
				rec.TapeIndex, rec.HeadBefore, rec.HeadAfter, rec.Written,
				boolToInt(rec.Grew), boolToInt(rec.Halted))
			if err != nil {
				return fmt.Errorf("record run step %d: %w", rec.Seq, err)
			}
		}
		return nil
	})
}

// ReadRun returns a run and its steps ordered by seq.
func (s *Store) ReadRun(ctx context.Context, runID string) (Run, []StepRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, program_hash, initial_content, started_at, final_state, halted, steps, error_code
		FROM runs WHERE id = ?
	`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, nil, fmt.Errorf("read run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, nil, fmt.Errorf("read run %s: %w", runID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, rule_id, from_state, to_state, tape_index, head_before, head_after, written, grew, halted
		FROM steps
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return Run{}, nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []StepRecord{}
	for rows.Next() {
		var (
			rec          StepRecord
			grew, halted int
		)
		if err := rows.Scan(&rec.Seq, &rec.RuleID, &rec.FromState, &rec.ToState, &rec.TapeIndex,
			&rec.HeadBefore, &rec.HeadAfter, &rec.Written, &grew, &halted); err != nil {
			return Run{}, nil, fmt.Errorf("scan step: %w", err)
		}
		rec.Grew = grew != 0
		rec.Halted = halted != 0
		steps = append(steps, rec)
	}
	if err := rows.Err(); err != nil {
		return Run{}, nil, fmt.Errorf("iterate steps: %w", err)
	}

	return run, steps, nil
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, program_hash, initial_content, started_at, final_state, halted, steps, error_code
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		startedAt int64
		halted    int
	)
	if err := row.Scan(&run.ID, &run.ProgramHash, &run.InitialContent, &startedAt,
		&run.FinalState, &halted, &run.Steps, &run.ErrorCode); err != nil {
		return Run{}, err
	}
	run.StartedAt = time.UnixMilli(startedAt)
	run.Halted = halted != 0
	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
