package decisions

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/courtedge/courtedge/internal/domain"
	"github.com/rs/zerolog"
)

const runColumns = `run_id, trace_id, status, total_matches, picks_count, no_bet_count, hard_stop_count, errors, started_at, finished_at`

// RunRepository handles daily run aggregate database operations
type RunRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(ledgerDB *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "runs").Logger(),
	}
}

// Create inserts a new run in RUNNING status
func (r *RunRepository) Create(run domain.DailyRun) error {
	if run.RunID == "" {
		return fmt.Errorf("failed to create run: run id is required")
	}

	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	query := `
		INSERT INTO daily_runs
		(run_id, trace_id, status, total_matches, picks_count, no_bet_count,
		 hard_stop_count, errors, started_at, finished_at)
		VALUES (?, ?, ?, 0, 0, 0, 0, '[]', ?, NULL)
	`

	_, err := r.ledgerDB.Exec(query,
		run.RunID,
		run.TraceID,
		string(domain.RunRunning),
		startedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// Complete records the final status and counts for a run. The aggregate is
// mutated exactly once, on completion or early abort.
func (r *RunRepository) Complete(run domain.DailyRun) error {
	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("failed to serialize run errors: %w", err)
	}

	finishedAt := time.Now().Unix()
	if run.FinishedAt != nil {
		finishedAt = run.FinishedAt.Unix()
	}

	query := `
		UPDATE daily_runs
		SET status = ?, total_matches = ?, picks_count = ?, no_bet_count = ?,
		    hard_stop_count = ?, errors = ?, finished_at = ?
		WHERE run_id = ?
	`

	result, err := r.ledgerDB.Exec(query,
		string(run.Status),
		run.TotalMatches,
		run.PicksCount,
		run.NoBetCount,
		run.HardStopCount,
		string(errorsJSON),
		finishedAt,
		run.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check run completion update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run not found: %s", run.RunID)
	}

	return nil
}

// GetByID retrieves a run aggregate, or nil when unknown
func (r *RunRepository) GetByID(runID string) (*domain.DailyRun, error) {
	query := "SELECT " + runColumns + " FROM daily_runs WHERE run_id = ?"

	row := r.ledgerDB.QueryRow(query, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return &run, nil
}

// GetLatest retrieves the most recently started run, or nil when none exist
func (r *RunRepository) GetLatest() (*domain.DailyRun, error) {
	query := "SELECT " + runColumns + " FROM daily_runs ORDER BY started_at DESC LIMIT 1"

	row := r.ledgerDB.QueryRow(query)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return &run, nil
}

func scanRun(s rowScanner) (domain.DailyRun, error) {
	var run domain.DailyRun
	var status string
	var errorsJSON string
	var startedAt int64
	var finishedAt sql.NullInt64

	err := s.Scan(
		&run.RunID,
		&run.TraceID,
		&status,
		&run.TotalMatches,
		&run.PicksCount,
		&run.NoBetCount,
		&run.HardStopCount,
		&errorsJSON,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return domain.DailyRun{}, err
	}

	run.Status = domain.RunStatus(status)
	if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
		return domain.DailyRun{}, fmt.Errorf("failed to decode run errors: %w", err)
	}
	run.StartedAt = time.Unix(startedAt, 0)
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0)
		run.FinishedAt = &t
	}

	return run, nil
}
