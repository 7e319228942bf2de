// Package predictions provides storage for prediction inputs awaiting a decision.
package predictions

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/courtedge/courtedge/internal/domain"
	"github.com/rs/zerolog"
)

// predictionColumns is the list of columns for the prediction_inputs table.
// Column order must match scanPrediction().
const predictionColumns = `id, match_id, run_id, user_id, model_version, predicted_winner, predicted_score, confidence, edge, drift_score, status, created_at`

// Repository handles prediction input database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new prediction repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "predictions").Logger(),
	}
}

// Insert stores a new prediction input. Used by the ingestion boundary and by
// tests; the decision engine itself never creates predictions.
func (r *Repository) Insert(p domain.PredictionInput) error {
	if p.ID == "" {
		return fmt.Errorf("failed to insert prediction: id is required")
	}
	if p.MatchID == "" {
		return fmt.Errorf("failed to insert prediction: match id is required")
	}

	status := p.Status
	if status == "" {
		status = domain.PredictionPending
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO prediction_inputs
		(id, match_id, run_id, user_id, model_version, predicted_winner,
		 predicted_score, confidence, edge, drift_score, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		p.ID,
		p.MatchID,
		nullString(p.RunID),
		p.UserID,
		p.ModelVersion,
		p.PredictedWinner,
		p.PredictedScore,
		p.Confidence,
		nullFloat64Ptr(p.Edge),
		nullFloat64Ptr(p.DriftScore),
		string(status),
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}

	return nil
}

// GetPending returns all pending predictions in FIFO order by creation time.
// The orchestrator relies on this ordering; no reordering, no priority.
func (r *Repository) GetPending() ([]domain.PredictionInput, error) {
	query := "SELECT " + predictionColumns + " FROM prediction_inputs WHERE status = ? ORDER BY created_at ASC, id ASC"

	rows, err := r.db.Query(query, string(domain.PredictionPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending predictions: %w", err)
	}
	defer rows.Close()

	var pending []domain.PredictionInput
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending predictions: %w", err)
	}

	return pending, nil
}

// GetByID retrieves a single prediction input
func (r *Repository) GetByID(id string) (*domain.PredictionInput, error) {
	query := "SELECT " + predictionColumns + " FROM prediction_inputs WHERE id = ?"

	row := r.db.QueryRow(query, id)
	p, err := scanPredictionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction by id: %w", err)
	}

	return &p, nil
}

// MarkDecided transitions a prediction out of the pending pool
func (r *Repository) MarkDecided(id string) error {
	return r.setStatus(id, domain.PredictionDecided)
}

// MarkCancelled marks a single prediction as cancelled after an isolated
// persistence failure. The rest of the run continues.
func (r *Repository) MarkCancelled(id string) error {
	return r.setStatus(id, domain.PredictionCancelled)
}

func (r *Repository) setStatus(id string, status domain.PredictionStatus) error {
	result, err := r.db.Exec(
		"UPDATE prediction_inputs SET status = ? WHERE id = ?",
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set prediction status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check prediction status update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("prediction not found: %s", id)
	}

	return nil
}

// CountByStatus returns the number of predictions in the given status
func (r *Repository) CountByStatus(status domain.PredictionStatus) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM prediction_inputs WHERE status = ?",
		string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}

	return count, nil
}

// rowScanner abstracts sql.Row and sql.Rows for the scan helpers
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrediction(rows *sql.Rows) (domain.PredictionInput, error) {
	return scanFrom(rows)
}

func scanPredictionRow(row *sql.Row) (domain.PredictionInput, error) {
	return scanFrom(row)
}

func scanFrom(s rowScanner) (domain.PredictionInput, error) {
	var p domain.PredictionInput
	var runID sql.NullString
	var edge, drift sql.NullFloat64
	var status string
	var createdAt int64

	err := s.Scan(
		&p.ID,
		&p.MatchID,
		&runID,
		&p.UserID,
		&p.ModelVersion,
		&p.PredictedWinner,
		&p.PredictedScore,
		&p.Confidence,
		&edge,
		&drift,
		&status,
		&createdAt,
	)
	if err != nil {
		return domain.PredictionInput{}, err
	}

	if runID.Valid {
		p.RunID = runID.String
	}
	if edge.Valid {
		v := edge.Float64
		p.Edge = &v
	}
	if drift.Valid {
		v := drift.Float64
		p.DriftScore = &v
	}
	p.Status = domain.PredictionStatus(status)
	p.CreatedAt = time.Unix(createdAt, 0)

	return p, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat64Ptr(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
