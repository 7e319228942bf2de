// Package decisions provides the append-only policy decision ledger and the
// daily run aggregates.
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

// decisionColumns is the list of columns for the policy_decisions table.
// Column order must match scanDecision().
const decisionColumns = `id, prediction_id, run_id, trace_id, status, rationale, recommended_action, confidence_gate, edge_gate, drift_gate, hard_stop_gate, hard_stop_reason, fallback_context, executed_at`

// Repository handles policy decision database operations
type Repository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a new decision repository
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "decisions").Logger(),
	}
}

// Insert appends a decision to the ledger. Decisions are immutable after
// creation; the unique (prediction_id, run_id) index enforces exactly one
// decision per processed prediction within a run.
func (r *Repository) Insert(d domain.PolicyDecision) error {
	if d.ID == "" {
		return fmt.Errorf("failed to insert decision: id is required")
	}
	if d.PredictionID == "" || d.RunID == "" {
		return fmt.Errorf("failed to insert decision: prediction id and run id are required")
	}

	fallbackJSON, err := json.Marshal(d.Fallback)
	if err != nil {
		return fmt.Errorf("failed to serialize fallback context: %w", err)
	}

	executedAt := d.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now()
	}

	query := `
		INSERT INTO policy_decisions
		(id, prediction_id, run_id, trace_id, status, rationale, recommended_action,
		 confidence_gate, edge_gate, drift_gate, hard_stop_gate, hard_stop_reason,
		 fallback_context, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.ledgerDB.Exec(query,
		d.ID,
		d.PredictionID,
		d.RunID,
		d.TraceID,
		string(d.Status),
		d.Rationale,
		d.RecommendedAction,
		boolToInt(d.ConfidenceGate),
		boolToInt(d.EdgeGate),
		boolToInt(d.DriftGate),
		boolToInt(d.HardStopGate),
		nullStringPtr(d.HardStopReason),
		string(fallbackJSON),
		executedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}

	r.log.Debug().
		Str("decision_id", d.ID).
		Str("prediction_id", d.PredictionID).
		Str("status", string(d.Status)).
		Msg("Decision appended to ledger")

	return nil
}

// GetByRun returns all decisions for a run in execution order
func (r *Repository) GetByRun(runID string) ([]domain.PolicyDecision, error) {
	query := "SELECT " + decisionColumns + " FROM policy_decisions WHERE run_id = ? ORDER BY executed_at ASC, id ASC"

	rows, err := r.ledgerDB.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions by run: %w", err)
	}
	defer rows.Close()

	var result []domain.PolicyDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decisions: %w", err)
	}

	return result, nil
}

// GetByPrediction returns the most recent decision for a prediction, or nil
func (r *Repository) GetByPrediction(predictionID string) (*domain.PolicyDecision, error) {
	query := "SELECT " + decisionColumns + " FROM policy_decisions WHERE prediction_id = ? ORDER BY executed_at DESC LIMIT 1"

	row := r.ledgerDB.QueryRow(query, predictionID)
	d, err := scanDecisionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision by prediction: %w", err)
	}

	return &d, nil
}

// GetRecent returns the latest decisions across all runs, most recent first
func (r *Repository) GetRecent(limit int) ([]domain.PolicyDecision, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT " + decisionColumns + " FROM policy_decisions ORDER BY executed_at DESC, id DESC LIMIT ?"

	rows, err := r.ledgerDB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent decisions: %w", err)
	}
	defer rows.Close()

	var result []domain.PolicyDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decisions: %w", err)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDecision(rows *sql.Rows) (domain.PolicyDecision, error) {
	return scanDecisionFrom(rows)
}

func scanDecisionRow(row *sql.Row) (domain.PolicyDecision, error) {
	return scanDecisionFrom(row)
}

func scanDecisionFrom(s rowScanner) (domain.PolicyDecision, error) {
	var d domain.PolicyDecision
	var status string
	var confidenceGate, edgeGate, driftGate, hardStopGate int
	var hardStopReason sql.NullString
	var fallbackJSON string
	var executedAt int64

	err := s.Scan(
		&d.ID,
		&d.PredictionID,
		&d.RunID,
		&d.TraceID,
		&status,
		&d.Rationale,
		&d.RecommendedAction,
		&confidenceGate,
		&edgeGate,
		&driftGate,
		&hardStopGate,
		&hardStopReason,
		&fallbackJSON,
		&executedAt,
	)
	if err != nil {
		return domain.PolicyDecision{}, err
	}

	d.Status = domain.DecisionStatus(status)
	d.ConfidenceGate = confidenceGate != 0
	d.EdgeGate = edgeGate != 0
	d.DriftGate = driftGate != 0
	d.HardStopGate = hardStopGate != 0
	if hardStopReason.Valid {
		v := hardStopReason.String
		d.HardStopReason = &v
	}
	if err := json.Unmarshal([]byte(fallbackJSON), &d.Fallback); err != nil {
		return domain.PolicyDecision{}, fmt.Errorf("failed to decode fallback context: %w", err)
	}
	d.ExecutedAt = time.Unix(executedAt, 0)

	return d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStringPtr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
