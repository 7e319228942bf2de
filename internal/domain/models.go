// Package domain provides core domain models and types.
package domain

import (
	"errors"
	"time"
)

// ErrNotActive is returned when a hard-stop reset is requested while the
// kill-switch is not active.
var ErrNotActive = errors.New("hard stop is not active")

// DecisionStatus is the actionable recommendation for one prediction
type DecisionStatus string

const (
	StatusPick     DecisionStatus = "PICK"
	StatusNoBet    DecisionStatus = "NO_BET"
	StatusHardStop DecisionStatus = "HARD_STOP"
)

// PredictionStatus tracks a prediction input through the decision pipeline
type PredictionStatus string

const (
	PredictionPending   PredictionStatus = "pending"
	PredictionDecided   PredictionStatus = "decided"
	PredictionCancelled PredictionStatus = "cancelled"
)

// RunStatus is the terminal state of one daily run
type RunStatus string

const (
	RunRunning         RunStatus = "RUNNING"
	RunCompleted       RunStatus = "COMPLETED"
	RunFailed          RunStatus = "FAILED"
	RunHardStopBlocked RunStatus = "HARD_STOP_BLOCKED"
	RunTimedOut        RunStatus = "TIMED_OUT"
)

// ResultOutcome is the settled outcome of a picked match, when known
type ResultOutcome string

const (
	ResultWin  ResultOutcome = "win"
	ResultLoss ResultOutcome = "loss"
)

// PredictionInput is a machine-generated match prediction produced by the
// upstream ML pipeline. Immutable once read; the engine never edits the
// forecast fields, only the pipeline status.
type PredictionInput struct {
	CreatedAt       time.Time        `json:"created_at"`
	ID              string           `json:"id"`
	MatchID         string           `json:"match_id"`
	RunID           string           `json:"run_id,omitempty"`
	UserID          string           `json:"user_id"`
	ModelVersion    string           `json:"model_version"`
	PredictedWinner string           `json:"predicted_winner"`
	PredictedScore  string           `json:"predicted_score"`
	Status          PredictionStatus `json:"status"`
	Confidence      float64          `json:"confidence"`
	Edge            *float64         `json:"edge,omitempty"`
	DriftScore      *float64         `json:"drift_score,omitempty"`
}

// RunContext carries per-run accumulator state. Owned by the orchestrator for
// the duration of one run; not persisted beyond the run except through
// HardStopState updates.
type RunContext struct {
	ExecutedAt        time.Time `json:"executed_at"`
	RunID             string    `json:"run_id"`
	TraceID           string    `json:"trace_id"`
	DailyLoss         float64   `json:"daily_loss"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	CurrentBankroll   float64   `json:"current_bankroll"`
}

// HardStopState is the persisted risk kill-switch state. Singleton row,
// shared across runs; the only piece of cross-run mutable state.
type HardStopState struct {
	UpdatedAt         time.Time  `json:"updated_at"`
	TriggeredAt       *time.Time `json:"triggered_at,omitempty"`
	TriggerReason     *string    `json:"trigger_reason,omitempty"`
	DailyLoss         float64    `json:"daily_loss"`
	ConsecutiveLosses int        `json:"consecutive_losses"`
	BankrollPercent   float64    `json:"bankroll_percent"`
	IsActive          bool       `json:"is_active"`
}

// FallbackLevel is one step of the data-quality degrade path
type FallbackLevel string

const (
	LevelPrimary       FallbackLevel = "primary"
	LevelSecondary     FallbackLevel = "secondary"
	LevelLastValidated FallbackLevel = "last_validated"
	LevelForceNoBet    FallbackLevel = "force_no_bet"
)

// LevelOrder is the fixed degrade order. Transitions within one evaluation
// are monotonic: the chain never moves backwards through this list.
var LevelOrder = []FallbackLevel{
	LevelPrimary,
	LevelSecondary,
	LevelLastValidated,
	LevelForceNoBet,
}

// DataQualityAssessment records the composite quality check for one attempted
// fallback level. Produced fresh per prediction, embedded in the decision's
// audit context rather than persisted standalone.
type DataQualityAssessment struct {
	Level        FallbackLevel `json:"level"`
	FailedChecks []string      `json:"failed_checks,omitempty"`
	QualityScore float64       `json:"quality_score"`
	Passed       bool          `json:"passed"`
}

// FallbackContext is the typed audit payload describing which fallback level
// served a decision. Exactly one variant applies, selected by Level.
type FallbackContext struct {
	Level FallbackLevel `json:"level"`

	// Set for primary/secondary/last_validated
	ModelID      string  `json:"model_id,omitempty"`
	QualityScore float64 `json:"quality_score,omitempty"`

	// Set for force_no_bet
	Reason string `json:"reason,omitempty"`

	// Full degrade trail, in attempt order
	Attempts []DataQualityAssessment `json:"attempts,omitempty"`
}

// ForcedNoBet reports whether the fallback chain exhausted every real level
func (c FallbackContext) ForcedNoBet() bool {
	return c.Level == LevelForceNoBet
}

// PolicyDecision is the engine's output for one prediction. Created exactly
// once per processed prediction; immutable after creation (append-only log).
type PolicyDecision struct {
	ExecutedAt        time.Time       `json:"executed_at"`
	ID                string          `json:"id"`
	PredictionID      string          `json:"prediction_id"`
	RunID             string          `json:"run_id"`
	TraceID           string          `json:"trace_id"`
	Status            DecisionStatus  `json:"status"`
	Rationale         string          `json:"rationale"`
	RecommendedAction string          `json:"recommended_action"`
	HardStopReason    *string         `json:"hard_stop_reason,omitempty"`
	Fallback          FallbackContext `json:"fallback"`
	ConfidenceGate    bool            `json:"confidence_gate"`
	EdgeGate          bool            `json:"edge_gate"`
	DriftGate         bool            `json:"drift_gate"`
	HardStopGate      bool            `json:"hard_stop_gate"`
}

// DailyRun is the aggregate for one batch execution
type DailyRun struct {
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	RunID         string     `json:"run_id"`
	TraceID       string     `json:"trace_id"`
	Status        RunStatus  `json:"status"`
	Errors        []string   `json:"errors,omitempty"`
	TotalMatches  int        `json:"total_matches"`
	PicksCount    int        `json:"picks_count"`
	NoBetCount    int        `json:"no_bet_count"`
	HardStopCount int        `json:"hard_stop_count"`
}
