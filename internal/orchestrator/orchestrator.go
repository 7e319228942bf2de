// Package orchestrator runs the daily batch that turns pending predictions
// into policy decisions.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/courtedge/courtedge/internal/alerts"
	"github.com/courtedge/courtedge/internal/domain"
	"github.com/courtedge/courtedge/internal/metrics"
	"github.com/courtedge/courtedge/internal/modules/fallback"
	"github.com/courtedge/courtedge/internal/modules/policy"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrRunInProgress is returned when a run is requested while another run holds
// the run mutex
var ErrRunInProgress = errors.New("a run is already in progress")

// timeoutPollInterval is how many predictions are processed between wall-clock
// timeout checks. The timeout is cooperative: in-flight work is never
// interrupted, only the loop exit is early.
const timeoutPollInterval = 10

// PredictionStore is the orchestrator's view of the prediction pool
type PredictionStore interface {
	GetPending() ([]domain.PredictionInput, error)
	MarkDecided(id string) error
	MarkCancelled(id string) error
	CountByStatus(status domain.PredictionStatus) (int, error)
}

// DecisionStore appends decisions to the ledger
type DecisionStore interface {
	Insert(d domain.PolicyDecision) error
}

// RunStore persists run aggregates
type RunStore interface {
	Create(run domain.DailyRun) error
	Complete(run domain.DailyRun) error
}

// RiskTracker is the orchestrator's view of the hard-stop state machine
type RiskTracker interface {
	IsActive() bool
	TriggerReason() string
	SetTraceID(traceID string)
	Activate(reason string) error
	UpdateDailyLoss(amount float64) error
	UpdateAfterDecision(outcome domain.DecisionStatus, result *domain.ResultOutcome, bankroll float64) error
}

// FallbackEvaluator walks the data-quality degrade chain for one prediction
type FallbackEvaluator interface {
	Evaluate(input domain.PredictionInput) fallback.Outcome
}

// GateEvaluator applies the decision gates to one prediction
type GateEvaluator interface {
	Evaluate(input domain.PredictionInput, ctx domain.RunContext, hardStopActive bool, hardStopReason string) policy.Decision
}

// Config holds the orchestrator's run parameters
type Config struct {
	StakeAmount float64
	Bankroll    float64
	RunTimeout  time.Duration
}

// RunResult is the summary returned to the caller after every run, including
// early-terminated ones. Callers inspect Status and Errors rather than
// catching errors for routine partial failures.
type RunResult struct {
	RunID         string           `json:"run_id"`
	TraceID       string           `json:"trace_id"`
	Status        domain.RunStatus `json:"status"`
	TotalMatches  int              `json:"total_matches"`
	PicksCount    int              `json:"picks_count"`
	NoBetCount    int              `json:"no_bet_count"`
	HardStopCount int              `json:"hard_stop_count"`
	Errors        []string         `json:"errors,omitempty"`
	Duration      time.Duration    `json:"duration_ms"`
}

// Orchestrator executes daily decision runs. Strictly sequential: predictions
// are processed one at a time in FIFO order, because the hard-stop re-check
// before each decision is only sound under sequential evaluation. The run
// mutex rejects overlapping runs instead of queueing them.
type Orchestrator struct {
	predictions PredictionStore
	decisions   DecisionStore
	runs        RunStore
	tracker     RiskTracker
	chain       FallbackEvaluator
	evaluator   GateEvaluator
	sink        alerts.Sink
	metrics     *metrics.Collector
	cfg         Config
	log         zerolog.Logger

	runMu sync.Mutex
}

// New creates a run orchestrator
func New(
	predictions PredictionStore,
	decisions DecisionStore,
	runs RunStore,
	tracker RiskTracker,
	chain FallbackEvaluator,
	evaluator GateEvaluator,
	sink alerts.Sink,
	collector *metrics.Collector,
	cfg Config,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		predictions: predictions,
		decisions:   decisions,
		runs:        runs,
		tracker:     tracker,
		chain:       chain,
		evaluator:   evaluator,
		sink:        sink,
		metrics:     collector,
		cfg:         cfg,
		log:         log.With().Str("service", "orchestrator").Logger(),
	}
}

// ExecuteRun processes every pending prediction and returns a run summary.
// Returns ErrRunInProgress when another run holds the run mutex; all other
// failure modes are reported through the result's Status and Errors.
func (o *Orchestrator) ExecuteRun(ctx context.Context) (*RunResult, error) {
	if !o.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer o.runMu.Unlock()

	runID := uuid.New().String()
	traceID := uuid.New().String()
	startedAt := time.Now()

	o.tracker.SetTraceID(traceID)

	log := o.log.With().Str("run_id", runID).Str("trace_id", traceID).Logger()
	log.Info().Msg("Starting decision run")

	run := domain.DailyRun{
		RunID:     runID,
		TraceID:   traceID,
		Status:    domain.RunRunning,
		StartedAt: startedAt,
	}
	if err := o.runs.Create(run); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	// A hard stop latched before the run starts blocks the whole run: no
	// prediction is touched and the outcome is distinguishable from a
	// mid-run trigger.
	if o.tracker.IsActive() {
		reason := o.tracker.TriggerReason()
		log.Warn().Str("trigger_reason", reason).Msg("Run blocked, hard stop already active")

		o.emitBlockedAlert(ctx, reason, traceID)

		run.Status = domain.RunHardStopBlocked
		run.Errors = []string{fmt.Sprintf("hard-stop already active: %s", reason)}
		return o.finish(log, run, startedAt), nil
	}

	pending, err := o.predictions.GetPending()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch pending predictions")
		run.Status = domain.RunFailed
		run.Errors = []string{fmt.Sprintf("failed to fetch pending predictions: %v", err)}
		return o.finish(log, run, startedAt), nil
	}

	run.TotalMatches = len(pending)
	log.Info().Int("pending", len(pending)).Msg("Fetched pending predictions")

	runCtx := domain.RunContext{
		RunID:           runID,
		TraceID:         traceID,
		ExecutedAt:      startedAt,
		CurrentBankroll: o.cfg.Bankroll,
	}

	timedOut := false

	for i, p := range pending {
		// Cooperative timeout, polled between predictions
		if i > 0 && i%timeoutPollInterval == 0 {
			if time.Since(startedAt) > o.cfg.RunTimeout {
				timedOut = true
				run.Errors = append(run.Errors, fmt.Sprintf(
					"run timeout of %s exceeded after %d of %d predictions; remaining left pending",
					o.cfg.RunTimeout, i, len(pending)))
				log.Warn().Int("processed", i).Msg("Run timeout exceeded, stopping early")
				break
			}
			if err := ctx.Err(); err != nil {
				timedOut = true
				run.Errors = append(run.Errors, fmt.Sprintf(
					"run cancelled after %d of %d predictions: %v", i, len(pending), err))
				log.Warn().Int("processed", i).Msg("Run context cancelled, stopping early")
				break
			}
		}

		// A trigger from an earlier prediction escalates: the current and
		// every remaining prediction become HARD_STOP and the loop stops.
		if o.tracker.IsActive() {
			o.escalateRemaining(log, pending[i:], runCtx, &run)
			break
		}

		o.processPrediction(log, p, runCtx, &run)
	}

	if timedOut {
		run.Status = domain.RunTimedOut
	} else {
		run.Status = domain.RunCompleted
	}

	return o.finish(log, run, startedAt), nil
}

// processPrediction evaluates and persists one decision. Failures are
// isolated: the prediction is cancelled and the loop continues.
func (o *Orchestrator) processPrediction(log zerolog.Logger, p domain.PredictionInput, runCtx domain.RunContext, run *domain.DailyRun) {
	outcome := o.chain.Evaluate(p)
	if o.metrics != nil {
		o.metrics.RecordFallbackLevel(string(outcome.FinalLevel))
	}

	gate := o.evaluator.Evaluate(p, runCtx, o.tracker.IsActive(), o.tracker.TriggerReason())

	// A forced no-bet from the fallback chain overrides the gate outcome.
	// The gate booleans are kept as computed for the audit trail.
	if outcome.WasForcedNoBet {
		gate.Status = domain.StatusNoBet
		gate.Rationale = fallback.ForcedNoBetReason
		gate.RecommendedAction = policy.ActionNoBet
	}

	decision := domain.PolicyDecision{
		ID:                uuid.New().String(),
		PredictionID:      p.ID,
		RunID:             runCtx.RunID,
		TraceID:           runCtx.TraceID,
		Status:            gate.Status,
		Rationale:         gate.Rationale,
		RecommendedAction: gate.RecommendedAction,
		HardStopReason:    gate.HardStopReason,
		Fallback:          outcome.Context(),
		ConfidenceGate:    gate.ConfidenceGate,
		EdgeGate:          gate.EdgeGate,
		DriftGate:         gate.DriftGate,
		HardStopGate:      gate.HardStopGate,
		ExecutedAt:        time.Now(),
	}

	if !o.persistDecision(log, decision, p.ID, run) {
		return
	}

	o.countDecision(run, decision.Status)

	switch decision.Status {
	case domain.StatusPick:
		if err := o.tracker.UpdateDailyLoss(o.cfg.StakeAmount); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("failed to update daily loss for prediction %s: %v", p.ID, err))
			log.Error().Err(err).Str("prediction_id", p.ID).Msg("Failed to update daily loss")
		}
		if err := o.tracker.UpdateAfterDecision(domain.StatusPick, nil, o.cfg.Bankroll); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("failed to update risk state for prediction %s: %v", p.ID, err))
			log.Error().Err(err).Str("prediction_id", p.ID).Msg("Failed to update risk state")
		}
	case domain.StatusNoBet:
		if err := o.tracker.UpdateAfterDecision(domain.StatusNoBet, nil, o.cfg.Bankroll); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("failed to update risk state for prediction %s: %v", p.ID, err))
			log.Error().Err(err).Str("prediction_id", p.ID).Msg("Failed to update risk state")
		}
	case domain.StatusHardStop:
		reason := "hard stop active"
		if decision.HardStopReason != nil {
			reason = *decision.HardStopReason
		}
		if err := o.tracker.Activate(reason); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("failed to latch hard stop for prediction %s: %v", p.ID, err))
			log.Error().Err(err).Str("prediction_id", p.ID).Msg("Failed to latch hard stop")
		}
	}
}

// escalateRemaining marks the given predictions HARD_STOP with the latched
// trigger reason and persists each of them
func (o *Orchestrator) escalateRemaining(log zerolog.Logger, remaining []domain.PredictionInput, runCtx domain.RunContext, run *domain.DailyRun) {
	reason := o.tracker.TriggerReason()
	log.Warn().
		Str("trigger_reason", reason).
		Int("remaining", len(remaining)).
		Msg("Hard stop triggered mid-run, escalating remaining predictions")

	for _, p := range remaining {
		gate := o.evaluator.Evaluate(p, runCtx, true, reason)

		decision := domain.PolicyDecision{
			ID:                uuid.New().String(),
			PredictionID:      p.ID,
			RunID:             runCtx.RunID,
			TraceID:           runCtx.TraceID,
			Status:            gate.Status,
			Rationale:         gate.Rationale,
			RecommendedAction: gate.RecommendedAction,
			HardStopReason:    gate.HardStopReason,
			ConfidenceGate:    gate.ConfidenceGate,
			EdgeGate:          gate.EdgeGate,
			DriftGate:         gate.DriftGate,
			HardStopGate:      gate.HardStopGate,
			ExecutedAt:        time.Now(),
		}

		if !o.persistDecision(log, decision, p.ID, run) {
			continue
		}
		o.countDecision(run, decision.Status)
	}
}

// persistDecision appends a decision to the ledger and flips the prediction
// out of the pending pool. A failed write cancels only this prediction.
func (o *Orchestrator) persistDecision(log zerolog.Logger, d domain.PolicyDecision, predictionID string, run *domain.DailyRun) bool {
	if err := o.decisions.Insert(d); err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("failed to persist decision for prediction %s: %v", predictionID, err))
		log.Error().Err(err).Str("prediction_id", predictionID).Msg("Failed to persist decision, cancelling prediction")

		if cancelErr := o.predictions.MarkCancelled(predictionID); cancelErr != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("failed to cancel prediction %s: %v", predictionID, cancelErr))
			log.Error().Err(cancelErr).Str("prediction_id", predictionID).Msg("Failed to cancel prediction")
		}
		return false
	}

	if err := o.predictions.MarkDecided(predictionID); err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("failed to mark prediction %s decided: %v", predictionID, err))
		log.Error().Err(err).Str("prediction_id", predictionID).Msg("Failed to mark prediction decided")
	}

	if o.metrics != nil {
		o.metrics.RecordDecision(string(d.Status))
	}

	return true
}

func (o *Orchestrator) countDecision(run *domain.DailyRun, status domain.DecisionStatus) {
	switch status {
	case domain.StatusPick:
		run.PicksCount++
	case domain.StatusNoBet:
		run.NoBetCount++
	case domain.StatusHardStop:
		run.HardStopCount++
	}
}

// finish writes the run aggregate exactly once and builds the result summary
func (o *Orchestrator) finish(log zerolog.Logger, run domain.DailyRun, startedAt time.Time) *RunResult {
	now := time.Now()
	run.FinishedAt = &now

	if err := o.runs.Complete(run); err != nil {
		run.Errors = append(run.Errors, fmt.Sprintf("failed to record run aggregate: %v", err))
		log.Error().Err(err).Msg("Failed to record run aggregate")
	}

	duration := now.Sub(startedAt)
	if o.metrics != nil {
		o.metrics.RecordRun(string(run.Status), duration)
		if pending, err := o.predictions.CountByStatus(domain.PredictionPending); err == nil {
			o.metrics.SetPendingPredictions(pending)
		}
	}

	log.Info().
		Str("status", string(run.Status)).
		Int("total", run.TotalMatches).
		Int("picks", run.PicksCount).
		Int("no_bet", run.NoBetCount).
		Int("hard_stop", run.HardStopCount).
		Int("errors", len(run.Errors)).
		Dur("duration", duration).
		Msg("Decision run finished")

	return &RunResult{
		RunID:         run.RunID,
		TraceID:       run.TraceID,
		Status:        run.Status,
		TotalMatches:  run.TotalMatches,
		PicksCount:    run.PicksCount,
		NoBetCount:    run.NoBetCount,
		HardStopCount: run.HardStopCount,
		Errors:        run.Errors,
		Duration:      duration,
	}
}

func (o *Orchestrator) emitBlockedAlert(ctx context.Context, reason, traceID string) {
	if o.sink == nil {
		return
	}

	alertCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	alert := alerts.Alert{
		Timestamp: time.Now(),
		Reason:    fmt.Sprintf("run blocked, hard stop already active: %s", reason),
		TraceID:   traceID,
	}
	if err := o.sink.Send(alertCtx, alert); err != nil {
		o.log.Error().Err(err).Msg("Failed to emit run-blocked alert")
	}
}
