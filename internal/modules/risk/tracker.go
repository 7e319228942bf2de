package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/courtedge/courtedge/internal/alerts"
	"github.com/courtedge/courtedge/internal/domain"
	"github.com/courtedge/courtedge/internal/metrics"
	"github.com/rs/zerolog"
)

// StateStore is the persistence boundary for the hard-stop state machine
type StateStore interface {
	Load() (domain.HardStopState, error)
	Update(fn func(*domain.HardStopState) error) (domain.HardStopState, error)
}

// Limits holds the risk thresholds that trigger the kill-switch
type Limits struct {
	DailyLossLimit       float64 `json:"daily_loss_limit"`
	ConsecutiveLossLimit int     `json:"consecutive_loss_limit"`
	BankrollPercentLimit float64 `json:"bankroll_percent_limit"`
}

// StatusResponse is the read-only projection returned to external callers
type StatusResponse struct {
	IsActive          bool                 `json:"is_active"`
	TriggeredAt       *time.Time           `json:"triggered_at,omitempty"`
	TriggerReason     *string              `json:"trigger_reason,omitempty"`
	CurrentState      domain.HardStopState `json:"current_state"`
	Limits            Limits               `json:"limits"`
	RecommendedAction string               `json:"recommended_action"`
}

// ResetResult is the structured outcome of a reset request
type ResetResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Tracker is the hard-stop risk state machine. States: Inactive, Active.
// Once Active, every decision evaluated afterwards in any run is HARD_STOP
// until an explicit Reset. All mutations hold the tracker mutex and persist
// through the store in one transaction; the in-memory copy is a cache of the
// last persisted state, never the source of truth across processes.
type Tracker struct {
	store   StateStore
	limits  Limits
	sink    alerts.Sink
	metrics *metrics.Collector
	log     zerolog.Logger

	mu          sync.Mutex
	state       domain.HardStopState
	traceID     string
	initialized bool
}

// NewTracker creates a hard-stop tracker. Initialize must be called before
// any other operation.
func NewTracker(store StateStore, limits Limits, sink alerts.Sink, collector *metrics.Collector, log zerolog.Logger) *Tracker {
	return &Tracker{
		store:   store,
		limits:  limits,
		sink:    sink,
		metrics: collector,
		log:     log.With().Str("service", "hard_stop").Logger(),
	}
}

// Initialize loads the persisted state, creating a default inactive state on
// first boot. Idempotent.
func (t *Tracker) Initialize() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.initialized {
		return nil
	}

	state, err := t.store.Load()
	if err != nil {
		return fmt.Errorf("failed to initialize hard-stop tracker: %w", err)
	}

	t.state = state
	t.initialized = true

	t.log.Info().
		Bool("is_active", state.IsActive).
		Float64("daily_loss", state.DailyLoss).
		Int("consecutive_losses", state.ConsecutiveLosses).
		Msg("Hard-stop tracker initialized")

	return nil
}

// IsActive reports whether the kill-switch is currently latched
func (t *Tracker) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.IsActive
}

// SetTraceID sets the trace id attached to alerts emitted by this tracker.
// Called by the orchestrator at run start.
func (t *Tracker) SetTraceID(traceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.traceID = traceID
}

// Activate latches the kill-switch. No-op when already active; the first
// trigger reason wins and is never overwritten.
func (t *Tracker) Activate(reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activateLocked(reason)
}

func (t *Tracker) activateLocked(reason string) error {
	if t.state.IsActive {
		return nil
	}

	updated, err := t.store.Update(func(s *domain.HardStopState) error {
		if s.IsActive {
			// Another writer latched first; their reason stands
			return nil
		}
		s.IsActive = true
		r := reason
		s.TriggerReason = &r
		now := time.Now()
		s.TriggeredAt = &now
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to activate hard stop: %w", err)
	}

	t.state = updated

	t.log.Warn().
		Str("reason", reason).
		Float64("daily_loss", updated.DailyLoss).
		Int("consecutive_losses", updated.ConsecutiveLosses).
		Msg("Hard stop activated")

	if t.metrics != nil {
		t.metrics.RecordHardStopActivation()
	}
	t.emitAlertLocked(reason)

	return nil
}

// Reset deactivates the kill-switch. Admin-only; returns domain.ErrNotActive
// when the tracker is not currently active.
//
// Reset clears the loss counters along with the latch: a reset that preserved
// DailyLoss or ConsecutiveLosses would re-trigger on the next exposure update,
// which would make the admin operation useless mid-day.
func (t *Tracker) Reset(reason, actorID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.IsActive {
		return domain.ErrNotActive
	}

	updated, err := t.store.Update(func(s *domain.HardStopState) error {
		if !s.IsActive {
			return domain.ErrNotActive
		}
		s.IsActive = false
		s.TriggerReason = nil
		s.TriggeredAt = nil
		s.DailyLoss = 0
		s.ConsecutiveLosses = 0
		s.BankrollPercent = 0
		return nil
	})
	if err != nil {
		return err
	}

	t.state = updated

	t.log.Info().
		Str("reason", reason).
		Str("actor_id", actorID).
		Msg("Hard stop reset")

	return nil
}

// UpdateDailyLoss accumulates exposure into the daily loss counter and
// latches the kill-switch when the daily loss limit is exceeded.
func (t *Tracker) UpdateDailyLoss(amount float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	updated, err := t.store.Update(func(s *domain.HardStopState) error {
		s.DailyLoss += amount
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update daily loss: %w", err)
	}

	t.state = updated

	if updated.DailyLoss > t.limits.DailyLossLimit {
		return t.activateLocked("daily loss limit exceeded")
	}

	return nil
}

// UpdateAfterDecision maintains the consecutive-loss and bankroll-percent
// counters after a PICK or NO_BET decision. A nil result (outcome still
// pending) leaves the consecutive-loss counter unchanged.
func (t *Tracker) UpdateAfterDecision(outcome domain.DecisionStatus, result *domain.ResultOutcome, bankroll float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	updated, err := t.store.Update(func(s *domain.HardStopState) error {
		if result != nil {
			switch *result {
			case domain.ResultLoss:
				s.ConsecutiveLosses++
			case domain.ResultWin:
				s.ConsecutiveLosses = 0
			}
		}
		if bankroll > 0 {
			s.BankrollPercent = s.DailyLoss / bankroll
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update state after decision: %w", err)
	}

	t.state = updated

	if updated.ConsecutiveLosses >= t.limits.ConsecutiveLossLimit {
		return t.activateLocked("consecutive loss limit reached")
	}
	if updated.BankrollPercent > t.limits.BankrollPercentLimit {
		return t.activateLocked("bankroll percent limit exceeded")
	}

	return nil
}

// TriggerReason returns the latched trigger reason, or empty when inactive
func (t *Tracker) TriggerReason() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.TriggerReason == nil {
		return ""
	}
	return *t.state.TriggerReason
}

// GetRecommendedAction returns the operator guidance for the current state
func (t *Tracker) GetRecommendedAction() string {
	if t.IsActive() {
		return "halt and review risk parameters"
	}
	return "normal operation"
}

// GetStatus returns the read-only projection for external callers
func (t *Tracker) GetStatus() StatusResponse {
	t.mu.Lock()
	state := t.state
	t.mu.Unlock()

	action := "normal operation"
	if state.IsActive {
		action = "halt and review risk parameters"
	}

	return StatusResponse{
		IsActive:          state.IsActive,
		TriggeredAt:       state.TriggeredAt,
		TriggerReason:     state.TriggerReason,
		CurrentState:      state,
		Limits:            t.limits,
		RecommendedAction: action,
	}
}

func (t *Tracker) emitAlertLocked(reason string) {
	if t.sink == nil {
		return
	}

	alert := alerts.Alert{
		Timestamp:         time.Now(),
		Reason:            reason,
		TraceID:           t.traceID,
		DailyLoss:         t.state.DailyLoss,
		ConsecutiveLosses: t.state.ConsecutiveLosses,
		BankrollPercent:   t.state.BankrollPercent,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.sink.Send(ctx, alert); err != nil {
		t.log.Error().Err(err).Msg("Failed to emit hard-stop alert")
	}
}
