// Package policy implements the pure decision-gate evaluation.
package policy

import (
	"fmt"
	"math"
	"strings"

	"github.com/courtedge/courtedge/internal/domain"
)

// Recommended action strings, one per decision status
const (
	ActionPick     = "stake per sizing policy"
	ActionNoBet    = "wait for signal"
	ActionHardStop = "halt and review risk parameters"
)

// GateConfig holds the gate thresholds
type GateConfig struct {
	ConfidenceThreshold float64
	EdgeThreshold       float64
	DriftThreshold      float64
}

// Decision is the gate evaluation outcome for one prediction
type Decision struct {
	Status            domain.DecisionStatus
	Rationale         string
	RecommendedAction string
	HardStopReason    *string
	ConfidenceGate    bool
	EdgeGate          bool
	DriftGate         bool
	HardStopGate      bool
}

// Evaluator computes gate booleans and a decision status. Pure: no side
// effects, no I/O, deterministic for identical inputs. The hard-stop flag is
// supplied by the caller rather than fetched here, which keeps evaluation
// testable and referentially transparent.
type Evaluator struct {
	cfg GateConfig
}

// NewEvaluator creates a gate evaluator
func NewEvaluator(cfg GateConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate applies the four gates to one prediction. Malformed numeric input
// is clamped to the gate boundaries rather than rejected; this function must
// never abort a batch run.
//
// Precedence is fixed: hard-stop > (confidence AND edge AND drift) > PICK.
func (e *Evaluator) Evaluate(input domain.PredictionInput, ctx domain.RunContext, hardStopActive bool, hardStopReason string) Decision {
	confidence := clamp01(input.Confidence)
	edge := 0.0
	if input.Edge != nil {
		edge = clampFinite(*input.Edge)
	}

	confidenceGate := confidence >= e.cfg.ConfidenceThreshold
	edgeGate := edge >= e.cfg.EdgeThreshold

	// Absence of a drift score passes the gate by default
	driftGate := true
	if input.DriftScore != nil {
		drift := *input.DriftScore
		driftGate = !math.IsNaN(drift) && math.Abs(drift) <= e.cfg.DriftThreshold
	}

	hardStopGate := !hardStopActive

	d := Decision{
		ConfidenceGate: confidenceGate,
		EdgeGate:       edgeGate,
		DriftGate:      driftGate,
		HardStopGate:   hardStopGate,
	}

	if !hardStopGate {
		reason := hardStopReason
		if reason == "" {
			reason = "hard stop active"
		}
		d.Status = domain.StatusHardStop
		d.HardStopReason = &reason
		d.Rationale = fmt.Sprintf("hard stop active: %s", reason)
		d.RecommendedAction = ActionHardStop
		return d
	}

	if confidenceGate && edgeGate && driftGate {
		d.Status = domain.StatusPick
		d.Rationale = fmt.Sprintf("all gates passed (confidence %.2f, edge %.2f)", confidence, edge)
		d.RecommendedAction = ActionPick
		return d
	}

	d.Status = domain.StatusNoBet
	d.Rationale = e.failureRationale(input, confidence, edge)
	d.RecommendedAction = ActionNoBet
	return d
}

// failureRationale names every failing gate
func (e *Evaluator) failureRationale(input domain.PredictionInput, confidence, edge float64) string {
	var failed []string

	if confidence < e.cfg.ConfidenceThreshold {
		failed = append(failed, fmt.Sprintf("confidence %.2f below threshold %.2f", confidence, e.cfg.ConfidenceThreshold))
	}
	if edge < e.cfg.EdgeThreshold {
		failed = append(failed, fmt.Sprintf("edge %.2f below threshold %.2f", edge, e.cfg.EdgeThreshold))
	}
	if input.DriftScore != nil {
		drift := *input.DriftScore
		if math.IsNaN(drift) || math.Abs(drift) > e.cfg.DriftThreshold {
			failed = append(failed, fmt.Sprintf("drift %.2f outside bound %.2f", drift, e.cfg.DriftThreshold))
		}
	}

	return "gates failed: " + strings.Join(failed, "; ")
}

// clamp01 clamps confidence into [0,1]; NaN clamps to 0
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampFinite maps NaN and infinities to 0
func clampFinite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
