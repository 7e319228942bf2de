package policy

import (
	"math"
	"testing"

	"github.com/courtedge/courtedge/internal/domain"
	"github.com/stretchr/testify/assert"
)

func testConfig() GateConfig {
	return GateConfig{
		ConfidenceThreshold: 0.60,
		EdgeThreshold:       5.0,
		DriftThreshold:      0.25,
	}
}

func floatPtr(v float64) *float64 {
	return &v
}

func TestEvaluate_AllGatesPass(t *testing.T) {
	e := NewEvaluator(testConfig())

	input := domain.PredictionInput{
		ID:         "pred-1",
		MatchID:    "match-1",
		Confidence: 0.72,
		Edge:       floatPtr(12.5),
	}

	d := e.Evaluate(input, domain.RunContext{}, false, "")

	assert.Equal(t, domain.StatusPick, d.Status)
	assert.True(t, d.ConfidenceGate)
	assert.True(t, d.EdgeGate)
	assert.True(t, d.DriftGate)
	assert.True(t, d.HardStopGate)
	assert.Equal(t, ActionPick, d.RecommendedAction)
	assert.Nil(t, d.HardStopReason)
}

func TestEvaluate_ConfidenceBelowThreshold(t *testing.T) {
	e := NewEvaluator(testConfig())

	input := domain.PredictionInput{
		Confidence: 0.55,
		Edge:       floatPtr(3.1),
	}

	d := e.Evaluate(input, domain.RunContext{}, false, "")

	assert.Equal(t, domain.StatusNoBet, d.Status)
	assert.False(t, d.ConfidenceGate)
	assert.False(t, d.EdgeGate)
	assert.Contains(t, d.Rationale, "confidence")
	assert.Contains(t, d.Rationale, "edge")
	assert.Equal(t, ActionNoBet, d.RecommendedAction)
}

func TestEvaluate_HardStopPrecedence(t *testing.T) {
	e := NewEvaluator(testConfig())

	// Gates would all pass, but the kill-switch wins
	input := domain.PredictionInput{
		Confidence: 0.95,
		Edge:       floatPtr(20.0),
	}

	d := e.Evaluate(input, domain.RunContext{}, true, "daily loss limit exceeded")

	assert.Equal(t, domain.StatusHardStop, d.Status)
	assert.False(t, d.HardStopGate)
	// Gate booleans are still computed for the audit trail
	assert.True(t, d.ConfidenceGate)
	assert.True(t, d.EdgeGate)
	if assert.NotNil(t, d.HardStopReason) {
		assert.Equal(t, "daily loss limit exceeded", *d.HardStopReason)
	}
	assert.Equal(t, ActionHardStop, d.RecommendedAction)
}

func TestEvaluate_HardStopWithoutReason(t *testing.T) {
	e := NewEvaluator(testConfig())

	d := e.Evaluate(domain.PredictionInput{}, domain.RunContext{}, true, "")

	assert.Equal(t, domain.StatusHardStop, d.Status)
	if assert.NotNil(t, d.HardStopReason) {
		assert.Equal(t, "hard stop active", *d.HardStopReason)
	}
}

func TestEvaluate_DriftGate(t *testing.T) {
	e := NewEvaluator(testConfig())

	base := domain.PredictionInput{
		Confidence: 0.80,
		Edge:       floatPtr(10.0),
	}

	// Absent drift score passes by default
	d := e.Evaluate(base, domain.RunContext{}, false, "")
	assert.True(t, d.DriftGate)
	assert.Equal(t, domain.StatusPick, d.Status)

	// Within bound passes, sign is ignored
	base.DriftScore = floatPtr(-0.20)
	d = e.Evaluate(base, domain.RunContext{}, false, "")
	assert.True(t, d.DriftGate)

	// Outside bound fails
	base.DriftScore = floatPtr(0.40)
	d = e.Evaluate(base, domain.RunContext{}, false, "")
	assert.False(t, d.DriftGate)
	assert.Equal(t, domain.StatusNoBet, d.Status)
	assert.Contains(t, d.Rationale, "drift")

	// NaN drift fails
	base.DriftScore = floatPtr(math.NaN())
	d = e.Evaluate(base, domain.RunContext{}, false, "")
	assert.False(t, d.DriftGate)
}

func TestEvaluate_MalformedInputIsClamped(t *testing.T) {
	e := NewEvaluator(testConfig())

	// NaN confidence clamps to 0, nil edge evaluates as 0
	d := e.Evaluate(domain.PredictionInput{Confidence: math.NaN()}, domain.RunContext{}, false, "")
	assert.Equal(t, domain.StatusNoBet, d.Status)
	assert.False(t, d.ConfidenceGate)
	assert.False(t, d.EdgeGate)

	// Confidence above 1 clamps to 1, infinite edge clamps to 0
	d = e.Evaluate(domain.PredictionInput{
		Confidence: 1.7,
		Edge:       floatPtr(math.Inf(1)),
	}, domain.RunContext{}, false, "")
	assert.True(t, d.ConfidenceGate)
	assert.False(t, d.EdgeGate)
}

func TestEvaluate_Deterministic(t *testing.T) {
	e := NewEvaluator(testConfig())

	input := domain.PredictionInput{
		Confidence: 0.61,
		Edge:       floatPtr(5.0),
		DriftScore: floatPtr(0.25),
	}
	ctx := domain.RunContext{RunID: "run-1"}

	first := e.Evaluate(input, ctx, false, "")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.Evaluate(input, ctx, false, ""))
	}
}

func TestEvaluate_ThresholdBoundariesInclusive(t *testing.T) {
	e := NewEvaluator(testConfig())

	// Exactly at the thresholds passes every gate
	d := e.Evaluate(domain.PredictionInput{
		Confidence: 0.60,
		Edge:       floatPtr(5.0),
		DriftScore: floatPtr(0.25),
	}, domain.RunContext{}, false, "")

	assert.Equal(t, domain.StatusPick, d.Status)
}
