package fallback

import (
	"fmt"
	"testing"

	"github.com/courtedge/courtedge/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapRegistry resolves levels from a fixed map
type mapRegistry struct {
	models map[domain.FallbackLevel]string
}

func (m *mapRegistry) ResolveByLevel(level domain.FallbackLevel) (string, error) {
	if id, ok := m.models[level]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: %s", ErrModelNotFound, level)
}

// mapQuality returns metrics from a fixed map keyed by model id
type mapQuality struct {
	metrics map[string]QualityMetrics
}

func (m *mapQuality) GetMetrics(matchID, modelID string) (QualityMetrics, error) {
	if q, ok := m.metrics[modelID]; ok {
		return q, nil
	}
	return QualityMetrics{}, ErrMetricsUnavailable
}

func testQualityConfig() QualityConfig {
	return QualityConfig{
		ReliabilityThreshold:  0.5,
		MinSourceAvailability: 0.8,
		MinSchemaValidity:     0.8,
		MinCompleteness:       0.7,
	}
}

func fullRegistry() *mapRegistry {
	return &mapRegistry{models: map[domain.FallbackLevel]string{
		domain.LevelPrimary:       "v3_2025",
		domain.LevelSecondary:     "v3_global",
		domain.LevelLastValidated: "baseline",
	}}
}

func goodMetrics() QualityMetrics {
	return QualityMetrics{SourceAvailability: 0.95, SchemaValidity: 0.99, Completeness: 0.90}
}

func badMetrics() QualityMetrics {
	return QualityMetrics{SourceAvailability: 0.40, SchemaValidity: 0.50, Completeness: 0.30}
}

func TestChain_PrimaryPasses(t *testing.T) {
	chain := NewChain(fullRegistry(), &mapQuality{metrics: map[string]QualityMetrics{
		"v3_2025": goodMetrics(),
	}}, testQualityConfig(), zerolog.Nop())

	outcome := chain.Evaluate(domain.PredictionInput{MatchID: "match-1"})

	assert.Equal(t, domain.LevelPrimary, outcome.FinalLevel)
	assert.Equal(t, "v3_2025", outcome.ModelID)
	assert.False(t, outcome.WasForcedNoBet)
	require.Len(t, outcome.Attempts, 1)
	assert.True(t, outcome.Attempts[0].Passed)
	assert.InDelta(t, (0.95+0.99+0.90)/3, outcome.QualityScore, 1e-9)
}

func TestChain_DegradesToSecondary(t *testing.T) {
	chain := NewChain(fullRegistry(), &mapQuality{metrics: map[string]QualityMetrics{
		"v3_2025":   badMetrics(),
		"v3_global": goodMetrics(),
	}}, testQualityConfig(), zerolog.Nop())

	outcome := chain.Evaluate(domain.PredictionInput{MatchID: "match-1"})

	assert.Equal(t, domain.LevelSecondary, outcome.FinalLevel)
	assert.Equal(t, "v3_global", outcome.ModelID)
	require.Len(t, outcome.Attempts, 2)
	assert.False(t, outcome.Attempts[0].Passed)
	assert.True(t, outcome.Attempts[1].Passed)
}

func TestChain_AllLevelsFail(t *testing.T) {
	chain := NewChain(fullRegistry(), &mapQuality{metrics: map[string]QualityMetrics{}},
		testQualityConfig(), zerolog.Nop())

	outcome := chain.Evaluate(domain.PredictionInput{MatchID: "match-1"})

	assert.Equal(t, domain.LevelForceNoBet, outcome.FinalLevel)
	assert.True(t, outcome.WasForcedNoBet)
	assert.Empty(t, outcome.ModelID)
	require.Len(t, outcome.Attempts, 4)
	assert.Equal(t, []string{CheckMetricsAvailable}, outcome.Attempts[0].FailedChecks)

	ctx := outcome.Context()
	assert.True(t, ctx.ForcedNoBet())
	assert.Equal(t, ForcedNoBetReason, ctx.Reason)
}

func TestChain_UnresolvableModelDegrades(t *testing.T) {
	registry := &mapRegistry{models: map[domain.FallbackLevel]string{
		domain.LevelLastValidated: "baseline",
	}}
	chain := NewChain(registry, &mapQuality{metrics: map[string]QualityMetrics{
		"baseline": goodMetrics(),
	}}, testQualityConfig(), zerolog.Nop())

	outcome := chain.Evaluate(domain.PredictionInput{MatchID: "match-1"})

	assert.Equal(t, domain.LevelLastValidated, outcome.FinalLevel)
	require.Len(t, outcome.Attempts, 3)
	assert.Equal(t, []string{CheckModelResolvable}, outcome.Attempts[0].FailedChecks)
	assert.Equal(t, []string{CheckModelResolvable}, outcome.Attempts[1].FailedChecks)
}

func TestChain_FailedCheckNames(t *testing.T) {
	chain := NewChain(fullRegistry(), &mapQuality{metrics: map[string]QualityMetrics{
		// Availability below minimum; the mean of the three is also below
		// the reliability threshold
		"v3_2025": {SourceAvailability: 0.10, SchemaValidity: 0.85, Completeness: 0.75},
	}}, testQualityConfig(), zerolog.Nop())

	outcome := chain.Evaluate(domain.PredictionInput{MatchID: "match-1"})

	require.NotEmpty(t, outcome.Attempts)
	failed := outcome.Attempts[0].FailedChecks
	assert.Contains(t, failed, CheckSourceAvailability)
	assert.NotContains(t, failed, CheckSchemaValidity)
	assert.NotContains(t, failed, CheckCompleteness)
}

func TestChain_ReliabilityMeanGate(t *testing.T) {
	// Every individual check passes its minimum but the mean is pulled
	// below a raised reliability threshold
	cfg := testQualityConfig()
	cfg.ReliabilityThreshold = 0.95

	chain := NewChain(fullRegistry(), &mapQuality{metrics: map[string]QualityMetrics{
		"v3_2025": {SourceAvailability: 0.85, SchemaValidity: 0.85, Completeness: 0.80},
	}}, cfg, zerolog.Nop())

	outcome := chain.Evaluate(domain.PredictionInput{MatchID: "match-1"})

	require.NotEmpty(t, outcome.Attempts)
	assert.False(t, outcome.Attempts[0].Passed)
	assert.Equal(t, []string{CheckReliability}, outcome.Attempts[0].FailedChecks)
}

// The attempted level sequence is always a prefix of the configured order,
// with no repeats and no backward moves
func TestChain_MonotonicLevelWalk(t *testing.T) {
	cases := []map[string]QualityMetrics{
		{"v3_2025": goodMetrics()},
		{"v3_global": goodMetrics()},
		{"baseline": goodMetrics()},
		{},
	}

	for _, metrics := range cases {
		chain := NewChain(fullRegistry(), &mapQuality{metrics: metrics}, testQualityConfig(), zerolog.Nop())
		outcome := chain.Evaluate(domain.PredictionInput{MatchID: "match-1"})

		require.NotEmpty(t, outcome.Attempts)
		for i, attempt := range outcome.Attempts {
			assert.Equal(t, domain.LevelOrder[i], attempt.Level)
		}
	}
}

func TestOutcome_Context(t *testing.T) {
	outcome := Outcome{
		FinalLevel:   domain.LevelSecondary,
		ModelID:      "v3_global",
		QualityScore: 0.91,
	}

	ctx := outcome.Context()
	assert.Equal(t, domain.LevelSecondary, ctx.Level)
	assert.Equal(t, "v3_global", ctx.ModelID)
	assert.Equal(t, 0.91, ctx.QualityScore)
	assert.Empty(t, ctx.Reason)
	assert.False(t, ctx.ForcedNoBet())
}
