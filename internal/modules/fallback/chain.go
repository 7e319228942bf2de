package fallback

import (
	"github.com/courtedge/courtedge/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Check names recorded in DataQualityAssessment.FailedChecks
const (
	CheckModelResolvable    = "model_resolvable"
	CheckMetricsAvailable   = "metrics_available"
	CheckSourceAvailability = "source_availability"
	CheckSchemaValidity     = "schema_validity"
	CheckCompleteness       = "completeness"
	CheckReliability        = "reliability"
)

// ForcedNoBetReason is the rationale attached when every real level fails
const ForcedNoBetReason = "all fallback levels failed data quality checks"

// QualityConfig holds the composite quality check thresholds
type QualityConfig struct {
	ReliabilityThreshold  float64
	MinSourceAvailability float64
	MinSchemaValidity     float64
	MinCompleteness       float64
}

// Outcome is the result of walking the degrade chain for one prediction
type Outcome struct {
	FinalLevel     domain.FallbackLevel
	ModelID        string
	QualityScore   float64
	WasForcedNoBet bool
	Attempts       []domain.DataQualityAssessment
}

// Context converts the outcome into the decision's typed audit payload
func (o Outcome) Context() domain.FallbackContext {
	ctx := domain.FallbackContext{
		Level:    o.FinalLevel,
		Attempts: o.Attempts,
	}
	if o.WasForcedNoBet {
		ctx.Reason = ForcedNoBetReason
	} else {
		ctx.ModelID = o.ModelID
		ctx.QualityScore = o.QualityScore
	}
	return ctx
}

// Chain walks the configured degrade path primary -> secondary ->
// last_validated -> force_no_bet and returns the first level whose composite
// quality check passes. Transitions are monotonic within one evaluation; the
// chain never upgrades and never returns an error. A lookup failure for a
// level is treated exactly like a failed quality check: degrade, don't abort.
type Chain struct {
	registry ModelRegistry
	quality  QualityProvider
	cfg      QualityConfig
	log      zerolog.Logger
}

// NewChain creates a fallback chain
func NewChain(registry ModelRegistry, quality QualityProvider, cfg QualityConfig, log zerolog.Logger) *Chain {
	return &Chain{
		registry: registry,
		quality:  quality,
		cfg:      cfg,
		log:      log.With().Str("service", "fallback_chain").Logger(),
	}
}

// Evaluate walks the degrade chain for one prediction
func (c *Chain) Evaluate(input domain.PredictionInput) Outcome {
	var attempts []domain.DataQualityAssessment

	for _, level := range domain.LevelOrder {
		if level == domain.LevelForceNoBet {
			break
		}

		modelID, err := c.registry.ResolveByLevel(level)
		if err != nil {
			c.log.Debug().
				Str("match_id", input.MatchID).
				Str("level", string(level)).
				Err(err).
				Msg("Fallback level unresolvable, degrading")
			attempts = append(attempts, domain.DataQualityAssessment{
				Level:        level,
				Passed:       false,
				FailedChecks: []string{CheckModelResolvable},
			})
			continue
		}

		assessment := c.assess(level, input.MatchID, modelID)
		attempts = append(attempts, assessment)

		if assessment.Passed {
			return Outcome{
				FinalLevel:   level,
				ModelID:      modelID,
				QualityScore: assessment.QualityScore,
				Attempts:     attempts,
			}
		}

		c.log.Debug().
			Str("match_id", input.MatchID).
			Str("level", string(level)).
			Strs("failed_checks", assessment.FailedChecks).
			Msg("Fallback level failed quality checks, degrading")
	}

	// Every real level failed
	attempts = append(attempts, domain.DataQualityAssessment{
		Level:  domain.LevelForceNoBet,
		Passed: true,
	})

	return Outcome{
		FinalLevel:     domain.LevelForceNoBet,
		WasForcedNoBet: true,
		Attempts:       attempts,
	}
}

// assess runs the composite quality check for one level
func (c *Chain) assess(level domain.FallbackLevel, matchID, modelID string) domain.DataQualityAssessment {
	metrics, err := c.quality.GetMetrics(matchID, modelID)
	if err != nil {
		return domain.DataQualityAssessment{
			Level:        level,
			Passed:       false,
			FailedChecks: []string{CheckMetricsAvailable},
		}
	}

	var failed []string
	if metrics.SourceAvailability < c.cfg.MinSourceAvailability {
		failed = append(failed, CheckSourceAvailability)
	}
	if metrics.SchemaValidity < c.cfg.MinSchemaValidity {
		failed = append(failed, CheckSchemaValidity)
	}
	if metrics.Completeness < c.cfg.MinCompleteness {
		failed = append(failed, CheckCompleteness)
	}

	// Overall reliability is the mean of the individual check scores
	score := stat.Mean([]float64{
		metrics.SourceAvailability,
		metrics.SchemaValidity,
		metrics.Completeness,
	}, nil)
	if score < c.cfg.ReliabilityThreshold {
		failed = append(failed, CheckReliability)
	}

	return domain.DataQualityAssessment{
		Level:        level,
		QualityScore: score,
		Passed:       len(failed) == 0,
		FailedChecks: failed,
	}
}
