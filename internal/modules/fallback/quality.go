package fallback

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrMetricsUnavailable is returned when no quality metrics exist for a
// (match, model) pair
var ErrMetricsUnavailable = errors.New("no quality metrics recorded")

// QualityMetrics are the per-source quality measurements written by the
// ingestion pipeline
type QualityMetrics struct {
	SourceAvailability float64 `json:"source_availability"`
	SchemaValidity     float64 `json:"schema_validity"`
	Completeness       float64 `json:"completeness"`
}

// QualityProvider supplies quality metrics for a match/model pair
type QualityProvider interface {
	GetMetrics(matchID, modelID string) (QualityMetrics, error)
}

// SQLQualityProvider reads the data_quality table in the state database
type SQLQualityProvider struct {
	stateDB *sql.DB
	log     zerolog.Logger
}

// NewSQLQualityProvider creates a quality provider over the state database
func NewSQLQualityProvider(stateDB *sql.DB, log zerolog.Logger) *SQLQualityProvider {
	return &SQLQualityProvider{
		stateDB: stateDB,
		log:     log.With().Str("repo", "data_quality").Logger(),
	}
}

// GetMetrics returns the recorded metrics for a match/model pair.
// A missing row means the level's source is unresolvable for this match.
func (p *SQLQualityProvider) GetMetrics(matchID, modelID string) (QualityMetrics, error) {
	var m QualityMetrics
	err := p.stateDB.QueryRow(
		`SELECT source_availability, schema_validity, completeness
		 FROM data_quality WHERE match_id = ? AND model_id = ?`,
		matchID, modelID,
	).Scan(&m.SourceAvailability, &m.SchemaValidity, &m.Completeness)
	if errors.Is(err, sql.ErrNoRows) {
		return QualityMetrics{}, fmt.Errorf("%w: match %s model %s", ErrMetricsUnavailable, matchID, modelID)
	}
	if err != nil {
		return QualityMetrics{}, fmt.Errorf("failed to read quality metrics: %w", err)
	}

	return m, nil
}

// Record stores metrics for a match/model pair. Used by the ingestion
// boundary and by tests.
func (p *SQLQualityProvider) Record(matchID, modelID string, m QualityMetrics, measuredAt int64) error {
	_, err := p.stateDB.Exec(
		`INSERT INTO data_quality (match_id, model_id, source_availability, schema_validity, completeness, measured_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(match_id, model_id) DO UPDATE SET
		   source_availability = excluded.source_availability,
		   schema_validity = excluded.schema_validity,
		   completeness = excluded.completeness,
		   measured_at = excluded.measured_at`,
		matchID, modelID, m.SourceAvailability, m.SchemaValidity, m.Completeness, measuredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record quality metrics: %w", err)
	}

	return nil
}
