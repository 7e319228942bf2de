// Package fallback implements the data-quality degrade chain.
package fallback

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/courtedge/courtedge/internal/domain"
	"github.com/rs/zerolog"
)

// ErrModelNotFound is returned when no enabled model is registered for a level
var ErrModelNotFound = errors.New("no model registered for level")

// ModelRegistry resolves the model serving a fallback level
type ModelRegistry interface {
	ResolveByLevel(level domain.FallbackLevel) (string, error)
}

// SQLRegistry is the sqlite-backed model registry. The registry holds one
// enabled model per level: primary ("v3_2025"), secondary ("v3_global") and
// last_validated ("baseline") in the default deployment.
type SQLRegistry struct {
	stateDB *sql.DB
	log     zerolog.Logger
}

// NewSQLRegistry creates a model registry over the state database
func NewSQLRegistry(stateDB *sql.DB, log zerolog.Logger) *SQLRegistry {
	return &SQLRegistry{
		stateDB: stateDB,
		log:     log.With().Str("repo", "model_registry").Logger(),
	}
}

// ResolveByLevel returns the enabled model id for a level
func (r *SQLRegistry) ResolveByLevel(level domain.FallbackLevel) (string, error) {
	var modelID string
	err := r.stateDB.QueryRow(
		"SELECT model_id FROM model_registry WHERE level = ? AND enabled = 1 ORDER BY created_at DESC LIMIT 1",
		string(level),
	).Scan(&modelID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrModelNotFound, level)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve model for level %s: %w", level, err)
	}

	return modelID, nil
}

// Register adds or replaces a model registration. Used at bootstrap and by tests.
func (r *SQLRegistry) Register(modelID string, level domain.FallbackLevel, enabled bool, createdAt int64) error {
	_, err := r.stateDB.Exec(
		`INSERT INTO model_registry (model_id, level, enabled, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(model_id) DO UPDATE SET level = excluded.level, enabled = excluded.enabled`,
		modelID, string(level), boolToInt(enabled), createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to register model %s: %w", modelID, err)
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
