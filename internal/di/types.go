// Package di provides dependency injection type definitions.
//
// The Container is the single source of truth for all service instances and
// is passed to the server and scheduler for access to services.
package di

import (
	"github.com/courtedge/courtedge/internal/alerts"
	"github.com/courtedge/courtedge/internal/database"
	"github.com/courtedge/courtedge/internal/metrics"
	"github.com/courtedge/courtedge/internal/modules/decisions"
	"github.com/courtedge/courtedge/internal/modules/fallback"
	"github.com/courtedge/courtedge/internal/modules/policy"
	"github.com/courtedge/courtedge/internal/modules/predictions"
	"github.com/courtedge/courtedge/internal/modules/risk"
	"github.com/courtedge/courtedge/internal/orchestrator"
	"github.com/courtedge/courtedge/internal/reliability"
)

// Container holds all dependencies for the application
type Container struct {
	// Databases (3-database architecture)
	PredictionsDB *database.DB // Prediction inputs awaiting decisions
	LedgerDB      *database.DB // Immutable decision and run audit trail
	StateDB       *database.DB // Hard-stop state, model registry, data quality

	// Repositories
	PredictionRepo *predictions.Repository
	DecisionRepo   *decisions.Repository
	RunRepo        *decisions.RunRepository
	StateRepo      *risk.StateRepository

	// Services
	Metrics       *metrics.Collector
	Sink          alerts.Sink
	Tracker       *risk.Tracker
	Registry      *fallback.SQLRegistry
	Quality       *fallback.SQLQualityProvider
	Chain         *fallback.Chain
	Evaluator     *policy.Evaluator
	Orchestrator  *orchestrator.Orchestrator
	BackupService *reliability.BackupService // nil when backup is not configured
	Maintenance   *reliability.MaintenanceService
}

// Close closes all database connections
func (c *Container) Close() {
	if c.PredictionsDB != nil {
		c.PredictionsDB.Close()
	}
	if c.LedgerDB != nil {
		c.LedgerDB.Close()
	}
	if c.StateDB != nil {
		c.StateDB.Close()
	}
}
