// Package di provides dependency injection wiring and initialization.
package di

import (
	"context"
	"fmt"

	"github.com/courtedge/courtedge/internal/alerts"
	"github.com/courtedge/courtedge/internal/config"
	"github.com/courtedge/courtedge/internal/database"
	"github.com/courtedge/courtedge/internal/metrics"
	"github.com/courtedge/courtedge/internal/modules/decisions"
	"github.com/courtedge/courtedge/internal/modules/fallback"
	"github.com/courtedge/courtedge/internal/modules/policy"
	"github.com/courtedge/courtedge/internal/modules/predictions"
	"github.com/courtedge/courtedge/internal/modules/risk"
	"github.com/courtedge/courtedge/internal/orchestrator"
	"github.com/courtedge/courtedge/internal/reliability"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations: databases, repositories, services, orchestrator.
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := initializeServices(container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, nil
}

func initializeServices(c *Container, cfg *config.Config, log zerolog.Logger) error {
	// Repositories
	c.PredictionRepo = predictions.NewRepository(c.PredictionsDB.Conn(), log)
	c.DecisionRepo = decisions.NewRepository(c.LedgerDB.Conn(), log)
	c.RunRepo = decisions.NewRunRepository(c.LedgerDB.Conn(), log)
	c.StateRepo = risk.NewStateRepository(c.StateDB.Conn(), log)

	// Observability
	c.Metrics = metrics.NewCollector(nil)
	c.Sink = buildAlertSink(cfg, log)

	// Hard-stop tracker
	c.Tracker = risk.NewTracker(
		c.StateRepo,
		risk.Limits{
			DailyLossLimit:       cfg.Policy.DailyLossLimit,
			ConsecutiveLossLimit: cfg.Policy.ConsecutiveLossLimit,
			BankrollPercentLimit: cfg.Policy.BankrollPercentLimit,
		},
		c.Sink,
		c.Metrics,
		log,
	)
	if err := c.Tracker.Initialize(); err != nil {
		return err
	}

	// Fallback chain
	c.Registry = fallback.NewSQLRegistry(c.StateDB.Conn(), log)
	c.Quality = fallback.NewSQLQualityProvider(c.StateDB.Conn(), log)
	c.Chain = fallback.NewChain(c.Registry, c.Quality, fallback.QualityConfig{
		ReliabilityThreshold:  cfg.Policy.ReliabilityThreshold,
		MinSourceAvailability: cfg.Policy.MinSourceAvailability,
		MinSchemaValidity:     cfg.Policy.MinSchemaValidity,
		MinCompleteness:       cfg.Policy.MinCompleteness,
	}, log)

	// Gate evaluator
	c.Evaluator = policy.NewEvaluator(policy.GateConfig{
		ConfidenceThreshold: cfg.Policy.ConfidenceThreshold,
		EdgeThreshold:       cfg.Policy.EdgeThreshold,
		DriftThreshold:      cfg.Policy.DriftThreshold,
	})

	// Orchestrator
	c.Orchestrator = orchestrator.New(
		c.PredictionRepo,
		c.DecisionRepo,
		c.RunRepo,
		c.Tracker,
		c.Chain,
		c.Evaluator,
		c.Sink,
		c.Metrics,
		orchestrator.Config{
			StakeAmount: cfg.Policy.DefaultStakeAmount,
			Bankroll:    cfg.Policy.DefaultBankroll,
			RunTimeout:  cfg.Policy.RunTimeout,
		},
		log,
	)

	// Maintenance across all databases
	c.Maintenance = reliability.NewMaintenanceService(
		[]*database.DB{c.PredictionsDB, c.LedgerDB, c.StateDB},
		log,
	)

	// Cloud backup, only when credentials are configured
	if cfg.Backup.Enabled() {
		r2Client, err := reliability.NewR2Client(context.Background(), reliability.R2Config{
			AccountID:       cfg.Backup.AccountID,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
			Bucket:          cfg.Backup.Bucket,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize r2 client: %w", err)
		}
		c.BackupService = reliability.NewBackupService(
			c.LedgerDB,
			r2Client,
			cfg.DataDir,
			cfg.Backup.RetainBackups,
			log,
		)
	}

	return nil
}

// buildAlertSink assembles the alert pipeline: always log, webhook when
// configured
func buildAlertSink(cfg *config.Config, log zerolog.Logger) alerts.Sink {
	logSink := alerts.NewLogSink(log)
	if cfg.Alerts.WebhookURL == "" {
		return logSink
	}

	webhook := alerts.NewWebhookSink(cfg.Alerts.WebhookURL, cfg.Alerts.WebhookTimeout, log)
	return alerts.NewMultiSink(log, logSink, webhook)
}
