// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/courtedge/courtedge/internal/config"
	"github.com/courtedge/courtedge/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases initializes all 3 databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. predictions.db - Prediction inputs awaiting decisions
	predictionsDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/predictions.db",
		Profile: database.ProfileStandard,
		Name:    "predictions",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize predictions database: %w", err)
	}
	container.PredictionsDB = predictionsDB

	// 2. ledger.db - Immutable decision and run audit trail
	ledgerDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/ledger.db",
		Profile: database.ProfileLedger, // Maximum safety for the append-only ledger
		Name:    "ledger",
	})
	if err != nil {
		predictionsDB.Close()
		return nil, fmt.Errorf("failed to initialize ledger database: %w", err)
	}
	container.LedgerDB = ledgerDB

	// 3. state.db - Hard-stop state, model registry, data quality
	stateDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/state.db",
		Profile: database.ProfileStandard,
		Name:    "state",
	})
	if err != nil {
		predictionsDB.Close()
		ledgerDB.Close()
		return nil, fmt.Errorf("failed to initialize state database: %w", err)
	}
	container.StateDB = stateDB

	// Apply schemas
	for _, db := range []*database.DB{predictionsDB, ledgerDB, stateDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")

	return container, nil
}
