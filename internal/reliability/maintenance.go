package reliability

import (
	"context"
	"time"

	"github.com/courtedge/courtedge/internal/database"
	"github.com/rs/zerolog"
)

// MaintenanceService runs periodic sqlite housekeeping across the engine's
// databases: WAL checkpoints to bound journal growth and quick integrity
// checks. Scheduled alongside the nightly backup.
type MaintenanceService struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewMaintenanceService creates a maintenance service over the given databases
func NewMaintenanceService(databases []*database.DB, log zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		databases: databases,
		log:       log.With().Str("service", "maintenance").Logger(),
	}
}

// CheckpointAll runs a truncating WAL checkpoint on every database
func (m *MaintenanceService) CheckpointAll() {
	for _, db := range m.databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			m.log.Error().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
			continue
		}
		m.log.Debug().Str("database", db.Name()).Msg("WAL checkpoint completed")
	}
}

// VerifyAll runs a quick integrity check on every database
func (m *MaintenanceService) VerifyAll(ctx context.Context) {
	for _, db := range m.databases {
		checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := db.QuickCheck(checkCtx)
		cancel()

		if err != nil {
			m.log.Error().Err(err).Str("database", db.Name()).Msg("Integrity check failed")
			continue
		}
		m.log.Debug().Str("database", db.Name()).Msg("Integrity check passed")
	}
}
