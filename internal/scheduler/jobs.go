package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/courtedge/courtedge/internal/orchestrator"
	"github.com/courtedge/courtedge/internal/reliability"
	"github.com/rs/zerolog"
)

// DailyRunJob executes the scheduled decision run. Manual triggers via the
// admin API share the same orchestrator, whose run mutex serializes them.
type DailyRunJob struct {
	orchestrator *orchestrator.Orchestrator
	timeout      time.Duration
	log          zerolog.Logger
}

// NewDailyRunJob creates the daily decision run job
func NewDailyRunJob(orch *orchestrator.Orchestrator, timeout time.Duration, log zerolog.Logger) *DailyRunJob {
	return &DailyRunJob{
		orchestrator: orch,
		timeout:      timeout,
		log:          log.With().Str("job", "daily_run").Logger(),
	}
}

// Name returns the job name
func (j *DailyRunJob) Name() string {
	return "daily_run"
}

// Run executes one decision run
func (j *DailyRunJob) Run() error {
	// Headroom above the orchestrator's own polled timeout
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout*2)
	defer cancel()

	result, err := j.orchestrator.ExecuteRun(ctx)
	if errors.Is(err, orchestrator.ErrRunInProgress) {
		j.log.Warn().Msg("Skipping scheduled run, another run is in progress")
		return nil
	}
	if err != nil {
		return err
	}

	j.log.Info().
		Str("run_id", result.RunID).
		Str("status", string(result.Status)).
		Int("total", result.TotalMatches).
		Msg("Scheduled run finished")

	return nil
}

// BackupJob ships the nightly ledger backup
type BackupJob struct {
	backup *reliability.BackupService
	log    zerolog.Logger
}

// NewBackupJob creates the nightly backup job
func NewBackupJob(backup *reliability.BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backup: backup,
		log:    log.With().Str("job", "ledger_backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "ledger_backup"
}

// Run creates and uploads one backup
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	return j.backup.Run(ctx)
}

// MaintenanceJob runs sqlite housekeeping across the engine databases
type MaintenanceJob struct {
	maintenance *reliability.MaintenanceService
}

// NewMaintenanceJob creates the database maintenance job
func NewMaintenanceJob(maintenance *reliability.MaintenanceService) *MaintenanceJob {
	return &MaintenanceJob{maintenance: maintenance}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "db_maintenance"
}

// Run checkpoints and verifies every database
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	j.maintenance.CheckpointAll()
	j.maintenance.VerifyAll(ctx)
	return nil
}
