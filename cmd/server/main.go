package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/courtedge/courtedge/internal/config"
	"github.com/courtedge/courtedge/internal/di"
	"github.com/courtedge/courtedge/internal/scheduler"
	"github.com/courtedge/courtedge/internal/server"
	"github.com/courtedge/courtedge/pkg/logger"
	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootstrapLog := logger.New(logger.Config{Level: "info"})
		bootstrapLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Courtedge decision engine")

	// Wire dependencies
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Initialize scheduler and register background jobs
	sched := scheduler.New(log)
	if err := registerJobs(sched, container, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}
	sched.Start()
	defer sched.Stop()

	// Initialize HTTP server
	srv := server.New(server.Config{
		Log:           log,
		Config:        cfg,
		Container:     container,
		PredictionsDB: container.PredictionsDB,
		LedgerDB:      container.LedgerDB,
		StateDB:       container.StateDB,
		Port:          cfg.Port,
		DevMode:       cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func registerJobs(sched *scheduler.Scheduler, container *di.Container, cfg *config.Config, log zerolog.Logger) error {
	runJob := scheduler.NewDailyRunJob(container.Orchestrator, cfg.Policy.RunTimeout, log)
	if err := sched.AddJob(cfg.Schedule.RunSchedule, runJob); err != nil {
		return err
	}

	maintenanceJob := scheduler.NewMaintenanceJob(container.Maintenance)
	if err := sched.AddJob(cfg.Schedule.BackupSchedule, maintenanceJob); err != nil {
		return err
	}

	if container.BackupService != nil {
		backupJob := scheduler.NewBackupJob(container.BackupService, log)
		if err := sched.AddJob(cfg.Schedule.BackupSchedule, backupJob); err != nil {
			return err
		}
	} else {
		log.Info().Msg("Cloud backup not configured, skipping backup job")
	}

	return nil
}
