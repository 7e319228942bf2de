package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/courtedge/courtedge/internal/database"
	"github.com/courtedge/courtedge/internal/domain"
	"github.com/courtedge/courtedge/internal/orchestrator"
)

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	databases := map[string]string{}
	for name, db := range map[string]*database.DB{
		"predictions": s.predictionsDB,
		"ledger":      s.ledgerDB,
		"state":       s.stateDB,
	} {
		if err := db.HealthCheck(ctx); err != nil {
			databases[name] = "unhealthy"
			status = "degraded"
			continue
		}
		databases[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"databases": databases,
	})
}

// handleTriggerRun handles POST /api/runs/trigger - starts a decision run
// synchronously and returns its summary
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	s.log.Info().Msg("Decision run triggered via admin API")

	result, err := s.container.Orchestrator.ExecuteRun(r.Context())
	if errors.Is(err, orchestrator.ErrRunInProgress) {
		s.writeError(w, http.StatusConflict, "A run is already in progress")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to execute run")
		s.writeError(w, http.StatusInternalServerError, "Failed to execute run")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleGetLatestRun handles GET /api/runs/latest
func (s *Server) handleGetLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.container.RunRepo.GetLatest()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get latest run")
		s.writeError(w, http.StatusInternalServerError, "Failed to get latest run")
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "No runs recorded yet")
		return
	}

	s.writeJSON(w, http.StatusOK, run)
}

// handleGetRun handles GET /api/runs/{runID}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.container.RunRepo.GetByID(runID)
	if err != nil {
		s.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get run")
		s.writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "Run not found")
		return
	}

	s.writeJSON(w, http.StatusOK, run)
}

// handleGetDecisions handles GET /api/decisions?run_id=&limit= - returns
// decisions for a run, or the most recent decisions across runs
func (s *Server) handleGetDecisions(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")

	var (
		result []domain.PolicyDecision
		err    error
	)
	if runID != "" {
		result, err = s.container.DecisionRepo.GetByRun(runID)
	} else {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if parsed, parseErr := strconv.Atoi(v); parseErr == nil && parsed > 0 {
				limit = parsed
			}
		}
		result, err = s.container.DecisionRepo.GetRecent(limit)
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to get decisions")
		s.writeError(w, http.StatusInternalServerError, "Failed to get decisions")
		return
	}

	if result == nil {
		result = []domain.PolicyDecision{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": result,
		"count":     len(result),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error": message,
	})
}
