package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/courtedge/courtedge/internal/database"
)

// SystemHandlers handles system-wide monitoring endpoints
type SystemHandlers struct {
	log           zerolog.Logger
	dataDir       string
	startupTime   time.Time
	predictionsDB *database.DB
	ledgerDB      *database.DB
	stateDB       *database.DB
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, dataDir string, predictionsDB, ledgerDB, stateDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:           log.With().Str("component", "system_handlers").Logger(),
		dataDir:       dataDir,
		startupTime:   time.Now(),
		predictionsDB: predictionsDB,
		ledgerDB:      ledgerDB,
		stateDB:       stateDB,
	}
}

// HandleGetStatus handles GET /api/system/status - process uptime, host
// resource usage and per-database statistics
func (h *SystemHandlers) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.systemUsage()

	databases := map[string]interface{}{}
	for name, db := range map[string]*database.DB{
		"predictions": h.predictionsDB,
		"ledger":      h.ledgerDB,
		"state":       h.stateDB,
	} {
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to get database stats")
			databases[name] = map[string]interface{}{"error": err.Error()}
			continue
		}
		databases[name] = map[string]interface{}{
			"size_bytes":     stats.SizeBytes,
			"wal_size_bytes": stats.WALSizeBytes,
			"page_count":     stats.PageCount,
			"page_size":      stats.PageSize,
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds": int64(time.Since(h.startupTime).Seconds()),
		"started_at":     h.startupTime.Format(time.RFC3339),
		"data_dir":       h.dataDir,
		"cpu_percent":    cpuPercent,
		"memory_percent": memPercent,
		"databases":      databases,
	})
}

// systemUsage samples host CPU and memory usage. The CPU sample window is
// short to keep the endpoint responsive.
func (h *SystemHandlers) systemUsage() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
