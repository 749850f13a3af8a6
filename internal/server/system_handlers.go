package server

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/holdiq/holdiq/internal/database"
	"github.com/holdiq/holdiq/internal/modules/filings"
)

// SystemHandlers serves system status endpoints.
type SystemHandlers struct {
	log     zerolog.Logger
	db      *database.DB
	filings *filings.Repository
}

// SystemStatus is the response for the system status endpoint.
type SystemStatus struct {
	Status          string  `json:"status"`
	CPUPercent      float64 `json:"cpu_percent"`
	MemoryPercent   float64 `json:"memory_percent"`
	DiskFreeGB      float64 `json:"disk_free_gb"`
	DatabaseSizeMB  float64 `json:"database_size_mb"`
	ParseQueueDepth int     `json:"parse_queue_depth"`
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(log zerolog.Logger, db *database.DB, filingsRepo *filings.Repository) *SystemHandlers {
	return &SystemHandlers{
		log:     log.With().Str("component", "system_handlers").Logger(),
		db:      db,
		filings: filingsRepo,
	}
}

// HandleSystemStatus reports process and pipeline health.
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := SystemStatus{Status: "ok"}

	cpuPercent, memPercent := h.systemStats()
	status.CPUPercent = cpuPercent
	status.MemoryPercent = memPercent

	if usage, err := disk.Usage(h.db.Path()); err == nil {
		status.DiskFreeGB = float64(usage.Free) / 1e9
	} else {
		h.log.Warn().Err(err).Msg("Failed to get disk usage")
	}

	if info, err := os.Stat(h.db.Path()); err == nil {
		status.DatabaseSizeMB = float64(info.Size()) / 1024 / 1024
	}

	depth, err := h.filings.QueueDepth()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get parse queue depth")
		status.Status = "degraded"
	}
	status.ParseQueueDepth = depth

	h.writeJSON(w, status)
}

// systemStats returns CPU and RAM usage percentages. The short CPU
// sampling interval keeps the endpoint responsive.
func (h *SystemHandlers) systemStats() (float64, float64) {
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

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
