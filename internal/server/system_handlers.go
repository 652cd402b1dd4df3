// Package server provides the HTTP server and routing for Pulse.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/relaycrm/pulse/internal/database"
	"github.com/relaycrm/pulse/internal/reliability"
	"github.com/relaycrm/pulse/internal/scheduler"
	"github.com/relaycrm/pulse/internal/version"
)

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	signalsDB   *database.DB
	scoresDB    *database.DB
	configDB    *database.DB
	historyDB   *database.DB

	// sched and backups may be nil in stripped-down setups; the affected
	// endpoints then report the feature as unavailable
	sched   *scheduler.Scheduler
	backups *reliability.S3BackupService
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	signalsDB, scoresDB, configDB, historyDB *database.DB,
	sched *scheduler.Scheduler,
	backups *reliability.S3BackupService,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		signalsDB:   signalsDB,
		scoresDB:    scoresDB,
		configDB:    configDB,
		historyDB:   historyDB,
		sched:       sched,
		backups:     backups,
	}
}

// databases returns the managed databases in stable display order
func (h *SystemHandlers) databases() []struct {
	Name string
	DB   *database.DB
} {
	return []struct {
		Name string
		DB   *database.DB
	}{
		{"signals", h.signalsDB},
		{"scores", h.scoresDB},
		{"config", h.configDB},
		{"history", h.historyDB},
	}
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status        string           `json:"status"` // "healthy" or "degraded"
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	CPUPercent    float64          `json:"cpu_percent"`
	MemoryPercent float64          `json:"memory_percent"`
	Databases     []DatabaseHealth `json:"databases"`
}

// DatabaseHealth reports reachability of one database
type DatabaseHealth struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// HandleSystemStatus returns overall process and database health
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.getSystemStats()

	status := "healthy"
	var databases []DatabaseHealth
	for _, entry := range h.databases() {
		health := DatabaseHealth{Name: entry.Name, Healthy: true}
		if entry.DB == nil {
			health.Healthy = false
			health.Error = "not initialized"
		} else if err := entry.DB.QuickCheck(r.Context()); err != nil {
			health.Healthy = false
			health.Error = err.Error()
		}
		if !health.Healthy {
			status = "degraded"
		}
		databases = append(databases, health)
	}

	response := SystemStatusResponse{
		Status:        status,
		Version:       version.Version,
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Databases:     databases,
	}

	h.writeJSON(w, response)
}

// DBInfo describes one database file
type DBInfo struct {
	Name          string  `json:"name"`
	Path          string  `json:"path"`
	SizeMB        float64 `json:"size_mb"`
	WALSizeMB     float64 `json:"wal_size_mb"`
	PageCount     int64   `json:"page_count"`
	FreelistPages int64   `json:"freelist_pages"`
}

// DatabaseStatsResponse represents aggregate database statistics
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// HandleDatabaseStats returns size and page statistics per database
// GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	databases := []DBInfo{}
	totalSizeMB := 0.0

	for _, entry := range h.databases() {
		if entry.DB == nil {
			continue
		}

		stats, err := entry.DB.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", entry.Name).Msg("Failed to collect database stats")
			continue
		}

		sizeMB := float64(stats.SizeBytes) / 1024 / 1024
		totalSizeMB += sizeMB

		databases = append(databases, DBInfo{
			Name:          entry.Name,
			Path:          entry.DB.Path(),
			SizeMB:        sizeMB,
			WALSizeMB:     float64(stats.WALSizeBytes) / 1024 / 1024,
			PageCount:     stats.PageCount,
			FreelistPages: stats.FreelistCount,
		})
	}

	response := DatabaseStatsResponse{
		Databases:   databases,
		TotalSizeMB: totalSizeMB,
		LastChecked: time.Now().Format(time.RFC3339),
	}

	h.writeJSON(w, response)
}

// JobsStatusResponse lists the registered background jobs
type JobsStatusResponse struct {
	TotalJobs int                   `json:"total_jobs"`
	Jobs      []scheduler.JobStatus `json:"jobs"`
}

// HandleJobsStatus returns the scheduled background jobs with their next
// and previous run times
// GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting jobs status")

	jobs := []scheduler.JobStatus{}
	if h.sched != nil {
		jobs = h.sched.Jobs()
	}

	h.writeJSON(w, JobsStatusResponse{
		TotalJobs: len(jobs),
		Jobs:      jobs,
	})
}

// HandleTriggerBackup runs a backup immediately and reports the uploaded
// archive. The run is synchronous; the caller waits for the upload.
// POST /api/system/backup
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		http.Error(w, "Backup not configured", http.StatusServiceUnavailable)
		return
	}

	h.log.Info().Msg("Manual backup triggered")

	result, err := h.backups.CreateAndUploadBackup(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Manual backup failed")
		http.Error(w, "Backup failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, result)
}

// HandleListBackups lists the archives present in the backup bucket,
// newest first
// GET /api/system/backups
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		http.Error(w, "Backup not configured", http.StatusServiceUnavailable)
		return
	}

	backups, err := h.backups.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		http.Error(w, "Failed to list backups", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"backups": backups,
		"count":   len(backups),
	})
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a short interval (100ms) so the status endpoint stays responsive
// while still providing a real reading.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
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

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
