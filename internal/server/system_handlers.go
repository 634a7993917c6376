package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/jtallis/ballast/internal/database"
)

// StatsReporter exposes worker pool counters for the status endpoint.
type StatsReporter interface {
	Stats() map[string]interface{}
}

// SystemHandlers serves the system monitoring endpoints.
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	databases   map[string]*database.DB
	runner      StatsReporter
}

// NewSystemHandlers creates a new system handlers instance.
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases map[string]*database.DB, runner StatsReporter) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		databases:   databases,
		runner:      runner,
	}
}

// SystemStatusResponse is the steady-state health report.
type SystemStatusResponse struct {
	Status        string                 `json:"status"` // "healthy" or "degraded"
	UptimeSeconds int64                  `json:"uptime_seconds"`
	CPUPercent    float64                `json:"cpu_percent"`
	MemoryPercent float64                `json:"memory_percent"`
	Databases     map[string]string      `json:"databases"` // name -> "ok" or error text
	Runner        map[string]interface{} `json:"runner,omitempty"`
}

// DatabaseStatsResponse aggregates per-database file statistics.
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// DBInfo describes one database file.
type DBInfo struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	PageCount int64   `json:"page_count"`
	FreePages int64   `json:"free_pages"`
}

// DiskUsageResponse reports data directory and volume usage.
type DiskUsageResponse struct {
	DataDirMB         float64 `json:"data_dir_mb"`
	VolumeTotalMB     float64 `json:"volume_total_mb"`
	VolumeFreeMB      float64 `json:"volume_free_mb"`
	VolumeUsedPercent float64 `json:"volume_used_percent"`
}

// HandleSystemStatus returns process health: uptime, host load, database
// pings and the worker pool counters.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.getSystemStats()

	status := "healthy"
	databases := make(map[string]string, len(h.databases))
	for _, name := range h.databaseNames() {
		if err := h.databases[name].QuickCheck(r.Context()); err != nil {
			databases[name] = err.Error()
			status = "degraded"
			continue
		}
		databases[name] = "ok"
	}

	response := SystemStatusResponse{
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Databases:     databases,
	}
	if h.runner != nil {
		response.Runner = h.runner.Stats()
	}

	h.writeJSON(w, response)
}

// HandleDatabaseStats returns file and page statistics per database.
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	infos := make([]DBInfo, 0, len(h.databases))
	totalSizeMB := 0.0

	for _, name := range h.databaseNames() {
		db := h.databases[name]

		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to collect database stats")
			continue
		}

		sizeMB := float64(stats.SizeBytes) / 1024 / 1024
		totalSizeMB += sizeMB

		infos = append(infos, DBInfo{
			Name:      name,
			Path:      db.Path(),
			SizeMB:    sizeMB,
			WALSizeMB: float64(stats.WALSizeBytes) / 1024 / 1024,
			PageCount: stats.PageCount,
			FreePages: stats.FreelistCount,
		})
	}

	h.writeJSON(w, DatabaseStatsResponse{
		Databases:   infos,
		TotalSizeMB: totalSizeMB,
		LastChecked: time.Now().Format(time.RFC3339),
	})
}

// HandleDiskUsage returns disk usage statistics for the data directory and
// the volume it lives on.
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting disk usage")

	response := DiskUsageResponse{
		DataDirMB: h.getDirSize(h.dataDir),
	}

	if usage, err := disk.Usage(h.dataDir); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get volume usage")
	} else {
		response.VolumeTotalMB = float64(usage.Total) / 1024 / 1024
		response.VolumeFreeMB = float64(usage.Free) / 1024 / 1024
		response.VolumeUsedPercent = usage.UsedPercent
	}

	h.writeJSON(w, response)
}

// databaseNames returns the configured database names in stable order.
func (h *SystemHandlers) databaseNames() []string {
	names := make([]string, 0, len(h.databases))
	for name, db := range h.databases {
		if db == nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// getDirSize calculates the total size of a directory in MB.
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats samples CPU and RAM usage. The 100ms CPU window keeps the
// handler responsive at the cost of a noisier reading.
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

// writeJSON writes a JSON response.
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
