package system

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	httptransport "versecast/internal/transport/http"
)

// Service reports host health for the embedding UI's diagnostics page.
type Service struct {
	logger  *slog.Logger
	started time.Time
}

// NewService builds the system status service.
func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger, started: time.Now()}
}

// Register mounts the status route.
func (s *Service) Register(ctx context.Context, router *gin.RouterGroup) error {
	router.GET("/system/status", s.handleStatus)
	return nil
}

type statusReport struct {
	Hostname      string  `json:"hostname"`
	Platform      string  `json:"platform"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryTotal   uint64  `json:"memory_total"`
	MemoryUsed    uint64  `json:"memory_used"`
	MemoryPercent float64 `json:"memory_percent"`
}

func (s *Service) handleStatus(c *gin.Context) {
	report := statusReport{
		UptimeSeconds: time.Since(s.started).Seconds(),
	}

	if info, err := host.InfoWithContext(c.Request.Context()); err == nil {
		report.Hostname = info.Hostname
		report.Platform = info.Platform
	} else if s.logger != nil {
		s.logger.Warn("host info unavailable", "error", err)
	}

	if percents, err := cpu.PercentWithContext(c.Request.Context(), 0, false); err == nil && len(percents) > 0 {
		report.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(c.Request.Context()); err == nil {
		report.MemoryTotal = vm.Total
		report.MemoryUsed = vm.Used
		report.MemoryPercent = vm.UsedPercent
	}

	httptransport.RespondSuccess(c, http.StatusOK, report, "")
}
