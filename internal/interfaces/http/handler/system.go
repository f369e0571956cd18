package handler

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spendaudit/backend/internal/infrastructure/scheduler"
	"github.com/spendaudit/backend/internal/interfaces/http/dto"
)

// Pinger checks a backing store
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	version   string
	startTime time.Time
	checks    map[string]Pinger
}

// NewSystemHandler creates a new SystemHandler. Each named pinger takes part
// in the health check.
func NewSystemHandler(version string, checks map[string]Pinger) *SystemHandler {
	if version == "" {
		version = "dev"
	}
	return &SystemHandler{
		version:   version,
		startTime: time.Now(),
		checks:    checks,
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name" example:"Spend Audit API"`
	Version   string `json:"version" example:"1.0.0"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// HealthResponse reports the state of each dependency
type HealthResponse struct {
	Status string            `json:"status" example:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Health godoc
// @ID           getHealth
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Failure      503  {object}  HealthResponse
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok"}
	status := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	c.JSON(status, resp)
}

// GetSystemInfo godoc
// @ID           getSystemInfo
// @Summary      Get system information
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[SystemInfoResponse]
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      "Spend Audit API",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Ping godoc
// @ID           pingSystem
// @Summary      Ping the API
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[PingResponse]
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// SweepRunner triggers and reports SLA sweeps
type SweepRunner interface {
	RunNow(ctx context.Context) (*scheduler.SweepRun, error)
	LastRun() *scheduler.SweepRun
	IsRunning() bool
}

// SLAHandler exposes the SLA monitor
type SLAHandler struct {
	BaseHandler
	monitor SweepRunner
}

// NewSLAHandler creates a new SLAHandler
func NewSLAHandler(monitor SweepRunner) *SLAHandler {
	return &SLAHandler{monitor: monitor}
}

// SLAStatusResponse reports the monitor state
type SLAStatusResponse struct {
	Running bool                `json:"running"`
	LastRun *scheduler.SweepRun `json:"last_run,omitempty"`
}

// TriggerSweep godoc
// @ID           triggerSLASweep
// @Summary      Recompute SLA status now
// @Tags         sla
// @Produce      json
// @Success      200  {object}  APIResponse[scheduler.SweepRun]
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /sla/sweeps [post]
func (h *SLAHandler) TriggerSweep(c *gin.Context) {
	run, err := h.monitor.RunNow(c.Request.Context())
	switch {
	case errors.Is(err, scheduler.ErrSweepInProgress):
		h.Conflict(c, dto.ErrCodeBusy, "An SLA sweep is already in progress")
	case err != nil:
		h.HandleError(c, err)
	default:
		h.Success(c, run)
	}
}

// Status godoc
// @ID           getSLAStatus
// @Summary      SLA monitor status
// @Tags         sla
// @Produce      json
// @Success      200  {object}  APIResponse[SLAStatusResponse]
// @Router       /sla/status [get]
func (h *SLAHandler) Status(c *gin.Context) {
	h.Success(c, SLAStatusResponse{
		Running: h.monitor.IsRunning(),
		LastRun: h.monitor.LastRun(),
	})
}
