package handler

import (
	"net/http"
	"time"

	"github.com/erp/labelprint/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Pinger checks a dependency
type Pinger interface {
	Ping() error
}

// SystemHandler serves health checks
type SystemHandler struct {
	BaseHandler
	version string
	started time.Time
	checks  map[string]Pinger
}

// NewSystemHandler creates a new SystemHandler. checks may be empty.
func NewSystemHandler(version string, checks map[string]Pinger) *SystemHandler {
	return &SystemHandler{version: version, started: time.Now(), checks: checks}
}

// Health godoc
//
//	@ID				getHealth
//
//	@Summary		Health check
//	@Description	Report process health and the state of each dependency
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	dto.Response
//	@Failure		503	{object}	dto.Response
//	@Router			/health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	status := http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	body := gin.H{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"checks":  checks,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
		c.JSON(status, dto.Response{Success: false, Data: body,
			Error: &dto.ErrorInfo{Code: dto.ErrCodeUnavailable, Message: "A dependency is unhealthy"}})
		return
	}
	h.Success(c, body)
}
