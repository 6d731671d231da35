// Package httpapi exposes the schedule service over HTTP with gin.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valter-silva-au/buildphase/internal/core"
	"github.com/valter-silva-au/buildphase/internal/observability"
	"github.com/valter-silva-au/buildphase/pkg/models"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// PhasesResponse is returned by GET /v1/phases.
type PhasesResponse struct {
	Now    time.Time      `json:"now"`
	Phases []models.Phase `json:"phases"`
}

// ShiftResponse is returned by GET /v1/shift. Plan is null when nothing is
// delayed.
type ShiftResponse struct {
	Plan       *models.AutoShiftPlan `json:"plan"`
	Collisions []string              `json:"collisions,omitempty"`
}

// ApplyResponse is returned by POST /v1/shift/apply.
type ApplyResponse struct {
	Updates []models.DueDateUpdate `json:"updates"`
}

// ExpandResponse is returned by POST /v1/phases/:phase/expand. A locked phase
// answers 409 with Expanded false and the lock reason.
type ExpandResponse struct {
	Phase    string        `json:"phase"`
	Expanded bool          `json:"expanded"`
	Reason   string        `json:"reason,omitempty"`
	Detail   *models.Phase `json:"detail,omitempty"`
}

// AlertsResponse is returned by GET /v1/alerts.
type AlertsResponse struct {
	Alerts []observability.Alert `json:"alerts"`
}

// Handlers serves the schedule API.
type Handlers struct {
	service  core.ScheduleService
	alerts   observability.AlertEngine
	gatherer prometheus.Gatherer
	version  string
}

// NewHandlers creates Handlers. alerts and gatherer may be nil, in which case
// /v1/alerts and /metrics are not registered.
func NewHandlers(service core.ScheduleService, alerts observability.AlertEngine, gatherer prometheus.Gatherer, version string) *Handlers {
	return &Handlers{
		service:  service,
		alerts:   alerts,
		gatherer: gatherer,
		version:  version,
	}
}

// NewRouter builds a gin engine with recovery, request logging and every
// route registered.
func NewRouter(h *Handlers, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	RegisterRoutes(router, h)
	return router
}

// RegisterRoutes registers the API on router.
//
//	GET    /health
//	GET    /v1/phases                 ?refresh=true forces a rebuild
//	POST   /v1/rebuild
//	GET    /v1/shift
//	POST   /v1/shift/apply
//	DELETE /v1/shift
//	POST   /v1/phases/:phase/expand
//	GET    /v1/alerts
//	GET    /metrics
func RegisterRoutes(router gin.IRouter, h *Handlers) {
	router.GET("/health", h.HandleHealth)

	v1 := router.Group("/v1")
	v1.GET("/phases", h.HandlePhases)
	v1.POST("/rebuild", h.HandleRebuild)
	v1.GET("/shift", h.HandleGetShift)
	v1.POST("/shift/apply", h.HandleApplyShift)
	v1.DELETE("/shift", h.HandleDiscardShift)
	v1.POST("/phases/:phase/expand", h.HandleExpandPhase)
	if h.alerts != nil {
		v1.GET("/alerts", h.HandleAlerts)
	}

	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
}

func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}

func (h *Handlers) HandlePhases(c *gin.Context) {
	var (
		sched models.Schedule
		err   error
	)
	if c.Query("refresh") == "true" {
		sched, err = h.service.Refresh(c.Request.Context())
	} else {
		sched, err = h.service.Current(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, PhasesResponse{Now: sched.Now, Phases: sched.Phases})
}

func (h *Handlers) HandleRebuild(c *gin.Context) {
	sched, err := h.service.Refresh(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, PhasesResponse{Now: sched.Now, Phases: sched.Phases})
}

func (h *Handlers) HandleGetShift(c *gin.Context) {
	if _, err := h.service.Current(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	plan := h.service.ProposedShift()
	c.JSON(http.StatusOK, ShiftResponse{Plan: plan, Collisions: plan.Collisions()})
}

func (h *Handlers) HandleApplyShift(c *gin.Context) {
	updates, err := h.service.ApplyShift(c.Request.Context())
	switch {
	case errors.Is(err, core.ErrNoPlan), errors.Is(err, core.ErrPlanCollision):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	case err != nil && updates == nil:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	// A rebuild failure after a successful write still reports the updates.
	c.JSON(http.StatusOK, ApplyResponse{Updates: updates})
}

func (h *Handlers) HandleDiscardShift(c *gin.Context) {
	if !h.service.DiscardShift() {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: core.ErrNoPlan.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) HandleExpandPhase(c *gin.Context) {
	id, err := models.ParsePhaseID(c.Param("phase"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	sched, err := h.service.Current(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	ok, reason := h.service.ExpandPhase(id)
	if !ok {
		c.JSON(http.StatusConflict, ExpandResponse{Phase: id.String(), Reason: reason})
		return
	}
	p := sched.Phase(id)
	c.JSON(http.StatusOK, ExpandResponse{Phase: id.String(), Expanded: true, Detail: &p})
}

func (h *Handlers) HandleAlerts(c *gin.Context) {
	sched, err := h.service.Current(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	alerts := h.alerts.Evaluate(sched)
	if alerts == nil {
		alerts = []observability.Alert{}
	}
	c.JSON(http.StatusOK, AlertsResponse{Alerts: alerts})
}

// requestLogger logs one line per request at debug level, and at warn for
// server errors.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("request failed", fields...)
			return
		}
		logger.Debug("request", fields...)
	}
}
