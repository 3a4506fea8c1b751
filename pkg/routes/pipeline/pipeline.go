// Package pipeline exposes the resolution trigger endpoint.
package pipeline

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Handler handles pipeline API endpoints
type Handler struct {
	pipeline *pipeline.Pipeline
	running  atomic.Bool
	logger   ectologger.Logger
}

// NewHandler creates a new pipeline handler
func NewHandler(p *pipeline.Pipeline, logger ectologger.Logger) *Handler {
	return &Handler{
		pipeline: p,
		logger:   logger,
	}
}

// ResolveRequest represents the resolve trigger request body
type ResolveRequest struct {
	Since *time.Time `json:"since,omitempty"`
}

// Register registers pipeline routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/resolve", h.Resolve)
}

// Resolve runs one resolution pass and returns its summary. Concurrent
// passes would race on cluster writes, so only one runs at a time.
func (h *Handler) Resolve(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "pipeline.Handler.Resolve")
	defer span.End()

	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if !h.running.CompareAndSwap(false, true) {
		return httperror.NewHTTPError(http.StatusConflict, "a resolution pass is already running")
	}
	defer h.running.Store(false)

	start := time.Now()
	summary, err := h.pipeline.ResolveAndScore(ctx, req.Since)
	if err != nil {
		metrics.RecordResolutionRun("error", time.Since(start).Seconds())
		h.logger.WithContext(ctx).WithError(err).Error("Resolution pass failed")
		return err
	}
	metrics.RecordResolutionRun("ok", time.Since(start).Seconds())

	return c.JSON(http.StatusOK, summary)
}
