package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/serviceclient"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck checks one dependency.
type ReadinessCheck func(ctx context.Context) error

type namedCheck struct {
	name  string
	check ReadinessCheck
}

// HealthOption configures the health handler.
type HealthOption func(*HealthHandler)

// WithReadinessCheck adds a dependency that must answer before the service reports ready.
func WithReadinessCheck(name string, check ReadinessCheck) HealthOption {
	return func(h *HealthHandler) {
		if check != nil {
			h.checks = append(h.checks, namedCheck{name: name, check: check})
		}
	}
}

// DownstreamReporter exposes the health of one downstream as seen by its client.
type DownstreamReporter interface {
	Status() serviceclient.Status
}

// WithDownstreams registers the clients reported by the downstream status endpoint.
func WithDownstreams(reporters ...DownstreamReporter) HealthOption {
	return func(h *HealthHandler) {
		for _, r := range reporters {
			if r != nil {
				h.downstreams = append(h.downstreams, r)
			}
		}
	}
}

// HealthHandler exposes liveness, readiness and downstream status information.
type HealthHandler struct {
	startedAt   time.Time
	checks      []namedCheck
	downstreams []DownstreamReporter
}

// NewHealthHandler builds a new health handler instance.
func NewHealthHandler(opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{startedAt: time.Now().UTC()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Status reports liveness.
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		StartedAt: h.startedAt,
	})
}

// Readiness runs every dependency check; any failure yields 503.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	resp := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK

	for _, nc := range h.checks {
		if err := nc.check(ctx); err != nil {
			resp.Checks[nc.name] = err.Error()
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[nc.name] = "ok"
	}

	c.JSON(status, resp)
}

// Downstreams lists breaker state and fallback statistics for every sibling service, so operators
// can tell degraded lookups apart from records that are truly absent.
func (h *HealthHandler) Downstreams(c *gin.Context) {
	resp := DownstreamStatusResponse{
		Downstreams: make([]serviceclient.Status, 0, len(h.downstreams)),
		CheckedAt:   time.Now().UTC(),
	}
	for _, d := range h.downstreams {
		resp.Downstreams = append(resp.Downstreams, d.Status())
	}
	c.JSON(http.StatusOK, resp)
}
