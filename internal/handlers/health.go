package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Roohan-gm/shopblizz-backend/internal/domain"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/httpx"
	"github.com/Roohan-gm/shopblizz-backend/internal/platform/observability"
	"github.com/Roohan-gm/shopblizz-backend/internal/services"
)

// HealthHandlers serves the liveness and readiness endpoints.
type HealthHandlers struct {
	system    services.SystemService
	clock     func() time.Time
	startedAt time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthSystemService enables dependency checks on /readyz.
func WithHealthSystemService(system services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = system
	}
}

// WithHealthClock overrides the time source.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithHealthStartedAt sets the process start time used for uptime.
func WithHealthStartedAt(startedAt time.Time) HealthOption {
	return func(h *HealthHandlers) {
		h.startedAt = startedAt
	}
}

// NewHealthHandlers constructs health handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.startedAt.IsZero() {
		h.startedAt = h.clock()
	}
	return h
}

// Healthz reports process liveness without touching dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	now := h.clock().UTC()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    domain.HealthStatusOK,
		"uptime":    now.Sub(h.startedAt).Round(time.Second).String(),
		"timestamp": now.Format(time.RFC3339),
	})
}

type healthCheckPayload struct {
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	LatencyMS int64     `json:"latencyMs"`
	CheckedAt time.Time `json:"checkedAt"`
}

type readinessPayload struct {
	Status      string                        `json:"status"`
	Version     string                        `json:"version"`
	Uptime      string                        `json:"uptime"`
	GeneratedAt time.Time                     `json:"generatedAt"`
	Checks      map[string]healthCheckPayload `json:"checks,omitempty"`
}

// Readyz runs dependency checks. A failing required dependency turns the response into a 503;
// degraded optional dependencies still report ready.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		h.Healthz(w, r)
		return
	}
	report, err := h.system.HealthReport(ctx)
	if err != nil {
		observability.FromContext(ctx).Error("readiness check failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("health_check_failed", "unable to evaluate readiness", http.StatusServiceUnavailable))
		return
	}

	payload := readinessPayload{
		Status:      report.Status,
		Version:     report.Version,
		Uptime:      report.Uptime.Round(time.Second).String(),
		GeneratedAt: report.GeneratedAt,
	}
	if len(report.Checks) > 0 {
		payload.Checks = make(map[string]healthCheckPayload, len(report.Checks))
		for name, check := range report.Checks {
			payload.Checks[name] = healthCheckPayload{
				Status:    check.Status,
				Detail:    check.Detail,
				LatencyMS: check.Latency.Milliseconds(),
				CheckedAt: check.CheckedAt,
			}
		}
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, payload)
}
