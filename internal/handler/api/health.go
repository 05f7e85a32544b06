package api

import (
	"context"
	"net/http"
	"time"

	xhttp "PricePortal/pkg/http"

	"github.com/labstack/echo/v4"
)

// HealthCheck probes one dependency; a nil error means healthy.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthHandler reports readiness of the predictor and backing stores.
type HealthHandler struct {
	checks  []HealthCheck
	timeout time.Duration
}

func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	for _, chk := range h.checks {
		if err := chk.Check(ctx); err != nil {
			resp.Status = "degraded"
			resp.Checks[chk.Name] = err.Error()
			continue
		}
		resp.Checks[chk.Name] = "ok"
	}

	if resp.Status != "ok" {
		return xhttp.JSONResponse(c, http.StatusServiceUnavailable, resp)
	}
	return xhttp.SuccessResponse(c, resp)
}
