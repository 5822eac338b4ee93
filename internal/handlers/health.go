package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stripe-webhook-router/internal/common/logging"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

// HealthCheck reports the health of the router and its dependencies
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Checks:    make(map[string]string, len(h.checks)),
		Timestamp: time.Now().UTC(),
	}

	// checks run concurrently and never fail the group; each records its own result
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, check := range h.checks {
		name, check := name, check
		g.Go(func() error {
			result := "healthy"
			if err := check(gctx); err != nil {
				result = "unhealthy"
				h.logger.Warn("Health check failed", logging.String("check", name), logging.Err(err))
			}
			mu.Lock()
			defer mu.Unlock()
			resp.Checks[name] = result
			if result != "healthy" {
				resp.Status = "unhealthy"
			}
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
