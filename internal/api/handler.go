// Package api provides the shared HTTP helpers and the service-level endpoints
// of the advisor API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/duhoc-advisor/internal/config"
	"github.com/ashureev/duhoc-advisor/internal/identity"
	"github.com/ashureev/duhoc-advisor/internal/llm"
	"github.com/ashureev/duhoc-advisor/internal/store"
)

const healthCheckTimeout = 5 * time.Second

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Handler serves health, identity, config and metrics endpoints.
type Handler struct {
	repo     store.Repository
	cfg      *config.Config
	model    llm.LLM
	gatherer prometheus.Gatherer
}

// NewHandler creates a new Handler. A nil gatherer disables /metrics.
func NewHandler(repo store.Repository, cfg *config.Config, model llm.LLM, gatherer prometheus.Gatherer) *Handler {
	return &Handler{repo: repo, cfg: cfg, model: model, gatherer: gatherer}
}

// RegisterRoutes registers the service endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/health", h.Health)
	r.Get("/api/me", h.GetMe)
	r.Get("/api/config", h.GetConfig)
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// Health returns the health status of the API and its dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status":       "healthy",
		"checks":       checks,
		"llm_provider": h.model.Name(),
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	// An unhealthy LLM degrades replies to the fallback but does not take the
	// service down.
	if hc, ok := h.model.(interface{ Health(context.Context) error }); ok {
		if err := hc.Health(ctx); err != nil {
			slog.Warn("LLM health check failed", "error", err)
			status["status"] = "degraded"
			checks["llm"] = "unreachable"
		} else {
			checks["llm"] = "ok"
		}
	}

	JSON(w, statusCode, status)
}

// GetMe returns the current user's record.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":       user.UserID,
		"fullname":      user.FullName,
		"email":         user.Email,
		"phone":         user.Phone,
		"authenticated": identity.ClaimsFromContext(r.Context()) != nil,
	})
}

// GetConfig returns the settings the frontend needs.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"llm_provider":       h.model.Name(),
		"max_message_length": h.cfg.Agent.MaxMessageLength,
		"auth_enabled":       h.cfg.Auth.JWTSecret != "",
	})
}
