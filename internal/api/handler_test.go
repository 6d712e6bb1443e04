//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ashureev/duhoc-advisor/internal/config"
	"github.com/ashureev/duhoc-advisor/internal/domain"
	"github.com/ashureev/duhoc-advisor/internal/identity"
	"github.com/ashureev/duhoc-advisor/internal/llm"
	"github.com/ashureev/duhoc-advisor/internal/store"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

type pingFailRepo struct {
	store.Repository
}

func (pingFailRepo) Ping(context.Context) error { return errors.New("database is locked") }

type unhealthyLLM struct{ llm.Local }

func (unhealthyLLM) Health(context.Context) error { return errors.New("sidecar down") }

func newTestHandler(repo store.Repository, model llm.LLM, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	NewHandler(repo, config.Defaults(), model, gatherer).RegisterRoutes(r)
	return r
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusBadRequest, "bad input")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("Expected JSON content type, got %q", got)
	}
	if !strings.Contains(w.Body.String(), `"error":"bad input"`) {
		t.Fatalf("Unexpected body: %s", w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		repo       store.Repository
		model      llm.LLM
		wantCode   int
		wantStatus string
	}{
		{"healthy", store.NewMemory(), llm.Local{}, http.StatusOK, "healthy"},
		{"database down", pingFailRepo{store.NewMemory()}, llm.Local{}, http.StatusServiceUnavailable, "degraded"},
		{"llm down", store.NewMemory(), unhealthyLLM{}, http.StatusOK, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newTestHandler(tt.repo, tt.model, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			if w.Code != tt.wantCode {
				t.Fatalf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body["status"] != tt.wantStatus {
				t.Fatalf("Expected status %q, got %v", tt.wantStatus, body["status"])
			}
			if body["llm_provider"] != "local" {
				t.Fatalf("Expected llm_provider local, got %v", body["llm_provider"])
			}
		})
	}
}

func TestGetMe(t *testing.T) {
	repo := store.NewMemory()
	now := time.Now()
	if err := repo.UpsertUser(context.Background(), &domain.User{
		UserID: "u1", FullName: "Trần Thị Bình", LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	h := newTestHandler(repo, llm.Local{}, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without identity, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = req.WithContext(identity.WithUser(req.Context(), "u1", nil))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Trần Thị Bình") {
		t.Fatalf("Unexpected body: %s", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "advisor_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	w := httptest.NewRecorder()
	newTestHandler(store.NewMemory(), llm.Local{}, reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "advisor_test_total 1") {
		t.Fatalf("Metric missing from output: %s", w.Body.String())
	}
}
