package agent

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/duhoc-advisor/internal/api"
	"github.com/ashureev/duhoc-advisor/internal/checklist"
	"github.com/ashureev/duhoc-advisor/internal/config"
	"github.com/ashureev/duhoc-advisor/internal/identity"
)

// defaultMaxRequestBodySize is the maximum allowed request body size (64KB).
const defaultMaxRequestBodySize = 64 << 10

// Handler exposes the orchestrator over HTTP and WebSocket.
type Handler struct {
	svc            *Service
	limiter        *RateLimiter
	conns          *Connections
	allowedOrigins []string
	isDev          bool
}

// NewHandler creates a handler. A nil cfg uses the built-in defaults.
func NewHandler(svc *Service, cfg *config.Config) *Handler {
	if cfg == nil {
		cfg = config.Defaults()
	}
	return &Handler{
		svc:            svc,
		limiter:        NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window),
		conns:          NewConnections(),
		allowedOrigins: cfg.AllowedOrigins(),
		isDev:          cfg.IsDevelopment(),
	}
}

// RegisterRoutes registers the chat, session and document routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)

		r.Get("/session", h.HandleGetSession)
		r.Delete("/session", h.HandleResetSession)
		r.Post("/session/complete", h.HandleCompleteSession)
		r.Get("/session/history", h.HandleHistory)

		r.Get("/documents/progress", h.HandleProgress)
		r.Get("/documents/pending", h.HandlePending)
		r.Post("/documents/ensure", h.HandleEnsureDocuments)
		r.Put("/documents/{name}", h.HandleUpdateDocument)
	})
	r.Get("/ws/chat", h.ServeWebSocket)
}

// Connections returns the live socket registry.
func (h *Handler) Connections() *Connections { return h.conns }

// Close releases handler resources and closes live sockets.
func (h *Handler) Close() {
	h.limiter.Stop()
	h.conns.CloseAll("server shutting down")
}

// errorStatus maps a service error to an HTTP status and a client message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, checklist.ErrInvalidStatus):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, checklist.ErrDocumentNotFound):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed",
			"error", err,
			"user_id", identity.UserIDFromContext(r.Context()),
			"request_id", chiMiddleware.GetReqID(r.Context()),
		)
	}
	api.Error(w, status, msg)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return userID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, defaultMaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// HandleChat handles POST /api/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if !h.limiter.Allow(userID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.UserID = userID
	req.Auth = identity.ClaimsFromContext(r.Context())
	req.Channel = "chat_http"

	slog.Info("Chat request",
		"user_id", userID,
		"session_id", identity.SessionIDFromContext(r.Context()),
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"message_length", len(req.Message),
	)

	res, err := h.svc.Handle(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, res)
}

// HandleGetSession handles GET /api/session.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	snap, err := h.svc.GetSession(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, snap)
}

// HandleResetSession handles DELETE /api/session.
func (h *Handler) HandleResetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.ResetSession(r.Context(), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.conns.CloseUser(userID, "session reset")
	api.JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// HandleCompleteSession handles POST /api/session/complete.
func (h *Handler) HandleCompleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.CompleteSession(r.Context(), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	snap, err := h.svc.GetSession(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, snap)
}

// HandleHistory handles GET /api/session/history?limit=&offset=.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid offset")
		return
	}

	hist, err := h.svc.GetHistory(r.Context(), userID, limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, hist)
}

// HandleProgress handles GET /api/documents/progress.
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetProgress(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, p)
}

// HandlePending handles GET /api/documents/pending.
func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	docs, err := h.svc.GetPendingDocuments(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// HandleEnsureDocuments handles POST /api/documents/ensure.
func (h *Handler) HandleEnsureDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req EnsureDocumentsRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	added, err := h.svc.EnsureDocuments(r.Context(), userID, req.Documents)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{"added": added})
}

// HandleUpdateDocument handles PUT /api/documents/{name}.
func (h *Handler) HandleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}

	var req DocumentStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	doc, err := h.svc.UpdateDocumentStatus(r.Context(), userID, name, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, doc)
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
