package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/duhoc-advisor/internal/api"
	"github.com/ashureev/duhoc-advisor/internal/identity"
)

const wsWriteTimeout = 5 * time.Second

// wsInbound is a client frame.
type wsInbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// wsReply is the frame sent for a handled chat turn.
type wsReply struct {
	Type string `json:"type"`
	*ChatResult
}

// ServeWebSocket handles GET /ws/chat. Clients send
// {"type":"message","content":...} and receive {"type":"reply",...} frames.
func (h *Handler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.conns.Register(userID, sessionID, ws)
	defer h.conns.Unregister(userID, sessionID, ws)

	h.readLoop(r.Context(), ws, userID, identity.ClaimsFromContext(r.Context()))
	slog.Info("Chat socket ended", "user_id", userID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, userID string, claims map[string]any) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Debug("WebSocket read ended", "error", err, "user_id", userID)
			}
			return
		}

		var msg wsInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.writeFrame(ctx, ws, map[string]string{"type": "error", "error": "invalid message"})
			continue
		}

		switch msg.Type {
		case "message":
			h.handleSocketMessage(ctx, ws, userID, claims, msg.Content)
		case "ping":
			h.writeFrame(ctx, ws, map[string]string{"type": "pong"})
		default:
			h.writeFrame(ctx, ws, map[string]string{"type": "error", "error": "unknown message type"})
		}

		if err := h.svc.repo.UpdateLastSeen(ctx, userID, time.Now()); err != nil {
			slog.Warn("Failed to update last seen", "error", err, "user_id", userID)
		}
	}
}

func (h *Handler) handleSocketMessage(ctx context.Context, ws *websocket.Conn, userID string, claims map[string]any, content string) {
	if !h.limiter.Allow(userID) {
		h.writeFrame(ctx, ws, map[string]string{"type": "error", "error": "rate limit exceeded"})
		return
	}
	res, err := h.svc.Handle(ctx, ChatRequest{
		UserID:  userID,
		Message: content,
		Auth:    claims,
		Channel: "chat_ws",
	})
	if err != nil {
		status, msg := errorStatus(err)
		if status == http.StatusInternalServerError {
			slog.Error("Socket chat turn failed", "error", err, "user_id", userID)
		}
		h.writeFrame(ctx, ws, map[string]string{"type": "error", "error": msg})
		return
	}
	h.writeFrame(ctx, ws, wsReply{Type: "reply", ChatResult: res})
}

func (h *Handler) writeFrame(ctx context.Context, ws *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to encode websocket frame", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err)
	}
}
