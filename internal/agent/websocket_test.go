package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/duhoc-advisor/internal/config"
	"github.com/ashureev/duhoc-advisor/internal/domain"
)

func dialChat(t *testing.T, router http.Handler, user string) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(router)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{testUserHeader: []string{user}},
	})
	require.NoError(t, err)
	if resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, func() {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		srv.Close()
	}
}

func exchange(t *testing.T, conn *websocket.Conn, frame string) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(frame)))
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestWebSocketPingAndChat(t *testing.T) {
	router, h := newTestRouter(t, nil)
	conn, done := dialChat(t, router, "u1")
	defer done()

	assert.Equal(t, "pong", exchange(t, conn, `{"type":"ping"}`)["type"])

	reply := exchange(t, conn, `{"type":"message","content":"Tôi muốn du học"}`)
	assert.Equal(t, "reply", reply["type"])
	assert.Equal(t, "Trả lời: Tôi muốn du học", reply["reply"])
	assert.Equal(t, string(domain.PhaseCollectInfo), reply["phase"])
	assert.NotEmpty(t, reply["session_id"])

	assert.Equal(t, 1, h.Connections().Count())
}

func TestWebSocketErrorFrames(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	conn, done := dialChat(t, router, "u1")
	defer done()

	tests := []struct {
		frame string
		want  string
	}{
		{`not json`, "invalid message"},
		{`{"type":"shout"}`, "unknown message type"},
		{`{"type":"message","content":""}`, "validation failed: message is required"},
	}
	for _, tt := range tests {
		out := exchange(t, conn, tt.frame)
		assert.Equal(t, "error", out["type"], tt.frame)
		assert.Equal(t, tt.want, out["error"], tt.frame)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	cfg := config.Defaults()
	cfg.RateLimit.Requests = 1
	cfg.RateLimit.Window = time.Minute
	router, _ := newTestRouter(t, cfg)
	conn, done := dialChat(t, router, "u1")
	defer done()

	assert.Equal(t, "reply", exchange(t, conn, `{"type":"message","content":"Xin chào"}`)["type"])
	out := exchange(t, conn, `{"type":"message","content":"Xin chào"}`)
	assert.Equal(t, "error", out["type"])
	assert.Equal(t, "rate limit exceeded", out["error"])
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws/chat")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	h := &Handler{allowedOrigins: []string{"https://duhoc.example.com"}}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://duhoc.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, h.checkOrigin(req), tt.origin)
	}

	h.isDev = true
	req := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	assert.True(t, h.checkOrigin(req))
}
