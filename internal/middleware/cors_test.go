package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveCORS(origins []string, method, origin string) *httptest.ResponseRecorder {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	req := httptest.NewRequest(method, "/api/chat", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	CORS(origins)(next).ServeHTTP(rec, req)
	return rec
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		wantCode    int
		wantOrigin  string
		wantCredits string
	}{
		{"explicit origin", []string{"http://localhost:3000"}, http.MethodPost, "http://localhost:3000", http.StatusTeapot, "http://localhost:3000", "true"},
		{"unknown origin", []string{"http://localhost:3000"}, http.MethodPost, "http://evil.test", http.StatusTeapot, "", ""},
		{"wildcard has no credentials", []string{"*"}, http.MethodGet, "http://any.test", http.StatusTeapot, "http://any.test", ""},
		{"preflight", []string{"http://localhost:3000"}, http.MethodOptions, "http://localhost:3000", http.StatusNoContent, "http://localhost:3000", "true"},
		{"no origin", []string{"*"}, http.MethodGet, "", http.StatusTeapot, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveCORS(tt.origins, tt.method, tt.origin)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredits, rec.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}

func TestCORSAllowsIdentityHeaders(t *testing.T) {
	rec := serveCORS([]string{"http://localhost:5173"}, http.MethodOptions, "http://localhost:5173")
	allowed := rec.Header().Get("Access-Control-Allow-Headers")
	assert.Contains(t, allowed, "Authorization")
	assert.Contains(t, allowed, "X-Advisor-Session-ID")
}
