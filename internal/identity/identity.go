// Package identity resolves the user behind a request: a verified bearer
// token when JWT auth is configured, otherwise an anonymous per-device cookie.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ashureev/duhoc-advisor/internal/domain"
	"github.com/ashureev/duhoc-advisor/internal/store"
)

const (
	AnonCookieName        = "duhoc_anon_id"
	SessionHeaderName     = "X-Advisor-Session-ID"
	DefaultSessionIDValue = "default"
	anonCookieMaxAge      = 30 * 24 * time.Hour
)

type contextKey int

const (
	userIDKey contextKey = iota
	sessionIDKey
	claimsKey
)

var (
	// ErrInvalidToken is returned for a bearer token that fails verification.
	ErrInvalidToken = errors.New("invalid bearer token")

	anonIDPattern    = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	subjectPattern   = regexp.MustCompile(`^[A-Za-z0-9._:@|-]{1,128}$`)
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// Options configures the identity middleware.
type Options struct {
	// JWTSecret enables HS256 bearer tokens. Empty means anonymous cookies only.
	JWTSecret string
	IsDev     bool
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the tab session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return DefaultSessionIDValue
}

// ClaimsFromContext returns the verified token claims, or nil for anonymous users.
func ClaimsFromContext(ctx context.Context) map[string]any {
	if v, ok := ctx.Value(claimsKey).(map[string]any); ok {
		return v
	}
	return nil
}

// WithUser returns ctx carrying userID and claims.
func WithUser(ctx context.Context, userID string, claims map[string]any) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	if claims != nil {
		ctx = context.WithValue(ctx, claimsKey, claims)
	}
	return ctx
}

func generateAnonID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !sessionIDPattern.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}

// ParseToken verifies an HS256 token and returns its subject and claims.
func ParseToken(raw string, secret []byte) (string, map[string]any, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", nil, fmt.Errorf("%w: invalid claims type", ErrInvalidToken)
	}
	sub, err := claims.GetSubject()
	if err != nil || !subjectPattern.MatchString(sub) {
		return "", nil, fmt.Errorf("%w: missing or malformed subject", ErrInvalidToken)
	}

	out := make(map[string]any, len(claims))
	maps.Copy(out, claims)
	return sub, out, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func claimString(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// ensureUser creates the user record on first sight. Token claims seed the
// name and contact fields used for profile backfill.
func ensureUser(ctx context.Context, repo store.Repository, userID string, claims map[string]any) error {
	user, err := repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user != nil {
		return nil
	}

	now := time.Now()
	return repo.UpsertUser(ctx, &domain.User{
		UserID:     userID,
		FullName:   claimString(claims, "name"),
		Email:      claimString(claims, "email"),
		Phone:      claimString(claims, "phone_number"),
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func setAnonCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func getOrCreateAnonID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(AnonCookieName); err == nil && isValidAnonID(c.Value) {
		setAnonCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateAnonID()
	if err != nil {
		return "", err
	}
	setAnonCookie(w, id, isDev)
	return id, nil
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get("session_id")
	}
	return sanitizeSessionID(sid)
}

// Middleware injects the request identity and tab session ID.
func Middleware(repo store.Repository, opts Options) func(http.Handler) http.Handler {
	secret := []byte(opts.JWTSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				userID string
				claims map[string]any
				err    error
			)

			if raw := bearerToken(r); raw != "" && len(secret) > 0 {
				userID, claims, err = ParseToken(raw, secret)
				if err != nil {
					slog.Debug("Rejected bearer token", "error", err, "ip", IPFromRequest(r))
					http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
					return
				}
			} else {
				userID, err = getOrCreateAnonID(w, r, opts.IsDev)
				if err != nil {
					http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
					return
				}
			}

			if err := ensureUser(r.Context(), repo, userID, claims); err != nil {
				slog.Error("Failed to initialize user", "error", err, "user_id", userID)
				http.Error(w, `{"error":"failed to initialize user"}`, http.StatusInternalServerError)
				return
			}

			ctx := WithUser(r.Context(), userID, claims)
			ctx = context.WithValue(ctx, sessionIDKey, sessionIDFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
