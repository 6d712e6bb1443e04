// Package agent implements the study-abroad conversation orchestrator and its
// HTTP and WebSocket transports.
package agent

import (
	"errors"
	"time"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

var (
	// ErrValidation marks a request rejected before any session mutation.
	ErrValidation = errors.New("validation failed")
	// ErrSessionNotFound is returned when the user has no session.
	ErrSessionNotFound = errors.New("session not found")
)

// History paging bounds.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// ChatRequest is one inbound user turn.
type ChatRequest struct {
	UserID  string `json:"-"`
	Message string `json:"message"`
	// Auth is the verified identity context; the orchestrator does not inspect it.
	Auth map[string]any `json:"-"`
	// Channel names the transport for conversation logs.
	Channel string `json:"-"`
}

// ChatResult is the outcome of a handled turn.
type ChatResult struct {
	Reply     string                 `json:"reply"`
	Phase     domain.Phase           `json:"phase"`
	SessionID string                 `json:"session_id"`
	Timestamp time.Time              `json:"timestamp"`
	Session   domain.SessionSnapshot `json:"session"`
}

// History is one page of the message log, oldest first.
type History struct {
	Messages []domain.Message `json:"messages"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
	HasMore  bool             `json:"has_more"`
}

// DocumentStatusRequest is the body of a document status update.
type DocumentStatusRequest struct {
	Status domain.DocumentStatus `json:"status"`
}

// EnsureDocumentsRequest is the body of an explicit checklist request.
type EnsureDocumentsRequest struct {
	Documents []string `json:"documents"`
}
