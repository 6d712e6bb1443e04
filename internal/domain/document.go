package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus is the state of a legal checklist entry.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentInProgress DocumentStatus = "in_progress"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentExpired    DocumentStatus = "expired"
)

// Valid reports whether s is a known status.
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentPending, DocumentInProgress, DocumentCompleted, DocumentExpired:
		return true
	}
	return false
}

// Document is one entry of the legal checklist.
type Document struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    DocumentStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	Deadline  *time.Time     `json:"deadline,omitempty"`
	Notes     string         `json:"notes,omitempty"`
}

// NewDocument returns a pending checklist entry.
func NewDocument(name string, now time.Time) Document {
	return Document{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    DocumentPending,
		CreatedAt: now,
	}
}

// FindDocument returns the index of the checklist entry with the given name,
// compared case-insensitively, or -1.
func (s *Session) FindDocument(name string) int {
	for i, d := range s.LegalChecklist {
		if strings.EqualFold(strings.TrimSpace(d.Name), strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}
