package store

import (
	"encoding/json"
	"fmt"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

// sessionBlobs holds the JSON-encoded collections of a session row.
type sessionBlobs struct {
	Profile   string
	Checklist string
	Messages  string
	Analytics string
}

func encodeSession(s *domain.Session) (sessionBlobs, error) {
	var b sessionBlobs
	parts := []struct {
		dst *string
		v   any
		col string
	}{
		{&b.Profile, s.Profile, "profile"},
		{&b.Checklist, nonNilDocs(s.LegalChecklist), "legal_checklist"},
		{&b.Messages, nonNilMessages(s.Messages), "messages"},
		{&b.Analytics, s.Analytics, "analytics"},
	}
	for _, p := range parts {
		raw, err := json.Marshal(p.v)
		if err != nil {
			return sessionBlobs{}, fmt.Errorf("encode %s: %w", p.col, err)
		}
		*p.dst = string(raw)
	}
	return b, nil
}

func decodeSession(s *domain.Session, b sessionBlobs) error {
	parts := []struct {
		raw string
		dst any
		col string
	}{
		{b.Profile, &s.Profile, "profile"},
		{b.Checklist, &s.LegalChecklist, "legal_checklist"},
		{b.Messages, &s.Messages, "messages"},
		{b.Analytics, &s.Analytics, "analytics"},
	}
	for _, p := range parts {
		if p.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(p.raw), p.dst); err != nil {
			return fmt.Errorf("decode %s: %w", p.col, err)
		}
	}
	if s.LegalChecklist == nil {
		s.LegalChecklist = []domain.Document{}
	}
	if s.Messages == nil {
		s.Messages = []domain.Message{}
	}
	if s.Analytics.EventCounts == nil {
		s.Analytics.EventCounts = map[string]int{}
	}
	if s.Analytics.PhaseTransitions == nil {
		s.Analytics.PhaseTransitions = []domain.PhaseTransition{}
	}
	return nil
}

func nonNilDocs(d []domain.Document) []domain.Document {
	if d == nil {
		return []domain.Document{}
	}
	return d
}

func nonNilMessages(m []domain.Message) []domain.Message {
	if m == nil {
		return []domain.Message{}
	}
	return m
}
