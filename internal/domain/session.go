package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Phase is one discrete stage of the guided consultation.
type Phase string

const (
	PhaseIntro            Phase = "intro"
	PhaseCollectInfo      Phase = "collect_info"
	PhaseSelectSchool     Phase = "select_school"
	PhaseLegalChecklist   Phase = "legal_checklist"
	PhaseProgressTracking Phase = "progress_tracking"
	PhaseLifePlanning     Phase = "life_planning"
)

// Phases lists every valid phase in journey order.
var Phases = []Phase{
	PhaseIntro,
	PhaseCollectInfo,
	PhaseSelectSchool,
	PhaseLegalChecklist,
	PhaseProgressTracking,
	PhaseLifePlanning,
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	for _, known := range Phases {
		if p == known {
			return true
		}
	}
	return false
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// MessageMetadata is attached to agent messages.
type MessageMetadata struct {
	Phase       Phase    `json:"phase"`
	ToolsUsed   []string `json:"tools_used"`
	ActionTaken string   `json:"action_taken,omitempty"`
}

// Message is one entry in the append-only conversation log.
type Message struct {
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// PhaseTransition records a phase change.
type PhaseTransition struct {
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// Analytics holds per-session counters.
type Analytics struct {
	TotalMessages int            `json:"totalMessages"`
	EventCounts   map[string]int `json:"eventCounts"`
	// AverageResponseTime is in milliseconds.
	AverageResponseTime float64           `json:"averageResponseTime"`
	PhaseTransitions    []PhaseTransition `json:"phaseTransitions"`
}

// LastTransition returns the most recent transition, if any.
func (a *Analytics) LastTransition() (PhaseTransition, bool) {
	if len(a.PhaseTransitions) == 0 {
		return PhaseTransition{}, false
	}
	return a.PhaseTransitions[len(a.PhaseTransitions)-1], true
}

// Session is the full persisted state for one user's conversation.
type Session struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Phase          Phase      `json:"phase"`
	SelectedSchool string     `json:"selected_school,omitempty"`
	SelectedMajor  string     `json:"selected_major,omitempty"`
	Profile        Profile    `json:"profile"`
	LegalChecklist []Document `json:"legal_checklist"`
	Messages       []Message  `json:"messages"`
	IsCompleted    bool       `json:"is_completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Analytics      Analytics  `json:"analytics"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewSession returns a fresh session in the intro phase.
func NewSession(userID string, now time.Time) *Session {
	return &Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Phase:          PhaseIntro,
		LegalChecklist: []Document{},
		Messages:       []Message{},
		Analytics: Analytics{
			EventCounts:      map[string]int{},
			PhaseTransitions: []PhaseTransition{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendMessage adds a message to the log.
func (s *Session) AppendMessage(role Role, content string, ts time.Time, meta *MessageMetadata) {
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: ts,
		Metadata:  meta,
	})
}

// RecentMessages returns the last n messages.
func (s *Session) RecentMessages(n int) []Message {
	if n <= 0 {
		return nil
	}
	if n >= len(s.Messages) {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// ProgressPercentage is the rounded share of completed checklist documents.
func (s *Session) ProgressPercentage() int {
	total := len(s.LegalChecklist)
	if total == 0 {
		return 0
	}
	completed := 0
	for _, d := range s.LegalChecklist {
		if d.Status == DocumentCompleted {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// SessionDuration returns CompletedAt - CreatedAt for completed sessions.
func (s *Session) SessionDuration() (time.Duration, bool) {
	if !s.IsCompleted || s.CompletedAt == nil {
		return 0, false
	}
	return s.CompletedAt.Sub(s.CreatedAt), true
}

// MarkCompleted flags the session as completed and moves it to progress tracking.
// No other field is touched.
func (s *Session) MarkCompleted(now time.Time) {
	s.IsCompleted = true
	s.CompletedAt = &now
	s.Phase = PhaseProgressTracking
}

// RecomputeDerivedFields refreshes stored values derived from the rest of the
// session. It must run immediately before the session is saved.
func (s *Session) RecomputeDerivedFields(now time.Time) {
	s.UpdatedAt = now
	s.Analytics.TotalMessages = len(s.Messages)
	if s.Analytics.EventCounts == nil {
		s.Analytics.EventCounts = map[string]int{}
	}
	for i := range s.LegalChecklist {
		d := &s.LegalChecklist[i]
		if d.Status != DocumentCompleted && d.Deadline != nil && now.After(*d.Deadline) {
			d.Status = DocumentExpired
		}
	}
}

// SessionSnapshot is the read view of a session returned to callers.
type SessionSnapshot struct {
	SessionID          string     `json:"session_id"`
	UserID             string     `json:"user_id"`
	Phase              Phase      `json:"phase"`
	SelectedSchool     string     `json:"selected_school,omitempty"`
	SelectedMajor      string     `json:"selected_major,omitempty"`
	Profile            Profile    `json:"profile"`
	LegalChecklist     []Document `json:"legal_checklist"`
	IsCompleted        bool       `json:"is_completed"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	ProgressPercentage int        `json:"progress_percentage"`
	SessionDurationMS  int64      `json:"session_duration_ms,omitempty"`
	MessageCount       int        `json:"message_count"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Snapshot returns the read view of s.
func (s *Session) Snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		SessionID:          s.ID,
		UserID:             s.UserID,
		Phase:              s.Phase,
		SelectedSchool:     s.SelectedSchool,
		SelectedMajor:      s.SelectedMajor,
		Profile:            s.Profile,
		LegalChecklist:     s.LegalChecklist,
		IsCompleted:        s.IsCompleted,
		CompletedAt:        s.CompletedAt,
		ProgressPercentage: s.ProgressPercentage(),
		MessageCount:       len(s.Messages),
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
	if d, ok := s.SessionDuration(); ok {
		snap.SessionDurationMS = d.Milliseconds()
	}
	return snap
}
