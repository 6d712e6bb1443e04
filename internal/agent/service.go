package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/ashureev/duhoc-advisor/internal/analytics"
	"github.com/ashureev/duhoc-advisor/internal/checklist"
	"github.com/ashureev/duhoc-advisor/internal/config"
	"github.com/ashureev/duhoc-advisor/internal/domain"
	"github.com/ashureev/duhoc-advisor/internal/extract"
	"github.com/ashureev/duhoc-advisor/internal/llm"
	"github.com/ashureev/duhoc-advisor/internal/phase"
	"github.com/ashureev/duhoc-advisor/internal/prompt"
	"github.com/ashureev/duhoc-advisor/internal/store"
)

const saveTimeout = 10 * time.Second

// Words that mark an explicit school choice.
var selectionKeywords = []string{"chọn", "quyết định", "trường này", "đăng ký", "nộp đơn"}

// Service runs conversation turns against the session store and the LLM.
type Service struct {
	repo      store.Repository
	model     llm.LLM
	cfg       config.AgentConfig
	extractor *extract.Engine
	machine   *phase.Machine
	prompts   *prompt.Builder
	tools     *ToolRegistry
	recorder  *analytics.Recorder
	convLog   ConversationLogger
	required  []string
	locks     *keyedMutex
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithRecorder sets the analytics recorder.
func WithRecorder(r *analytics.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithConversationLogger sets the conversation logger.
func WithConversationLogger(l ConversationLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.convLog = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRequiredDocuments sets the checklist created in legal_checklist.
func WithRequiredDocuments(names []string) Option {
	return func(s *Service) { s.required = names }
}

// WithPhaseMachine replaces the default phase machine.
func WithPhaseMachine(m *phase.Machine) Option {
	return func(s *Service) { s.machine = m }
}

// NewService creates the orchestrator. Zero-valued limits in cfg fall back to
// the built-in defaults.
func NewService(repo store.Repository, model llm.LLM, cfg config.AgentConfig, opts ...Option) *Service {
	defaults := config.Defaults().Agent
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = defaults.MaxMessageLength
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = prompt.DefaultHistory
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.FallbackReply == "" {
		cfg.FallbackReply = config.DefaultFallbackReply
	}

	s := &Service{
		repo:     repo,
		model:    model,
		cfg:      cfg,
		machine:  phase.New(),
		prompts:  prompt.NewBuilder(),
		recorder: analytics.NewRecorder(cfg.AnalyticsEnabled, nil),
		convLog:  noopConversationLogger{},
		required: checklist.RequiredUS,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.extractor = extract.NewWithClock(s.now)
	s.tools = NewToolRegistry(repo, s.required)
	return s
}

// Tools exposes the tool registry.
func (s *Service) Tools() *ToolRegistry { return s.tools }

// ModelName returns the LLM provider name.
func (s *Service) ModelName() string { return s.model.Name() }

func (s *Service) validate(userID, message string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if n := utf8.RuneCountInString(message); n > s.cfg.MaxMessageLength {
		return fmt.Errorf("%w: message has %d characters, limit is %d", ErrValidation, n, s.cfg.MaxMessageLength)
	}
	return nil
}

// Handle runs one conversation turn. Validation errors wrap ErrValidation and
// leave the session untouched. LLM failures are replaced by the fallback
// reply. Store failures are returned.
func (s *Service) Handle(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	userID := strings.TrimSpace(req.UserID)
	message := req.Message
	if err := s.validate(userID, message); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	sess, err := s.repo.GetOrCreateSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	received := s.now()
	sess.AppendMessage(domain.RoleUser, message, received, nil)
	s.logEvent(req, sess, "inbound", "chat_user_message", message, nil)

	filled := s.extractor.Apply(message, &sess.Profile)
	prev := sess.Phase

	turn := &turnTools{used: []string{}}
	s.runTool(ctx, turn, ToolGetUserInfo, sess, message, received)

	if tr, moved := s.machine.Apply(sess, message, received); moved {
		s.recorder.Metrics().ObserveTransition(tr)
		slog.Info("Phase transition",
			"user_id", userID,
			"session_id", sess.ID,
			"from", tr.From,
			"to", tr.To,
		)
	}
	s.runPhaseTools(ctx, turn, sess, prev, message, received)

	reply := s.reply(ctx, sess, message, turn.notes)

	repliedAt := s.now()
	sess.AppendMessage(domain.RoleAgent, reply, repliedAt, &domain.MessageMetadata{
		Phase:       sess.Phase,
		ToolsUsed:   turn.used,
		ActionTaken: turn.action,
	})
	s.recorder.Record(sess, "message")
	sess.RecomputeDerivedFields(repliedAt)

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := s.repo.SaveSession(saveCtx, sess); err != nil {
		slog.Error("Failed to save session", "user_id", userID, "session_id", sess.ID, "error", err)
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.recorder.Metrics().ObserveTurn(sess.Phase)
	s.logEvent(req, sess, "outbound", "chat_agent_message", reply, map[string]any{
		"tools_used":    turn.used,
		"action_taken":  turn.action,
		"filled_fields": filled,
	})
	slog.Info("Chat turn handled",
		"user_id", userID,
		"session_id", sess.ID,
		"phase", sess.Phase,
		"filled_fields", len(filled),
		"tools_used", len(turn.used),
	)

	return &ChatResult{
		Reply:     reply,
		Phase:     sess.Phase,
		SessionID: sess.ID,
		Timestamp: repliedAt,
		Session:   sess.Snapshot(),
	}, nil
}

// turnTools collects the tool outcomes of one turn.
type turnTools struct {
	used   []string
	notes  []string
	action string
}

func (s *Service) runTool(ctx context.Context, turn *turnTools, name string, sess *domain.Session, message string, now time.Time) {
	res, err := s.tools.Call(ctx, name, ToolCall{Session: sess, Message: message, Now: now})
	if err != nil {
		slog.Warn("Tool failed", "tool", name, "user_id", sess.UserID, "error", err)
		return
	}
	if res.Note == "" {
		return
	}
	turn.used = append(turn.used, name)
	turn.notes = append(turn.notes, res.Note)
	if turn.action == "" && name != ToolGetUserInfo {
		turn.action = name
	}
}

// runPhaseTools runs the tools owned by the current phase. A school choice is
// recorded while leaving or staying in select_school.
func (s *Service) runPhaseTools(ctx context.Context, turn *turnTools, sess *domain.Session, prev domain.Phase, message string, now time.Time) {
	choosing := prev == domain.PhaseSelectSchool || sess.Phase == domain.PhaseSelectSchool
	if choosing && containsAny(message, selectionKeywords) {
		s.runTool(ctx, turn, ToolSelectSchool, sess, message, now)
	}

	switch sess.Phase {
	case domain.PhaseLegalChecklist:
		s.runTool(ctx, turn, ToolEnsureDocuments, sess, message, now)
	case domain.PhaseProgressTracking:
		s.runTool(ctx, turn, ToolGetProgress, sess, message, now)
		s.runTool(ctx, turn, ToolGetPendingDocuments, sess, message, now)
	}
}

// reply builds the prompt from the mutated session and asks the LLM. Any
// failure yields the fallback reply.
func (s *Service) reply(ctx context.Context, sess *domain.Session, message string, notes []string) string {
	systemPrompt, err := s.prompts.BuildWithHistory(sess, s.cfg.HistoryWindow, notes...)
	if err != nil {
		slog.Error("Failed to build prompt", "user_id", sess.UserID, "error", err)
		return s.cfg.FallbackReply
	}

	llmCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.model.Complete(llmCtx, llm.Request{
		SystemPrompt: systemPrompt,
		UserMessage:  message,
		Metadata: map[string]string{
			"user_id":    sess.UserID,
			"session_id": sess.ID,
			"phase":      string(sess.Phase),
		},
	})
	reply = strings.TrimSpace(reply)
	if err == nil && reply == "" {
		err = llm.ErrEmptyReply
	}
	s.recorder.Metrics().ObserveCompletion(s.model.Name(), time.Since(start), err)
	if err != nil {
		slog.Warn("LLM completion failed, using fallback reply",
			"user_id", sess.UserID,
			"provider", s.model.Name(),
			"error", err,
		)
		return s.cfg.FallbackReply
	}
	return reply
}

func (s *Service) logEvent(req ChatRequest, sess *domain.Session, direction, eventType, content string, meta map[string]any) {
	channel := req.Channel
	if channel == "" {
		channel = "chat_http"
	}
	s.convLog.Log(ConversationLogEvent{
		Timestamp:  s.now().UTC().Format(time.RFC3339Nano),
		UserID:     sess.UserID,
		SessionID:  sess.ID,
		Channel:    channel,
		Direction:  direction,
		EventType:  eventType,
		Phase:      string(sess.Phase),
		ContentRaw: content,
		Content:    cleanForReadability(content),
		Meta:       meta,
	})
}

// GetSession returns the read view of the user's session.
func (s *Service) GetSession(ctx context.Context, userID string) (*domain.SessionSnapshot, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	sess, err := s.repo.GetSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	snap := sess.Snapshot()
	return &snap, nil
}

// ResetSession deletes the user's session. The next turn starts from intro.
func (s *Service) ResetSession(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.repo.DeleteSession(ctx, userID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	slog.Info("Session reset", "user_id", userID)
	return nil
}

// CompleteSession marks the user's session completed, creating it if needed.
func (s *Service) CompleteSession(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.repo.MarkCompleted(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	slog.Info("Session completed", "user_id", userID)
	return nil
}

// GetHistory returns one page of the message log, oldest first. limit
// defaults to DefaultHistoryLimit and is capped at MaxHistoryLimit.
func (s *Service) GetHistory(ctx context.Context, userID string, limit, offset int) (*History, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)
	offset = max(offset, 0)

	h := &History{Messages: []domain.Message{}, Limit: limit, Offset: offset}
	sess, err := s.repo.GetSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return h, nil
	}

	h.Total = len(sess.Messages)
	if offset < h.Total {
		h.Messages = sess.Messages[offset:min(offset+limit, h.Total)]
	}
	h.HasMore = offset+len(h.Messages) < h.Total
	return h, nil
}

// UpdateDocumentStatus sets the status of one checklist document.
func (s *Service) UpdateDocumentStatus(ctx context.Context, userID, name string, status domain.DocumentStatus) (*domain.Document, error) {
	if userID == "" || strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: user id and document name are required", ErrValidation)
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	sess, err := s.repo.GetSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if err := checklist.UpdateStatus(sess, name, status); err != nil {
		return nil, err
	}
	sess.RecomputeDerivedFields(s.now())
	if err := s.repo.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	doc := sess.LegalChecklist[sess.FindDocument(name)]
	slog.Info("Document status updated", "user_id", userID, "document", doc.Name, "status", doc.Status)
	return &doc, nil
}

// EnsureDocuments adds the missing names to the checklist and returns the
// names that were added. An empty list means the default required list.
func (s *Service) EnsureDocuments(ctx context.Context, userID string, names []string) ([]string, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if len(names) == 0 {
		names = s.required
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	sess, err := s.repo.GetOrCreateSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	now := s.now()
	added := checklist.Ensure(sess, names, now)
	if len(added) == 0 {
		return []string{}, nil
	}
	sess.RecomputeDerivedFields(now)
	if err := s.repo.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return added, nil
}

// GetProgress reports checklist completion. A missing session has no progress.
func (s *Service) GetProgress(ctx context.Context, userID string) (checklist.Progress, error) {
	sess, err := s.loadOptional(ctx, userID)
	if err != nil || sess == nil {
		return checklist.Progress{}, err
	}
	return checklist.ProgressOf(sess), nil
}

// GetPendingDocuments lists checklist documents that are not completed.
func (s *Service) GetPendingDocuments(ctx context.Context, userID string) ([]domain.Document, error) {
	sess, err := s.loadOptional(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return []domain.Document{}, nil
	}
	return checklist.Pending(sess), nil
}

func (s *Service) loadOptional(ctx context.Context, userID string) (*domain.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	sess, err := s.repo.GetSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

func containsAny(message string, words []string) bool {
	lower := strings.ToLower(norm.NFC.String(message))
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
