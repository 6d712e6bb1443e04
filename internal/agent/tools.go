package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ashureev/duhoc-advisor/internal/checklist"
	"github.com/ashureev/duhoc-advisor/internal/domain"
	"github.com/ashureev/duhoc-advisor/internal/extract"
	"github.com/ashureev/duhoc-advisor/internal/prompt"
	"github.com/ashureev/duhoc-advisor/internal/store"
)

// Tool names.
const (
	ToolEnsureDocuments     = "ensure_documents"
	ToolGetProgress         = "get_progress"
	ToolGetPendingDocuments = "get_pending_documents"
	ToolGetUserInfo         = "get_user_info"
	ToolSelectSchool        = "select_school"
)

// ErrUnknownTool is returned when no handler is registered under a name.
var ErrUnknownTool = errors.New("unknown tool")

// ToolCall is the input of one tool invocation.
type ToolCall struct {
	Session *domain.Session
	Message string
	Now     time.Time
}

// ToolResult is what a tool reports back. Note is embedded in the prompt.
type ToolResult struct {
	Note string
	Data any
}

// ToolFunc handles one tool. Tools mutate only the session they are given.
type ToolFunc func(ctx context.Context, call ToolCall) (ToolResult, error)

// ToolRegistry maps tool names to handlers.
type ToolRegistry struct {
	tools map[string]ToolFunc
}

// NewToolRegistry returns a registry holding the built-in tools. required is
// the document list used by ensure_documents.
func NewToolRegistry(repo store.Repository, required []string) *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]ToolFunc)}
	r.Register(ToolEnsureDocuments, ensureDocumentsTool(required))
	r.Register(ToolGetProgress, getProgressTool)
	r.Register(ToolGetPendingDocuments, getPendingDocumentsTool)
	r.Register(ToolGetUserInfo, getUserInfoTool(repo))
	r.Register(ToolSelectSchool, selectSchoolTool)
	return r
}

// Register adds or replaces a tool.
func (r *ToolRegistry) Register(name string, fn ToolFunc) {
	r.tools[name] = fn
}

// Names lists registered tools in sorted order.
func (r *ToolRegistry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Call runs the named tool.
func (r *ToolRegistry) Call(ctx context.Context, name string, call ToolCall) (ToolResult, error) {
	fn, ok := r.tools[name]
	if !ok {
		return ToolResult{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return fn(ctx, call)
}

func ensureDocumentsTool(required []string) ToolFunc {
	return func(_ context.Context, call ToolCall) (ToolResult, error) {
		added := checklist.Ensure(call.Session, required, call.Now)
		note := fmt.Sprintf("Danh sách giấy tờ đã đầy đủ (%d mục).", len(call.Session.LegalChecklist))
		if len(added) > 0 {
			note = fmt.Sprintf("Đã thêm %d giấy tờ vào danh sách: %s.", len(added), strings.Join(added, ", "))
		}
		return ToolResult{Note: note, Data: added}, nil
	}
}

func getProgressTool(_ context.Context, call ToolCall) (ToolResult, error) {
	p := checklist.ProgressOf(call.Session)
	return ToolResult{
		Note: fmt.Sprintf("Đã hoàn thành %d/%d giấy tờ (%d%%).", p.Completed, p.Total, p.Percentage),
		Data: p,
	}, nil
}

func getPendingDocumentsTool(_ context.Context, call ToolCall) (ToolResult, error) {
	pending := checklist.Pending(call.Session)
	if len(pending) == 0 {
		return ToolResult{Note: "Không còn giấy tờ nào chưa hoàn thành.", Data: pending}, nil
	}
	names := make([]string, len(pending))
	for i, d := range pending {
		names[i] = d.Name
	}
	return ToolResult{Note: "Giấy tờ còn thiếu: " + strings.Join(names, ", ") + ".", Data: pending}, nil
}

func getUserInfoTool(repo store.Repository) ToolFunc {
	return func(ctx context.Context, call ToolCall) (ToolResult, error) {
		user, err := repo.GetUser(ctx, call.Session.UserID)
		if err != nil {
			return ToolResult{}, fmt.Errorf("get user: %w", err)
		}
		if user == nil {
			return ToolResult{}, nil
		}
		filled := call.Session.Profile.Merge(user.ProfileBackfill())
		if len(filled) == 0 {
			return ToolResult{Data: filled}, nil
		}
		return ToolResult{
			Note: "Thông tin tài khoản: " + strings.Join(prompt.ProfileLines(user.ProfileBackfill()), "; "),
			Data: filled,
		}, nil
	}
}

// selectSchoolTool records the school named in the message, and the major
// when one is named too. Without a named major the dream major is used.
func selectSchoolTool(_ context.Context, call ToolCall) (ToolResult, error) {
	school, ok := extract.MatchSchool(call.Message)
	if !ok {
		return ToolResult{}, nil
	}
	sess := call.Session
	sess.SelectedSchool = school.Name
	if major := extract.MatchMajor(call.Message); major != "" {
		sess.SelectedMajor = major
	} else if sess.SelectedMajor == "" {
		sess.SelectedMajor = sess.Profile.DreamMajor
	}

	note := "Người dùng đã chọn trường " + school.Name + " (" + school.Country + ")"
	if sess.SelectedMajor != "" {
		note += ", ngành " + sess.SelectedMajor
	}
	return ToolResult{Note: note + ".", Data: school}, nil
}
