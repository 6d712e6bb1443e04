// Package phase implements the keyword-driven consultation state machine.
package phase

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

// Guard moves the conversation to To when the message contains any trigger.
type Guard struct {
	To       domain.Phase
	Triggers []string
}

func (g Guard) matches(msg string) bool {
	for _, t := range g.Triggers {
		if strings.Contains(msg, t) {
			return true
		}
	}
	return false
}

var lifeTriggers = []string{"sinh hoạt", "chỗ ở", "chi phí", "cuộc sống"}

// DefaultTable is the consultation journey. Guards are evaluated in order.
var DefaultTable = map[domain.Phase][]Guard{
	domain.PhaseIntro: {
		{To: domain.PhaseCollectInfo, Triggers: []string{"tôi muốn", "học", "du học"}},
	},
	domain.PhaseCollectInfo: {
		{To: domain.PhaseSelectSchool, Triggers: []string{"gợi ý trường", "gợi ý", "đại học phù hợp"}},
		{To: domain.PhaseLegalChecklist, Triggers: []string{"giấy tờ", "danh sách", "cần chuẩn bị"}},
		{To: domain.PhaseLifePlanning, Triggers: lifeTriggers},
	},
	domain.PhaseSelectSchool: {
		{To: domain.PhaseLegalChecklist, Triggers: []string{"chọn", "quyết định", "stanford", "trường này", "giấy tờ"}},
	},
	domain.PhaseLegalChecklist: {
		{To: domain.PhaseProgressTracking, Triggers: []string{"đã hoàn thành", "đã làm", "đã nộp", "đã xong"}},
		{To: domain.PhaseLifePlanning, Triggers: append(append([]string{}, lifeTriggers...), "kế hoạch")},
	},
	domain.PhaseProgressTracking: {
		{To: domain.PhaseLifePlanning, Triggers: append(append([]string{}, lifeTriggers...), "kế hoạch")},
	},
	domain.PhaseLifePlanning: {
		{To: domain.PhaseProgressTracking, Triggers: []string{"giấy tờ", "visa", "i-20"}},
	},
}

// Machine evaluates a guard table.
type Machine struct {
	table map[domain.Phase][]Guard
}

// New returns a machine over DefaultTable.
func New() *Machine {
	return &Machine{table: DefaultTable}
}

// NewWithTable returns a machine over a custom table.
func NewWithTable(table map[domain.Phase][]Guard) *Machine {
	return &Machine{table: table}
}

// Next returns the phase the message leads to from current. The bool is
// false when no guard fires, including for phases outside the table.
func (m *Machine) Next(current domain.Phase, message string) (domain.Phase, bool) {
	msg := strings.ToLower(norm.NFC.String(message))
	for _, g := range m.table[current] {
		if g.matches(msg) {
			return g.To, true
		}
	}
	return current, false
}

// Apply moves sess to the next phase for message. A transition entry is
// recorded only when its destination differs from the last recorded one.
// The returned transition is valid when the phase changed.
func (m *Machine) Apply(sess *domain.Session, message string, now time.Time) (domain.PhaseTransition, bool) {
	next, ok := m.Next(sess.Phase, message)
	if !ok || next == sess.Phase {
		return domain.PhaseTransition{}, false
	}

	tr := domain.PhaseTransition{From: sess.Phase, To: next, Timestamp: now}
	sess.Phase = next
	if last, found := sess.Analytics.LastTransition(); !found || last.To != next {
		sess.Analytics.PhaseTransitions = append(sess.Analytics.PhaseTransitions, tr)
	}
	return tr, true
}
