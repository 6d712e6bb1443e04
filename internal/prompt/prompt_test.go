package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

var now = time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)

func TestBuildEmbedsSessionState(t *testing.T) {
	sess := domain.NewSession("user-42", now)
	sess.Phase = domain.PhaseLegalChecklist
	sess.SelectedSchool = "Stanford University"
	sess.Profile.AcademicResult = "GPA 3.8"
	sess.Profile.PassportNumber = "C1234567"
	sess.LegalChecklist = []domain.Document{domain.NewDocument("Hộ chiếu", now)}

	out, err := NewBuilder().Build(sess, "ensure_documents: đã thêm 1 giấy tờ")
	require.NoError(t, err)

	assert.Contains(t, out, "Mã người dùng: user-42")
	assert.Contains(t, out, "Giai đoạn hiện tại: legal_checklist")
	assert.Contains(t, out, "Trường đã chọn: Stanford University")
	assert.Contains(t, out, "Ngành đã chọn: "+NotSelected)
	assert.Contains(t, out, "- Kết quả học tập: GPA 3.8")
	assert.Contains(t, out, "- Hộ chiếu: *****567")
	assert.NotContains(t, out, "C1234567")
	assert.Contains(t, out, "- Hộ chiếu: pending")
	assert.Contains(t, out, "- ensure_documents: đã thêm 1 giấy tờ")
	assert.Contains(t, out, "ensure_documents")
	assert.Contains(t, out, "create_document")
	assert.NotContains(t, out, "Hội thoại gần đây")
}

func TestBuildIsDeterministic(t *testing.T) {
	sess := domain.NewSession("u1", now)
	sess.Profile.Gender = "Nữ"
	b := NewBuilder()

	first, err := b.Build(sess)
	require.NoError(t, err)
	second, err := b.Build(sess)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildWithHistoryKeepsLastMessages(t *testing.T) {
	sess := domain.NewSession("u1", now)
	for i := 0; i < 7; i++ {
		sess.AppendMessage(domain.RoleUser, "tin nhắn\nsố "+string(rune('A'+i)), now, nil)
	}

	out, err := NewBuilder().BuildWithHistory(sess, DefaultHistory)
	require.NoError(t, err)

	assert.Contains(t, out, "Hội thoại gần đây")
	assert.NotContains(t, out, "số A")
	assert.NotContains(t, out, "số B")
	assert.Contains(t, out, "user: tin nhắn số C")
	assert.Contains(t, out, "user: tin nhắn số G")
	assert.Equal(t, 5, strings.Count(out, "user: tin nhắn"))
}

func TestProfileLinesOrder(t *testing.T) {
	budget := 50000.0
	yes := true
	lines := ProfileLines(domain.Profile{
		Email:            "a@example.com",
		FullName:         "An",
		EstimatedBudget:  &budget,
		NeedsScholarship: &yes,
	})
	assert.Equal(t, []string{
		"Họ tên: An",
		"Email: a@example.com",
		"Ngân sách: 50000",
		"Cần học bổng: Có",
	}, lines)
}
