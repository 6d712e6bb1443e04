package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/duhoc-advisor/internal/checklist"
	"github.com/ashureev/duhoc-advisor/internal/domain"
	"github.com/ashureev/duhoc-advisor/internal/store"
)

func TestToolRegistryNames(t *testing.T) {
	r := NewToolRegistry(store.NewMemory(), checklist.RequiredUS)
	assert.Equal(t, []string{
		ToolEnsureDocuments,
		ToolGetPendingDocuments,
		ToolGetProgress,
		ToolGetUserInfo,
		ToolSelectSchool,
	}, r.Names())

	_, err := r.Call(context.Background(), "create_document", ToolCall{})
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestEnsureDocumentsToolIsIdempotent(t *testing.T) {
	r := NewToolRegistry(store.NewMemory(), []string{"Hộ chiếu", "Form I-20"})
	sess := domain.NewSession("u1", fixedNow)
	call := ToolCall{Session: sess, Now: fixedNow}

	res, err := r.Call(context.Background(), ToolEnsureDocuments, call)
	require.NoError(t, err)
	assert.Equal(t, "Đã thêm 2 giấy tờ vào danh sách: Hộ chiếu, Form I-20.", res.Note)

	res, err = r.Call(context.Background(), ToolEnsureDocuments, call)
	require.NoError(t, err)
	assert.Equal(t, "Danh sách giấy tờ đã đầy đủ (2 mục).", res.Note)
	assert.Len(t, sess.LegalChecklist, 2)
}

func TestProgressTools(t *testing.T) {
	r := NewToolRegistry(store.NewMemory(), nil)
	sess := domain.NewSession("u1", fixedNow)
	checklist.Ensure(sess, []string{"Hộ chiếu", "Bảng điểm"}, fixedNow)
	require.NoError(t, checklist.UpdateStatus(sess, "Hộ chiếu", domain.DocumentCompleted))

	res, err := r.Call(context.Background(), ToolGetProgress, ToolCall{Session: sess})
	require.NoError(t, err)
	assert.Equal(t, "Đã hoàn thành 1/2 giấy tờ (50%).", res.Note)

	res, err = r.Call(context.Background(), ToolGetPendingDocuments, ToolCall{Session: sess})
	require.NoError(t, err)
	assert.Equal(t, "Giấy tờ còn thiếu: Bảng điểm.", res.Note)

	require.NoError(t, checklist.UpdateStatus(sess, "Bảng điểm", domain.DocumentCompleted))
	res, err = r.Call(context.Background(), ToolGetPendingDocuments, ToolCall{Session: sess})
	require.NoError(t, err)
	assert.Equal(t, "Không còn giấy tờ nào chưa hoàn thành.", res.Note)
}

func TestGetUserInfoTool(t *testing.T) {
	repo := store.NewMemory()
	r := NewToolRegistry(repo, nil)
	sess := domain.NewSession("u1", fixedNow)

	res, err := r.Call(context.Background(), ToolGetUserInfo, ToolCall{Session: sess})
	require.NoError(t, err)
	assert.Empty(t, res.Note)

	require.NoError(t, repo.UpsertUser(context.Background(), &domain.User{UserID: "u1", Phone: "0901234567", CreatedAt: time.Now()}))
	sess.Profile.Phone = "0912000000"
	res, err = r.Call(context.Background(), ToolGetUserInfo, ToolCall{Session: sess})
	require.NoError(t, err)
	assert.Empty(t, res.Note)
	assert.Equal(t, "0912000000", sess.Profile.Phone)
}

func TestSelectSchoolTool(t *testing.T) {
	r := NewToolRegistry(store.NewMemory(), nil)

	tests := []struct {
		name       string
		msg        string
		dream      string
		wantSchool string
		wantMajor  string
	}{
		{"school only", "Tôi chọn Stanford", "", "Stanford University", ""},
		{"dream major fallback", "Em quyết định chọn Harvard", "Kinh tế", "Harvard University", "Kinh tế"},
		{"named major", "Tôi chọn MIT ngành computer science", "Kinh tế", "MIT", "Khoa học máy tính"},
		{"no school", "Tôi chọn trường này", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := domain.NewSession("u1", fixedNow)
			sess.Profile.DreamMajor = tt.dream
			res, err := r.Call(context.Background(), ToolSelectSchool, ToolCall{Session: sess, Message: tt.msg})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSchool, sess.SelectedSchool)
			assert.Equal(t, tt.wantMajor, sess.SelectedMajor)
			assert.Equal(t, tt.wantSchool == "", res.Note == "")
		})
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("u1")
	assert.Equal(t, 1, k.len())
	unlock()
	assert.Equal(t, 0, k.len())
}
