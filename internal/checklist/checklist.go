// Package checklist manages the legal-document checklist stored on a session.
package checklist

import (
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

var (
	// ErrDocumentNotFound is returned when a named document is not on the checklist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidStatus is returned for a status outside the known set.
	ErrInvalidStatus = errors.New("invalid document status")
)

// RequiredUS is the default document list for a US student visa application.
var RequiredUS = []string{
	"Hộ chiếu",
	"Form I-20",
	"Đơn DS-160",
	"Biên lai phí SEVIS",
	"Lịch phỏng vấn visa",
	"Chứng minh tài chính",
	"Bảng điểm",
	"Chứng chỉ tiếng Anh",
	"Thư giới thiệu",
	"Bài luận cá nhân",
}

// Progress summarises checklist completion.
type Progress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"progress"`
}

// Ensure adds every name in required that is not already on the checklist.
// Existing entries keep their status. It returns the names that were added.
func Ensure(sess *domain.Session, required []string, now time.Time) []string {
	var added []string
	for _, name := range required {
		if sess.FindDocument(name) >= 0 {
			continue
		}
		sess.LegalChecklist = append(sess.LegalChecklist, domain.NewDocument(name, now))
		added = append(added, name)
	}
	return added
}

// UpdateStatus sets the status of the named document.
func UpdateStatus(sess *domain.Session, name string, status domain.DocumentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	i := sess.FindDocument(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrDocumentNotFound, name)
	}
	sess.LegalChecklist[i].Status = status
	return nil
}

// ProgressOf reports completion for the session checklist.
func ProgressOf(sess *domain.Session) Progress {
	p := Progress{Total: len(sess.LegalChecklist), Percentage: sess.ProgressPercentage()}
	for _, d := range sess.LegalChecklist {
		if d.Status == domain.DocumentCompleted {
			p.Completed++
		}
	}
	return p
}

// Pending returns the documents that are not completed, in checklist order.
func Pending(sess *domain.Session) []domain.Document {
	out := []domain.Document{}
	for _, d := range sess.LegalChecklist {
		if d.Status != domain.DocumentCompleted {
			out = append(out, d)
		}
	}
	return out
}
