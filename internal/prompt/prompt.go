// Package prompt renders the system prompt sent to the LLM for each turn.
package prompt

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

// NotSelected is shown for a school or major that has not been chosen.
const NotSelected = "Chưa chọn"

// DefaultHistory is the number of recent messages embedded by BuildWithHistory.
const DefaultHistory = 5

var phaseGuidance = map[domain.Phase]string{
	domain.PhaseIntro:            "Chào hỏi, giới thiệu dịch vụ tư vấn du học và hỏi người dùng muốn du học ở đâu.",
	domain.PhaseCollectInfo:      "Thu thập thông tin còn thiếu: học vấn, chứng chỉ ngoại ngữ, ngân sách, ngành học mong muốn, thời gian nhập học.",
	domain.PhaseSelectSchool:     "Gợi ý trường và ngành phù hợp với hồ sơ, giải thích ngắn gọn lý do.",
	domain.PhaseLegalChecklist:   "Liệt kê giấy tờ pháp lý cần chuẩn bị cho trường đã chọn và hạn nộp nếu có.",
	domain.PhaseProgressTracking: "Theo dõi tiến độ chuẩn bị giấy tờ, nhắc các mục còn thiếu.",
	domain.PhaseLifePlanning:     "Tư vấn cuộc sống du học: chỗ ở, chi phí sinh hoạt, bảo hiểm, việc làm thêm.",
}

const systemTemplate = `Bạn là chuyên viên tư vấn du học. Trả lời bằng tiếng Việt, ngắn gọn, thân thiện.

Mã người dùng: {{.UserID}}
Giai đoạn hiện tại: {{.Phase}}
Nhiệm vụ: {{.Guidance}}
Trường đã chọn: {{.School}}
Ngành đã chọn: {{.Major}}
{{- if .Profile}}

Thông tin đã biết:
{{- range .Profile}}
- {{.}}
{{- end}}
{{- end}}
{{- if .Checklist}}

Tiến độ giấy tờ: {{.Progress}}%
{{- range .Checklist}}
- {{.Name}}: {{.Status}}
{{- end}}
{{- end}}
{{- if .Notes}}

Kết quả công cụ:
{{- range .Notes}}
- {{.}}
{{- end}}
{{- end}}

Quy tắc dùng công cụ:
- Dùng ensure_documents để tạo danh sách giấy tờ; không dùng create_document vì sẽ tạo mục trùng lặp.
- Dùng get_progress và get_pending_documents trước khi báo cáo tiến độ.
- Không hỏi lại thông tin đã biết.
{{- if .History}}

Hội thoại gần đây:
{{- range .History}}
{{.}}
{{- end}}
{{- end}}
`

// Builder renders prompts from a session snapshot.
type Builder struct {
	tmpl *template.Template
}

// NewBuilder parses the system template.
func NewBuilder() *Builder {
	return &Builder{tmpl: template.Must(template.New("system").Parse(systemTemplate))}
}

type view struct {
	UserID    string
	Phase     domain.Phase
	Guidance  string
	School    string
	Major     string
	Profile   []string
	Checklist []domain.Document
	Progress  int
	Notes     []string
	History   []string
}

// Build renders the prompt for sess. Notes are tool results for this turn.
func (b *Builder) Build(sess *domain.Session, notes ...string) (string, error) {
	return b.render(sess, 0, notes)
}

// BuildWithHistory is Build plus the last n messages as "role: content" lines.
func (b *Builder) BuildWithHistory(sess *domain.Session, n int, notes ...string) (string, error) {
	return b.render(sess, n, notes)
}

func (b *Builder) render(sess *domain.Session, n int, notes []string) (string, error) {
	v := view{
		UserID:    sess.UserID,
		Phase:     sess.Phase,
		Guidance:  phaseGuidance[sess.Phase],
		School:    orNotSelected(sess.SelectedSchool),
		Major:     orNotSelected(sess.SelectedMajor),
		Profile:   ProfileLines(sess.Profile),
		Checklist: sess.LegalChecklist,
		Progress:  sess.ProgressPercentage(),
		Notes:     notes,
	}
	for _, m := range sess.RecentMessages(n) {
		v.History = append(v.History, string(m.Role)+": "+flatten(m.Content))
	}

	var sb strings.Builder
	if err := b.tmpl.Execute(&sb, v); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}

// ProfileLines lists the known profile fields as "label: value" lines in a
// fixed order. The passport number is masked.
func ProfileLines(p domain.Profile) []string {
	var out []string
	add := func(label, value string) {
		if value != "" {
			out = append(out, label+": "+value)
		}
	}

	add("Họ tên", p.FullName)
	add("Email", p.Email)
	add("Điện thoại", p.Phone)
	add("Giới tính", p.Gender)
	add("Ngày sinh", p.DateOfBirth)
	add("Hộ chiếu", maskPassport(p.PassportNumber))
	add("Quốc gia hiện tại", p.CurrentCountry)
	add("Trình độ hiện tại", p.CurrentEducationLevel)
	add("Kết quả học tập", p.AcademicResult)
	add("Bậc học mong muốn", p.DesiredEducationLevel)
	add("Mục tiêu nghề nghiệp", p.CareerGoal)
	add("Kinh nghiệm", p.ExtracurricularsAndExperience)
	if p.EstimatedBudget != nil {
		add("Ngân sách", strconv.FormatFloat(*p.EstimatedBudget, 'f', -1, 64))
	}
	add("Nguồn tài chính", p.FundingSource)
	if p.NeedsScholarship != nil {
		add("Cần học bổng", yesNo(*p.NeedsScholarship))
	}
	if c := p.Certificates.IELTS; c != nil {
		add("IELTS", strconv.FormatFloat(*c, 'f', -1, 64))
	}
	if c := p.Certificates.TOEFL; c != nil {
		add("TOEFL", strconv.Itoa(*c))
	}
	if c := p.Certificates.Duolingo; c != nil {
		add("Duolingo", strconv.Itoa(*c))
	}
	add("TestDaF", p.Certificates.TestDaF)
	add("Ngôn ngữ học", p.StudyLanguage)
	add("Thời gian nhập học", p.IntendedIntakeTime)
	add("Tiến độ hiện tại", p.CurrentProgress)
	add("Ngành mơ ước", p.DreamMajor)
	add("Quốc gia mong muốn", p.PreferredStudyCountry)
	add("Tiêu chí chọn trường", p.SchoolSelectionCriteria)
	return out
}

func orNotSelected(s string) string {
	if s == "" {
		return NotSelected
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Có"
	}
	return "Không"
}

func maskPassport(s string) string {
	if len(s) <= 3 {
		return s
	}
	return strings.Repeat("*", len(s)-3) + s[len(s)-3:]
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
