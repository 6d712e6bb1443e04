package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

var (
	gpaPattern   = regexp.MustCompile(`(?i)\bgpa[:\s]*(\d+(?:[.,]\d+)?)(?:\s*/\s*(\d+(?:[.,]\d+)?))?`)
	scorePattern = regexp.MustCompile(`(?i)điểm[:\s]*(\d+(?:[.,]\d+)?)\s*/\s*(\d+(?:[.,]\d+)?)`)

	experiencePattern = regexp.MustCompile(`(?i)(\d+)\s*(?:năm|years?)\s*(?:kinh nghiệm|experience|làm việc)`)

	ieltsPattern    = regexp.MustCompile(`(?i)\bielts[:\s]*(\d(?:[.,]\d)?)`)
	toeflPattern    = regexp.MustCompile(`(?i)\btoefl(?:\s*ibt)?[:\s]*(\d{1,3})\b`)
	duolingoPattern = regexp.MustCompile(`(?i)\bduolingo[:\s]*(\d{1,3})\b`)
	testDaFPattern  = regexp.MustCompile(`(?i)\btestdaf[:\s]*((?:tdn\s*)?\d)\b`)
)

var currentLevelRules = []rule{
	kw("THPT", "thpt", "high school", "cấp 3", "lớp 12"),
	kw("Cao đẳng", "cao đẳng", "college"),
	kw("Đại học", "đại học", "university", "bachelor"),
}

var desiredLevelRules = []rule{
	kw("Thạc sĩ", "thạc sĩ", "cao học", "master", "masters", "mba"),
	kw("Tiến sĩ", "tiến sĩ", "phd", "ph.d", "doctorate"),
	kw("Cử nhân", "cử nhân", "bachelor", "undergraduate"),
	kw("Cao đẳng", "associate"),
}

var careerRules = []rule{
	kw("Kỹ sư phần mềm", "kỹ sư phần mềm", "software engineer", "lập trình viên", "developer"),
	kw("Nhà khoa học dữ liệu", "nhà khoa học dữ liệu", "data scientist", "data analyst"),
	kw("Bác sĩ", "bác sĩ", "doctor"),
	kw("Kỹ sư", "kỹ sư", "engineer"),
	kw("Giảng viên", "giảng viên", "giáo viên", "teacher", "lecturer", "professor"),
	kw("Doanh nhân", "doanh nhân", "khởi nghiệp", "entrepreneur", "startup"),
	kw("Quản lý", "quản lý", "manager"),
	kw("Nhà nghiên cứu", "nhà nghiên cứu", "researcher"),
	kw("Kế toán", "kế toán", "accountant"),
	kw("Luật sư", "luật sư", "lawyer"),
	kw("Kiến trúc sư", "kiến trúc sư", "architect"),
}

var studyLanguageRules = []rule{
	kw("Tiếng Anh", "tiếng anh", "english"),
	kw("Tiếng Đức", "tiếng đức", "german"),
	kw("Tiếng Pháp", "tiếng pháp", "french"),
	kw("Tiếng Nhật", "tiếng nhật", "japanese"),
	kw("Tiếng Hàn", "tiếng hàn", "korean"),
}

func extractEducation(text string, _ time.Time) domain.Profile {
	var p domain.Profile
	p.CurrentEducationLevel = firstMatch(text, currentLevelRules)

	if m := gpaPattern.FindStringSubmatch(text); m != nil {
		p.AcademicResult = "GPA " + m[1]
		if m[2] != "" {
			p.AcademicResult += "/" + m[2]
		}
	} else if m := scorePattern.FindStringSubmatch(text); m != nil {
		p.AcademicResult = "Điểm " + m[1] + "/" + m[2]
	}
	return p
}

func extractAspirations(text string, _ time.Time) domain.Profile {
	var p domain.Profile
	p.DesiredEducationLevel = firstMatch(text, desiredLevelRules)
	if m := experiencePattern.FindStringSubmatch(text); m != nil {
		p.ExtracurricularsAndExperience = m[1] + " năm kinh nghiệm"
	}
	p.CareerGoal = firstMatch(text, careerRules)
	return p
}

func extractCertificates(text string, _ time.Time) domain.Profile {
	var p domain.Profile

	if m := ieltsPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil && v <= 9 {
			p.Certificates.IELTS = &v
		}
	}
	if m := toeflPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v <= 120 {
			p.Certificates.TOEFL = &v
		}
	}
	if m := duolingoPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v <= 160 {
			p.Certificates.Duolingo = &v
		}
	}
	if m := testDaFPattern.FindStringSubmatch(text); m != nil {
		level := strings.ToUpper(strings.Join(strings.Fields(m[1]), ""))
		p.Certificates.TestDaF = "TDN " + strings.TrimPrefix(level, "TDN")
	}

	p.StudyLanguage = firstMatch(text, studyLanguageRules)
	return p
}
