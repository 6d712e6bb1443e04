package extract

import (
	"regexp"
	"time"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

// School is a catalog entry recognised in free text.
type School struct {
	Name    string
	Country string
	US      bool
}

type schoolRule struct {
	pattern *regexp.Regexp
	school  School
}

const countryUS = "Hoa Kỳ"

var schoolCatalog = []schoolRule{
	{keywords("stanford university", "stanford"), School{"Stanford University", countryUS, true}},
	{keywords("harvard university", "harvard"), School{"Harvard University", countryUS, true}},
	{keywords("massachusetts institute of technology", "mit"), School{"MIT", countryUS, true}},
	{keywords("university of california, berkeley", "uc berkeley", "berkeley"), School{"UC Berkeley", countryUS, true}},
	{keywords("carnegie mellon university", "carnegie mellon", "cmu"), School{"Carnegie Mellon University", countryUS, true}},
	{keywords("university of oxford", "oxford"), School{"University of Oxford", "Anh", false}},
	{keywords("university of cambridge", "cambridge"), School{"University of Cambridge", "Anh", false}},
	{keywords("university of toronto", "uoft", "toronto"), School{"University of Toronto", "Canada", false}},
	{keywords("university of melbourne", "melbourne"), School{"University of Melbourne", "Úc", false}},
	{keywords("national university of singapore", "nus"), School{"National University of Singapore", "Singapore", false}},
	{keywords("technical university of munich", "tu munich", "tum"), School{"Technical University of Munich", "Đức", false}},
}

var majorRules = []rule{
	kw("Khoa học máy tính", "khoa học máy tính", "computer science", "cntt", "công nghệ thông tin"),
	kw("Khoa học dữ liệu", "khoa học dữ liệu", "data science"),
	kw("Trí tuệ nhân tạo", "trí tuệ nhân tạo", "artificial intelligence", "machine learning"),
	kw("Quản trị kinh doanh", "quản trị kinh doanh", "business administration", "business"),
	kw("Tài chính", "tài chính ngân hàng", "finance"),
	kw("Kỹ thuật điện", "kỹ thuật điện", "electrical engineering"),
	kw("Kỹ thuật cơ khí", "kỹ thuật cơ khí", "cơ khí", "mechanical engineering"),
	kw("Y khoa", "y khoa", "medicine", "y đa khoa"),
	kw("Kinh tế", "kinh tế", "economics"),
	kw("Marketing", "marketing"),
}

// MatchSchool returns the first catalog school named in text.
func MatchSchool(text string) (School, bool) {
	text = normalize(text)
	for _, r := range schoolCatalog {
		if r.pattern.MatchString(text) {
			return r.school, true
		}
	}
	return School{}, false
}

// MatchMajor returns the canonical major named in text, or "".
func MatchMajor(text string) string {
	return firstMatch(normalize(text), majorRules)
}

func extractSchoolAndMajor(text string, _ time.Time) domain.Profile {
	var p domain.Profile
	if s, ok := MatchSchool(text); ok {
		p.SchoolSelectionCriteria = s.Name
		if s.US {
			p.PreferredStudyCountry = s.Country
		}
	}
	p.DreamMajor = MatchMajor(text)
	return p
}
