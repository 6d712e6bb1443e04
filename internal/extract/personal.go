package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// Vietnamese mobile numbers, matched against text with separators removed.
	phonePattern     = regexp.MustCompile(`(?:^|\D)((?:\+84|0)[35789]\d{8})(?:\D|$)`)
	phoneSeparators  = regexp.MustCompile(`[\s.\-()]`)
	vietnamPlaceName = regexp.MustCompile(`(?i)vi[eệ]t\s*nam`)

	birthYearPattern = regexp.MustCompile(`(?i)(?:sinh năm|năm sinh|sinh ngày|born in|born on|born|sinh)\s*:?\s*(?:\d{1,2}[/\-]\d{1,2}[/\-])?((?:19|20)\d{2})`)
	agePatterns      = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d{1,2})\s*tuổi`),
		regexp.MustCompile(`(?i)\bage\s*:?\s*(\d{1,2})\b`),
		regexp.MustCompile(`(?i)\b(\d{1,2})\s*years?\s*old\b`),
	}

	passportPattern     = regexp.MustCompile(`(?i)(?:hộ chiếu|passport)(?:\s*(?:số|number|no\.?))?\s*[:#]?\s*([A-Z]\d{7,8})\b`)
	barePassportPattern = regexp.MustCompile(`\b([A-Z]\d{7})\b`)
)

var genderRules = []rule{
	kw("Nữ", "nữ", "female", "girl", "woman"),
	kw("Nam", "nam", "male", "boy"),
}

var countryRules = []rule{
	kw("Việt Nam", "việt nam", "vietnam", "viet nam"),
	kw("Hoa Kỳ", "hoa kỳ", "mỹ", "usa", "united states", "america"),
	kw("Canada", "canada"),
	kw("Úc", "úc", "australia"),
	kw("Anh", "uk", "england", "united kingdom", "vương quốc anh", "nước anh"),
	kw("Đức", "nước đức", "germany", "deutschland"),
	kw("Pháp", "nước pháp", "france", "ở pháp", "tại pháp"),
}

func extractPersonal(text string, now time.Time) domain.Profile {
	var p domain.Profile

	p.Email = emailPattern.FindString(text)

	compact := phoneSeparators.ReplaceAllString(text, "")
	if m := phonePattern.FindStringSubmatch(compact); m != nil {
		p.Phone = m[1]
	}

	// "Việt Nam" must not read as the male keyword "nam".
	p.Gender = firstMatch(vietnamPlaceName.ReplaceAllString(text, " "), genderRules)

	p.DateOfBirth = birthDate(text, now)
	return p
}

func birthDate(text string, now time.Time) string {
	if m := birthYearPattern.FindStringSubmatch(text); m != nil {
		return m[1] + "-01-01"
	}
	for _, re := range agePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		age, err := strconv.Atoi(m[1])
		if err != nil || age <= 0 {
			continue
		}
		return fmt.Sprintf("%04d-01-01", now.Year()-age)
	}
	return ""
}

func extractPassport(text string, _ time.Time) domain.Profile {
	var p domain.Profile

	if m := passportPattern.FindStringSubmatch(text); m != nil {
		p.PassportNumber = strings.ToUpper(m[1])
	} else if m := barePassportPattern.FindStringSubmatch(text); m != nil {
		p.PassportNumber = m[1]
	}

	p.CurrentCountry = firstMatch(text, countryRules)
	return p
}
