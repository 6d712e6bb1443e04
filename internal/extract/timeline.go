package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

// intakeFamily parses one style of intake phrase. The first family that
// yields a value wins.
type intakeFamily struct {
	pattern *regexp.Regexp
	format  func(m []string) string
	year    int
	month   int
}

var seasonNames = map[string]string{
	"fall":   "Fall",
	"autumn": "Fall",
	"spring": "Spring",
	"summer": "Summer",
	"winter": "Winter",
}

var intakeFamilies = []intakeFamily{
	{
		pattern: regexp.MustCompile(`(?i)\b(fall|autumn|spring|summer|winter)\s*(?:intake\s*|semester\s*|term\s*)?(20\d{2})\b`),
		format:  func(m []string) string { return seasonNames[strings.ToLower(m[1])] + " " + m[2] },
		year:    2,
	},
	{
		pattern: regexp.MustCompile(`(?i)tháng\s*(\d{1,2})\s*(?:/|năm)\s*(20\d{2})`),
		format:  func(m []string) string { return "Tháng " + m[1] + "/" + m[2] },
		year:    2,
		month:   1,
	},
	{
		pattern: regexp.MustCompile(`(?i)năm\s*(20\d{2})`),
		format:  func(m []string) string { return "Năm " + m[1] },
		year:    1,
	},
}

var progressIndicators = keywords(
	"đã nộp", "đã hoàn thành", "đã làm", "đã xong", "đang chuẩn bị", "đang làm",
	"đã có", "đã đăng ký", "đã apply", "already applied", "submitted", "in progress",
)

const progressSummaryRunes = 100

func extractTimeline(text string, now time.Time) domain.Profile {
	var p domain.Profile
	p.IntendedIntakeTime = intakeTime(text, now)
	if progressIndicators.MatchString(text) {
		p.CurrentProgress = truncateRunes(text, progressSummaryRunes)
	}
	return p
}

// intakeTime ignores years more than one year in the past.
func intakeTime(text string, now time.Time) string {
	for _, f := range intakeFamilies {
		for _, m := range f.pattern.FindAllStringSubmatch(text, -1) {
			year, err := strconv.Atoi(m[f.year])
			if err != nil || year < now.Year()-1 {
				continue
			}
			if f.month > 0 {
				month, err := strconv.Atoi(m[f.month])
				if err != nil || month < 1 || month > 12 {
					continue
				}
			}
			return f.format(m)
		}
	}
	return ""
}
