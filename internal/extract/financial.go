package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

var (
	budgetPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)*)\s*(k|thousand|nghìn|ngàn|triệu|million|tỷ|billion)?\s*(usd|dollars?|vnd|vnđ|đồng)(?:[^\p{L}\p{N}]|$)`)

	// "đồng" also opens everyday words ("đồng nghiệp", "đồng ý") that are not amounts.
	dongCompound = regexp.MustCompile(`(?i)^\s*(?:nghiệp|ý|hồ|thời|hương|phục|bằng|đội|môn|chí|hành|tình|cảm|lòng)(?:[^\p{L}\p{N}]|$)`)

	thousandsGrouped = regexp.MustCompile(`^\d{1,3}(?:[.,]\d{3})+$`)
)

var multipliers = map[string]float64{
	"k":        1e3,
	"thousand": 1e3,
	"nghìn":    1e3,
	"ngàn":     1e3,
	"triệu":    1e6,
	"million":  1e6,
	"tỷ":       1e9,
	"billion":  1e9,
}

var fundingRules = []rule{
	kw("Tự túc", "tự túc", "tự chi trả", "self-funded", "self funded", "tự lo"),
	kw("Gia đình hỗ trợ", "gia đình", "bố mẹ", "ba mẹ", "family", "parents"),
	kw("Học bổng", "học bổng", "scholarship"),
}

// No-need phrases are checked first because they contain the need phrases.
var (
	noScholarshipNeed = keywords(
		"không cần học bổng", "không xin học bổng", "không cần hỗ trợ tài chính",
		"no scholarship", "don't need scholarship", "don't need a scholarship",
		"do not need scholarship", "do not need a scholarship",
	)
	scholarshipNeed = keywords(
		"cần học bổng", "muốn học bổng", "xin học bổng", "săn học bổng", "cần hỗ trợ tài chính",
		"need scholarship", "need a scholarship", "looking for scholarship",
		"apply for scholarship", "financial aid",
	)
)

func extractFinancial(text string, _ time.Time) domain.Profile {
	var p domain.Profile

	if amount, ok := matchBudget(text); ok {
		p.EstimatedBudget = &amount
	}

	p.FundingSource = firstMatch(text, fundingRules)

	switch {
	case noScholarshipNeed.MatchString(text):
		v := false
		p.NeedsScholarship = &v
	case scholarshipNeed.MatchString(text):
		v := true
		p.NeedsScholarship = &v
	}
	return p
}

// matchBudget returns the first amount followed by a currency word.
func matchBudget(text string) (float64, bool) {
	for _, idx := range budgetPattern.FindAllStringSubmatchIndex(text, -1) {
		currency := strings.ToLower(text[idx[6]:idx[7]])
		if currency == "đồng" && dongCompound.MatchString(text[idx[1]:]) {
			continue
		}
		amount, ok := parseAmount(text[idx[2]:idx[3]])
		if !ok {
			continue
		}
		if idx[4] >= 0 {
			if mult, found := multipliers[strings.ToLower(text[idx[4]:idx[5]])]; found {
				amount *= mult
			}
		}
		return amount, true
	}
	return 0, false
}

// parseAmount accepts "1,500", "1.500.000", "2,5" and "1.5".
func parseAmount(raw string) (float64, bool) {
	if thousandsGrouped.MatchString(raw) {
		raw = strings.NewReplacer(",", "", ".", "").Replace(raw)
	} else {
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
