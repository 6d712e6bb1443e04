// Package extract turns free-text chat messages into structured profile updates.
//
// Every extractor is a pure function from text to a partial profile. The
// Engine runs them in a fixed order and merges each result into the session
// profile with domain.Profile.Merge, so a field that already holds a value is
// never overwritten. Extraction is total: text that matches nothing leaves
// the profile untouched.
package extract

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

// Extractor proposes profile fields found in text.
type Extractor func(text string, now time.Time) domain.Profile

type namedExtractor struct {
	name string
	fn   Extractor
}

// Engine runs the ordered extractor battery.
type Engine struct {
	now        func() time.Time
	extractors []namedExtractor
}

// New returns an engine using the wall clock.
func New() *Engine {
	return NewWithClock(time.Now)
}

// NewWithClock returns an engine whose age and intake heuristics use now.
func NewWithClock(now func() time.Time) *Engine {
	return &Engine{
		now: now,
		extractors: []namedExtractor{
			{"personal", extractPersonal},
			{"passport", extractPassport},
			{"education", extractEducation},
			{"aspirations", extractAspirations},
			{"financial", extractFinancial},
			{"certificates", extractCertificates},
			{"timeline", extractTimeline},
			{"school_major", extractSchoolAndMajor},
		},
	}
}

// Extract returns the combined partial profile proposed by all extractors.
// Earlier extractors win when two propose the same field.
func (e *Engine) Extract(text string) domain.Profile {
	var out domain.Profile
	e.Apply(text, &out)
	return out
}

// Apply merges every extractor's proposal into p and returns the names of
// the fields that were newly filled.
func (e *Engine) Apply(text string, p *domain.Profile) []string {
	text = normalize(text)
	if text == "" || p == nil {
		return nil
	}
	now := e.now()

	var filled []string
	for _, ex := range e.extractors {
		filled = append(filled, p.Merge(ex.fn(text, now))...)
	}
	return filled
}

func normalize(text string) string {
	return strings.TrimSpace(norm.NFC.String(text))
}

// rule maps a keyword pattern to the value it produces.
type rule struct {
	pattern *regexp.Regexp
	value   string
}

// firstMatch returns the value of the first rule whose pattern matches text.
func firstMatch(text string, rules []rule) string {
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.value
		}
	}
	return ""
}

// keywords compiles a case-insensitive alternation of literal phrases that
// must stand as whole words. Word edges are Unicode-aware so that
// diacritic-bearing Vietnamese words are bounded correctly.
func keywords(phrases ...string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(quoted, "|") + `)(?:[^\p{L}\p{N}]|$)`)
}

// kw builds a rule producing value when any of phrases appears.
func kw(value string, phrases ...string) rule {
	return rule{pattern: keywords(phrases...), value: value}
}

// truncateRunes returns at most n runes of s.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
