package extraction

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fyrsmithlabs/syllabusd/internal/dates"
)

// Fallback defaults.
const (
	DefaultFallbackMaxLines       = 50
	DefaultFallbackLookahead      = 2
	DefaultFallbackEstimatedHours = 5
	sentinelEstimatedHours        = 3
	fallbackTitleRunes            = 50
	fallbackDescriptionRunes      = 100
	minLineLength                 = 4
	sentinelTitle                 = "No deadlines found"
	isoDateLayout                 = "2006-01-02"
)

// KeywordPattern maps a category label to its keyword regex.
type KeywordPattern struct {
	Name  string `json:"name"`
	Regex string `json:"regex"`
}

// DefaultKeywordPatterns returns the keyword map in match priority order.
func DefaultKeywordPatterns() []KeywordPattern {
	return []KeywordPattern{
		{Name: "assignment", Regex: `(?i)\b(?:assignments?|homework)\b`},
		{Name: "exam", Regex: `(?i)\b(?:exams?|examination|midterms?|final exam)\b`},
		{Name: "quiz", Regex: `(?i)\b(?:quiz|quizzes|test)\b`},
		{Name: "presentation", Regex: `(?i)\bpresentations?\b`},
		{Name: "paper", Regex: `(?i)\b(?:papers?|essays?)\b`},
		{Name: "reading", Regex: `(?i)\b(?:readings?|chapters?)\b`},
		{Name: "deadline", Regex: `(?i)\b(?:deadlines?|due)\b`},
		{Name: "interview", Regex: `(?i)\binterviews?\b`},
		{Name: "project", Regex: `(?i)\bprojects?\b`},
	}
}

// FallbackConfig configures the keyword extractor.
type FallbackConfig struct {
	MaxLines       int              `json:"max_lines"`
	Lookahead      int              `json:"lookahead"`
	EstimatedHours int              `json:"estimated_hours"`
	Patterns       []KeywordPattern `json:"patterns,omitempty"`
}

// DefaultFallbackConfig returns the standard fallback configuration.
func DefaultFallbackConfig() FallbackConfig {
	return FallbackConfig{
		MaxLines:       DefaultFallbackMaxLines,
		Lookahead:      DefaultFallbackLookahead,
		EstimatedHours: DefaultFallbackEstimatedHours,
		Patterns:       DefaultKeywordPatterns(),
	}
}

// KeywordExtractor is the heuristic substitute for the oracle.
type KeywordExtractor struct {
	patterns       []*compiledKeyword
	maxLines       int
	lookahead      int
	estimatedHours int
	now            func() time.Time
}

type compiledKeyword struct {
	KeywordPattern
	regex *regexp.Regexp
}

// NewKeywordExtractor compiles the configured keyword map. Zero values fall
// back to defaults.
func NewKeywordExtractor(cfg FallbackConfig) (*KeywordExtractor, error) {
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = DefaultKeywordPatterns()
	}

	compiled := make([]*compiledKeyword, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("keyword pattern %q: %w", p.Name, err)
		}
		compiled = append(compiled, &compiledKeyword{KeywordPattern: p, regex: re})
	}

	maxLines := cfg.MaxLines
	if maxLines <= 0 {
		maxLines = DefaultFallbackMaxLines
	}
	lookahead := cfg.Lookahead
	if lookahead < 0 {
		lookahead = DefaultFallbackLookahead
	}
	hours := cfg.EstimatedHours
	if hours <= 0 {
		hours = DefaultFallbackEstimatedHours
	}

	return &KeywordExtractor{
		patterns:       compiled,
		maxLines:       maxLines,
		lookahead:      lookahead,
		estimatedHours: hours,
		now:            time.Now,
	}, nil
}

// Extract scans the first MaxLines lines. Each non-trivial line matching a
// keyword yields one deadline dated by the first validated date on that line
// or the next Lookahead lines, else today. With no matches the result is the
// single placeholder sentinel.
func (k *KeywordExtractor) Extract(text string) []HardDeadline {
	lines := strings.Split(normalizeNewlines(text), "\n")
	limit := min(len(lines), k.maxLines)
	today := k.now().Format(isoDateLayout)

	var out []HardDeadline
	for i := 0; i < limit; i++ {
		line := strings.TrimSpace(lines[i])
		if len(line) < minLineLength {
			continue
		}
		match := k.findMatch(line)
		if match == nil {
			continue
		}

		date := today
		for j := i; j <= i+k.lookahead && j < len(lines); j++ {
			if found := dates.FindValid(lines[j]); len(found) > 0 {
				date = found[0].Token
				break
			}
		}

		category, subtype := NormalizeCategory(match.Name)
		out = append(out, HardDeadline{
			Date:           date,
			Title:          truncateRunes(line, fallbackTitleRunes),
			Category:       category,
			Subtype:        subtype,
			Description:    truncateRunes(line, fallbackDescriptionRunes),
			EstimatedHours: k.estimatedHours,
			Source:         SourceFallback,
			Line:           i + 1,
		})
	}

	if len(out) == 0 {
		return []HardDeadline{k.sentinel(today)}
	}
	return out
}

// findMatch returns the first pattern, in priority order, matching line.
func (k *KeywordExtractor) findMatch(line string) *compiledKeyword {
	for _, p := range k.patterns {
		if p.regex.MatchString(line) {
			return p
		}
	}
	return nil
}

func (k *KeywordExtractor) sentinel(today string) HardDeadline {
	return HardDeadline{
		Date:           today,
		Title:          sentinelTitle,
		Category:       CategoryAssignment,
		Subtype:        "placeholder",
		Description:    fmt.Sprintf("No deadline keywords were found in the first %d lines", k.maxLines),
		EstimatedHours: sentinelEstimatedHours,
		Source:         SourceFallback,
		Placeholder:    true,
	}
}
