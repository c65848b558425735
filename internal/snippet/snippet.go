// Package snippet cuts syllabus text into bounded windows around dated lines.
//
// Every line with a raw date match that is not already covered by an earlier
// window anchors a new window of [line-Before, line+After]. Windows whose text
// carries schedule-grid signals are split again so each piece opens at one
// validated date and runs to the next one. Everything else is passed through
// whole so multi-date sentences keep their clauses together.
package snippet

import (
	"strings"

	"github.com/fyrsmithlabs/syllabusd/internal/dates"
)

// Default window radii.
const (
	DefaultBefore = 1
	DefaultAfter  = 3
)

// gridSignals mark a window as a per-day schedule table.
var gridSignals = []string{
	"detailed schedule",
	"day instructor",
}

// Snippet is an immutable window of source text.
type Snippet struct {
	// Text is the trimmed window content.
	Text string `json:"text"`
	// Dates is the sorted, de-duplicated list of validated date strings in Text.
	Dates []string `json:"dates"`
	// StartLine is the first source line in the window (0-based).
	StartLine int `json:"start_line"`
	// EndLine is one past the last source line in the window.
	EndLine int `json:"end_line"`
	// Grid is true when the snippet came from splitting a schedule grid.
	Grid bool `json:"grid,omitempty"`
}

// Classifiable reports whether the snippet carries at least one usable date.
func (s Snippet) Classifiable() bool {
	return len(s.Dates) > 0
}

// Options configures window radii.
type Options struct {
	Before int
	After  int
}

func (o Options) withDefaults() Options {
	if o.Before < 0 {
		o.Before = 0
	}
	if o.After < 0 {
		o.After = 0
	}
	return o
}

// DefaultOptions returns the standard 1-before / 3-after radii.
func DefaultOptions() Options {
	return Options{Before: DefaultBefore, After: DefaultAfter}
}

// Windows returns the coarse windows around dated lines, before grid
// splitting. Windows with no validated date are included.
func Windows(text string, opts Options) []Snippet {
	opts = opts.withDefaults()
	lines := strings.Split(normalizeNewlines(text), "\n")
	consumed := make([]bool, len(lines))

	var out []Snippet
	for i, line := range lines {
		if consumed[i] || !dates.HasRaw(line) {
			continue
		}
		start := max(0, i-opts.Before)
		end := min(len(lines), i+1+opts.After)

		for j := start; j < end; j++ {
			consumed[j] = true
		}

		// Shrink the span to the lines that survive trimming.
		first, last := start, end
		for first < last && strings.TrimSpace(lines[first]) == "" {
			first++
		}
		for last > first && strings.TrimSpace(lines[last-1]) == "" {
			last--
		}
		if first == last {
			continue
		}
		body := strings.TrimSpace(strings.Join(lines[first:last], "\n"))
		out = append(out, Snippet{
			Text:      body,
			Dates:     dates.Hints(body),
			StartLine: first,
			EndLine:   last,
		})
	}
	return out
}

// Segment returns the snippets to classify: windows, with grid windows split
// per date. Snippets without a validated date are kept so callers can report
// them, but they are never Classifiable.
func Segment(text string, opts Options) []Snippet {
	var out []Snippet
	for _, w := range Windows(text, opts) {
		if IsGrid(w.Text) {
			out = append(out, SplitByDates(w)...)
			continue
		}
		out = append(out, w)
	}
	return out
}

// IsGrid reports whether window text looks like a detailed per-day schedule.
func IsGrid(text string) bool {
	lower := strings.ToLower(text)
	for _, sig := range gridSignals {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// SplitByDates splits a window at each validated date token. Each piece
// starts at a date and ends before the next one. A window with no validated
// date is returned unchanged.
func SplitByDates(w Snippet) []Snippet {
	matches := dates.FindValid(w.Text)
	if len(matches) == 0 {
		return []Snippet{w}
	}

	var out []Snippet
	for i, m := range matches {
		end := len(w.Text)
		if i+1 < len(matches) {
			end = matches[i+1].Start
		}
		raw := w.Text[m.Start:end]
		body := strings.TrimSpace(raw)
		if body == "" {
			continue
		}
		first := w.StartLine + leadingLines(w.Text, m.Start)
		last := first + strings.Count(strings.TrimRight(raw, " \t\r\n"), "\n") + 1
		out = append(out, Snippet{
			Text:      body,
			Dates:     dates.Hints(body),
			StartLine: first,
			EndLine:   min(last, w.EndLine),
			Grid:      true,
		})
	}
	return out
}

// leadingLines counts line breaks in text before offset.
func leadingLines(text string, offset int) int {
	return strings.Count(text[:offset], "\n")
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}
