package extraction

import (
	"regexp"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/syllabusd/internal/dates"
)

const (
	inClassGenericTitle    = "In-Class Assessment"
	inClassSubtype         = "in-class assessment"
	adminDeadlineTitle     = "Administrative deadline"
	attendanceConfirmTitle = "Confirm attending / non-attending status"
)

var (
	inClassMarkerRE = regexp.MustCompile(`(?i)in-class\s+(?:skills\s+)?assessment`)
	deadlineWordRE  = regexp.MustCompile(`(?i)deadline`)
)

// ExtractPatterns runs both deterministic scans over the full text:
// in-class assessments first, then DEADLINE markers.
func ExtractPatterns(text string) []HardDeadline {
	text = normalizeNewlines(text)
	out := ExtractInClassAssessments(text)
	return append(out, ExtractDeadlineMarkers(text)...)
}

// cursorFold is the state carried line to line by ExtractInClassAssessments.
type cursorFold struct {
	cursor string
	line   int
	items  []HardDeadline
}

// step consumes one line. Dates before the marker move the cursor first,
// the marker emits at the cursor, then later dates on the same line move it
// for the lines that follow.
func (f cursorFold) step(line string) cursorFold {
	f.line++
	tokens := dates.FindValid(line)
	loc := inClassMarkerRE.FindStringIndex(line)
	if loc == nil {
		if len(tokens) > 0 {
			f.cursor = tokens[len(tokens)-1].Token
		}
		return f
	}

	rest := tokens
	for len(rest) > 0 && rest[0].Start < loc[0] {
		f.cursor = rest[0].Token
		rest = rest[1:]
	}
	if f.cursor != "" {
		f.items = append(f.items, HardDeadline{
			Date:        f.cursor,
			Title:       inClassTitle(line[loc[0]:]),
			Category:    CategoryAssessment,
			Subtype:     inClassSubtype,
			Description: strings.TrimSpace(line),
			Source:      SourcePattern,
			Line:        f.line,
		})
	}
	if len(rest) > 0 {
		f.cursor = rest[len(rest)-1].Token
	}
	return f
}

// ExtractInClassAssessments scans lines top to bottom keeping the most recent
// validated date as a cursor. Each line with an in-class assessment marker
// yields an assessment at the cursor date. Markers seen before any date are
// skipped.
func ExtractInClassAssessments(text string) []HardDeadline {
	var f cursorFold
	for _, line := range strings.Split(text, "\n") {
		f = f.step(line)
	}
	return f.items
}

// inClassTitle takes the text after the first colon following the marker.
func inClassTitle(fromMarker string) string {
	if i := strings.Index(fromMarker, ":"); i >= 0 {
		if title := strings.TrimSpace(fromMarker[i+1:]); title != "" {
			return title
		}
	}
	return inClassGenericTitle
}

// ExtractDeadlineMarkers finds every "deadline" occurrence and pairs it with
// the first validated date at or after it. The description is the rest of
// the marker's line with whitespace collapsed.
func ExtractDeadlineMarkers(text string) []HardDeadline {
	words := deadlineWordRE.FindAllStringIndex(text, -1)
	if len(words) == 0 {
		return nil
	}
	tokens := dates.FindValid(text)

	var out []HardDeadline
	for _, w := range words {
		i := sort.Search(len(tokens), func(i int) bool { return tokens[i].Start >= w[0] })
		if i == len(tokens) {
			continue
		}

		first := text[w[0]:]
		if nl := strings.IndexByte(first, '\n'); nl >= 0 {
			first = first[:nl]
		}
		after := strings.TrimLeft(first[w[1]-w[0]:], ": \t")

		title := adminDeadlineTitle
		lower := strings.ToLower(first)
		if strings.Contains(lower, "attending") && strings.Contains(lower, "non-attending") {
			title = attendanceConfirmTitle
		}

		out = append(out, HardDeadline{
			Date:        tokens[i].Token,
			Title:       title,
			Category:    CategoryAdministrative,
			Subtype:     "deadline",
			Description: strings.Join(strings.Fields(after), " "),
			Source:      SourcePattern,
			Line:        strings.Count(text[:w[0]], "\n") + 1,
		})
	}
	return out
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}
