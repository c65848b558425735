// Package dates detects and validates date-like tokens in syllabus text.
//
// Detection is deliberately permissive: it finds numeric day/month forms
// (6/9, 06.09, 13/10/2023) and month-name forms (Sept 11, September 11).
// Validation then rejects the common noise those patterns pick up, such as
// "1/2" part numbers, tokens spanning a line break, and out-of-range numeric
// days or months. Callers use validated tokens only; rejected matches are
// dropped silently.
//
// Month-name tokens are not range checked: "Sept 45" validates. Only the
// numeric form has day and month bounds.
package dates

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Pattern matches candidate date tokens. Hyphens are not accepted as numeric
// separators so chapter ranges like "1-5" never match.
var Pattern = regexp.MustCompile(`(?i)\b(` +
	`\d{1,2}[/.]\d{1,2}(?:[/.]\d{2,4})?` +
	`|` +
	`(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+\d{1,2}` +
	`|` +
	`(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}` +
	`)\b`)

var (
	numericRE   = regexp.MustCompile(`^(\d{1,2})[/.](\d{1,2})(?:[/.](\d{2,4}))?$`)
	partRE      = regexp.MustCompile(`^[1-9]/[1-9]$`)
	shortNameRE = regexp.MustCompile(`(?i)^(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{1,2}$`)
	longNameRE  = regexp.MustCompile(`(?i)^(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}$`)
)

// Match is a raw token found in text with its byte offsets.
type Match struct {
	Token string
	Start int
	End   int
}

// FindRaw returns every substring of text matching Pattern, valid or not.
func FindRaw(text string) []Match {
	idx := Pattern.FindAllStringIndex(text, -1)
	if len(idx) == 0 {
		return nil
	}
	out := make([]Match, 0, len(idx))
	for _, loc := range idx {
		out = append(out, Match{Token: text[loc[0]:loc[1]], Start: loc[0], End: loc[1]})
	}
	return out
}

// HasRaw reports whether text contains at least one raw match.
func HasRaw(text string) bool {
	return Pattern.MatchString(text)
}

// IsValid reports whether a raw token is a date worth acting on.
func IsValid(token string) bool {
	token = strings.TrimSpace(token)

	// "February \n\n22" and friends
	if strings.ContainsAny(token, "\r\n") {
		return false
	}

	if m := numericRE.FindStringSubmatch(token); m != nil {
		if partRE.MatchString(token) {
			return false
		}
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return day >= 1 && day <= 31 && month >= 1 && month <= 12
	}

	return shortNameRE.MatchString(token) || longNameRE.MatchString(token)
}

// FindValid returns the validated matches in text, in order of appearance.
func FindValid(text string) []Match {
	var out []Match
	for _, m := range FindRaw(text) {
		if IsValid(m.Token) {
			m.Token = strings.TrimSpace(m.Token)
			out = append(out, m)
		}
	}
	return out
}

// Hints returns the sorted, de-duplicated validated date strings in text.
// This is the closed set of dates an oracle answer may reference.
func Hints(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range FindValid(text) {
		if _, ok := seen[m.Token]; ok {
			continue
		}
		seen[m.Token] = struct{}{}
		out = append(out, m.Token)
	}
	sort.Strings(out)
	return out
}
