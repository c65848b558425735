package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxDescriptionRunes bounds oracle-written descriptions.
const maxDescriptionRunes = 120

// oracleElement is one per-date object as the oracle writes it.
type oracleElement struct {
	Kind           string          `json:"kind"`
	DateString     string          `json:"date_string"`
	SessionTitle   string          `json:"session_title"`
	PrepTasks      []oracleReading `json:"prep_tasks"`
	MandatoryTasks []oracleReading `json:"mandatory_tasks"`
	HardDeadlines  []oracleTask    `json:"hard_deadlines"`
}

type oracleReading struct {
	Title string `json:"title"`
	Type  string `json:"type"`
}

type oracleTask struct {
	Title          string `json:"title"`
	Type           string `json:"type"`
	Description    string `json:"description"`
	AssessmentName string `json:"assessment_name"`
}

// ParseResponse decodes a raw oracle answer against the snippet's allowed
// dates. It returns the accepted entries and the number of dropped elements.
// An error (wrapping ErrMalformedResponse) means no JSON could be recovered.
func ParseResponse(raw string, allowed []string) ([]Entry, int, error) {
	elems, err := decodeElements(raw)
	if err != nil {
		return nil, 0, err
	}

	allow := make(map[string]struct{}, len(allowed))
	for _, d := range allowed {
		allow[strings.TrimSpace(d)] = struct{}{}
	}

	var (
		entries []Entry
		dropped int
	)
	for _, rawElem := range elems {
		var el oracleElement
		if err := json.Unmarshal(rawElem, &el); err != nil {
			dropped++
			continue
		}

		kind := strings.ToLower(strings.TrimSpace(el.Kind))
		date := strings.TrimSpace(el.DateString)
		if kind == "ignore" || date == "" {
			continue
		}
		if _, ok := allow[date]; !ok {
			dropped++
			continue
		}

		switch kind {
		case KindHardDeadline:
			var deadlines []HardDeadline
			for _, t := range el.HardDeadlines {
				title := strings.TrimSpace(t.Title)
				if title == "" {
					dropped++
					continue
				}
				category, subtype := NormalizeCategory(t.Type)
				deadlines = append(deadlines, HardDeadline{
					Date:           date,
					Title:          title,
					Category:       category,
					Subtype:        subtype,
					Description:    truncateRunes(strings.TrimSpace(t.Description), maxDescriptionRunes),
					AssessmentName: strings.TrimSpace(t.AssessmentName),
					Source:         SourceOracle,
				})
			}
			if len(deadlines) > 0 {
				entries = append(entries, Entry{Kind: KindHardDeadline, Date: date, Deadlines: deadlines})
			}

		case KindClassSession:
			title := strings.TrimSpace(el.SessionTitle)
			if title == "" {
				title = DefaultSessionTitle(date)
			}
			session := &ClassSession{Date: date, Title: title}
			session.Readings = appendReadings(session.Readings, el.PrepTasks, RolePrep, ReadingPreparatory)
			session.Readings = appendReadings(session.Readings, el.MandatoryTasks, RoleMandatory, ReadingMandatory)
			entries = append(entries, Entry{Kind: KindClassSession, Date: date, Session: session})

		default:
			dropped++
		}
	}
	return entries, dropped, nil
}

func appendReadings(dst []Reading, src []oracleReading, role ReadingRole, defaultType string) []Reading {
	for _, r := range src {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			continue
		}
		typ := strings.TrimSpace(r.Type)
		if typ == "" {
			typ = defaultType
		}
		dst = append(dst, Reading{Title: title, Role: role, ReadingType: typ})
	}
	return dst
}

// decodeElements recovers the element list from a raw answer: fences are
// stripped, then the text is parsed directly, then the widest bracketed
// array is tried. A lone object becomes a one-element list.
func decodeElements(raw string) ([]json.RawMessage, error) {
	content := stripFences(raw)
	if content == "" {
		return nil, fmt.Errorf("%w: empty answer", ErrMalformedResponse)
	}

	var value json.RawMessage
	if err := json.Unmarshal([]byte(content), &value); err != nil {
		start := strings.Index(content, "[")
		end := strings.LastIndex(content, "]")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &value); err != nil {
			return nil, fmt.Errorf("%w: bracketed array: %v", ErrMalformedResponse, err)
		}
	}

	trimmed := bytes.TrimSpace(value)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return elems, nil
	case len(trimmed) > 0 && trimmed[0] == '{':
		return []json.RawMessage{trimmed}, nil
	default:
		return nil, fmt.Errorf("%w: answer is neither an array nor an object", ErrMalformedResponse)
	}
}

// stripFences removes a surrounding markdown code fence.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
