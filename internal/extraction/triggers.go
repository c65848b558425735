package extraction

import "strings"

// HardDeadlineTriggers is the vocabulary that allows a snippet to produce
// hard deadlines.
var HardDeadlineTriggers = []string{
	"due",
	"submit",
	"submission",
	"hand in",
	"exam",
	"test",
	"assessment",
	"quiz",
	"final",
	"midterm",
	"paper",
	"project",
	"assignment",
	"deadline",
}

// ReadingTriggers is the vocabulary that allows a snippet to produce
// readings. "read " keeps its trailing space so "ready" does not match.
var ReadingTriggers = []string{
	"read ",
	"reading",
	"readings",
	"chapter",
	"chap.",
	"pp.",
	"required reading",
	"recommended reading",
	"read before class",
	"preparatory",
	"mandatory",
}

// Gates holds the trigger flags for one snippet.
type Gates struct {
	HardDeadline bool `json:"has_hard_trigger"`
	Reading      bool `json:"has_reading_trigger"`
}

// ClassifyTriggers computes the gates for text with a case-insensitive
// substring search.
func ClassifyTriggers(text string) Gates {
	lower := strings.ToLower(text)
	return Gates{
		HardDeadline: containsAny(lower, HardDeadlineTriggers),
		Reading:      containsAny(lower, ReadingTriggers),
	}
}

// Apply filters oracle entries through the gates. Hard deadline entries are
// dropped without a hard trigger. Sessions are kept, but lose their readings
// without a reading trigger.
func (g Gates) Apply(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		switch e.Kind {
		case KindHardDeadline:
			if !g.HardDeadline {
				continue
			}
		case KindClassSession:
			if !g.Reading && len(e.Session.Readings) > 0 {
				s := *e.Session
				s.Readings = nil
				e.Session = &s
			}
		}
		out = append(out, e)
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// NormalizeCategory maps a free-form deliverable label onto a canonical
// category. The second return value is the trimmed lowercase label, kept as
// the subtype.
func NormalizeCategory(label string) (Category, string) {
	raw := strings.ToLower(strings.TrimSpace(label))
	switch raw {
	case "assignment", "paper", "essay", "homework", "report", "deliverable", "":
		return CategoryAssignment, raw
	case "exam", "quiz", "test", "midterm", "final", "final exam":
		return CategoryExam, raw
	case "project":
		return CategoryProject, raw
	case "assessment", "presentation", "in-class assessment":
		return CategoryAssessment, raw
	case "administrative", "deadline", "interview", "admin":
		return CategoryAdministrative, raw
	}
	switch {
	case strings.Contains(raw, "exam"), strings.Contains(raw, "quiz"), strings.Contains(raw, "test"):
		return CategoryExam, raw
	case strings.Contains(raw, "project"):
		return CategoryProject, raw
	case strings.Contains(raw, "assessment"), strings.Contains(raw, "presentation"):
		return CategoryAssessment, raw
	case strings.Contains(raw, "admin"), strings.Contains(raw, "deadline"):
		return CategoryAdministrative, raw
	}
	return CategoryAssignment, raw
}
