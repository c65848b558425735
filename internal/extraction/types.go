package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrOracleNotConfigured is returned by NewCompleter for a disabled provider.
	ErrOracleNotConfigured = errors.New("classification oracle not configured")
	// ErrMalformedResponse marks an oracle answer that could not be parsed.
	ErrMalformedResponse = errors.New("malformed oracle response")
	// ErrEmptyInput is returned by Pipeline.Run for whitespace-only text.
	ErrEmptyInput = errors.New("empty input text")
)

// Category is the canonical hard deadline category.
type Category string

// Canonical categories.
const (
	CategoryAssignment     Category = "assignment"
	CategoryExam           Category = "exam"
	CategoryProject        Category = "project"
	CategoryAssessment     Category = "assessment"
	CategoryAdministrative Category = "administrative"
)

// Source records which producer emitted a hard deadline.
type Source string

const (
	SourceOracle   Source = "oracle"
	SourcePattern  Source = "pattern"
	SourceFallback Source = "fallback"
)

// ReadingRole distinguishes preparatory from mandatory readings.
type ReadingRole string

const (
	RolePrep      ReadingRole = "prep"
	RoleMandatory ReadingRole = "mandatory"
)

// Reading subtypes.
const (
	ReadingPreparatory = "reading_preparatory"
	ReadingOptional    = "reading_optional"
	ReadingMandatory   = "reading_mandatory"
)

// Item kinds on the wire.
const (
	KindHardDeadline = "hard_deadline"
	KindClassSession = "class_session"
)

// HardDeadline is a graded or submission-bound obligation tied to one date.
type HardDeadline struct {
	Date           string   `json:"date"`
	Title          string   `json:"title"`
	Category       Category `json:"category"`
	Subtype        string   `json:"subtype,omitempty"`
	Description    string   `json:"description"`
	AssessmentName string   `json:"assessment_name,omitempty"`
	EstimatedHours int      `json:"estimated_hours,omitempty"`
	Source         Source   `json:"source"`
	// Line is the 1-based source line for pattern and fallback items.
	Line int `json:"line,omitempty"`
	// Placeholder marks the "no deadlines found" sentinel.
	Placeholder bool `json:"placeholder,omitempty"`
}

// Reading is one reading obligation attached to a class session.
type Reading struct {
	Title       string      `json:"title"`
	Role        ReadingRole `json:"role"`
	ReadingType string      `json:"reading_type"`
}

// ClassSession is a scheduled meeting on one date.
type ClassSession struct {
	Date     string    `json:"date"`
	Title    string    `json:"title"`
	Readings []Reading `json:"readings"`
}

// DefaultSessionTitle is used when the oracle gives a session no title.
func DefaultSessionTitle(date string) string {
	return "Class session on " + date
}

// AssessmentComponent is a graded component known from the grading section.
type AssessmentComponent struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Weight   float64 `json:"weight"`
}

// Item is one tagged element of the final output. Exactly one of Deadline
// or Session is set.
type Item struct {
	Deadline *HardDeadline
	Session  *ClassSession
}

// Kind returns the wire tag of the item.
func (it Item) Kind() string {
	if it.Session != nil {
		return KindClassSession
	}
	return KindHardDeadline
}

// Date returns the date string of the underlying entity.
func (it Item) Date() string {
	if it.Session != nil {
		return it.Session.Date
	}
	if it.Deadline != nil {
		return it.Deadline.Date
	}
	return ""
}

// Title returns the title of the underlying entity.
func (it Item) Title() string {
	if it.Session != nil {
		return it.Session.Title
	}
	if it.Deadline != nil {
		return it.Deadline.Title
	}
	return ""
}

type hardDeadlineWire struct {
	Kind string `json:"kind"`
	HardDeadline
}

type classSessionWire struct {
	Kind string `json:"kind"`
	ClassSession
}

// MarshalJSON writes the entity fields flattened next to a "kind" tag.
func (it Item) MarshalJSON() ([]byte, error) {
	switch {
	case it.Session != nil:
		s := *it.Session
		if s.Readings == nil {
			s.Readings = []Reading{}
		}
		return json.Marshal(classSessionWire{Kind: KindClassSession, ClassSession: s})
	case it.Deadline != nil:
		return json.Marshal(hardDeadlineWire{Kind: KindHardDeadline, HardDeadline: *it.Deadline})
	default:
		return nil, errors.New("empty item")
	}
}

// UnmarshalJSON reads an item written by MarshalJSON.
func (it *Item) UnmarshalJSON(data []byte) error {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Kind {
	case KindClassSession:
		var w classSessionWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*it = Item{Session: &w.ClassSession}
	case KindHardDeadline:
		var w hardDeadlineWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*it = Item{Deadline: &w.HardDeadline}
	default:
		return fmt.Errorf("unknown item kind %q", head.Kind)
	}
	return nil
}
