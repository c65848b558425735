package extraction

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/syllabusd/internal/secrets"
	"github.com/fyrsmithlabs/syllabusd/internal/snippet"
)

// Completer sends one system+user prompt pair to a text model and returns
// the raw completion. Implementations own retries and rate limiting.
type Completer interface {
	// Complete returns the model's raw text answer.
	Complete(ctx context.Context, system, prompt string) (string, error)

	// Available returns true if the completer is configured and ready.
	Available() bool
}

// OutcomeStatus tags the result of one oracle call.
type OutcomeStatus string

const (
	OutcomeOK          OutcomeStatus = "ok"
	OutcomeMalformed   OutcomeStatus = "malformed"
	OutcomeUnavailable OutcomeStatus = "unavailable"
)

// Entry is one accepted per-date interpretation from the oracle.
type Entry struct {
	Kind      string
	Date      string
	Deadlines []HardDeadline
	Session   *ClassSession
}

// Outcome is the tagged result of classifying one snippet.
type Outcome struct {
	Status  OutcomeStatus
	Entries []Entry
	// Dropped counts elements discarded for unknown dates, empty titles or
	// undecodable shape.
	Dropped int
	// Redacted counts secrets masked out of the snippet before sending.
	Redacted int
	Err      error
}

// systemPrompt frames every oracle request.
const systemPrompt = "You strictly extract structured tasks from syllabus snippets " +
	"without hallucinating new dates. Always return a JSON array."

// Adapter builds oracle requests for snippets and turns answers into
// Outcomes.
type Adapter struct {
	completer Completer
	scrubber  secrets.Scrubber
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithScrubber sets the secret scrubber applied to snippet text. The
// default is the shared Gitleaks detector.
func WithScrubber(s secrets.Scrubber) AdapterOption {
	return func(a *Adapter) {
		if s != nil {
			a.scrubber = s
		}
	}
}

// NewAdapter wraps a Completer. A nil or unavailable completer yields a nil
// Adapter, which the pipeline treats as "not configured".
func NewAdapter(c Completer, opts ...AdapterOption) *Adapter {
	if c == nil || !c.Available() {
		return nil
	}
	a := &Adapter{completer: c}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) scrub(text string) (secrets.Result, error) {
	if a.scrubber != nil {
		return a.scrubber.Scrub(text), nil
	}
	d, err := secrets.Default()
	if err != nil {
		return secrets.Result{}, fmt.Errorf("secret scrubber: %w", err)
	}
	return d.Scrub(text), nil
}

// Classify asks the oracle about one snippet. Snippet text is scrubbed of
// secrets first; if that is impossible nothing is sent. Transport failures
// yield OutcomeUnavailable; unparseable answers yield OutcomeMalformed.
// Neither is returned as an error.
func (a *Adapter) Classify(ctx context.Context, s snippet.Snippet, assessmentContext string) Outcome {
	if a == nil || a.completer == nil {
		return Outcome{Status: OutcomeUnavailable, Err: ErrOracleNotConfigured}
	}
	if !s.Classifiable() {
		return Outcome{Status: OutcomeOK}
	}

	scrubbed, err := a.scrub(s.Text)
	if err != nil {
		return Outcome{Status: OutcomeUnavailable, Err: err}
	}

	prompt := BuildPrompt(scrubbed.Content, s.Dates, assessmentContext)
	raw, err := a.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return Outcome{Status: OutcomeUnavailable, Redacted: scrubbed.Redacted(), Err: err}
	}

	entries, dropped, err := ParseResponse(raw, s.Dates)
	if err != nil {
		return Outcome{Status: OutcomeMalformed, Redacted: scrubbed.Redacted(), Err: err}
	}
	return Outcome{Status: OutcomeOK, Entries: entries, Dropped: dropped, Redacted: scrubbed.Redacted()}
}

// FormatAssessmentContext renders graded components one per line as
// "- <name> (<category>, <weight>% of grade)".
func FormatAssessmentContext(components []AssessmentComponent) string {
	if len(components) == 0 {
		return ""
	}
	lines := make([]string, 0, len(components))
	for _, c := range components {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = "Unknown"
		}
		category := strings.TrimSpace(c.Category)
		if category == "" {
			category = string(CategoryAssignment)
		}
		weight := strconv.FormatFloat(c.Weight, 'f', -1, 64)
		lines = append(lines, fmt.Sprintf("- %s (%s, %s%% of grade)", name, category, weight))
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt renders the user prompt for one snippet. allowed is the
// snippet's date-hint list; assessmentContext may be empty.
func BuildPrompt(text string, allowed []string, assessmentContext string) string {
	hint := strings.Join(allowed, ", ")

	var graded string
	if assessmentContext != "" {
		graded = "\n\nGRADED ASSESSMENT COMPONENTS:\n" +
			"The following are graded assignments/exams from the TESTS / grading section:\n" +
			assessmentContext + "\n\n" +
			"If the snippet mentions any of these graded components, classify them as\n" +
			"'hard_deadline' with type 'assignment', 'exam', 'project' or 'assessment' as appropriate,\n" +
			"NOT as preparatory reading.\n"
	}

	var b strings.Builder
	b.WriteString(`You are processing a short excerpt from a university syllabus. The text is
shown below. It contains one or more explicit date strings.

Your job is to identify ONLY the concrete student tasks/deadlines in this snippet,
GROUPED BY DATE STRING.

The allowed date strings for this snippet are:
`)
	b.WriteString(hint)
	b.WriteString(graded)
	b.WriteString(`

### IMPORTANT RULES

1. What counts as a HARD DEADLINE
   - Only create "hard_deadline" items if the text near that date contains
     verbs such as: "due", "submit", "submission", "hand in", "exam",
     "test", "assessment", "quiz", "final", "midterm", "paper", "project",
     "assignment", "deadline".
   - If the date is only used for a class meeting, a review session, or
     "Course and Grading Structure" WITHOUT any of those verbs, do NOT
     invent a deadline. Either treat it as "class_session" or "ignore".
   - If there are MULTIPLE assignments/assessments/projects mentioned for
     the same date, create a separate hard_deadline entry for EACH distinct
     deliverable.

2. What counts as READING TASKS
   - Only create reading tasks for items under headings like:
     "Readings", "Readings for Discussion", "Read before class",
     "Required Reading", "Recommended Reading", "Preparatory", "Mandatory".
   - Recommended readings explicitly marked as such may use type
     "reading_optional".
   - Do NOT create reading tasks from bullets under "Topics", "Timing",
     or other lecture content sections unless the text explicitly says
     "Read", "Reading", "Chapter", "Ch.", "Chap." or clearly names a
     book/article or chapter/section.

3. In-Class Assessments
   - If the snippet mentions "In-Class Assessment" or "in-class skills
     assessment", create at least one "hard_deadline" of type
     "assessment" on that date for each such occurrence, even if you also
     represent the session as "class_session".

4. Avoid generic umbrella deadlines
   - Do NOT create vague tasks like "Submit primary research assignments"
     unless the snippet explicitly says that ALL of them are due on that
     exact date. Prefer the specific names used by the syllabus.

5. Multi-date phrases
   - When a sentence mentions multiple dates (e.g., a class on one date
     and something "due" on a different date), assign the deadline to the
     date that appears in the same "due/submit" phrase.

6. Do NOT hallucinate
   - Use ONLY the date strings above; do not invent new dates.
   - Do not create tasks that cannot be clearly justified from the text.

### OUTPUT FORMAT

Return a JSON ARRAY. Each element corresponds to ONE date string and has:

{
  "kind": "class_session" | "hard_deadline" | "ignore",
  "date_string": "<one of: `)
	b.WriteString(hint)
	b.WriteString(`>",
  "session_title": "optional, for class_session",
  "prep_tasks": [
    {"title": "...", "type": "reading_preparatory" | "reading_optional" | "reading_mandatory"}
  ],
  "mandatory_tasks": [
    {"title": "...", "type": "reading_mandatory" | "reading_optional"}
  ],
  "hard_deadlines": [
    {
      "title": "...",
      "type": "assignment" | "exam" | "project" | "assessment" | "administrative",
      "description": "max 120 chars",
      "assessment_name": "optional, exact name from the graded components list if this matches one"
    }
  ]
}

If nothing useful for a given date, omit that date entirely or set
"kind": "ignore" and empty lists.

Syllabus snippet:
"""`)
	b.WriteString(text)
	b.WriteString(`"""`)
	return b.String()
}
