package extraction

import "strings"

type deadlineKey struct {
	category Category
	date     string
	title    string
}

type sessionKey struct {
	date  string
	title string
}

// Assembler collects candidates in arrival order. Hard deadlines are
// deduplicated first-wins on (category, date, normalized title). Sessions
// merge on (date, title): the first creates the session, later ones append
// their readings. It is not safe for concurrent use.
type Assembler struct {
	deadlines    []HardDeadline
	deadlineSeen map[deadlineKey]struct{}
	sessions     []*ClassSession
	sessionIndex map[sessionKey]int
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		deadlineSeen: make(map[deadlineKey]struct{}),
		sessionIndex: make(map[sessionKey]int),
	}
}

// AddDeadline adds d unless an equivalent deadline was already added. It
// reports whether d was kept.
func (a *Assembler) AddDeadline(d HardDeadline) bool {
	key := deadlineKey{category: d.Category, date: d.Date, title: normalizeTitle(d.Title)}
	if _, ok := a.deadlineSeen[key]; ok {
		return false
	}
	a.deadlineSeen[key] = struct{}{}
	a.deadlines = append(a.deadlines, d)
	return true
}

// AddSession creates or extends the session for s's (date, title). It
// reports whether a new session was created.
func (a *Assembler) AddSession(s ClassSession) bool {
	key := sessionKey{date: s.Date, title: strings.TrimSpace(s.Title)}
	if i, ok := a.sessionIndex[key]; ok {
		a.sessions[i].Readings = append(a.sessions[i].Readings, s.Readings...)
		return false
	}
	merged := s
	merged.Readings = append([]Reading(nil), s.Readings...)
	a.sessionIndex[key] = len(a.sessions)
	a.sessions = append(a.sessions, &merged)
	return true
}

// AddEntry adds every entity carried by an oracle entry.
func (a *Assembler) AddEntry(e Entry) {
	switch e.Kind {
	case KindHardDeadline:
		for _, d := range e.Deadlines {
			a.AddDeadline(d)
		}
	case KindClassSession:
		if e.Session != nil {
			a.AddSession(*e.Session)
		}
	}
}

// Add routes a tagged item to AddDeadline or AddSession.
func (a *Assembler) Add(it Item) {
	switch {
	case it.Session != nil:
		a.AddSession(*it.Session)
	case it.Deadline != nil:
		a.AddDeadline(*it.Deadline)
	}
}

// Len returns the number of assembled items.
func (a *Assembler) Len() int {
	return len(a.deadlines) + len(a.sessions)
}

// Items returns the deduplicated deadlines followed by the merged sessions,
// each in first-seen order. The returned entities are copies.
func (a *Assembler) Items() []Item {
	out := make([]Item, 0, a.Len())
	for i := range a.deadlines {
		d := a.deadlines[i]
		out = append(out, Item{Deadline: &d})
	}
	for _, s := range a.sessions {
		cp := *s
		cp.Readings = append([]Reading(nil), s.Readings...)
		out = append(out, Item{Session: &cp})
	}
	return out
}

// Assemble runs a fresh Assembler over items.
func Assemble(items []Item) []Item {
	a := NewAssembler()
	for _, it := range items {
		a.Add(it)
	}
	return a.Items()
}

// normalizeTitle lowercases and collapses whitespace.
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
