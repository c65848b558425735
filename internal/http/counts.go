package http

import "github.com/fyrsmithlabs/syllabusd/internal/extraction"

// ItemCounts summarizes an assembled item list.
type ItemCounts struct {
	Deadlines    int `json:"deadlines"`
	Sessions     int `json:"sessions"`
	Readings     int `json:"readings"`
	Placeholders int `json:"placeholders"`
}

// CountItems tallies deadlines, sessions and their readings.
//
// The "no deadlines found" sentinel is counted under Placeholders, not
// Deadlines, so callers can tell an empty syllabus from a real result.
func CountItems(items []extraction.Item) ItemCounts {
	var c ItemCounts
	for _, it := range items {
		switch {
		case it.Session != nil:
			c.Sessions++
			c.Readings += len(it.Session.Readings)
		case it.Deadline != nil && it.Deadline.Placeholder:
			c.Placeholders++
		case it.Deadline != nil:
			c.Deadlines++
		}
	}
	return c
}
