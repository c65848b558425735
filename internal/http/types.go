package http

import "github.com/fyrsmithlabs/syllabusd/internal/extraction"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Oracle  string `json:"oracle"`  // "configured" or "disabled"
	Publish string `json:"publish"` // "enabled" or "disabled"
}

// ExtractRequest is the request body for POST /api/v1/extract.
type ExtractRequest struct {
	Text        string                           `json:"text"`
	DocumentID  string                           `json:"document_id,omitempty"`
	Assessments []extraction.AssessmentComponent `json:"assessments,omitempty"`
	// Publish hands the result to NATS after extraction.
	Publish bool `json:"publish,omitempty"`
}

// ExtractResponse is the response body for POST /api/v1/extract.
type ExtractResponse struct {
	RunID        string                   `json:"run_id"`
	DocumentID   string                   `json:"document_id,omitempty"`
	Items        []extraction.Item        `json:"items"`
	Counts       ItemCounts               `json:"counts"`
	Snippets     int                      `json:"snippets"`
	Outcomes     extraction.OutcomeCounts `json:"outcomes"`
	UsedFallback bool                     `json:"used_fallback"`
	Published    bool                     `json:"published,omitempty"`
	PublishError string                   `json:"publish_error,omitempty"`
}

func newExtractResponse(res *extraction.Result) ExtractResponse {
	items := res.Items
	if items == nil {
		items = []extraction.Item{}
	}
	return ExtractResponse{
		RunID:        res.RunID,
		DocumentID:   res.DocumentID,
		Items:        items,
		Counts:       CountItems(items),
		Snippets:     res.Snippets,
		Outcomes:     res.Outcomes,
		UsedFallback: res.UsedFallback,
	}
}

// SnippetsRequest is the request body for POST /api/v1/snippets.
type SnippetsRequest struct {
	Text string `json:"text"`
}

// SnippetsResponse is the response body for POST /api/v1/snippets.
type SnippetsResponse struct {
	Snippets []SnippetView `json:"snippets"`
}

// SnippetView is one segmented window as the debug listing shows it.
type SnippetView struct {
	Text         string   `json:"text"`
	Dates        []string `json:"dates"`
	StartLine    int      `json:"start_line"`
	EndLine      int      `json:"end_line"`
	Grid         bool     `json:"grid,omitempty"`
	Classifiable bool     `json:"classifiable"`
}
