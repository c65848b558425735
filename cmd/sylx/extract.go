package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/syllabusd/internal/config"
	"github.com/fyrsmithlabs/syllabusd/internal/extraction"
	httpserver "github.com/fyrsmithlabs/syllabusd/internal/http"
	"github.com/fyrsmithlabs/syllabusd/internal/logging"
	"github.com/fyrsmithlabs/syllabusd/internal/snippet"
)

type extractOptions struct {
	documentID     string
	assessments    string
	publish        bool
	local          bool
	configPath     string
	showSnippets   bool
	format         string
	requestTimeout time.Duration
}

func newExtractCmd() *cobra.Command {
	o := &extractOptions{}
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract deadlines and class sessions from a syllabus",
		Long: `Extract hard deadlines and class sessions from syllabus text in a file or stdin.

Examples:
  # Extract through the server
  sylx extract syllabus.txt

  # Extract from stdin and publish the result to NATS
  pdftotext syllabus.pdf - | sylx extract --publish -

  # Run in-process with ~/.config/syllabusd/config.yaml
  sylx extract --local --show-snippets syllabus.txt

  # Give the oracle the graded components
  sylx extract --assessments grading.json syllabus.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.documentID, "document-id", "", "caller document ID attached to the result")
	f.StringVar(&o.assessments, "assessments", "", "JSON file with graded components [{name, category, weight}]")
	f.BoolVar(&o.publish, "publish", false, "publish the result to NATS (server mode)")
	f.BoolVar(&o.local, "local", false, "run the pipeline in-process instead of calling the server")
	f.StringVar(&o.configPath, "config", "", "config file for --local (default ~/.config/syllabusd/config.yaml)")
	f.BoolVar(&o.showSnippets, "show-snippets", false, "print the segmented snippets to stderr before extracting")
	f.StringVarP(&o.format, "output", "o", "text", "output format: text or json")
	f.DurationVar(&o.requestTimeout, "timeout", 10*time.Minute, "request timeout in server mode")
	return cmd
}

func runExtract(cmd *cobra.Command, args []string, o *extractOptions) error {
	if o.format != "text" && o.format != "json" {
		return fmt.Errorf("output must be 'text' or 'json', got %q", o.format)
	}
	if o.local && o.publish {
		return fmt.Errorf("--publish requires server mode")
	}

	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	assessments, err := readAssessments(o.assessments)
	if err != nil {
		return err
	}

	req := httpserver.ExtractRequest{
		Text:        text,
		DocumentID:  o.documentID,
		Assessments: assessments,
		Publish:     o.publish,
	}

	var resp *httpserver.ExtractResponse
	if o.local {
		resp, err = extractLocal(cmd, req, o)
	} else {
		if o.showSnippets {
			snippets, serr := fetchSnippets(cmd.Context(), text, o.requestTimeout)
			if serr != nil {
				return serr
			}
			printSnippets(cmd.ErrOrStderr(), snippets)
		}
		resp, err = extractRemote(cmd.Context(), req, o.requestTimeout)
	}
	if err != nil {
		return err
	}

	if o.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printItems(cmd.OutOrStdout(), resp)
	return nil
}

func extractLocal(cmd *cobra.Command, req httpserver.ExtractRequest, o *extractOptions) (*httpserver.ExtractResponse, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	oracle, err := extraction.NewOracle(cfg.Oracle)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize oracle: %w", err)
	}

	lc := logging.NewDefaultConfig()
	lc.Output = logging.OutputConfig{Stderr: true}
	lc.Format = "console"
	if level, err := logging.LevelFromString(cfg.Observability.LogLevel); err == nil {
		lc.Level = level
	}
	logger, err := logging.NewLogger(lc, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pipeline := extraction.NewPipeline(extraction.PipelineConfigFrom(cfg.Extraction), oracle, extraction.WithLogger(logger))
	if o.showSnippets {
		printSnippets(cmd.ErrOrStderr(), pipeline.Snippets(req.Text))
	}

	res, err := pipeline.Run(cmd.Context(), extraction.Input{
		Text:        req.Text,
		DocumentID:  req.DocumentID,
		Assessments: req.Assessments,
	})
	if err != nil {
		return nil, err
	}

	resp := &httpserver.ExtractResponse{
		RunID:        res.RunID,
		DocumentID:   res.DocumentID,
		Items:        res.Items,
		Counts:       httpserver.CountItems(res.Items),
		Snippets:     res.Snippets,
		Outcomes:     res.Outcomes,
		UsedFallback: res.UsedFallback,
	}
	return resp, nil
}

func extractRemote(ctx context.Context, req httpserver.ExtractRequest, timeout time.Duration) (*httpserver.ExtractResponse, error) {
	var out httpserver.ExtractResponse
	if err := postJSON(ctx, "/api/v1/extract", req, &out, timeout); err != nil {
		return nil, err
	}
	return &out, nil
}

// fetchSnippets asks the server for its segmentation so the listing matches
// the window radii the server extracts with.
func fetchSnippets(ctx context.Context, text string, timeout time.Duration) ([]snippet.Snippet, error) {
	var resp httpserver.SnippetsResponse
	if err := postJSON(ctx, "/api/v1/snippets", httpserver.SnippetsRequest{Text: text}, &resp, timeout); err != nil {
		return nil, err
	}
	out := make([]snippet.Snippet, 0, len(resp.Snippets))
	for _, v := range resp.Snippets {
		out = append(out, snippet.Snippet{
			Text:      v.Text,
			Dates:     v.Dates,
			StartLine: v.StartLine,
			EndLine:   v.EndLine,
			Grid:      v.Grid,
		})
	}
	return out, nil
}

func postJSON(ctx context.Context, path string, body, out any, timeout time.Duration) error {
	reqJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := serverURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func readAssessments(path string) ([]extraction.AssessmentComponent, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read assessments %s: %w", path, err)
	}
	var out []extraction.AssessmentComponent
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse assessments %s: %w", path, err)
	}
	return out, nil
}

func printItems(w io.Writer, resp *httpserver.ExtractResponse) {
	for _, it := range resp.Items {
		switch {
		case it.Deadline != nil:
			d := it.Deadline
			marker := ""
			if d.Placeholder {
				marker = " (placeholder)"
			}
			fmt.Fprintf(w, "DEADLINE  %-10s  %-14s  %s%s\n", d.Date, d.Category, d.Title, marker)
		case it.Session != nil:
			s := it.Session
			fmt.Fprintf(w, "SESSION   %-10s  %-14s  %s\n", s.Date, "", s.Title)
			for _, r := range s.Readings {
				fmt.Fprintf(w, "          %-10s  %-14s  - %s\n", "", r.Role, r.Title)
			}
		}
	}

	source := "oracle"
	if resp.UsedFallback {
		source = "keyword fallback"
	}
	fmt.Fprintf(w, "\n%d deadline(s), %d session(s), %d reading(s) from %d snippet(s) via %s\n",
		resp.Counts.Deadlines, resp.Counts.Sessions, resp.Counts.Readings, resp.Snippets, source)
	if resp.Published {
		fmt.Fprintf(w, "Published run %s\n", resp.RunID)
	}
	if resp.PublishError != "" {
		fmt.Fprintf(w, "Publish failed: %s\n", resp.PublishError)
	}
}
