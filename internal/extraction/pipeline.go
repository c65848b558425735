package extraction

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/syllabusd/internal/logging"
	"github.com/fyrsmithlabs/syllabusd/internal/snippet"
)

// Pipeline defaults.
const (
	DefaultMaxConcurrency = 4
	DefaultSnippetTimeout = 90 * time.Second
)

// PipelineConfig configures one Pipeline.
type PipelineConfig struct {
	Window         snippet.Options `json:"window"`
	MaxConcurrency int             `json:"max_concurrency"`
	SnippetTimeout time.Duration   `json:"snippet_timeout"`
	Fallback       FallbackConfig  `json:"fallback"`
}

// DefaultPipelineConfig returns the standard configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Window:         snippet.DefaultOptions(),
		MaxConcurrency: DefaultMaxConcurrency,
		SnippetTimeout: DefaultSnippetTimeout,
		Fallback:       DefaultFallbackConfig(),
	}
}

// Input is one document to extract from.
type Input struct {
	Text        string                `json:"text"`
	DocumentID  string                `json:"document_id,omitempty"`
	Assessments []AssessmentComponent `json:"assessments,omitempty"`
}

// OutcomeCounts tallies oracle outcomes and discarded proposals for a run.
type OutcomeCounts struct {
	OK          int `json:"ok"`
	Malformed   int `json:"malformed"`
	Unavailable int `json:"unavailable"`
	// Dropped counts elements rejected by response validation.
	Dropped int `json:"dropped"`
	// Gated counts hard deadline entries rejected by trigger gates.
	Gated int `json:"gated"`
	// Redacted counts secrets masked before snippets reached the oracle.
	Redacted int `json:"redacted"`
}

// Attempted returns the number of oracle calls made.
func (c OutcomeCounts) Attempted() int {
	return c.OK + c.Malformed + c.Unavailable
}

// Result is the output of one run.
type Result struct {
	RunID        string        `json:"run_id"`
	DocumentID   string        `json:"document_id,omitempty"`
	Items        []Item        `json:"items"`
	Snippets     int           `json:"snippets"`
	Outcomes     OutcomeCounts `json:"outcomes"`
	UsedFallback bool          `json:"used_fallback"`
}

// Deadlines returns the hard deadline entities in output order.
func (r *Result) Deadlines() []HardDeadline {
	var out []HardDeadline
	for _, it := range r.Items {
		if it.Deadline != nil {
			out = append(out, *it.Deadline)
		}
	}
	return out
}

// Sessions returns the class session entities in output order.
func (r *Result) Sessions() []ClassSession {
	var out []ClassSession
	for _, it := range r.Items {
		if it.Session != nil {
			out = append(out, *it.Session)
		}
	}
	return out
}

// PipelineOption configures optional Pipeline collaborators.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logging.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTracer sets the tracer. The default is the global provider's tracer.
func WithTracer(t trace.Tracer) PipelineOption {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithClock overrides the time source used by the keyword fallback.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.fallback.now = now
		}
	}
}

// Pipeline runs segmentation, oracle classification, deterministic
// extraction, the keyword fallback and assembly for one document at a time.
// It is safe for concurrent use.
type Pipeline struct {
	cfg      PipelineConfig
	oracle   *Adapter
	fallback *KeywordExtractor
	logger   *logging.Logger
	tracer   trace.Tracer
	metrics  *Metrics
}

// NewPipeline builds a Pipeline. oracle may be nil. An invalid fallback
// keyword pattern falls back to the default keyword map.
func NewPipeline(cfg PipelineConfig, oracle *Adapter, opts ...PipelineOption) *Pipeline {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.SnippetTimeout <= 0 {
		cfg.SnippetTimeout = DefaultSnippetTimeout
	}

	fallback, err := NewKeywordExtractor(cfg.Fallback)
	if err != nil {
		fallback, _ = NewKeywordExtractor(FallbackConfig{
			MaxLines:       cfg.Fallback.MaxLines,
			Lookahead:      cfg.Fallback.Lookahead,
			EstimatedHours: cfg.Fallback.EstimatedHours,
		})
	}

	p := &Pipeline{
		cfg:      cfg,
		oracle:   oracle,
		fallback: fallback,
		logger:   logging.NewNop(),
		tracer:   otel.Tracer(InstrumentationName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OracleConfigured reports whether the pipeline has an oracle.
func (p *Pipeline) OracleConfigured() bool {
	return p.oracle != nil
}

// Snippets returns the segmented snippets for text, classifiable or not.
func (p *Pipeline) Snippets(text string) []snippet.Snippet {
	return snippet.Segment(text, p.cfg.Window)
}

// Run extracts items from one document. It fails only for whitespace-only
// text; oracle failures degrade to fewer items or to the keyword fallback.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, ErrEmptyInput
	}
	start := time.Now()

	res := &Result{RunID: uuid.NewString(), DocumentID: in.DocumentID}
	ctx = logging.WithRunID(ctx, res.RunID)
	if in.DocumentID != "" {
		ctx = logging.WithDocumentID(ctx, in.DocumentID)
	}

	ctx, span := p.tracer.Start(ctx, "extraction.Run", trace.WithAttributes(
		attribute.String("extraction.run_id", res.RunID),
		attribute.Int("extraction.text_bytes", len(in.Text)),
		attribute.Bool("extraction.oracle_configured", p.oracle != nil),
	))
	defer span.End()

	var classifiable []snippet.Snippet
	for _, s := range p.Snippets(in.Text) {
		if s.Classifiable() {
			classifiable = append(classifiable, s)
		}
	}
	res.Snippets = len(classifiable)

	outcomes := p.classifyAll(ctx, classifiable, FormatAssessmentContext(in.Assessments))

	asm := NewAssembler()
	for i, out := range outcomes {
		res.Outcomes.Redacted += out.Redacted
		switch out.Status {
		case OutcomeOK:
			res.Outcomes.OK++
		case OutcomeMalformed:
			res.Outcomes.Malformed++
			continue
		case OutcomeUnavailable:
			res.Outcomes.Unavailable++
			continue
		default:
			continue
		}
		res.Outcomes.Dropped += out.Dropped

		kept := ClassifyTriggers(classifiable[i].Text).Apply(out.Entries)
		res.Outcomes.Gated += len(out.Entries) - len(kept)
		for _, e := range kept {
			asm.AddEntry(e)
		}
	}
	p.metrics.recordDropped("validation", res.Outcomes.Dropped)
	p.metrics.recordDropped("trigger_gate", res.Outcomes.Gated)

	patternLines := make(map[int]bool)
	for _, d := range ExtractPatterns(in.Text) {
		patternLines[d.Line] = true
		asm.AddDeadline(d)
	}

	// No oracle answer at all: not configured, no classifiable snippet,
	// or every call unavailable.
	attempted := res.Outcomes.Attempted()
	if res.Outcomes.Unavailable == attempted {
		res.UsedFallback = true
		p.logger.Info(ctx, "oracle unavailable, using keyword fallback",
			zap.Bool("oracle_configured", p.oracle != nil),
			zap.Int("attempted", attempted))

		var sentinel *HardDeadline
		for _, d := range p.fallback.Extract(in.Text) {
			if d.Placeholder {
				sentinel = &d
				continue
			}
			if patternLines[d.Line] {
				continue
			}
			asm.AddDeadline(d)
		}
		if asm.Len() == 0 && sentinel != nil {
			asm.AddDeadline(*sentinel)
		}
	}

	res.Items = asm.Items()

	span.SetAttributes(
		attribute.Int("extraction.snippets", res.Snippets),
		attribute.Int("extraction.items", len(res.Items)),
		attribute.Bool("extraction.used_fallback", res.UsedFallback),
	)
	span.SetStatus(codes.Ok, "")
	p.metrics.recordRun(res, time.Since(start))

	p.logger.Info(ctx, "extraction run complete",
		zap.Int("snippets", res.Snippets),
		zap.Int("oracle_ok", res.Outcomes.OK),
		zap.Int("oracle_malformed", res.Outcomes.Malformed),
		zap.Int("oracle_unavailable", res.Outcomes.Unavailable),
		zap.Int("dropped", res.Outcomes.Dropped),
		zap.Int("gated", res.Outcomes.Gated),
		zap.Int("redacted", res.Outcomes.Redacted),
		zap.Int("items", len(res.Items)),
		zap.Bool("used_fallback", res.UsedFallback),
		zap.Duration("elapsed", time.Since(start)))

	return res, nil
}

// classifyAll fans snippets out to the oracle under the concurrency limit.
// Each call gets its own timeout; one failing call never cancels another.
// results[i] belongs to snippets[i].
func (p *Pipeline) classifyAll(ctx context.Context, snippets []snippet.Snippet, assessmentContext string) []Outcome {
	if p.oracle == nil || len(snippets) == 0 {
		return nil
	}
	results := make([]Outcome, len(snippets))

	var g errgroup.Group
	g.SetLimit(p.cfg.MaxConcurrency)
	for i, s := range snippets {
		g.Go(func() error {
			results[i] = p.classifyOne(ctx, i, s, assessmentContext)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) classifyOne(ctx context.Context, idx int, s snippet.Snippet, assessmentContext string) Outcome {
	ctx, span := p.tracer.Start(ctx, "extraction.classifySnippet", trace.WithAttributes(
		attribute.Int("snippet.index", idx),
		attribute.Int("snippet.start_line", s.StartLine),
		attribute.StringSlice("snippet.dates", s.Dates),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.SnippetTimeout)
	defer cancel()

	out := p.oracle.Classify(ctx, s, assessmentContext)
	p.metrics.recordOutcome(out.Status)
	span.SetAttributes(
		attribute.String("oracle.status", string(out.Status)),
		attribute.Int("oracle.entries", len(out.Entries)),
		attribute.Int("oracle.dropped", out.Dropped),
		attribute.Int("snippet.redacted", out.Redacted),
	)
	if out.Redacted > 0 {
		p.logger.Debug(ctx, "masked secrets in snippet",
			zap.Int("snippet", idx),
			zap.Int("count", out.Redacted))
	}

	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, string(out.Status))
		p.logger.Warn(ctx, "snippet classification failed",
			zap.Int("snippet", idx),
			zap.Int("start_line", s.StartLine),
			zap.String("status", string(out.Status)),
			zap.Error(out.Err))
	}
	return out
}
