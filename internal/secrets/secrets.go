package secrets

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// ErrInvalidRegex indicates an allowlist pattern failed to compile.
var ErrInvalidRegex = errors.New("invalid regex pattern")

// Scrubber masks secrets in text.
type Scrubber interface {
	Scrub(content string) Result
}

// Finding is one detected secret.
type Finding struct {
	RuleID      string
	Description string
	Line        int
	Secret      string
}

// Result is scrubbed content plus what was removed from it.
type Result struct {
	Content  string
	Findings []Finding
}

// Redacted reports the number of findings.
func (r Result) Redacted() int {
	return len(r.Findings)
}

// ByRule counts findings per rule ID.
func (r Result) ByRule() map[string]int {
	out := make(map[string]int, len(r.Findings))
	for _, f := range r.Findings {
		out[f.RuleID]++
	}
	return out
}

// Config configures a Detector.
type Config struct {
	// Allowlist holds content regexes that are never treated as secrets.
	Allowlist []string `koanf:"allowlist"`
}

// Validate compiles every allowlist pattern.
func (c Config) Validate() error {
	_, err := compileAll(c.Allowlist)
	return err
}

// Detector is a Scrubber over one Gitleaks detector. Scans share the
// detector and are serialized.
type Detector struct {
	mu       sync.Mutex
	detector *detect.Detector
}

// New builds a Detector with the default Gitleaks rules plus cfg's
// allowlist.
func New(cfg Config) (*Detector, error) {
	allow, err := compileAll(cfg.Allowlist)
	if err != nil {
		return nil, err
	}
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading gitleaks rules: %w", err)
	}
	if len(allow) > 0 {
		applyAllowlist(&d.Config, allow)
	}
	return &Detector{detector: d}, nil
}

var (
	defaultOnce     sync.Once
	defaultDetector *Detector
	defaultErr      error
)

// Default returns a process-wide Detector without an allowlist. Loading the
// Gitleaks rule set is slow, so it happens once.
func Default() (*Detector, error) {
	defaultOnce.Do(func() {
		defaultDetector, defaultErr = New(Config{})
	})
	return defaultDetector, defaultErr
}

// Scrub replaces each detected secret with "[REDACTED:<rule-id>]".
func (d *Detector) Scrub(content string) Result {
	if strings.TrimSpace(content) == "" {
		return Result{Content: content}
	}

	d.mu.Lock()
	found := d.detector.DetectString(content)
	d.mu.Unlock()

	findings := make([]Finding, 0, len(found))
	for _, f := range found {
		secret := f.Secret
		if secret == "" {
			secret = f.Match
		}
		if secret == "" {
			continue
		}
		findings = append(findings, Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Line:        f.StartLine,
			Secret:      secret,
		})
	}
	return Result{Content: replaceFindings(content, findings), Findings: findings}
}

// replaceFindings masks longer secrets first so a secret that contains
// another is replaced whole.
func replaceFindings(content string, findings []Finding) string {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Secret) > len(sorted[j].Secret)
	})
	for _, f := range sorted {
		content = strings.ReplaceAll(content, f.Secret, "[REDACTED:"+f.RuleID+"]")
	}
	return content
}

// applyAllowlist adds a global Gitleaks allowlist for content regexes.
func applyAllowlist(cfg *gitleaksConfig.Config, allow []*regexp.Regexp) {
	global := &gitleaksConfig.Allowlist{
		Description: "syllabusd oracle allowlist",
	}
	for _, re := range allow {
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	cfg.Allowlists = append(cfg.Allowlists, global)
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidRegex, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Nop is a Scrubber that returns content unchanged.
type Nop struct{}

func (Nop) Scrub(content string) Result { return Result{Content: content} }

var (
	_ Scrubber = (*Detector)(nil)
	_ Scrubber = Nop{}
)
