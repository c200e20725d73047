// Package secrets redacts credentials from document text before it is
// embedded, using the gitleaks rule set.
package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	gitleaksconfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksregexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// Finding is one detected secret.
type Finding struct {
	RuleID string
	Line   int
	Match  string
}

// Summary aggregates a redaction pass. It never holds secret values.
type Summary struct {
	TotalSecrets int            `json:"total_secrets"`
	RuleCounts   map[string]int `json:"rule_counts"`
	Duration     time.Duration  `json:"duration"`
}

// Result is redacted content plus its summary.
type Result struct {
	Content string
	Summary Summary
}

// Redactor replaces detected secrets with [REDACTED:rule-id:preview] markers.
type Redactor struct {
	allowlist *Allowlist
}

// NewRedactor loads the allowlist at allowlistPath (optional).
func NewRedactor(allowlistPath string) (*Redactor, error) {
	allowlist, err := LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, fmt.Errorf("loading allowlist: %w", err)
	}
	return &Redactor{allowlist: allowlist}, nil
}

// Detect scans content and returns every finding.
func (r *Redactor) Detect(content string) ([]Finding, error) {
	// Detectors keep per-scan state, so each call gets its own.
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("creating detector: %w", err)
	}
	if r.allowlist != nil && len(r.allowlist.Regexes) > 0 {
		applyAllowlist(&detector.Config, r.allowlist)
	}

	raw := detector.DetectString(content)
	findings := make([]Finding, 0, len(raw))
	for _, f := range raw {
		if f.Secret == "" {
			continue
		}
		findings = append(findings, Finding{RuleID: f.RuleID, Line: f.StartLine, Match: f.Secret})
	}
	return findings, nil
}

// Redact detects and replaces secrets in content.
func (r *Redactor) Redact(content string) (Result, error) {
	start := time.Now()
	findings, err := r.Detect(content)
	if err != nil {
		return Result{}, err
	}

	summary := Summary{RuleCounts: make(map[string]int)}
	for _, f := range findings {
		summary.TotalSecrets++
		summary.RuleCounts[f.RuleID]++
	}

	redacted := content
	if len(findings) > 0 {
		redacted = replaceFindings(content, findings)
	}
	summary.Duration = time.Since(start)
	return Result{Content: redacted, Summary: summary}, nil
}

func applyAllowlist(cfg *gitleaksconfig.Config, allowlist *Allowlist) {
	global := &gitleaksconfig.Allowlist{Description: "docledger allowlist"}
	for _, pattern := range allowlist.Regexes {
		// Patterns were compiled once already in LoadAllowlist.
		re := regexp.MustCompile(pattern)
		global.Regexes = append(global.Regexes, (*gitleaksregexp.Regexp)(re))
	}
	global.StopWords = append(global.StopWords, allowlist.Regexes...)
	cfg.Allowlists = append(cfg.Allowlists, global)
}

// replaceFindings swaps each secret for its marker on the line it was found.
// Longer secrets go first so a secret containing another is not split.
func replaceFindings(content string, findings []Finding) string {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Match) > len(sorted[j].Match)
	})

	lines := strings.Split(content, "\n")
	for _, f := range sorted {
		marker := fmt.Sprintf("[REDACTED:%s:%s]", f.RuleID, preview(f.Match, 4))
		idx := f.Line - 1
		if idx >= 0 && idx < len(lines) && strings.Contains(lines[idx], f.Match) {
			lines[idx] = strings.ReplaceAll(lines[idx], f.Match, marker)
			continue
		}
		// Line numbers are advisory; fall back to a global replace.
		for i := range lines {
			lines[i] = strings.ReplaceAll(lines[i], f.Match, marker)
		}
	}
	return strings.Join(lines, "\n")
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
