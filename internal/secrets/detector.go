package secrets

import (
	"regexp"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// Finding locates a detected secret. The secret itself is not kept.
type Finding struct {
	RuleID   string
	RuleDesc string
	// Line starts at 1. gitleaks counts from 0.
	Line     int
	StartCol int
	EndCol   int
}

// Detect scans content with the gitleaks default rules. allowlist may be
// nil.
func Detect(content string, allowlist *Allowlist) ([]Finding, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, err
	}
	if allowlist != nil && len(allowlist.Regexes) > 0 {
		applyAllowlist(&detector.Config, allowlist)
	}

	found := detector.DetectString(content)
	out := make([]Finding, 0, len(found))
	for _, f := range found {
		out = append(out, Finding{
			RuleID:   f.RuleID,
			RuleDesc: f.Description,
			Line:     f.StartLine + 1,
			StartCol: f.StartColumn,
			EndCol:   f.EndColumn,
		})
	}
	return out, nil
}

// applyAllowlist adds the patterns as a global gitleaks allowlist.
// Patterns were compiled once already by LoadAllowlist.
func applyAllowlist(cfg *gitleaksConfig.Config, allowlist *Allowlist) {
	global := &gitleaksConfig.Allowlist{Description: "ghsock allowlist"}
	for _, pattern := range allowlist.Regexes {
		re := regexp.MustCompile(pattern)
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	global.StopWords = append(global.StopWords, allowlist.Regexes...)
	cfg.Allowlists = append(cfg.Allowlists, global)
}

// RuleIDs returns the distinct rule IDs of findings in first-seen order.
func RuleIDs(findings []Finding) []string {
	seen := make(map[string]bool, len(findings))
	var ids []string
	for _, f := range findings {
		if !seen[f.RuleID] {
			seen[f.RuleID] = true
			ids = append(ids, f.RuleID)
		}
	}
	return ids
}
