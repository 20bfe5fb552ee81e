// Package pii flags personally identifiable information in job descriptions.
// Findings are advisory and never block a job.
package pii

import (
	"context"
	"regexp"
	"sort"

	"github.com/jonathan/resume-tailor/internal/types"
)

// Entity types reported by RegexScreener
const (
	TypeEmail = "EMAIL"
	TypePhone = "PHONE"
	TypeSSN   = "SSN"
	TypeURL   = "URL"
)

// Screener detects PII entities in text
type Screener interface {
	Screen(ctx context.Context, text string) ([]types.PIIEntity, error)
}

type detector struct {
	kind    string
	pattern *regexp.Regexp
}

// detectors run in order; a span claimed by an earlier detector is not reported again
var detectors = []detector{
	{TypeEmail, regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	{TypeURL, regexp.MustCompile(`(?i)\bhttps?://[^\s<>"')]*[^\s<>"').,;:!?]`)},
	{TypeSSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{TypePhone, regexp.MustCompile(`(?:\+?1[\s.\-]?)?\(?\b\d{3}\)?[\s.\-]?\d{3}[\s.\-]\d{4}\b`)},
}

// RegexScreener finds emails, URLs, SSN-like ids and North American phone numbers
type RegexScreener struct{}

// NewRegexScreener creates a pattern based screener
func NewRegexScreener() *RegexScreener {
	return &RegexScreener{}
}

// Screen returns the entities found in text ordered by offset
func (s *RegexScreener) Screen(ctx context.Context, text string) ([]types.PIIEntity, error) {
	var (
		found   []types.PIIEntity
		claimed [][2]int
	)
	overlaps := func(start, end int) bool {
		for _, c := range claimed {
			if start < c[1] && c[0] < end {
				return true
			}
		}
		return false
	}

	for _, d := range detectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, loc := range d.pattern.FindAllStringIndex(text, -1) {
			if overlaps(loc[0], loc[1]) {
				continue
			}
			claimed = append(claimed, [2]int{loc[0], loc[1]})
			found = append(found, types.PIIEntity{Type: d.kind, Text: text[loc[0]:loc[1]], Offset: loc[0]})
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Offset < found[j].Offset })
	return found, nil
}

// Summary counts entities by type
func Summary(entities []types.PIIEntity) map[string]int {
	counts := make(map[string]int)
	for _, e := range entities {
		counts[e.Type]++
	}
	return counts
}
