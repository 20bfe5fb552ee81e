// Package validation performs deterministic structural and keyword-coverage checks on resume drafts.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/resume-tailor/internal/schemas"
	"github.com/jonathan/resume-tailor/internal/types"
)

// PassThreshold is the minimum coverage score for a PASS report
const PassThreshold = 0.6

// Change log entry kinds
const (
	ChangeKeywordCoverage    = "keyword_coverage"
	ChangeNewEntities        = "new_entities_detected"
	ChangeSectionsMissing    = "sections_missing"
	ChangeGenerationDegraded = "generation_degraded"
)

// Validate assesses draft sections against the source resume and job description.
// It has no side effects: identical inputs always yield identical reports.
func Validate(sections types.Sections, source *types.ParsedDocument, jobDescription string) *types.ValidationReport {
	coverage := KeywordCoverage(jobDescription, DraftText(sections))
	introduced := IntroducedEntities(sections, NewSourceIndex(source))
	missing := MissingSections(sections)

	report := &types.ValidationReport{
		Status: types.ReportPass,
		KeywordCoverage: types.KeywordCoverage{
			Score:   coverage.Score,
			Covered: coverage.Covered,
			Missing: coverage.Missing,
		},
		MissingSections:    missing,
		IntroducedEntities: introduced,
		ChangeLog:          []types.ChangeLogEntry{},
	}
	if coverage.Score < PassThreshold || len(missing) > 0 || len(introduced) > 0 {
		report.Status = types.ReportReview
	}

	report.Append(ChangeKeywordCoverage,
		fmt.Sprintf("score=%.2f covered=[%s] missing=[%s]", coverage.Score, strings.Join(coverage.Covered, ", "), strings.Join(coverage.Missing, ", ")),
		"Ensure the tailored resume aligns with employer language.")
	if len(introduced) > 0 {
		report.Append(ChangeNewEntities, strings.Join(introduced, "; "),
			"Flag entries not present in source resume for manual verification.")
	}
	if len(missing) > 0 {
		report.Append(ChangeSectionsMissing, strings.Join(missing, ", "),
			"All required resume sections must be populated before delivery.")
	}
	return report
}

// ValidateDraft checks the draft's structure and then validates its sections.
// Degradations recorded by generation are carried into the change log.
// An error is returned only for a structurally malformed draft.
func ValidateDraft(draft *types.Draft, source *types.ParsedDocument, jobDescription string) (*types.ValidationReport, error) {
	if draft == nil {
		return nil, &Error{Message: "draft is missing"}
	}
	if draft.Sections == nil {
		return nil, &Error{Message: "draft has no sections"}
	}
	doc, err := json.Marshal(draft)
	if err != nil {
		return nil, &Error{Message: "failed to encode draft", Cause: err}
	}
	if err := schemas.Validate(schemas.DraftSchema, doc); err != nil {
		return nil, &Error{Message: "draft is malformed", Cause: err}
	}

	report := Validate(draft.Sections, source, jobDescription)
	for _, d := range draft.Degradations {
		report.Append(ChangeGenerationDegraded, fmt.Sprintf("%s: %s", d.Stage, d.Reason),
			"Generation substituted raw or empty output for this stage; review the affected content.")
	}
	return report, nil
}

// DraftText joins every section entry into one text for keyword scoring
func DraftText(sections types.Sections) string {
	var sb strings.Builder
	for _, name := range sections.OrderedNames() {
		for _, entry := range sections[name].Entries() {
			sb.WriteString(entry)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
