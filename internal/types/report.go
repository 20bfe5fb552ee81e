package types

// ReportStatus is the outcome of validation
type ReportStatus string

// Validation outcomes
const (
	ReportPass   ReportStatus = "PASS"
	ReportReview ReportStatus = "REVIEW"
)

// KeywordCoverage summarizes how many required job description terms the draft uses
type KeywordCoverage struct {
	Score   float64  `json:"score"`
	Covered []string `json:"covered"`
	Missing []string `json:"missing"`
}

// ChangeLogEntry is one line of the report's audit trail
type ChangeLogEntry struct {
	Change    string `json:"change"`
	Details   string `json:"details"`
	Rationale string `json:"rationale"`
}

// ValidationReport is the deterministic assessment of a draft
type ValidationReport struct {
	Status             ReportStatus     `json:"status"`
	KeywordCoverage    KeywordCoverage  `json:"keywordCoverage"`
	MissingSections    []string         `json:"missingSections"`
	IntroducedEntities []string         `json:"introducedEntities"`
	ChangeLog          []ChangeLogEntry `json:"changeLog"`
}

// Append adds an entry to the change log
func (r *ValidationReport) Append(change, details, rationale string) {
	r.ChangeLog = append(r.ChangeLog, ChangeLogEntry{Change: change, Details: details, Rationale: rationale})
}
