package validation

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9]+`)

// minTokenLen excludes short tokens; only tokens longer than this count
const minTokenLen = 2

// requiredTermLen marks a single-occurrence token as domain-significant
const requiredTermLen = 6

// Tokenize returns the case-folded alphanumeric runs of text longer than two characters
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if len(tok) > minTokenLen {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// RequiredTerms returns the job description tokens that occur at least twice
// or are longer than six characters, sorted
func RequiredTerms(jobDescription string) []string {
	counts := make(map[string]int)
	for _, tok := range Tokenize(jobDescription) {
		counts[tok]++
	}
	var required []string
	for tok, n := range counts {
		if n >= 2 || len(tok) > requiredTermLen {
			required = append(required, tok)
		}
	}
	sort.Strings(required)
	return required
}

// Coverage holds the keyword coverage computation
type Coverage struct {
	Score   float64
	Covered []string
	Missing []string
}

// KeywordCoverage scores how many required job description terms appear in the draft text
func KeywordCoverage(jobDescription, draftText string) Coverage {
	required := RequiredTerms(jobDescription)
	present := make(map[string]bool)
	for _, tok := range Tokenize(draftText) {
		present[tok] = true
	}

	cov := Coverage{Covered: []string{}, Missing: []string{}}
	for _, term := range required {
		if present[term] {
			cov.Covered = append(cov.Covered, term)
		} else {
			cov.Missing = append(cov.Missing, term)
		}
	}

	denom := len(required)
	if denom < 1 {
		denom = 1
	}
	cov.Score = round2(float64(len(cov.Covered)) / float64(denom))
	return cov
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
