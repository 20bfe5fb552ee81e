package validation

import (
	"sort"
	"strings"

	"github.com/jonathan/resume-tailor/internal/types"
)

// MaxIntroducedEntities bounds the introduced entity list in a report
const MaxIntroducedEntities = 50

// normalize lowercases text and collapses internal whitespace
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// SourceIndex is the set of normalized lines and words of the source resume
type SourceIndex map[string]struct{}

// NewSourceIndex indexes a parsed resume. Lines and words are both indexed
// so single-term entries like a skill match on their word.
func NewSourceIndex(doc *types.ParsedDocument) SourceIndex {
	idx := make(SourceIndex)
	if doc == nil {
		return idx
	}
	add := func(s string) {
		if n := normalize(s); n != "" {
			idx[n] = struct{}{}
		}
	}
	lines := doc.Lines
	if len(lines) == 0 {
		lines = strings.Split(doc.Text, "\n")
	}
	for _, line := range lines {
		add(line)
	}
	words := doc.Words
	if len(words) == 0 {
		words = strings.Fields(doc.Text)
	}
	for _, word := range words {
		add(word)
	}
	return idx
}

// Contains reports whether the normalized entry is present in the source
func (idx SourceIndex) Contains(entry string) bool {
	_, ok := idx[normalize(entry)]
	return ok
}

// IntroducedEntities lists section entries absent from the source resume as
// "Section: entry", visiting sections in render order, capped at MaxIntroducedEntities
func IntroducedEntities(sections types.Sections, source SourceIndex) []string {
	introduced := []string{}
	for _, name := range sections.OrderedNames() {
		for _, entry := range sections[name].Entries() {
			if normalize(entry) == "" || source.Contains(entry) {
				continue
			}
			introduced = append(introduced, name+": "+entry)
			if len(introduced) == MaxIntroducedEntities {
				return introduced
			}
		}
	}
	return introduced
}

// MissingSections returns the required sections that are absent or empty, sorted
func MissingSections(sections types.Sections) []string {
	missing := []string{}
	for _, name := range types.RequiredSections {
		v, ok := sections[name]
		if !ok || v.IsEmpty() {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
