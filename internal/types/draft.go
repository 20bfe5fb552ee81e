package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Required resume sections, in render order
const (
	SectionSummary        = "Summary"
	SectionSkills         = "Skills"
	SectionExperience     = "Experience"
	SectionEducation      = "Education"
	SectionCertifications = "Certifications"
)

// RequiredSections is the fixed set of sections every draft must carry, in render order
var RequiredSections = []string{
	SectionSummary,
	SectionSkills,
	SectionExperience,
	SectionEducation,
	SectionCertifications,
}

// SectionValue is either a scalar string or an ordered list of strings
type SectionValue struct {
	Text   string
	Items  []string
	IsList bool
}

// Scalar builds a scalar section value
func Scalar(s string) SectionValue {
	return SectionValue{Text: s}
}

// List builds a list section value
func List(items ...string) SectionValue {
	return SectionValue{Items: items, IsList: true}
}

// Entries returns the value's entries: the list items, or the scalar as a single entry
func (v SectionValue) Entries() []string {
	if v.IsList {
		return v.Items
	}
	if v.Text == "" {
		return nil
	}
	return []string{v.Text}
}

// IsEmpty reports whether the value carries no non-blank content
func (v SectionValue) IsEmpty() bool {
	for _, e := range v.Entries() {
		if strings.TrimSpace(e) != "" {
			return false
		}
	}
	return true
}

// MarshalJSON encodes a scalar as a JSON string and a list as an array
func (v SectionValue) MarshalJSON() ([]byte, error) {
	if v.IsList {
		items := v.Items
		if items == nil {
			items = []string{}
		}
		return json.Marshal(items)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON accepts a string, an array of scalars, or null. Non-string
// array members are stringified so loosely typed model output still loads.
func (v *SectionValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = SectionValue{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Scalar(s)
		return nil
	case len(data) > 0 && data[0] == '[':
		var raw []any
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		items := make([]string, 0, len(raw))
		for _, item := range raw {
			switch t := item.(type) {
			case string:
				items = append(items, t)
			case nil:
			default:
				b, _ := json.Marshal(t)
				items = append(items, string(b))
			}
		}
		*v = List(items...)
		return nil
	default:
		return fmt.Errorf("section value must be a string or array, got %s", string(data))
	}
}

// Sections maps section name to its content
type Sections map[string]SectionValue

// Competencies is the output of the competency extraction stage
type Competencies struct {
	Core      []string `json:"coreCompetencies,omitempty"`
	Mandatory []string `json:"mandatoryQualifications,omitempty"`
	Preferred []string `json:"preferredQualifications,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
	// Raw holds the model text when it could not be parsed as JSON
	Raw string `json:"raw,omitempty"`
}

// RiskFlag is an advisory issue raised by the consistency pass
type RiskFlag struct {
	Issue          string `json:"issue"`
	Recommendation string `json:"recommendation"`
}

// Degradation records a generation stage whose output was substituted
type Degradation struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Draft is the generated resume content prior to validation and rendering
type Draft struct {
	Sections            Sections      `json:"sections"`
	Competencies        Competencies  `json:"competencies"`
	AlignmentNotes      string        `json:"alignmentNotes,omitempty"`
	RewrittenExperience string        `json:"rewrittenExperience,omitempty"`
	HarmonizedSkills    []string      `json:"harmonizedSkills,omitempty"`
	ConsistencyNotes    []RiskFlag    `json:"consistencyNotes,omitempty"`
	Degradations        []Degradation `json:"degradations,omitempty"`
}

// Degrade records a stage-local degradation on the draft
func (d *Draft) Degrade(stage, reason string) {
	d.Degradations = append(d.Degradations, Degradation{Stage: stage, Reason: reason})
}

// OrderedNames returns the section names in render order: required sections
// first in their fixed order, then any extra sections alphabetically.
func (s Sections) OrderedNames() []string {
	names := make([]string, 0, len(s))
	seen := make(map[string]bool, len(RequiredSections))
	for _, name := range RequiredSections {
		seen[name] = true
		if _, ok := s[name]; ok {
			names = append(names, name)
		}
	}
	var extra []string
	for name := range s {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}
