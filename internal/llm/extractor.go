package llm

import (
	"fmt"
	"strings"
)

// ExtractionSchema defines the JSON shape a prompt asks the model to return
type ExtractionSchema struct {
	Name        string        // Schema name (e.g., "Competencies")
	Description string        // Task preamble describing the extraction
	Fields      []SchemaField // Expected output fields
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint: "string", "[]string", "map[string]string"
	Description string // Description for the LLM
	Required    bool   // Whether this field is required
}

// BuildExtractionPrompt constructs the LLM prompt from schema and input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Use only facts present in the input, do not invent employers, dates, or credentials.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n\n")

	sb.WriteString("Input:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// MaxCompetencyItems bounds each competency category
const MaxCompetencyItems = 12

// CompetencySchema describes the competency extraction output
func CompetencySchema(description string) ExtractionSchema {
	list := fmt.Sprintf("[\"string\"] (at most %d)", MaxCompetencyItems)
	return ExtractionSchema{
		Name:        "Competencies",
		Description: description,
		Fields: []SchemaField{
			{Name: "core_competencies", Type: list, Description: "Central skills and capabilities the role depends on", Required: true},
			{Name: "mandatory_qualifications", Type: list, Description: "Hard requirements stated by the employer", Required: true},
			{Name: "preferred_qualifications", Type: list, Description: "Nice-to-have qualifications"},
			{Name: "keywords", Type: list, Description: "Terms an applicant tracking system would match on", Required: true},
		},
	}
}

// AssemblySchema describes the final resume sections output
func AssemblySchema(description string) ExtractionSchema {
	return ExtractionSchema{
		Name:        "TailoredResume",
		Description: description,
		Fields: []SchemaField{
			{Name: "Summary", Type: "\"string\"", Description: "Three to four sentence professional summary", Required: true},
			{Name: "Skills", Type: "[\"string\"]", Description: "Harmonized skill list, most relevant first", Required: true},
			{Name: "Experience", Type: "[\"string\"]", Description: "One entry per role: title, employer, dates, then rewritten bullets", Required: true},
			{Name: "Education", Type: "[\"string\"]", Description: "Degrees exactly as in the source resume", Required: true},
			{Name: "Certifications", Type: "[\"string\"]", Description: "Certifications exactly as in the source resume", Required: true},
		},
	}
}
