package rendering

import (
	"strings"

	"github.com/jonathan/resume-tailor/internal/types"
)

// Placeholder marks where tailored content is substituted in a template
const Placeholder = "{{TAILORED_CONTENT}}"

// Document is a format-neutral sequence of paragraphs
type Document struct {
	Paragraphs []string
}

// Text joins the document's paragraphs with newlines
func (d *Document) Text() string {
	if d == nil {
		return ""
	}
	return strings.Join(d.Paragraphs, "\n")
}

// FlattenSections renders sections as lines: an uppercase heading, the scalar
// verbatim or one "- item" line per list entry, then a blank separator line.
// Sections appear in render order.
func FlattenSections(sections types.Sections) []string {
	var lines []string
	for _, name := range sections.OrderedNames() {
		value := sections[name]
		lines = append(lines, strings.ToUpper(name))
		if value.IsList {
			for _, item := range value.Items {
				lines = append(lines, "- "+item)
			}
		} else {
			lines = append(lines, value.Text)
		}
		lines = append(lines, "")
	}
	return lines
}

// FlattenText returns the plain-text rendition of sections
func FlattenText(sections types.Sections) string {
	return strings.Join(FlattenSections(sections), "\n")
}

// Render merges sections into a template. With no template a document of the
// flattened sections is produced. When the template has a paragraph holding
// the placeholder, the flattened lines replace the placeholder there and any
// text around it stays in its own paragraphs. Otherwise the lines are appended
// after the template's paragraphs so no template content is dropped.
func Render(sections types.Sections, template *Document) *Document {
	lines := FlattenSections(sections)
	if template == nil {
		return &Document{Paragraphs: lines}
	}

	out := make([]string, 0, len(template.Paragraphs)+len(lines)+2)
	for i, para := range template.Paragraphs {
		idx := strings.Index(para, Placeholder)
		if idx < 0 {
			continue
		}
		prefix := para[:idx]
		suffix := para[idx+len(Placeholder):]

		out = append(out, template.Paragraphs[:i]...)
		if strings.TrimSpace(prefix) != "" {
			out = append(out, prefix)
		}
		out = append(out, lines...)
		if strings.TrimSpace(suffix) != "" {
			out = append(out, suffix)
		}
		out = append(out, template.Paragraphs[i+1:]...)
		return &Document{Paragraphs: out}
	}

	out = append(out, template.Paragraphs...)
	out = append(out, lines...)
	return &Document{Paragraphs: out}
}
