package llm

import (
	"strings"

	"github.com/tidwall/gjson"
)

// OutputKind tags how a model response was interpreted
type OutputKind int

// Output kinds
const (
	// Structured output parsed as a JSON object or array
	Structured OutputKind = iota
	// Degraded output that could not be parsed and is carried as raw text
	Degraded
)

func (k OutputKind) String() string {
	if k == Structured {
		return "structured"
	}
	return "degraded"
}

// Output is the tagged result of best-effort JSON parsing of a model response
type Output struct {
	Kind OutputKind
	// JSON is the extracted document when Kind is Structured
	JSON gjson.Result
	// Raw is the trimmed response text in either case
	Raw string
}

// IsStructured reports whether the response parsed as JSON
func (o Output) IsStructured() bool {
	return o.Kind == Structured
}

// ParseOutput interprets a model response as JSON when possible. Markdown
// fences are stripped and, failing a direct parse, the outermost object or
// array embedded in surrounding prose is tried. Scalars never count as
// structured output.
func ParseOutput(text string) Output {
	raw := strings.TrimSpace(text)
	for _, candidate := range []string{CleanJSONBlock(raw), embeddedJSON(raw)} {
		if candidate == "" || !gjson.Valid(candidate) {
			continue
		}
		res := gjson.Parse(candidate)
		if res.IsObject() || res.IsArray() {
			return Output{Kind: Structured, JSON: res, Raw: raw}
		}
	}
	return Output{Kind: Degraded, Raw: raw}
}

// embeddedJSON returns the span from the first '{' or '[' to the matching last closer
func embeddedJSON(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		return ""
	}
	return text[start : end+1]
}

// Strings reads a string array at path, stringifying non-string members and
// accepting a single string as a one-element list. At most limit entries are
// returned when limit is positive.
func (o Output) Strings(path string, limit int) []string {
	if !o.IsStructured() {
		return nil
	}
	return stringsFrom(o.JSON.Get(path), limit)
}

func stringsFrom(v gjson.Result, limit int) []string {
	var out []string
	add := func(s string) bool {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
		return limit <= 0 || len(out) < limit
	}
	switch {
	case v.IsArray():
		v.ForEach(func(_, item gjson.Result) bool {
			return add(item.String())
		})
	case v.Exists() && v.Type == gjson.String:
		add(v.String())
	}
	return out
}

// Text reads a string at path
func (o Output) Text(path string) string {
	if !o.IsStructured() {
		return ""
	}
	return o.JSON.Get(path).String()
}
