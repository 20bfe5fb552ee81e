package parsing

import (
	"regexp"
	"strings"
)

var (
	innerSpace   = regexp.MustCompile(`[ \t\f\v]+`)
	blankRuns    = regexp.MustCompile(`\n\n\n+`)
	wordPattern  = regexp.MustCompile(`[A-Za-z0-9]+`)
	bulletPrefix = []string{"- ", "* ", "• ", "· "}
)

// CleanText normalizes extracted text while keeping its line structure.
// Line endings become LF, runs of spaces collapse, bullet markers are
// unified to "- ", and at most one blank line separates blocks.
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.ReplaceAll(content, "\u00a0", " ")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = cleanLine(line)
	}

	result := blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(result)
}

func cleanLine(line string) string {
	line = strings.TrimSpace(innerSpace.ReplaceAllString(line, " "))
	for _, prefix := range bulletPrefix {
		if strings.HasPrefix(line, prefix) {
			return "- " + strings.TrimSpace(line[len(prefix):])
		}
	}
	return line
}

// Lines returns the non-empty lines of cleaned text
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Words returns the alphanumeric runs of text in order of appearance
func Words(text string) []string {
	return wordPattern.FindAllString(text, -1)
}
