package rendering

import "strings"

// latinText prepares text for the font translator: tabs become spaces and
// control characters, which have no glyph, are dropped. Newlines are kept as
// line breaks.
func latinText(text string) string {
	if text == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(text))

	for _, r := range text {
		switch {
		case r == '\t':
			result.WriteString("    ")
		case r == '\n':
			result.WriteRune(r)
		case r < 0x20, r >= 0x7F && r < 0xA0:
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}
