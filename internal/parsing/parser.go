// Package parsing turns resume and job description blobs into plain text.
package parsing

import (
	"bytes"
	"context"
	"net/http"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"github.com/jonathan/resume-tailor/internal/rendering"
	"github.com/jonathan/resume-tailor/internal/types"
)

// Parser extracts text from a named document
type Parser interface {
	Parse(ctx context.Context, name string, data []byte) (*types.ParsedDocument, error)
}

// DocumentParser handles PDF, DOCX, HTML and plain text
type DocumentParser struct{}

// NewDocumentParser creates a parser for the supported formats
func NewDocumentParser() *DocumentParser {
	return &DocumentParser{}
}

// DetectFormat picks a decoder from the content, falling back to the file extension
func DetectFormat(name string, data []byte) types.DocumentFormat {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return types.FormatPDF
	case rendering.IsDOCX(data):
		return types.FormatDOCX
	}

	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return types.FormatPDF
	case ".docx":
		return types.FormatDOCX
	case ".html", ".htm":
		return types.FormatHTML
	}

	if strings.HasPrefix(http.DetectContentType(data), "text/html") {
		return types.FormatHTML
	}
	return types.FormatText
}

// Parse decodes data and returns its normalized text. A document with no
// extractable text is an error.
func (p *DocumentParser) Parse(ctx context.Context, name string, data []byte) (*types.ParsedDocument, error) {
	format := DetectFormat(name, data)

	var (
		raw   string
		pages = 1
		err   error
	)
	switch format {
	case types.FormatPDF:
		raw, pages, err = extractPDF(ctx, data)
	case types.FormatDOCX:
		raw, err = extractDOCX(data)
	case types.FormatHTML:
		raw, err = extractHTML(data)
	default:
		if !utf8.Valid(data) {
			return nil, &ParseError{Format: format, Message: "content is not valid UTF-8 text"}
		}
		raw = string(data)
	}
	if err != nil {
		return nil, err
	}

	text := CleanText(raw)
	if text == "" {
		return nil, &ParseError{Format: format, Message: "no text content found"}
	}

	return &types.ParsedDocument{
		Text:      text,
		Lines:     Lines(text),
		Words:     Words(text),
		PageCount: pages,
		Format:    format,
	}, nil
}

func extractPDF(ctx context.Context, data []byte) (string, int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, &ParseError{Format: types.FormatPDF, Message: "failed to open PDF", Cause: err}
	}

	var sb strings.Builder
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// a single unreadable page does not sink the document
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return sb.String(), total, nil
}

func extractDOCX(data []byte) (string, error) {
	doc, err := rendering.DecodeDOCX(data)
	if err != nil {
		return "", &ParseError{Format: types.FormatDOCX, Message: "failed to read DOCX", Cause: err}
	}
	return doc.Text(), nil
}

func extractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", &ParseError{Format: types.FormatHTML, Message: "failed to parse HTML", Cause: err}
	}
	doc.Find("script, style, noscript, template").Remove()

	// block elements end a line so list items and paragraphs stay separate
	doc.Find("p, li, div, br, h1, h2, h3, h4, h5, h6, tr, section, article").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("- ")
	})

	return doc.Find("body").Text(), nil
}
