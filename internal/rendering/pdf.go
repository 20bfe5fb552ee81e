package rendering

import (
	"bytes"
	"context"
	"time"

	"github.com/go-pdf/fpdf"
)

// PDFConverter turns a rendered document into PDF bytes
type PDFConverter interface {
	ConvertToPDF(ctx context.Context, doc *Document) ([]byte, error)
}

// Letter page layout for the basic writer, in points
const (
	pageMargin  = 72
	fontSize    = 11
	lineLeading = 14
)

// pdfDate is stamped as both creation and modification date so output
// depends only on the document text
var pdfDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// BasicPDFConverter writes a plain Helvetica PDF with no external tools.
// Output depends only on the document text.
type BasicPDFConverter struct{}

// NewBasicPDFConverter creates a BasicPDFConverter
func NewBasicPDFConverter() *BasicPDFConverter {
	return &BasicPDFConverter{}
}

// ConvertToPDF lays paragraphs out as wrapped lines across as many pages as needed
func (c *BasicPDFConverter) ConvertToPDF(ctx context.Context, doc *Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(pdfDate)
	pdf.SetModificationDate(pdfDate)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetFont("Helvetica", "", fontSize)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, para := range doc.Paragraphs {
		if para == "" {
			pdf.Ln(lineLeading)
			continue
		}
		pdf.MultiCell(0, lineLeading, tr(latinText(para)), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &RenderError{Message: "failed to write PDF", Cause: err}
	}
	return buf.Bytes(), nil
}
