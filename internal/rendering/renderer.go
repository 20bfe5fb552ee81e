package rendering

import (
	"context"

	"github.com/jonathan/resume-tailor/internal/types"
)

// Artifacts are the encoded outputs of one render
type Artifacts struct {
	DOCX []byte
	PDF  []byte
	Text string
}

// Renderer produces the document artifacts for a draft
type Renderer struct {
	pdf PDFConverter
}

// NewRenderer creates a renderer. A nil converter selects the basic PDF writer.
func NewRenderer(pdf PDFConverter) *Renderer {
	if pdf == nil {
		pdf = NewBasicPDFConverter()
	}
	return &Renderer{pdf: pdf}
}

// Render merges sections into the template bytes (docx or plain text, may be
// empty) and encodes the result as DOCX, PDF and plain text
func (r *Renderer) Render(ctx context.Context, sections types.Sections, templateBytes []byte) (*Artifacts, error) {
	tmpl, err := LoadTemplate(templateBytes)
	if err != nil {
		return nil, err
	}

	doc := Render(sections, tmpl)

	docx, err := EncodeDOCX(doc)
	if err != nil {
		return nil, err
	}
	pdf, err := r.pdf.ConvertToPDF(ctx, doc)
	if err != nil {
		return nil, &RenderError{Message: "failed to convert to pdf", Cause: err}
	}

	return &Artifacts{
		DOCX: docx,
		PDF:  pdf,
		Text: doc.Text(),
	}, nil
}
