package types

// DocumentFormat identifies how a source document was decoded
type DocumentFormat string

// Supported source formats
const (
	FormatPDF  DocumentFormat = "pdf"
	FormatHTML DocumentFormat = "html"
	FormatDOCX DocumentFormat = "docx"
	FormatText DocumentFormat = "text"
)

// ParsedDocument is the plain-text extraction of a source document
type ParsedDocument struct {
	Text      string         `json:"text"`
	Lines     []string       `json:"lines"`
	Words     []string       `json:"words"`
	PageCount int            `json:"pageCount"`
	Format    DocumentFormat `json:"format"`
}

// PIIEntity is a personally identifiable span found by the screener
type PIIEntity struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Offset int    `json:"offset"`
}
