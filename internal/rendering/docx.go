package rendering

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// docxEpoch is stamped on every archive entry so identical documents encode
// to identical bytes
var docxEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

const docxDocumentPath = "word/document.xml"

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`</Types>`

const rootRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const documentHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

const documentFooter = `<w:sectPr><w:pgSz w:w="12240" w:h="15840"/>` +
	`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440"/></w:sectPr></w:body></w:document>`

// EncodeDOCX writes the document as a minimal WordprocessingML package
func EncodeDOCX(doc *Document) ([]byte, error) {
	var body strings.Builder
	body.WriteString(documentHeader)
	for _, para := range doc.Paragraphs {
		body.WriteString("<w:p>")
		for i, line := range strings.Split(para, "\n") {
			if i > 0 {
				body.WriteString("<w:r><w:br/></w:r>")
			}
			if line == "" {
				continue
			}
			body.WriteString(`<w:r><w:t xml:space="preserve">`)
			if err := xml.EscapeText(&body, []byte(line)); err != nil {
				return nil, &RenderError{Message: "failed to escape paragraph", Cause: err}
			}
			body.WriteString("</w:t></w:r>")
		}
		body.WriteString("</w:p>")
	}
	body.WriteString(documentFooter)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct{ name, content string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRelsXML},
		{docxDocumentPath, body.String()},
	}
	for _, part := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     part.name,
			Method:   zip.Deflate,
			Modified: docxEpoch,
		})
		if err != nil {
			return nil, &RenderError{Message: fmt.Sprintf("failed to create %s", part.name), Cause: err}
		}
		if _, err := io.WriteString(w, part.content); err != nil {
			return nil, &RenderError{Message: fmt.Sprintf("failed to write %s", part.name), Cause: err}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, &RenderError{Message: "failed to finalize docx", Cause: err}
	}
	return buf.Bytes(), nil
}

// DecodeDOCX extracts the paragraph text of a WordprocessingML package.
// Runs are concatenated; breaks become newlines and tabs are kept.
func DecodeDOCX(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &TemplateError{Message: "not a docx archive", Cause: err}
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == docxDocumentPath {
			part = f
			break
		}
	}
	if part == nil {
		return nil, &TemplateError{Message: "docx has no " + docxDocumentPath}
	}
	rc, err := part.Open()
	if err != nil {
		return nil, &TemplateError{Message: "failed to open document part", Cause: err}
	}
	defer func() { _ = rc.Close() }()

	doc := &Document{}
	dec := xml.NewDecoder(rc)
	var current strings.Builder
	inPara, inText := false, false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &TemplateError{Message: "malformed document xml", Cause: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				current.Reset()
			case "t":
				inText = true
			case "br", "cr":
				if inPara {
					current.WriteByte('\n')
				}
			case "tab":
				if inPara {
					current.WriteByte('\t')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inPara {
					doc.Paragraphs = append(doc.Paragraphs, current.String())
				}
				inPara = false
			}
		case xml.CharData:
			if inPara && inText {
				current.Write(t)
			}
		}
	}
	return doc, nil
}

// IsDOCX reports whether data looks like a zip package
func IsDOCX(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte("PK\x03\x04"))
}

// LoadTemplate decodes a template from a docx package or plain text.
// Empty input yields a nil template.
func LoadTemplate(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if IsDOCX(data) {
		return DecodeDOCX(data)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	return &Document{Paragraphs: strings.Split(text, "\n")}, nil
}
