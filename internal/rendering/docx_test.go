package rendering

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDOCX_RoundTrip(t *testing.T) {
	doc := &Document{Paragraphs: []string{
		"SUMMARY",
		"Built <fast> & reliable services",
		"",
		"Line one\nLine two",
		"Tab\tseparated",
	}}

	data, err := EncodeDOCX(doc)
	require.NoError(t, err)
	assert.True(t, IsDOCX(data))

	decoded, err := DecodeDOCX(data)
	require.NoError(t, err)
	assert.Equal(t, doc.Paragraphs, decoded.Paragraphs)
}

func TestEncodeDOCX_ByteIdentical(t *testing.T) {
	doc := &Document{Paragraphs: []string{"a", "b"}}

	first, err := EncodeDOCX(doc)
	require.NoError(t, err)
	second, err := EncodeDOCX(doc)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second))
}

func TestEncodeDOCX_PackageParts(t *testing.T) {
	data, err := EncodeDOCX(&Document{Paragraphs: []string{"x"}})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml"}, names)
}

func TestDecodeDOCX_MissingDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("other.xml")
	require.NoError(t, err)
	_, _ = w.Write([]byte("<x/>"))
	require.NoError(t, zw.Close())

	_, err = DecodeDOCX(buf.Bytes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml")
}

func TestLoadTemplate(t *testing.T) {
	doc, err := LoadTemplate(nil)
	require.NoError(t, err)
	assert.Nil(t, doc)

	doc, err = LoadTemplate([]byte("Header\r\nBody\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Header", "Body"}, doc.Paragraphs)
}
