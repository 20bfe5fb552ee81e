package rendering

import (
	"context"
	"html/template"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

var htmlPage = template.Must(template.New("resume").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 11pt; margin: 0.75in; }
h2 { font-size: 12pt; margin: 12pt 0 4pt 0; border-bottom: 1px solid #444; }
p { margin: 0 0 3pt 0; white-space: pre-wrap; }
</style></head><body>
{{range .}}{{if .Heading}}<h2>{{.Text}}</h2>{{else}}<p>{{.Text}}</p>{{end}}
{{end}}</body></html>`))

type htmlBlock struct {
	Text    string
	Heading bool
}

// ToHTML renders the document as a standalone HTML page. Paragraphs that are
// entirely uppercase are treated as section headings.
func ToHTML(doc *Document) (string, error) {
	blocks := make([]htmlBlock, 0, len(doc.Paragraphs))
	for _, para := range doc.Paragraphs {
		trimmed := strings.TrimSpace(para)
		if trimmed == "" {
			continue
		}
		blocks = append(blocks, htmlBlock{
			Text:    para,
			Heading: trimmed == strings.ToUpper(trimmed) && strings.ToLower(trimmed) != trimmed,
		})
	}
	var sb strings.Builder
	if err := htmlPage.Execute(&sb, blocks); err != nil {
		return "", &RenderError{Message: "failed to build html", Cause: err}
	}
	return sb.String(), nil
}

// ChromePDFConverter prints the document's HTML rendition with headless Chrome
type ChromePDFConverter struct {
	execPath string
	timeout  time.Duration
}

// NewChromePDFConverter creates a converter. An empty execPath lets chromedp
// locate Chrome on the PATH.
func NewChromePDFConverter(execPath string, timeout time.Duration) *ChromePDFConverter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChromePDFConverter{execPath: execPath, timeout: timeout}
}

// ConvertToPDF renders the document to letter-size PDF
func (c *ChromePDFConverter) ConvertToPDF(ctx context.Context, doc *Document) ([]byte, error) {
	html, err := ToHTML(doc)
	if err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if c.execPath != "" {
		opts = append(opts, chromedp.ExecPath(c.execPath))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	cctx, cancelCtx := chromedp.NewContext(allocCtx)
	defer cancelCtx()

	runCtx, cancelRun := context.WithTimeout(cctx, c.timeout)
	defer cancelRun()

	var pdfBuf []byte
	err = chromedp.Run(runCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfBuf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.5).
				WithPaperHeight(11).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, &RenderError{Message: "chrome pdf conversion failed", Cause: err}
	}
	return pdfBuf, nil
}
