package document

import (
	"bytes"
	"context"
	"fmt"

	rpdf "rsc.io/pdf"
)

// US Letter, used when a page carries no MediaBox anywhere in its tree
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// PDFLoader loads PDF documents. rsc.io/pdf reads the page tree and text
// layer; pages are rasterized with MuPDF.
type PDFLoader struct {
	openRenderer func(data []byte) (pageRenderer, error)
}

// NewPDFLoader creates a new PDF loader
func NewPDFLoader() *PDFLoader {
	return &PDFLoader{openRenderer: openFitzRenderer}
}

// Load parses the document. rsc.io/pdf panics on some malformed inputs,
// so panics are converted into errors here.
func (l *PDFLoader) Load(ctx context.Context, data []byte) (doc Document, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("document is empty")
	}
	if !IsPDF(data) {
		return nil, fmt.Errorf("document is not a PDF (missing %%PDF header)")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	d := &pdfDocument{reader: reader}
	// a document MuPDF cannot open still yields its text layer;
	// each page's Render reports the failure instead
	if l.openRenderer != nil {
		d.renderer, d.renderErr = l.openRenderer(data)
	} else {
		d.renderErr = fmt.Errorf("no page renderer configured")
	}
	return d, nil
}

// IsPDF checks the %PDF magic bytes, allowing leading whitespace
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n\x00"), []byte("%PDF"))
}

type pdfDocument struct {
	reader    *rpdf.Reader
	renderer  pageRenderer
	renderErr error
}

func (d *pdfDocument) NumPages() int {
	return d.reader.NumPage()
}

func (d *pdfDocument) Page(ctx context.Context, number int) (page Page, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if number < 1 || number > d.reader.NumPage() {
		return nil, fmt.Errorf("page %d out of range (1..%d)", number, d.reader.NumPage())
	}

	defer func() {
		if r := recover(); r != nil {
			page = nil
			err = fmt.Errorf("failed to open page %d: %v", number, r)
		}
	}()

	p := d.reader.Page(number)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d not found in page tree", number)
	}
	return &pdfPage{number: number, page: p, doc: d}, nil
}

// Close releases the renderer; the reader holds nothing beyond the input buffer
func (d *pdfDocument) Close() error {
	if d.renderer == nil {
		return nil
	}
	r := d.renderer
	d.renderer = nil
	d.renderErr = fmt.Errorf("document is closed")
	return r.Close()
}

type pdfPage struct {
	number int
	page   rpdf.Page
	doc    *pdfDocument
}

func (p *pdfPage) Number() int {
	return p.number
}

func (p *pdfPage) TextContent(ctx context.Context) (tc *TextContent, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			tc = nil
			err = fmt.Errorf("failed to read content stream of page %d: %v", p.number, r)
		}
	}()

	content := p.page.Content()
	items := make([]TextItem, 0, len(content.Text))
	for _, t := range content.Text {
		items = append(items, TextItem{
			Text:     t.S,
			X:        t.X,
			Y:        t.Y,
			Width:    t.W,
			FontSize: t.FontSize,
		})
	}
	return &TextContent{Items: items}, nil
}

func (p *pdfPage) Viewport(scale float64) Viewport {
	w, h := p.mediaBox()
	return Viewport{Width: w * scale, Height: h * scale, Scale: scale}
}

// Render rasterizes the page at the viewport's scale, so a 2.0 viewport is
// rendered at 144 DPI
func (p *pdfPage) Render(ctx context.Context, vp Viewport) (*Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkViewport(vp); err != nil {
		return nil, err
	}
	if p.doc.renderer == nil {
		return nil, fmt.Errorf("page %d cannot be rendered: %w", p.number, p.doc.renderErr)
	}

	img, err := p.doc.renderer.RenderPage(p.number-1, pointsPerInch*vp.Scale)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", p.number, err)
	}
	return encodeRaster(img, vp)
}

// mediaBox walks up the page tree since MediaBox is inheritable
func (p *pdfPage) mediaBox() (float64, float64) {
	for v := p.page.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Kind() != rpdf.Array || box.Len() != 4 {
			continue
		}
		w := box.Index(2).Float64() - box.Index(0).Float64()
		h := box.Index(3).Float64() - box.Index(1).Float64()
		if w > 0 && h > 0 {
			return w, h
		}
	}
	return defaultPageWidth, defaultPageHeight
}
