/**
 * Document adapter for the PDF extraction worker
 *
 * Wraps the document-parsing and rendering capability behind small
 * interfaces so the pipeline stages never touch the PDF library directly.
 * A page yields two things: its embedded text layer and a raster image
 * at a requested magnification.
 */

package document

import (
	"context"
	"math"
	"strings"
)

// Loader opens raw document bytes
type Loader interface {
	Load(ctx context.Context, data []byte) (Document, error)
}

// Document is a loaded multi-page document
type Document interface {
	NumPages() int
	// Page returns the 1-indexed page handle
	Page(ctx context.Context, number int) (Page, error)
	Close() error
}

// Page is a single page handle
type Page interface {
	Number() int
	TextContent(ctx context.Context) (*TextContent, error)
	Viewport(scale float64) Viewport
	Render(ctx context.Context, vp Viewport) (*Raster, error)
}

// TextItem is one positioned run of text in page space (origin bottom-left)
type TextItem struct {
	Text     string
	X        float64
	Y        float64
	Width    float64
	FontSize float64
}

// TextContent is the embedded text layer of a page
type TextContent struct {
	Items []TextItem
}

// Viewport is a page's pixel geometry at a given scale
type Viewport struct {
	Width  float64
	Height float64
	Scale  float64
}

// PixelSize rounds the viewport up to whole pixels
func (v Viewport) PixelSize() (int, int) {
	return int(math.Ceil(v.Width)), int(math.Ceil(v.Height))
}

// Raster is an encoded page image
type Raster struct {
	Data   []byte
	Width  int
	Height int
	Format string
}

// String linearizes the text layer. Runs on the same baseline are joined,
// with a space when there is a visible gap; a baseline change starts a new line.
func (c *TextContent) String() string {
	if c == nil || len(c.Items) == 0 {
		return ""
	}

	var sb strings.Builder
	var prev *TextItem
	for i := range c.Items {
		item := &c.Items[i]
		if prev != nil {
			tolerance := math.Max(prev.FontSize, 1) * 0.5
			switch {
			case math.Abs(item.Y-prev.Y) > tolerance:
				sb.WriteByte('\n')
			case item.X-(prev.X+prev.Width) > math.Max(prev.FontSize, 1)*0.2:
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(item.Text)
		prev = item
	}
	return sb.String()
}
