package document

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/image/draw"
)

// maxRasterSide bounds either raster dimension, in pixels
const maxRasterSide = 12000

// PDF user space is 72 units per inch
const pointsPerInch = 72.0

// pageRenderer rasterizes 0-indexed pages at a resolution in dots per inch
type pageRenderer interface {
	RenderPage(index int, dpi float64) (image.Image, error)
	Close() error
}

// fitzRenderer renders pages with MuPDF
type fitzRenderer struct {
	doc *fitz.Document
}

func openFitzRenderer(data []byte) (pageRenderer, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open document for rendering: %w", err)
	}
	return &fitzRenderer{doc: doc}, nil
}

func (r *fitzRenderer) RenderPage(index int, dpi float64) (image.Image, error) {
	if index < 0 || index >= r.doc.NumPage() {
		return nil, fmt.Errorf("renderer has no page %d (%d pages)", index+1, r.doc.NumPage())
	}
	return r.doc.ImageDPI(index, dpi)
}

func (r *fitzRenderer) Close() error {
	return r.doc.Close()
}

// checkViewport rejects viewports that cannot be rasterized
func checkViewport(vp Viewport) error {
	width, height := vp.PixelSize()
	if width <= 0 || height <= 0 || vp.Scale <= 0 {
		return fmt.Errorf("invalid viewport %dx%d at scale %.2f", width, height, vp.Scale)
	}
	if width > maxRasterSide || height > maxRasterSide {
		return fmt.Errorf("viewport %dx%d exceeds %dpx limit", width, height, maxRasterSide)
	}
	return nil
}

// encodeRaster fits a rendered page to the viewport's pixel size and encodes it as PNG
func encodeRaster(img image.Image, vp Viewport) (*Raster, error) {
	if err := checkViewport(vp); err != nil {
		return nil, err
	}
	width, height := vp.PixelSize()

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("renderer returned an empty image")
	}
	// renderers round page boxes to whole pixels differently
	if b.Dx() != width || b.Dy() != height {
		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.BiLinear.Scale(scaled, scaled.Bounds(), img, b, draw.Src, nil)
		img = scaled
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode raster: %w", err)
	}

	return &Raster{
		Data:   buf.Bytes(),
		Width:  width,
		Height: height,
		Format: "image/png",
	}, nil
}
