/**
 * Pipeline entity types
 *
 * Every entity carries the 1-indexed page number of the page it came from.
 * Per-item failures are recorded on the entity's Error field instead of
 * being returned.
 */

package processor

import (
	"github.com/adverant/nexus/pdfextract-worker/internal/document"
)

// ImageKind tags a rendered page entry
type ImageKind string

const (
	ImageKindPageRender ImageKind = "page-render"
	ImageKindError      ImageKind = "error"
)

// PageText is the embedded text layer of one page, whitespace-normalized
type PageText struct {
	PageNumber int                   `json:"pageNumber"`
	Text       string                `json:"text"`
	RawItems   *document.TextContent `json:"-"`
	Error      string                `json:"error,omitempty"`
}

// PageImage is one rasterized page. Error entries carry no bytes.
type PageImage struct {
	PageNumber int       `json:"pageNumber"`
	ImageBytes []byte    `json:"-"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Kind       ImageKind `json:"kind"`
	Error      string    `json:"error,omitempty"`
}

// OCRResult is the recognition outcome for one page image
type OCRResult struct {
	PageNumber int     `json:"pageNumber"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// FusionSources keeps both inputs of a fusion decision
type FusionSources struct {
	Extracted     string  `json:"extracted"`
	OCR           string  `json:"ocr"`
	OCRConfidence float64 `json:"ocrConfidence"`
}

// FusedPage is the canonical text chosen for one page
type FusedPage struct {
	PageNumber int           `json:"pageNumber"`
	Text       string        `json:"text"`
	Sources    FusionSources `json:"sources"`
}

// ImageSummary describes a rendered page in the result without inlining its bytes
type ImageSummary struct {
	PageNumber int       `json:"pageNumber"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Kind       ImageKind `json:"kind"`
	ByteLength int       `json:"byteLength"`
	Error      string    `json:"error,omitempty"`
}

// Summarize converts rendered pages into result summaries
func Summarize(images []PageImage) []ImageSummary {
	out := make([]ImageSummary, len(images))
	for i, img := range images {
		out[i] = ImageSummary{
			PageNumber: img.PageNumber,
			Width:      img.Width,
			Height:     img.Height,
			Kind:       img.Kind,
			ByteLength: len(img.ImageBytes),
			Error:      img.Error,
		}
	}
	return out
}
