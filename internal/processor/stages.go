package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/adverant/nexus/pdfextract-worker/internal/document"
	"github.com/adverant/nexus/pdfextract-worker/internal/errors"
	"github.com/adverant/nexus/pdfextract-worker/internal/logging"
)

// Fixed rasterization magnification
const RenderScale = 2.0

// job is the per-document state shared by the stages
type job struct {
	id       string
	doc      document.Document
	engine   *EngineHandle
	progress *progressReporter
	logger   *logging.Logger
	scale    float64
}

// extractText pulls and normalizes the embedded text of every page
func (j *job) extractText(ctx context.Context) []PageText {
	n := j.doc.NumPages()
	results := runBatch(ctx, n, func(ctx context.Context, i int) (PageText, error) {
		page, err := j.doc.Page(ctx, i+1)
		if err != nil {
			return PageText{}, err
		}
		content, err := page.TextContent(ctx)
		if err != nil {
			return PageText{}, err
		}
		return PageText{
			PageNumber: i + 1,
			Text:       normalizeWhitespace(content.String()),
			RawItems:   content,
		}, nil
	}, func(done int) {
		j.progress.report(StageExtracting, span(progressExtractBase, progressExtractSpan, done, n),
			fmt.Sprintf("Extracted text from page %d of %d", done, n))
	})

	pages := make([]PageText, n)
	for _, r := range results {
		if r.Err != nil {
			perr := errors.NewPageExtractionError(j.id, r.Index+1, r.Err)
			j.logger.Warn("page text extraction failed", "page", r.Index+1, "error", perr)
			pages[r.Index] = PageText{PageNumber: r.Index + 1, Error: errors.Describe(perr)}
			continue
		}
		pages[r.Index] = r.Value
	}
	return pages
}

// renderImages rasterizes every page at the job's scale
func (j *job) renderImages(ctx context.Context) []PageImage {
	n := j.doc.NumPages()
	results := runBatch(ctx, n, func(ctx context.Context, i int) (PageImage, error) {
		page, err := j.doc.Page(ctx, i+1)
		if err != nil {
			return PageImage{}, err
		}
		raster, err := page.Render(ctx, page.Viewport(j.scale))
		if err != nil {
			return PageImage{}, err
		}
		return PageImage{
			PageNumber: i + 1,
			ImageBytes: raster.Data,
			Width:      raster.Width,
			Height:     raster.Height,
			Kind:       ImageKindPageRender,
		}, nil
	}, func(done int) {
		j.progress.report(StageRendering, span(progressRenderBase, progressRenderSpan, done, n),
			fmt.Sprintf("Rendered page %d of %d", done, n))
	})

	images := make([]PageImage, n)
	for _, r := range results {
		if r.Err != nil {
			perr := errors.NewPageRenderError(j.id, r.Index+1, r.Err)
			j.logger.Warn("page render failed", "page", r.Index+1, "error", perr)
			images[r.Index] = PageImage{PageNumber: r.Index + 1, Kind: ImageKindError, Error: errors.Describe(perr)}
			continue
		}
		images[r.Index] = r.Value
	}
	return images
}

// runOCR recognizes every usable page image. Error or empty images are
// recorded with zero confidence without touching the engine.
func (j *job) runOCR(ctx context.Context, images []PageImage) []OCRResult {
	n := len(images)
	itemProgress := func(i int) ProgressFunc {
		return func(fraction float64) {
			j.progress.report(StageOCR, progressOCRBase+progressOCRSpan*(float64(i)+clampFraction(fraction))/float64(n),
				fmt.Sprintf("Recognizing page %d of %d", i+1, n))
		}
	}

	results := runBatch(ctx, n, func(ctx context.Context, i int) (OCRResult, error) {
		img := images[i]
		if img.Error != "" {
			return OCRResult{}, fmt.Errorf("%s", img.Error)
		}
		if len(img.ImageBytes) == 0 {
			return OCRResult{}, errors.NewMissingImageDataError(j.id, img.PageNumber)
		}

		engine, err := j.engine.Get(ctx)
		if err != nil {
			return OCRResult{}, errors.NewOCRFailedError(j.id, img.PageNumber, err)
		}
		rec, err := engine.Recognize(ctx, img.ImageBytes, itemProgress(i))
		if err != nil {
			return OCRResult{}, errors.NewOCRFailedError(j.id, img.PageNumber, err)
		}
		return OCRResult{
			PageNumber: img.PageNumber,
			Text:       strings.TrimSpace(rec.Text),
			Confidence: clampConfidence(rec.Confidence),
		}, nil
	}, func(done int) {
		j.progress.report(StageOCR, span(progressOCRBase, progressOCRSpan, done, n),
			fmt.Sprintf("OCR finished for page %d of %d", done, n))
	})

	out := make([]OCRResult, n)
	for _, r := range results {
		if r.Err != nil {
			j.logger.Warn("page OCR skipped or failed", "page", images[r.Index].PageNumber, "error", r.Err)
			out[r.Index] = OCRResult{PageNumber: images[r.Index].PageNumber, Error: errors.Describe(r.Err)}
			continue
		}
		out[r.Index] = r.Value
	}
	return out
}

// normalizeWhitespace collapses whitespace runs to one space and trims
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clampFraction(f float64) float64 {
	switch {
	case f != f || f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
