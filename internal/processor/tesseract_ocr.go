/**
 * Tesseract OCR engine
 *
 * One gosseract client per job, reused for every page image of that job
 * and closed with the job. Confidence is the mean word confidence (0..100).
 */

package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// ProgressFunc receives recognition progress for one image as a fraction in [0,1]
type ProgressFunc func(fraction float64)

// Recognition is the engine's raw output for one image
type Recognition struct {
	Text       string
	Confidence float64
}

// Engine recognizes text in encoded page images
type Engine interface {
	Recognize(ctx context.Context, image []byte, progress ProgressFunc) (*Recognition, error)
	Close() error
}

// EngineFactory creates the per-job engine
type EngineFactory func(ctx context.Context) (Engine, error)

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	// TessdataPrefix points at the traineddata directory; empty uses the system default
	TessdataPrefix string
	Languages      []string
}

// TesseractEngine wraps a single gosseract client
type TesseractEngine struct {
	client *gosseract.Client
}

// NewTesseractEngineFactory returns a factory producing configured Tesseract engines
func NewTesseractEngineFactory(cfg TesseractConfig) EngineFactory {
	return func(ctx context.Context) (Engine, error) {
		return NewTesseractEngine(cfg)
	}
}

// NewTesseractEngine creates a new Tesseract engine
func NewTesseractEngine(cfg TesseractConfig) (*TesseractEngine, error) {
	client := gosseract.NewClient()

	if cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if len(cfg.Languages) > 0 {
		if err := client.SetLanguage(cfg.Languages...); err != nil {
			client.Close()
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}

	return &TesseractEngine{client: client}, nil
}

// Recognize performs OCR on one encoded image
func (t *TesseractEngine) Recognize(ctx context.Context, image []byte, progress ProgressFunc) (*Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	notify(progress, 0)

	if err := t.client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	notify(progress, 0.25)

	text, err := t.client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}
	notify(progress, 0.75)

	confidence := t.wordConfidence()
	notify(progress, 1)

	return &Recognition{
		Text:       strings.TrimSpace(text),
		Confidence: confidence,
	}, nil
}

// Close releases the underlying Tesseract API
func (t *TesseractEngine) Close() error {
	return t.client.Close()
}

// wordConfidence averages per-word confidences; no words means 0
func (t *TesseractEngine) wordConfidence() float64 {
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return clampConfidence(sum / float64(len(boxes)))
}

func notify(progress ProgressFunc, fraction float64) {
	if progress != nil {
		progress(fraction)
	}
}
