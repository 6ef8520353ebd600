package processor

import (
	"unicode/utf8"

	"github.com/adverant/nexus/pdfextract-worker/internal/analyzer"
)

// Fusion thresholds. Lengths are counted in characters.
const (
	ocrPreferConfidence = 70.0
	scannedTextMaxLen   = 50
	scannedOCRMinLen    = 50

	// weight given to the presence of a text layer in the overall score
	textLayerFactor = 80.0
)

// FusePages merges extracted and recognized text page by page. Missing
// entries on either side count as empty with zero confidence.
func FusePages(texts []PageText, ocr []OCRResult) []FusedPage {
	n := len(texts)
	if len(ocr) > n {
		n = len(ocr)
	}

	out := make([]FusedPage, n)
	for i := 0; i < n; i++ {
		var extracted, recognized string
		var conf float64
		pageNumber := i + 1

		if i < len(texts) {
			extracted = texts[i].Text
			pageNumber = texts[i].PageNumber
		}
		if i < len(ocr) {
			recognized = ocr[i].Text
			conf = ocr[i].Confidence
			if i >= len(texts) {
				pageNumber = ocr[i].PageNumber
			}
		}

		text := extracted
		if preferOCR(extracted, recognized, conf) {
			text = recognized
		}
		out[i] = FusedPage{
			PageNumber: pageNumber,
			Text:       text,
			Sources: FusionSources{
				Extracted:     extracted,
				OCR:           recognized,
				OCRConfidence: conf,
			},
		}
	}
	return out
}

// preferOCR applies the fusion rules in order
func preferOCR(extracted, recognized string, ocrConfidence float64) bool {
	extLen := utf8.RuneCountInString(extracted)
	ocrLen := utf8.RuneCountInString(recognized)

	if ocrConfidence > ocrPreferConfidence && ocrLen > extLen {
		return true
	}
	if extLen < scannedTextMaxLen && ocrLen > scannedOCRMinLen {
		return true
	}
	return false
}

// OverallConfidence is the pipeline-level score: the mean of 80-or-0 for
// the presence of text-extraction entries and the mean OCR confidence.
func OverallConfidence(texts []PageText, ocr []OCRResult) float64 {
	textFactor := 0.0
	if len(texts) > 0 {
		textFactor = textLayerFactor
	}
	confs := make([]float64, len(ocr))
	for i, r := range ocr {
		confs[i] = r.Confidence
	}
	return clampConfidence((textFactor + analyzer.Mean(confs)) / 2)
}

func clampConfidence(v float64) float64 {
	return analyzer.ClampConfidence(v)
}
