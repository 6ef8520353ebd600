package analyzer

import "strings"

// Fixed factor weights for the result-level score
const (
	questionsFactor = 80.0
	formulasFactor  = 70.0
)

// ResultConfidence averages whichever factors apply: mean per-page OCR
// confidence (only when some page has text), 80 when questions were found
// and 70 when formulas were found. No factors means 0.
func ResultConfidence(pages []Page, questionCount, formulaCount int) float64 {
	var factors []float64

	if anyText(pages) {
		confs := make([]float64, len(pages))
		for i, p := range pages {
			confs[i] = p.OCRConfidence
		}
		factors = append(factors, Mean(confs))
	}
	if questionCount > 0 {
		factors = append(factors, questionsFactor)
	}
	if formulaCount > 0 {
		factors = append(factors, formulasFactor)
	}

	return ClampConfidence(Mean(factors))
}

// Mean is the arithmetic mean, 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// ClampConfidence bounds a score to [0,100]; NaN becomes 0
func ClampConfidence(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func anyText(pages []Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}
