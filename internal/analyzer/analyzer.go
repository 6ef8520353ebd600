/**
 * Content Analyzer for the PDF extraction worker
 *
 * Works on the fused whole-document text:
 * - exam-style questions (three candidate families, classified MCQ or numerical)
 * - mathematical fragments (six regex categories)
 * - document-structure flags
 * - result-level confidence
 *
 * Extraction is a best-effort heuristic. Candidate families over-generate on
 * purpose and rely on deduplication in encounter order.
 */

package analyzer

import (
	"strings"
)

// Page is one fused page as seen by the analyzer
type Page struct {
	Number        int
	Text          string
	OCRConfidence float64
}

// Analysis is everything the analyzer derives from a document
type Analysis struct {
	Questions  []Question
	Formulas   []Formula
	Structure  Structure
	Confidence float64
}

// Analyzer runs the content heuristics. It is stateless; all rules are
// compiled once at package init.
type Analyzer struct{}

// New creates a new analyzer
func New() *Analyzer {
	return &Analyzer{}
}

// Analyze extracts questions, formulas and structure from the fused pages
func (a *Analyzer) Analyze(pages []Page) *Analysis {
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}

	// Questions and structure see pages separated by a blank line;
	// formula offsets are computed against a single-newline join.
	questionText := strings.Join(texts, "\n\n")
	formulaText := strings.Join(texts, "\n")

	questions := ExtractQuestions(questionText)
	formulas := ExtractFormulas(formulaText)

	return &Analysis{
		Questions:  questions,
		Formulas:   formulas,
		Structure:  AnalyzeStructure(questionText, len(pages)),
		Confidence: ResultConfidence(pages, len(questions), len(formulas)),
	}
}
