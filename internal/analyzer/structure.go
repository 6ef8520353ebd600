package analyzer

import "regexp"

// Structure holds presence flags derived from the whole-document text
type Structure struct {
	HasQuestions           bool `json:"hasQuestions"`
	HasMCQOptions          bool `json:"hasMCQOptions"`
	HasNumericalAnswers    bool `json:"hasNumericalAnswers"`
	HasMathematicalContent bool `json:"hasMathematicalContent"`
	EstimatedQuestionCount int  `json:"estimatedQuestionCount"`
	PageCount              int  `json:"pageCount"`
}

var (
	questionTokenRe    = regexp.MustCompile(`(?i)\bquestion\s+\d+`)
	mcqMarkerRe        = regexp.MustCompile(`\b[A-D]\)`)
	numericAnswerTagRe = regexp.MustCompile(`(?i)\banswer\s*:\s*-?\d+`)
	mathSymbolRe       = regexp.MustCompile(`[+\-*/=^<>≤≥±×÷√π∞∫∑∏∂∇]`)
)

// AnalyzeStructure computes the structure flags
func AnalyzeStructure(text string, pageCount int) Structure {
	count := len(questionTokenRe.FindAllStringIndex(text, -1))
	return Structure{
		HasQuestions:           count > 0,
		HasMCQOptions:          mcqMarkerRe.MatchString(text),
		HasNumericalAnswers:    numericAnswerTagRe.MatchString(text),
		HasMathematicalContent: mathSymbolRe.MatchString(text),
		EstimatedQuestionCount: count,
		PageCount:              pageCount,
	}
}
