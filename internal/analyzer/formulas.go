package analyzer

import (
	"regexp"
	"unicode/utf8"
)

// FormulaKind tags the pattern family a formula came from
type FormulaKind string

const (
	FormulaLatexInline    FormulaKind = "latex-inline"
	FormulaLatexDisplay   FormulaKind = "latex-display"
	FormulaLatexInlineAlt FormulaKind = "latex-inline-alt"
	FormulaEquation       FormulaKind = "equation"
	FormulaCalculation    FormulaKind = "calculation"
	FormulaFunction       FormulaKind = "function"
)

// Formula is one mathematical fragment. Position is a character (rune)
// offset into the whole-document text.
type Formula struct {
	Kind     FormulaKind `json:"type"`
	Content  string      `json:"content"`
	Position int         `json:"position"`
}

type formulaRule struct {
	kind FormulaKind
	re   *regexp.Regexp
}

// Scanned independently and in this order
var formulaRules = []formulaRule{
	{kind: FormulaLatexInline, re: regexp.MustCompile(`\$([^$\n]+)\$`)},
	{kind: FormulaLatexDisplay, re: regexp.MustCompile(`\\\[([\s\S]+?)\\\]`)},
	{kind: FormulaLatexInlineAlt, re: regexp.MustCompile(`\\\(([\s\S]+?)\\\)`)},
	{kind: FormulaEquation, re: regexp.MustCompile(`\b([a-zA-Z]\s*=\s*[^=\n,;]+)`)},
	{kind: FormulaCalculation, re: regexp.MustCompile(`(\d+(?:\.\d+)?\s*[+\-*/×÷^]\s*\d+(?:\.\d+)?)`)},
	{kind: FormulaFunction, re: regexp.MustCompile(`(\b(?:sin|cos|tan|log|ln|sqrt)|[∫∑∏∂∇])[\s(]`)},
}

// ExtractFormulas runs every formula rule over the text. Content is the
// first capture group when it matched, otherwise the whole match.
func ExtractFormulas(text string) []Formula {
	var out []Formula
	for _, rule := range formulaRules {
		for _, m := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			content := text[m[0]:m[1]]
			if len(m) >= 4 && m[2] >= 0 {
				content = text[m[2]:m[3]]
			}
			out = append(out, Formula{
				Kind:     rule.kind,
				Content:  content,
				Position: utf8.RuneCountInString(text[:m[0]]),
			})
		}
	}
	return out
}
