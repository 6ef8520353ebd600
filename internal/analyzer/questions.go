package analyzer

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// QuestionType classifies an accepted question
type QuestionType string

const (
	QuestionTypeMCQ       QuestionType = "mcq"
	QuestionTypeNumerical QuestionType = "numerical"
)

// Candidates at or below this many characters are noise
const minCandidateLength = 20

// Dedup keys use this many leading characters of the question text
const dedupPrefixLength = 100

// Option is one labeled MCQ option
type Option struct {
	Text string `json:"text"`
}

// Question is an accepted, classified question
type Question struct {
	QuestionText    string       `json:"questionText"`
	QuestionType    QuestionType `json:"questionType"`
	Options         []Option     `json:"options"`
	CorrectAnswer   *int         `json:"correctAnswer"`
	NumericalAnswer *float64     `json:"numericalAnswer"`
	RawText         string       `json:"rawText"`
}

var (
	questionHeaderRe = regexp.MustCompile(`(?i)\bquestion\s+\d+\s*[:.)\-]?\s*`)
	numberedItemRe   = regexp.MustCompile(`(?:^|\s)\d+\.\s+`)
	keywordStemRe    = regexp.MustCompile(`(?i)\b(?:which of the following|what is|calculate|find|determine|if|given that)\b`)
	blankLineRe      = regexp.MustCompile(`\n\s*\n`)

	optionPresentRe = regexp.MustCompile(`\b[A-D]\)\s*\S`)
	optionLabelRe   = regexp.MustCompile(`\b([A-D])\)`)
	choiceAnswerRe  = regexp.MustCompile(`(?i)(?:correct\s+answer|answer)\s*[:\-]\s*\(?([a-d])\b`)

	numericalIntentRe = regexp.MustCompile(`(?i)\b(?:calculate|find|determine|value)\b|answer[\s\S]*?integer`)
	numericAnswerRe   = regexp.MustCompile(`(?i)\b(?:answer|result)\s*[:=]\s*(-?\d+(?:\.\d+)?)`)
)

// candidateFamily finds raw question candidates in the whole-document text
type candidateFamily struct {
	name string
	find func(text string) []string
}

// classifier turns a candidate into a question; ok=false means not applicable
type classifier func(candidate string) (Question, bool)

// Families run in this order and all of their matches are kept
var candidateFamilies = []candidateFamily{
	{name: "question-block", find: findQuestionBlocks},
	{name: "numbered-list", find: findNumberedItems},
	{name: "keyword-stem", find: findKeywordStems},
}

// First applicable classifier wins; a candidate no classifier accepts is dropped
var classifiers = []classifier{
	classifyMCQ,
	classifyNumerical,
}

// ExtractQuestions runs every candidate family, classifies the survivors of
// the noise filter and deduplicates them in encounter order.
func ExtractQuestions(text string) []Question {
	var accepted []Question
	for _, family := range candidateFamilies {
		for _, candidate := range family.find(text) {
			candidate = strings.TrimSpace(candidate)
			if utf8.RuneCountInString(candidate) <= minCandidateLength {
				continue
			}
			if q, ok := classify(candidate); ok {
				accepted = append(accepted, q)
			}
		}
	}
	return Deduplicate(accepted)
}

func classify(candidate string) (Question, bool) {
	for _, c := range classifiers {
		if q, ok := c(candidate); ok {
			return q, true
		}
	}
	return Question{}, false
}

// Deduplicate keeps the first question for each lowercased 100-character prefix
func Deduplicate(questions []Question) []Question {
	seen := make(map[string]struct{}, len(questions))
	out := make([]Question, 0, len(questions))
	for _, q := range questions {
		key := dedupKey(q.QuestionText)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

func dedupKey(text string) string {
	runes := []rune(text)
	if len(runes) > dedupPrefixLength {
		runes = runes[:dedupPrefixLength]
	}
	return strings.ToLower(string(runes))
}

// findQuestionBlocks returns the body after each "Question N" header up to the next header
func findQuestionBlocks(text string) []string {
	return segmentsAfter(text, questionHeaderRe.FindAllStringIndex(text, -1))
}

// findNumberedItems returns the body after each "N. " marker up to the next marker
func findNumberedItems(text string) []string {
	return segmentsAfter(text, numberedItemRe.FindAllStringIndex(text, -1))
}

// segmentsAfter cuts text into the spans between consecutive header matches,
// excluding the headers themselves
func segmentsAfter(text string, headers [][]int) []string {
	out := make([]string, 0, len(headers))
	for i, h := range headers {
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		out = append(out, text[h[1]:end])
	}
	return out
}

// findKeywordStems returns spans starting at an interrogative or imperative
// opener and ending at a blank line, a numbered item or a "Question N" token.
// Matching resumes after each span, so spans never overlap.
func findKeywordStems(text string) []string {
	var out []string
	pos := 0
	for pos < len(text) {
		loc := keywordStemRe.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		end := nextStemBoundary(text, pos+loc[1])
		out = append(out, text[start:end])
		pos = end
	}
	return out
}

func nextStemBoundary(text string, from int) int {
	end := len(text)
	rest := text[from:]
	for _, re := range []*regexp.Regexp{blankLineRe, numberedItemRe, questionHeaderRe} {
		if loc := re.FindStringIndex(rest); loc != nil && from+loc[0] < end {
			end = from + loc[0]
		}
	}
	return end
}

func classifyMCQ(candidate string) (Question, bool) {
	if !optionPresentRe.MatchString(candidate) {
		return Question{}, false
	}

	region := candidate
	var correct *int
	if m := choiceAnswerRe.FindStringSubmatchIndex(candidate); m != nil {
		letter := strings.ToUpper(candidate[m[2]:m[3]])
		idx := int(letter[0] - 'A')
		correct = &idx
		region = candidate[:m[0]]
	}

	labels := optionLabelRe.FindAllStringIndex(region, -1)
	if len(labels) == 0 {
		return Question{}, false
	}

	options := make([]Option, 0, len(labels))
	for i, l := range labels {
		end := len(region)
		if i+1 < len(labels) {
			end = labels[i+1][0]
		}
		options = append(options, Option{Text: strings.TrimSpace(region[l[1]:end])})
	}

	return Question{
		QuestionText:  strings.TrimSpace(region[:labels[0][0]]),
		QuestionType:  QuestionTypeMCQ,
		Options:       options,
		CorrectAnswer: correct,
		RawText:       candidate,
	}, true
}

func classifyNumerical(candidate string) (Question, bool) {
	if !numericalIntentRe.MatchString(candidate) {
		return Question{}, false
	}

	var answer *float64
	if m := numericAnswerRe.FindStringSubmatch(candidate); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			answer = &v
		}
	}

	stem := numericAnswerRe.ReplaceAllString(candidate, "")
	stem = strings.Join(strings.Fields(stem), " ")

	return Question{
		QuestionText:    stem,
		QuestionType:    QuestionTypeNumerical,
		Options:         []Option{},
		NumericalAnswer: answer,
		RawText:         candidate,
	}, true
}
