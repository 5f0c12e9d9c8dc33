package service

import (
	"strings"
	"unicode/utf8"
)

var regulatoryTerms = []string{
	"emission", "scope 1", "scope 2", "scope 3", "ghg", "carbon",
	"csrd", "esrs", "gri", "tcfd", "sasb", "ifrs",
	"disclosure", "materiality", "audit", "compliance", "regulation",
	"directive", "article", "paragraph", "annex",
}

// confidenceScore is a cheap heuristic over the answer text, not a model
// probability. It only orders answers relative to each other.
func confidenceScore(answer string, sourceCount int) float64 {
	score := 0.15
	if sourceCount > 0 {
		score = 0.30
		if sourceCount >= 3 {
			score += 0.05
		}
	}

	lowered := strings.ToLower(answer)
	if strings.Contains(lowered, "[source") {
		score += 0.20
	}

	matched := 0
	for _, term := range regulatoryTerms {
		if strings.Contains(lowered, term) {
			matched++
		}
	}
	if matched > 5 {
		matched = 5
	}
	score += 0.03 * float64(matched)

	// Structured answers (lists, multiple paragraphs) tend to be grounded
	// summaries rather than hedges.
	if strings.Contains(answer, "\n-") || strings.Contains(answer, "\n1.") || strings.Count(answer, "\n\n") >= 1 {
		score += 0.05
	}

	length := utf8.RuneCountInString(answer)
	if length < 40 {
		score -= 0.10
	}
	for _, hedge := range []string{"i don't know", "cannot find", "do not contain", "not mentioned"} {
		if strings.Contains(lowered, hedge) {
			score -= 0.15
			break
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}
