package service

import (
	"strings"
	"testing"
)

func TestConfidenceBounds(t *testing.T) {
	answers := []struct {
		text    string
		sources int
	}{
		{"", 0},
		{"no", 0},
		{"I don't know.", 0},
		{strings.Repeat("Emission disclosure audit compliance regulation directive. ", 40), 5},
		{"Per [Source 1], scope 1 emissions fell.\n\nPer [Source 2], scope 2 rose.", 3},
	}
	for i, a := range answers {
		score := confidenceScore(a.text, a.sources)
		if score < 0 || score > 1 {
			t.Fatalf("case %d out of range: %f", i, score)
		}
	}
}

func TestConfidenceOrdering(t *testing.T) {
	hedged := confidenceScore("I don't know.", 0)
	cited := confidenceScore(
		"Scope 1 emissions fell 12% against the baseline [Source 1].\n\nThe CSRD disclosure confirms the target [Source 2].",
		3,
	)
	if cited <= hedged {
		t.Fatalf("cited grounded answer must score above a hedge: %f vs %f", cited, hedged)
	}

	unsourced := confidenceScore("Scope 1 emissions fell 12% against the baseline for the disclosure period.", 0)
	sourced := confidenceScore("Scope 1 emissions fell 12% against the baseline for the disclosure period.", 3)
	if sourced <= unsourced {
		t.Fatalf("sources must raise confidence: %f vs %f", sourced, unsourced)
	}
}

func TestConfidenceDeterministic(t *testing.T) {
	answer := "Emissions data per [Source 1] shows a reduction."
	first := confidenceScore(answer, 2)
	for i := 0; i < 5; i++ {
		if confidenceScore(answer, 2) != first {
			t.Fatal("confidence must be deterministic")
		}
	}
}
