package coherence_test

import (
	"fmt"
	"strings"
	"testing"

	"mediaflow/internal/coherence"
)

func TestShortRepetitiveTextIsIncoherent(t *testing.T) {
	text := strings.Repeat("music ", 10)
	report := coherence.Evaluate(text)
	if report.Coherent {
		t.Fatalf("expected incoherent, got %+v", report)
	}
	if report.Reason != coherence.ReasonTooFewWords {
		t.Fatalf("expected too few words, got %s", report.Reason)
	}
}

func TestVariedNarrativeIsCoherent(t *testing.T) {
	text := variedNarrative(200)
	report := coherence.Evaluate(text)
	if !report.Coherent {
		t.Fatalf("expected coherent, got %+v", report)
	}
	if report.Words != 200 {
		t.Fatalf("expected 200 words, got %d", report.Words)
	}
	if report.Sentences != 10 {
		t.Fatalf("expected 10 sentences, got %d", report.Sentences)
	}
	if report.TopWordShare > 0.20 {
		t.Fatalf("unexpected top word share %f", report.TopWordShare)
	}
}

func TestEachRuleRejects(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		reason string
	}{
		{
			name:   "low diversity",
			text:   strings.Repeat("alpha beta gamma delta epsilon zeta eta theta iota kappa. ", 5),
			reason: coherence.ReasonLowDiversity,
		},
		{
			name:   "no sentences",
			text:   strings.ReplaceAll(variedNarrative(60), ".", ""),
			reason: coherence.ReasonTooFewSentences,
		},
		{
			name:   "repetition",
			text:   repeatedFiller(50, 15),
			reason: coherence.ReasonRepetition,
		},
	}
	for _, tc := range cases {
		report := coherence.Evaluate(tc.text)
		if report.Coherent {
			t.Fatalf("%s: expected incoherent, got %+v", tc.name, report)
		}
		if report.Reason != tc.reason {
			t.Fatalf("%s: expected reason %s, got %s (%+v)", tc.name, tc.reason, report.Reason, report)
		}
	}
}

func TestTokenizationIgnoresCase(t *testing.T) {
	report := coherence.Evaluate("Echo echo ECHO eCHo.")
	if report.Distinct != 1 || report.TopWord != "echo" || report.TopWordCount != 4 {
		t.Fatalf("expected case-insensitive counting, got %+v", report)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	text := repeatedFiller(80, 10)
	first := coherence.Evaluate(text)
	for i := 0; i < 20; i++ {
		if got := coherence.Evaluate(text); got != first {
			t.Fatalf("evaluation changed between runs: %+v vs %+v", first, got)
		}
	}
}

// variedNarrative returns n words drawn from 100 distinct tokens with a
// period after every 20th word.
func variedNarrative(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "w%d", i%100)
		if (i+1)%20 == 0 {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// repeatedFiller returns total words where "the" appears repeats times and the
// remaining words are distinct, split into two sentences.
func repeatedFiller(total, repeats int) string {
	words := make([]string, 0, total)
	for i := 0; i < total; i++ {
		if i < repeats*2 && i%2 == 0 {
			words = append(words, "the")
			continue
		}
		words = append(words, fmt.Sprintf("word%d", i))
	}
	half := total / 2
	return strings.Join(words[:half], " ") + ". " + strings.Join(words[half:], " ") + "."
}
