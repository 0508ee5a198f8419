// Package coherence decides whether a transcript reads like a narrative worth
// summarizing. Evaluation is pure and deterministic.
package coherence

import (
	"strings"

	"mediaflow/internal/textutil"
)

// NoCoherentNarrative is stored as the summary of transcripts that fail the
// heuristic.
const NoCoherentNarrative = "No coherent narrative detected in transcript."

// Reasons reported for incoherent transcripts.
const (
	ReasonTooFewWords     = "too_few_words"
	ReasonLowDiversity    = "low_lexical_diversity"
	ReasonTooFewSentences = "too_few_sentences"
	ReasonRepetition      = "degenerate_repetition"
)

// Thresholds bound the heuristic.
type Thresholds struct {
	MinWords         int
	MinDistinctRatio float64
	MinSentences     int
	MaxTopWordShare  float64
}

// DefaultThresholds returns the production limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinWords:         40,
		MinDistinctRatio: 0.35,
		MinSentences:     2,
		MaxTopWordShare:  0.20,
	}
}

// Report carries the measured metrics and the verdict.
type Report struct {
	Words         int
	Distinct      int
	Sentences     int
	TopWord       string
	TopWordCount  int
	DistinctRatio float64
	TopWordShare  float64
	Coherent      bool
	Reason        string
}

// Evaluate measures text against the default thresholds.
func Evaluate(text string) Report {
	return EvaluateWith(text, DefaultThresholds())
}

// EvaluateWith measures text against th. Reason names the first failed check.
func EvaluateWith(text string, th Thresholds) Report {
	words := textutil.Words(text)
	report := Report{
		Words:     len(words),
		Sentences: strings.Count(text, ".") + strings.Count(text, "?") + strings.Count(text, "!"),
	}

	counts := make(map[string]int, len(words))
	for _, word := range words {
		counts[word]++
		n := counts[word]
		// Ties keep the earliest word to reach the count.
		if n > report.TopWordCount {
			report.TopWordCount = n
			report.TopWord = word
		}
	}
	report.Distinct = len(counts)
	if report.Words > 0 {
		report.DistinctRatio = float64(report.Distinct) / float64(report.Words)
		report.TopWordShare = float64(report.TopWordCount) / float64(report.Words)
	}

	switch {
	case report.Words < th.MinWords:
		report.Reason = ReasonTooFewWords
	case report.DistinctRatio < th.MinDistinctRatio:
		report.Reason = ReasonLowDiversity
	case report.Sentences < th.MinSentences:
		report.Reason = ReasonTooFewSentences
	case report.TopWordShare > th.MaxTopWordShare:
		report.Reason = ReasonRepetition
	default:
		report.Coherent = true
	}
	return report
}
