package stance

import (
	"context"
	"strings"
)

// Stance is the lexical position a text takes toward its subject
type Stance int

const (
	Neutral Stance = iota
	Positive
	Negative
)

// String returns the string representation of the stance
func (s Stance) String() string {
	switch s {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "neutral"
	}
}

// Opposes reports whether two stances take opposite positions
func (s Stance) Opposes(other Stance) bool {
	return (s == Positive && other == Negative) ||
		(s == Negative && other == Positive)
}

// Classifier assigns a stance to a text. The lexicon classifier is the
// deterministic default; an LLM-backed one can replace it.
type Classifier interface {
	Classify(ctx context.Context, text string) (Stance, error)
}

// LexiconClassifier scores stance from supportive and opposing keyword
// hits. Needs no provider and always returns the same stance for the
// same text.
type LexiconClassifier struct{}

// NewLexiconClassifier creates the lexicon-based classifier
func NewLexiconClassifier() *LexiconClassifier {
	return &LexiconClassifier{}
}

// Classify implements Classifier over the lexicon
func (c *LexiconClassifier) Classify(ctx context.Context, text string) (Stance, error) {
	return Score(text), nil
}

var supportiveTerms = map[string]bool{
	"support": true, "supports": true, "supported": true,
	"agree": true, "agrees": true, "agreed": true,
	"endorse": true, "endorses": true, "endorsed": true,
	"favor": true, "favors": true, "favored": true,
	"approve": true, "approves": true, "approved": true,
	"benefit": true, "benefits": true, "beneficial": true,
	"advantage": true, "advantages": true,
	"effective": true, "strengthens": true, "welcome": true,
}

var opposingTerms = map[string]bool{
	"oppose": true, "opposes": true, "opposed": true,
	"against": true, "reject": true, "rejects": true, "rejected": true,
	"disagree": true, "disagrees": true, "disagreed": true,
	"concern": true, "concerns": true, "concerning": true,
	"risk": true, "risks": true, "risky": true,
	"harm": true, "harms": true, "harmful": true,
	"flaw": true, "flaws": true, "flawed": true,
	"fail": true, "fails": true, "failed": true,
	"ineffective": true, "object": true, "objects": true, "objected": true,
	"undermine": true, "undermines": true, "weakens": true,
}

// Score computes the lexicon stance of a text. Ties, including zero
// hits on both sides, are neutral.
func Score(text string) Stance {
	var positive, negative int
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,;:!?\"'()[]")
		if supportiveTerms[token] {
			positive++
		}
		if opposingTerms[token] {
			negative++
		}
	}

	switch {
	case positive > negative:
		return Positive
	case negative > positive:
		return Negative
	default:
		return Neutral
	}
}
