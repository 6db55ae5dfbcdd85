package validator

import (
	"strings"
	"unicode"

	"github.com/govern-lab/mnemosyne/pkg/domain/model"
)

// DefaultQualityThreshold is the minimum quality score a document must
// reach before any chunk is produced.
const DefaultQualityThreshold = 0.4

// Scoring weights and saturation points. Fixed so the same text always
// yields the same score.
const (
	weightLength    = 0.35
	weightDiversity = 0.30
	weightStructure = 0.15
	weightPrintable = 0.20

	// lengthTargetTokens is the token count at which the length component
	// saturates.
	lengthTargetTokens = 300
	// diversityTarget is the unique-token ratio at which the diversity
	// component saturates.
	diversityTarget = 0.5
	// structureTargetParagraphs is the paragraph count at which the
	// structure component saturates.
	structureTargetParagraphs = 3
)

// Assessment flags. Flags annotate, they do not reject; rejection is the
// score threshold's call.
const (
	FlagTooShort     = "too_short"
	FlagLowDiversity = "low_diversity"
	FlagNonPrintable = "non_printable"
	FlagPIIDetected  = "pii_detected"
)

const (
	minAdequateTokens  = 50
	lowDiversityRatio  = 0.2
	printableFlagRatio = 0.9
)

// Assessment is the validation outcome for one document
type Assessment struct {
	QualityScore float64
	PIIFindings  []PIIFinding
	Flags        []string
}

// HasFlag reports whether the assessment carries the given flag
func (a *Assessment) HasFlag(flag string) bool {
	for _, f := range a.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Validator scores document quality and detects privacy-sensitive content
// before ingestion. All methods are deterministic over the input text.
type Validator struct{}

// New creates a new Validator
func New() *Validator {
	return &Validator{}
}

// Evaluate scores the document text and collects PII findings
func (v *Validator) Evaluate(doc *model.Document) *Assessment {
	text := doc.RawText
	tokens := strings.Fields(text)

	assessment := &Assessment{
		QualityScore: v.Score(text),
		PIIFindings:  DetectPII(text),
	}

	if len(tokens) < minAdequateTokens {
		assessment.Flags = append(assessment.Flags, FlagTooShort)
	} else if uniqueRatio(tokens) < lowDiversityRatio {
		assessment.Flags = append(assessment.Flags, FlagLowDiversity)
	}
	if printableRatio(text) < printableFlagRatio {
		assessment.Flags = append(assessment.Flags, FlagNonPrintable)
	}
	if len(assessment.PIIFindings) > 0 {
		assessment.Flags = append(assessment.Flags, FlagPIIDetected)
	}

	return assessment
}

// Score computes the quality score in [0,1] from length adequacy, lexical
// diversity, paragraph structure, and printable-character ratio.
func (v *Validator) Score(text string) float64 {
	tokens := strings.Fields(text)

	score := weightLength*lengthScore(tokens) +
		weightDiversity*diversityScore(tokens) +
		weightStructure*structureScore(text) +
		weightPrintable*printableRatio(text)

	return clamp01(score)
}

func lengthScore(tokens []string) float64 {
	return clamp01(float64(len(tokens)) / lengthTargetTokens)
}

func diversityScore(tokens []string) float64 {
	return clamp01(uniqueRatio(tokens) / diversityTarget)
}

func uniqueRatio(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		seen[strings.ToLower(tok)] = struct{}{}
	}
	return float64(len(seen)) / float64(len(tokens))
}

func structureScore(text string) float64 {
	return clamp01(float64(countParagraphs(text)) / structureTargetParagraphs)
}

// countParagraphs counts blank-line separated blocks that carry content
func countParagraphs(text string) int {
	count := 0
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) != "" {
			count++
		}
	}
	return count
}

func printableRatio(text string) float64 {
	if text == "" {
		return 0
	}
	total, printable := 0, 0
	for _, r := range text {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	return float64(printable) / float64(total)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
