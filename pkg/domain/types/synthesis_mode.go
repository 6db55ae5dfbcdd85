package types

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// SynthesisMode selects how the synthesis engine composes an answer
type SynthesisMode string

const (
	// SynthesisModeSummary produces a concise answer with at most three
	// supporting citations.
	SynthesisModeSummary SynthesisMode = "summary"
	// SynthesisModeDetailed produces an exhaustive answer citing every
	// allowed result.
	SynthesisModeDetailed SynthesisMode = "detailed"
	// SynthesisModeAnalytical groups results by stance or theme before
	// composing.
	SynthesisModeAnalytical SynthesisMode = "analytical"
)

// AllSynthesisModes returns all valid synthesis modes
func AllSynthesisModes() []SynthesisMode {
	return []SynthesisMode{
		SynthesisModeSummary,
		SynthesisModeDetailed,
		SynthesisModeAnalytical,
	}
}

// IsValid checks if the synthesis mode is valid
func (m SynthesisMode) IsValid() bool {
	switch m {
	case SynthesisModeSummary,
		SynthesisModeDetailed,
		SynthesisModeAnalytical:
		return true
	default:
		return false
	}
}

// Normalize returns the mode, treating empty as SynthesisModeSummary.
func (m SynthesisMode) Normalize() SynthesisMode {
	if m == "" {
		return SynthesisModeSummary
	}
	return m
}

// String returns the string representation of the synthesis mode
func (m SynthesisMode) String() string {
	return string(m)
}

// ParseSynthesisMode parses a string into a SynthesisMode. Matching is
// case-insensitive and empty input normalizes to summary.
func ParseSynthesisMode(s string) (SynthesisMode, error) {
	mode := SynthesisMode(strings.ToLower(strings.TrimSpace(s))).Normalize()
	if !mode.IsValid() {
		return "", goerr.New("invalid synthesis mode", goerr.V("mode", s))
	}
	return mode, nil
}
