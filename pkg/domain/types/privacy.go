package types

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// PrivacyTier represents an ordered clearance level gating access to chunk
// content. The order is minimal < selective < high < maximum.
type PrivacyTier string

const (
	PrivacyTierMinimal   PrivacyTier = "minimal"
	PrivacyTierSelective PrivacyTier = "selective"
	PrivacyTierHigh      PrivacyTier = "high"
	PrivacyTierMaximum   PrivacyTier = "maximum"
)

// AllPrivacyTiers returns all tiers in ascending clearance order
func AllPrivacyTiers() []PrivacyTier {
	return []PrivacyTier{
		PrivacyTierMinimal,
		PrivacyTierSelective,
		PrivacyTierHigh,
		PrivacyTierMaximum,
	}
}

var privacyTierLevels = map[PrivacyTier]int{
	PrivacyTierMinimal:   1,
	PrivacyTierSelective: 2,
	PrivacyTierHigh:      3,
	PrivacyTierMaximum:   4,
}

// Level returns the ordinal position of the tier, minimal=1 through
// maximum=4. Invalid tiers return 0.
func (p PrivacyTier) Level() int {
	return privacyTierLevels[p]
}

// IsValid checks if the privacy tier is valid
func (p PrivacyTier) IsValid() bool {
	_, ok := privacyTierLevels[p]
	return ok
}

// String returns the string representation of the privacy tier
func (p PrivacyTier) String() string {
	return string(p)
}

// Covers reports whether a requester holding this tier may read content
// classified at the given tier without redaction. Invalid tiers on either
// side never cover anything.
func (p PrivacyTier) Covers(classification PrivacyTier) bool {
	if !p.IsValid() || !classification.IsValid() {
		return false
	}
	return p.Level() >= classification.Level()
}

// ParsePrivacyTier parses a string into a PrivacyTier. Matching is
// case-insensitive.
func ParsePrivacyTier(s string) (PrivacyTier, error) {
	tier := PrivacyTier(strings.ToLower(strings.TrimSpace(s)))
	if !tier.IsValid() {
		return "", goerr.New("invalid privacy tier", goerr.V("tier", s))
	}
	return tier, nil
}

// PrivacyDecision represents the outcome of filtering one retrieval result
type PrivacyDecision string

const (
	PrivacyDecisionAllow  PrivacyDecision = "allow"
	PrivacyDecisionRedact PrivacyDecision = "redact"
	PrivacyDecisionDeny   PrivacyDecision = "deny"
)

// IsValid checks if the privacy decision is valid
func (d PrivacyDecision) IsValid() bool {
	switch d {
	case PrivacyDecisionAllow,
		PrivacyDecisionRedact,
		PrivacyDecisionDeny:
		return true
	default:
		return false
	}
}

// String returns the string representation of the privacy decision
func (d PrivacyDecision) String() string {
	return string(d)
}
