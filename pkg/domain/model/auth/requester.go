package auth

import (
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
)

// Requester is the authenticated identity behind one API call. The tier
// is the clearance every retrieval decision for the call is made against.
type Requester struct {
	Subject string
	Name    string
	Tier    types.PrivacyTier
}

// NewRequester builds a requester, falling back to the minimal tier when
// the token carried none.
func NewRequester(subject, name string, tier types.PrivacyTier) *Requester {
	if tier == "" {
		tier = types.PrivacyTierMinimal
	}
	return &Requester{
		Subject: subject,
		Name:    name,
		Tier:    tier,
	}
}

// WithTier returns a copy of the requester at a different tier. The
// no-authn development mode uses this for per-request tier overrides.
func (r *Requester) WithTier(tier types.PrivacyTier) *Requester {
	copied := *r
	copied.Tier = tier
	return &copied
}
