package usecase

import (
	"context"

	"github.com/govern-lab/mnemosyne/pkg/domain/model/auth"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
)

// NoAuthnUseCase grants every request a fixed identity (for development/testing)
type NoAuthnUseCase struct {
	subject string
	tier    types.PrivacyTier
}

// NewNoAuthnUseCase creates a new NoAuthnUseCase instance with the given
// identity. An empty subject falls back to "anonymous", an empty tier to
// maximum so local development sees unfiltered results.
func NewNoAuthnUseCase(subject string, tier types.PrivacyTier) *NoAuthnUseCase {
	if subject == "" {
		subject = "anonymous"
	}
	if tier == "" {
		tier = types.PrivacyTierMaximum
	}
	return &NoAuthnUseCase{
		subject: subject,
		tier:    tier,
	}
}

// Authenticate ignores the credential and returns the fixed requester
func (uc *NoAuthnUseCase) Authenticate(ctx context.Context, credential string) (*auth.Requester, error) {
	return auth.NewRequester(uc.subject, uc.subject, uc.tier), nil
}

// IsNoAuthn returns true for NoAuthnUseCase
func (uc *NoAuthnUseCase) IsNoAuthn() bool {
	return true
}
