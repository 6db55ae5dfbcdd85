package usecase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
	"github.com/govern-lab/mnemosyne/pkg/domain/model/auth"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/govern-lab/mnemosyne/pkg/utils/safe"
)

// Authenticator resolves a bearer credential into a requester identity.
// The HTTP layer depends on this, not on a concrete use case, so the
// no-authn development mode can stand in for the real verifier.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*auth.Requester, error)
	IsNoAuthn() bool
}

// tierClaim is the JWT claim carrying the requester's privacy tier
const tierClaim = "tier"

// AuthUseCase verifies bearer tokens against the identity provider's
// published keys. Verified requesters are cached so the JWKS endpoint is
// not hit on every call.
type AuthUseCase struct {
	issuer   string
	audience string
	cache    *authCache
}

// NewAuthUseCase creates a new AuthUseCase instance. The issuer is the
// base URL of the OpenID provider; its signing keys are discovered from
// the well-known configuration.
func NewAuthUseCase(issuer, audience string) *AuthUseCase {
	return &AuthUseCase{
		issuer:   issuer,
		audience: audience,
		cache:    newAuthCache(),
	}
}

// IsNoAuthn returns false for regular AuthUseCase
func (uc *AuthUseCase) IsNoAuthn() bool {
	return false
}

// openIDConfiguration is the subset of the provider's well-known
// configuration the verifier needs
type openIDConfiguration struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// Authenticate verifies the bearer token and extracts the requester
// identity. The tier claim decides the clearance; a token without one is
// a minimal-tier requester.
func (uc *AuthUseCase) Authenticate(ctx context.Context, credential string) (*auth.Requester, error) {
	if credential == "" {
		return nil, goerr.New("bearer credential is required")
	}

	key := credentialKey(credential)
	if requester, ok := uc.cache.get(key); ok {
		return requester, nil
	}

	config, err := uc.getOpenIDConfiguration(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get OpenID configuration")
	}

	keySet, err := jwk.Fetch(ctx, config.JWKSURI)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch provider public keys",
			goerr.V("jwks_uri", config.JWKSURI))
	}

	// Allow 10 seconds of clock skew to handle time synchronization
	// differences
	token, err := jwt.Parse([]byte(credential),
		jwt.WithKeySet(keySet),
		jwt.WithValidate(true),
		jwt.WithIssuer(config.Issuer),
		jwt.WithAudience(uc.audience),
		jwt.WithAcceptableSkew(10*time.Second))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse or verify bearer token")
	}

	if token.Subject() == "" {
		return nil, goerr.New("sub claim not found in token")
	}

	name := ""
	if raw, ok := token.Get("name"); ok {
		if s, isStr := raw.(string); isStr {
			name = s
		}
	}

	tier := types.PrivacyTierMinimal
	if raw, ok := token.Get(tierClaim); ok {
		s, isStr := raw.(string)
		if !isStr {
			return nil, goerr.New("tier claim is not a string")
		}
		parsed, err := types.ParsePrivacyTier(s)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid tier claim")
		}
		tier = parsed
	}

	requester := auth.NewRequester(token.Subject(), name, tier)
	uc.cache.set(key, requester, token.Expiration())
	return requester, nil
}

// getOpenIDConfiguration fetches the provider's OpenID Connect
// configuration
func (uc *AuthUseCase) getOpenIDConfiguration(ctx context.Context) (*openIDConfiguration, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", uc.issuer+"/.well-known/openid-configuration", nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch OpenID configuration")
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("failed to fetch OpenID configuration", goerr.V("status", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read OpenID configuration response")
	}

	var config openIDConfiguration
	if err := json.Unmarshal(body, &config); err != nil {
		return nil, goerr.Wrap(err, "failed to parse OpenID configuration")
	}

	return &config, nil
}
