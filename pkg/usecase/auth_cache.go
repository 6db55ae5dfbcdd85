package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/govern-lab/mnemosyne/pkg/domain/model/auth"
)

// authCacheTTL is the upper bound on how long a verified requester is
// kept. A token expiring sooner than this is cached only until its exp.
const authCacheTTL = 5 * time.Minute

type cachedRequester struct {
	requester *auth.Requester
	expiresAt time.Time
}

// authCache holds verified requesters keyed by a digest of the
// credential, so repeated calls with the same bearer token skip JWKS
// fetch and signature verification.
type authCache struct {
	entries sync.Map
}

func newAuthCache() *authCache {
	return &authCache{}
}

// credentialKey derives the cache key from the raw credential. The raw
// token is never stored.
func credentialKey(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

func (c *authCache) get(key string) (*auth.Requester, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}

	cached := v.(*cachedRequester)
	if time.Now().After(cached.expiresAt) {
		c.entries.Delete(key)
		return nil, false
	}

	return cached.requester, true
}

func (c *authCache) set(key string, requester *auth.Requester, tokenExp time.Time) {
	expiresAt := time.Now().Add(authCacheTTL)
	if !tokenExp.IsZero() && tokenExp.Before(expiresAt) {
		expiresAt = tokenExp
	}

	c.entries.Store(key, &cachedRequester{
		requester: requester,
		expiresAt: expiresAt,
	})
}
