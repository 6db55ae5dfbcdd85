package http

import (
	"net/http"
	"strings"

	"github.com/govern-lab/mnemosyne/pkg/domain/model/auth"
	"github.com/govern-lab/mnemosyne/pkg/domain/types"
)

// tierOverrideHeader lets no-authn development requests pick a requester
// tier per call. It is ignored when real authentication is configured.
const tierOverrideHeader = "X-Mnemosyne-Tier"

// authMiddleware resolves the requester identity for protected requests
func authMiddleware(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// When no authenticator is configured, requests run as an
			// anonymous minimal-tier requester
			if authn == nil {
				requester := auth.NewRequester("anonymous", "", types.PrivacyTierMinimal)
				ctx := auth.ContextWithRequester(r.Context(), requester)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if authn.IsNoAuthn() {
				requester, err := authn.Authenticate(r.Context(), "")
				if err != nil {
					http.Error(w, "Authentication required", http.StatusUnauthorized)
					return
				}
				if override := r.Header.Get(tierOverrideHeader); override != "" {
					tier, err := types.ParsePrivacyTier(override)
					if err != nil {
						http.Error(w, "Invalid privacy tier header", http.StatusBadRequest)
						return
					}
					requester = requester.WithTier(tier)
				}
				ctx := auth.ContextWithRequester(r.Context(), requester)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			credential := bearerCredential(r)
			if credential == "" {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			requester, err := authn.Authenticate(r.Context(), credential)
			if err != nil {
				http.Error(w, "Invalid bearer token", http.StatusUnauthorized)
				return
			}

			ctx := auth.ContextWithRequester(r.Context(), requester)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerCredential extracts the token from the Authorization header
func bearerCredential(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
