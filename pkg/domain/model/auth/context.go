package auth

import "context"

type ctxRequesterKey struct{}

// ContextWithRequester embeds the authenticated requester in the context
func ContextWithRequester(ctx context.Context, requester *Requester) context.Context {
	return context.WithValue(ctx, ctxRequesterKey{}, requester)
}

// RequesterFromContext extracts the authenticated requester from the
// context. The second return is false when no authentication middleware
// ran.
func RequesterFromContext(ctx context.Context) (*Requester, bool) {
	requester, ok := ctx.Value(ctxRequesterKey{}).(*Requester)
	if !ok || requester == nil {
		return nil, false
	}
	return requester, true
}
