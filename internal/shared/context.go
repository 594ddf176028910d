package shared

import "context"

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the caller identity from context. The
// zero value means the request is unauthenticated.
func IdentityFromContext(ctx context.Context) Identity {
	identity, _ := ctx.Value(identityContextKey{}).(Identity)
	return identity
}
