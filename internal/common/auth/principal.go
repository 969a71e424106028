// Package auth resolves the caller identity consumed by the intake core.
// Tokens are issued elsewhere; this package only verifies them.
package auth

import "context"

// Principal is an already-authenticated caller.
type Principal struct {
	ApplicantID string
	Username    string
	Email       string
	IsAdmin     bool
}

type principalCtxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}
