package auth

import "context"

type ctxKey int

const (
	userKey ctxKey = iota
	claimsKey
)

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID string
	Email  string
}

func WithPrincipal(ctx context.Context, p Principal, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, userKey, p)
	return context.WithValue(ctx, claimsKey, claims)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(userKey).(Principal)
	return p, ok
}

func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}
