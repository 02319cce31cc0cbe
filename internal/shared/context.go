package shared

import (
	"context"

	"github.com/coreframe/coreframe/internal/identity"
)

type principalContextKey struct{}

// ContextWithPrincipal stores the acting principal in ctx.
func ContextWithPrincipal(ctx context.Context, p identity.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the acting principal from ctx, if any.
func PrincipalFromContext(ctx context.Context) identity.Principal {
	p, _ := ctx.Value(principalContextKey{}).(identity.Principal)
	return p
}
