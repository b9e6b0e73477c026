package auth

import (
	"context"
	"slices"
)

// ResourcePrincipal is the resource name under which the stage exposes the
// authenticated principal, for use with the "inject" tag
const ResourcePrincipal = "principal"

type contextKey int

const principalKey contextKey = iota

// Principal is the authenticated caller
type Principal struct {
	Subject string
	Email   string
	Roles   []string
}

// HasRole reports whether the principal holds role
func (p *Principal) HasRole(role string) bool {
	return p != nil && slices.Contains(p.Roles, role)
}

// WithPrincipal adds the principal to the context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal stored in ctx, or nil
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}
