package auth

import (
	"context"

	budget "grants-cloud/internal/budget/domain"
)

type contextKey string

const contextKeyIdentity contextKey = "auth.identity"

// Identity is the authenticated caller.
type Identity struct {
	Subject    string
	FullName   string
	Role       Role
	Profession budget.Profession
}

// Signer returns the approval signer for the identity.
func (i Identity) Signer() budget.Signer {
	name := i.FullName
	if name == "" {
		name = i.Subject
	}
	return budget.Signer{FullName: name, Profession: i.Profession}
}

// WithIdentity stores auth identity details in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, id)
}

// IdentityFromContext extracts identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(contextKeyIdentity).(Identity)
	return id, ok
}

// SubjectFromContext extracts subject from context.
func SubjectFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Subject
}
