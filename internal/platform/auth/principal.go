package auth

import (
	"context"
)

// Roles understood by the API.
const (
	RolePsychologist = "psychologist"
	RoleAdmin        = "admin"
	RoleSuperAdmin   = "super_admin"
)

var validRoles = map[string]bool{
	RolePsychologist: true,
	RoleAdmin:        true,
	RoleSuperAdmin:   true,
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool { return validRoles[role] }

// Principal is the authenticated identity behind a request. It is rebuilt from
// the users table on every request, never trusted from the token alone.
type Principal struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// BypassesScoping reports whether the principal may see rows of every owner.
// This is the only capability super_admin grants.
func (p Principal) BypassesScoping() bool {
	return p.Role == RoleSuperAdmin
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal set by the auth middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
