package service

import "github.com/lovemap/internal/db"

// Identity is the caller attached to a request. A nil *Identity means the
// request carries no session.
type Identity struct {
	UserID   uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the identity holds the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == db.RoleAdmin
}

// RequireAuthenticated fails with ErrUnauthorized when no identity is present.
func RequireAuthenticated(identity *Identity) error {
	if identity == nil {
		return ErrUnauthorized
	}
	return nil
}

// RequireRole fails with ErrForbidden unless identity has exactly role.
func RequireRole(identity *Identity, role string) error {
	if identity == nil || identity.Role != role {
		return ErrForbidden
	}
	return nil
}
