package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access token payload. The subject carries the user ID,
// the display name travels under "name" and roles as a repeated "role"
// claim so downstream consumers can authorize per role.
type Claims struct {
	jwt.RegisteredClaims
	Username string   `json:"name,omitempty"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"role,omitempty"`
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.RegisteredClaims.Subject
}

// TokenID returns the unique token identifier.
func (c *Claims) TokenID() string {
	return c.RegisteredClaims.ID
}

// HasRole checks if the token carries a specific role
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Expires returns the expiration time
func (c *Claims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *Claims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
