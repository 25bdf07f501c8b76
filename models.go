package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-identity/repository"
)

// DefaultRoleName is assigned to every new registration. The role is
// provisioned on demand, so an empty roles table is never a startup
// dependency.
const DefaultRoleName = "User"

// User is the principal model.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	repository.AuditFields

	Username           string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email              string     `bun:"email,notnull,unique" json:"email,omitempty"`
	EmailConfirmed     bool       `bun:"email_confirmed" json:"email_confirmed,omitempty"`
	PasswordHash       string     `bun:"password_hash,notnull" json:"-"`
	Phone              string     `bun:"phone_number" json:"phone_number,omitempty"`
	PhoneConfirmed     bool       `bun:"phone_confirmed" json:"phone_confirmed,omitempty"`
	TwoFactorEnabled   bool       `bun:"two_factor_enabled" json:"two_factor_enabled,omitempty"`
	FirstName          string     `bun:"first_name" json:"first_name,omitempty"`
	LastName           string     `bun:"last_name" json:"last_name,omitempty"`
	IsActive           bool       `bun:"is_active,notnull" json:"is_active"`
	SecurityStamp      string     `bun:"security_stamp,notnull" json:"-"`
	RefreshToken       *string    `bun:"refresh_token" json:"-"`
	RefreshTokenExpiry *time.Time `bun:"refresh_token_expiry" json:"-"`
	FailedAccessCount  int        `bun:"failed_access_count" json:"-"`
	LockoutEnd         *time.Time `bun:"lockout_end" json:"-"`

	// Roles is populated by the roles repository, not by the ORM.
	Roles []*Role `bun:"-" json:"roles,omitempty"`
}

// FullName joins first and last name for display purposes.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// IsLockedOut reports whether the lockout window is still open at now.
func (u *User) IsLockedOut(now time.Time) bool {
	return u.LockoutEnd != nil && now.Before(*u.LockoutEnd)
}

// RoleNames returns the names of the loaded roles.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		if r != nil {
			names = append(names, r.Name)
		}
	}
	return names
}

// Role is a named grant assignable to many users.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	repository.AuditFields

	Name        string `bun:"name,notnull,unique" json:"name,omitempty"`
	Description string `bun:"description" json:"description,omitempty"`
}

// RoleAssignment links a user to a role. Assignments follow the same audit
// and soft-delete discipline as every other record; removing a role from a
// user marks the assignment deleted.
type RoleAssignment struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`
	repository.AuditFields

	UserID uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	RoleID uuid.UUID `bun:"role_id,notnull,type:uuid" json:"role_id,omitempty"`
}

// TokenPair is the response shape for every token-issuing operation.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}
