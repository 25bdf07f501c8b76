package identity

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds identity options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	// GetTokenExpiration is the access token lifetime in minutes.
	GetTokenExpiration() int
	// GetRefreshExpiration is the refresh token lifetime in days.
	GetRefreshExpiration() int
	GetMaxFailedAccessCount() int
	// GetLockoutDuration is the lockout window in minutes.
	GetLockoutDuration() int
}

// Authenticator drives the session lifecycle.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (*TokenPair, error)
	VerifyTwoFactor(ctx context.Context, identifier, code string) (*TokenPair, error)
	SendTwoFactorCode(ctx context.Context, identifier string) error
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, username string) error
}

// CredentialVerifier checks a secret against an account and tracks the
// failed-attempt counter and lockout window as a side effect.
type CredentialVerifier interface {
	Verify(ctx context.Context, user *User, password string) (VerifyResult, error)
}

// TokenIssuer mints and validates access tokens and produces opaque
// refresh tokens.
type TokenIssuer interface {
	IssueAccessToken(user *User, roles []string) (string, time.Time, error)
	NewRefreshToken() (string, error)
	Validate(token string) (*Claims, error)
}

// TokenProvider generates and checks single-use tokens bound to a purpose
// and to the user's current security stamp. Rotating the stamp invalidates
// every outstanding token.
type TokenProvider interface {
	Generate(user *User, purpose Purpose) (string, error)
	Check(user *User, purpose Purpose, token string) bool
}

// Notifier delivers codes and links to the user out of band.
type Notifier interface {
	SendTwoFactorCode(ctx context.Context, user *User, code string) error
	SendPasswordReset(ctx context.Context, user *User, token string) error
	SendEmailConfirmation(ctx context.Context, user *User, token string) error
}

// PasswordHasher authenticates passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
