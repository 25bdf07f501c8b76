package identity

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// EnvConfig reads identity settings from the environment.
type EnvConfig struct {
	SigningKey           string   `env:"IDENTITY_SIGNING_KEY"`
	Issuer               string   `env:"IDENTITY_ISSUER, default=go-identity"`
	Audience             []string `env:"IDENTITY_AUDIENCE"`
	TokenExpiration      int      `env:"IDENTITY_TOKEN_EXPIRATION, default=60"`
	RefreshExpiration    int      `env:"IDENTITY_REFRESH_EXPIRATION, default=7"`
	MaxFailedAccessCount int      `env:"IDENTITY_MAX_FAILED_ACCESS, default=5"`
	LockoutDuration      int      `env:"IDENTITY_LOCKOUT_DURATION, default=5"`
}

var _ Config = (*EnvConfig)(nil)

// LoadConfig reads configuration from environment variables.
func LoadConfig(ctx context.Context) (*EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *EnvConfig) GetSigningKey() string { return c.SigningKey }

func (c *EnvConfig) GetIssuer() string { return c.Issuer }

func (c *EnvConfig) GetAudience() []string { return c.Audience }

// GetTokenExpiration is the access token lifetime in minutes.
func (c *EnvConfig) GetTokenExpiration() int { return c.TokenExpiration }

// GetRefreshExpiration is the refresh token lifetime in days.
func (c *EnvConfig) GetRefreshExpiration() int { return c.RefreshExpiration }

func (c *EnvConfig) GetMaxFailedAccessCount() int { return c.MaxFailedAccessCount }

// GetLockoutDuration is the lockout window in minutes.
func (c *EnvConfig) GetLockoutDuration() int { return c.LockoutDuration }
