package identity

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/goliatone/go-identity/repository"
)

const testSigningKey = "test-signing-key-0123456789abcdef"

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	require.NoError(t, CreateTables(context.Background(), bunDB))

	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = db.Close()
	})

	return bunDB
}

func setupRepoManager(t *testing.T, opts ...repository.StoreOption) RepositoryManager {
	t.Helper()
	return NewRepositoryManager(setupDB(t), opts...)
}

type testConfig struct {
	signingKey        string
	issuer            string
	audience          []string
	tokenExpiration   int
	refreshExpiration int
	maxFailed         int
	lockoutDuration   int
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingKey:        testSigningKey,
		issuer:            "identity-tests",
		audience:          []string{"identity-tests"},
		tokenExpiration:   60,
		refreshExpiration: 7,
		maxFailed:         5,
		lockoutDuration:   5,
	}
}

func (c *testConfig) GetSigningKey() string        { return c.signingKey }
func (c *testConfig) GetIssuer() string            { return c.issuer }
func (c *testConfig) GetAudience() []string        { return c.audience }
func (c *testConfig) GetTokenExpiration() int      { return c.tokenExpiration }
func (c *testConfig) GetRefreshExpiration() int    { return c.refreshExpiration }
func (c *testConfig) GetMaxFailedAccessCount() int { return c.maxFailed }
func (c *testConfig) GetLockoutDuration() int      { return c.lockoutDuration }

// seedUser inserts an active user with the given password, committing as
// the "seed" actor.
func seedUser(t *testing.T, repo RepositoryManager, username, email, password string, mutate ...func(*User)) *User {
	t.Helper()

	hash, err := HashPassword(password)
	require.NoError(t, err)

	user := &User{
		Username:      username,
		Email:         email,
		PasswordHash:  hash,
		IsActive:      true,
		SecurityStamp: uuid.NewString(),
	}
	for _, m := range mutate {
		m(user)
	}

	repo.Users().Add(user)

	ctx := repository.WithActor(context.Background(), "seed")
	_, err = repo.SaveChanges(ctx)
	require.NoError(t, err)

	return user
}

func seedUserWithRole(t *testing.T, repo RepositoryManager, username, email, password, roleName string) *User {
	t.Helper()

	user := seedUser(t, repo, username, email, password)

	ctx := repository.WithActor(context.Background(), "seed")
	role, err := repo.Roles().GetOrCreate(ctx, roleName)
	require.NoError(t, err)
	require.NoError(t, repo.Roles().Assign(ctx, user, role))

	_, err = repo.SaveChanges(ctx)
	require.NoError(t, err)

	return user
}

// collectNotifier records deliveries so tests can read codes and tokens
// back out.
type collectNotifier struct {
	twoFactorCodes []string
	resetTokens    []string
	confirmTokens  []string
}

func (n *collectNotifier) SendTwoFactorCode(ctx context.Context, user *User, code string) error {
	n.twoFactorCodes = append(n.twoFactorCodes, code)
	return nil
}

func (n *collectNotifier) SendPasswordReset(ctx context.Context, user *User, token string) error {
	n.resetTokens = append(n.resetTokens, token)
	return nil
}

func (n *collectNotifier) SendEmailConfirmation(ctx context.Context, user *User, token string) error {
	n.confirmTokens = append(n.confirmTokens, token)
	return nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// failingNotifier simulates a mail outage on every delivery.
type failingNotifier struct{}

func (failingNotifier) SendTwoFactorCode(ctx context.Context, user *User, code string) error {
	return errors.New("smtp: connection refused")
}

func (failingNotifier) SendPasswordReset(ctx context.Context, user *User, token string) error {
	return errors.New("smtp: connection refused")
}

func (failingNotifier) SendEmailConfirmation(ctx context.Context, user *User, token string) error {
	return errors.New("smtp: connection refused")
}
