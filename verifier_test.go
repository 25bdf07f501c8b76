package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySuccess(t *testing.T) {
	repo := setupRepoManager(t)
	user := seedUser(t, repo, "alice", "alice@example.com", "Aa1!aa")

	v := NewVerifier(repo.Users())

	result, err := v.Verify(context.Background(), user, "Aa1!aa")
	require.NoError(t, err)
	assert.Equal(t, VerifySuccess, result)
}

func TestVerifyDisabledBeforePasswordCheck(t *testing.T) {
	repo := setupRepoManager(t)
	user := seedUser(t, repo, "alice", "alice@example.com", "Aa1!aa", func(u *User) {
		u.IsActive = false
	})

	// A hasher that fails the test if it is ever consulted.
	v := NewVerifier(repo.Users(), WithVerifierHasher(panicHasher{t}))

	result, err := v.Verify(context.Background(), user, "Aa1!aa")
	require.NoError(t, err)
	assert.Equal(t, VerifyDisabled, result)
}

func TestVerifyFailureIncrementsPersistedCounter(t *testing.T) {
	repo := setupRepoManager(t)
	user := seedUser(t, repo, "alice", "alice@example.com", "Aa1!aa")

	v := NewVerifier(repo.Users())
	ctx := context.Background()

	result, err := v.Verify(ctx, user, "wrong")
	require.NoError(t, err)
	assert.Equal(t, VerifyFailed, result)

	stored, err := repo.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.FailedAccessCount)
}

func TestFifthFailureOpensLockoutWindow(t *testing.T) {
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := setupRepoManager(t)
	user := seedUser(t, repo, "alice", "alice@example.com", "Aa1!aa")

	v := NewVerifier(repo.Users(), WithVerifierClock(fixedClock(frozen)))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		result, err := v.Verify(ctx, user, "wrong")
		require.NoError(t, err)
		assert.Equal(t, VerifyFailed, result)
	}

	result, err := v.Verify(ctx, user, "wrong")
	require.NoError(t, err)
	assert.Equal(t, VerifyLockedOut, result)

	stored, err := repo.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LockoutEnd)
	assert.Equal(t, frozen.Add(5*time.Minute), stored.LockoutEnd.UTC())
}

func TestCorrectPasswordIsRejectedDuringLockout(t *testing.T) {
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lockedUntil := frozen.Add(5 * time.Minute)

	repo := setupRepoManager(t)
	user := seedUser(t, repo, "alice", "alice@example.com", "Aa1!aa", func(u *User) {
		u.LockoutEnd = &lockedUntil
	})

	v := NewVerifier(repo.Users(), WithVerifierClock(fixedClock(frozen)))

	result, err := v.Verify(context.Background(), user, "Aa1!aa")
	require.NoError(t, err)
	assert.Equal(t, VerifyLockedOut, result)
}

func TestLoginSucceedsAfterLockoutWindowPasses(t *testing.T) {
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lockedUntil := frozen.Add(-time.Second)

	repo := setupRepoManager(t)
	user := seedUser(t, repo, "alice", "alice@example.com", "Aa1!aa", func(u *User) {
		u.LockoutEnd = &lockedUntil
	})

	v := NewVerifier(repo.Users(), WithVerifierClock(fixedClock(frozen)))
	ctx := context.Background()

	result, err := v.Verify(ctx, user, "Aa1!aa")
	require.NoError(t, err)
	assert.Equal(t, VerifySuccess, result)

	// Success clears the stale window and the counter.
	stored, err := repo.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LockoutEnd)
	assert.Zero(t, stored.FailedAccessCount)
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	repo := setupRepoManager(t)
	user := seedUser(t, repo, "alice", "alice@example.com", "Aa1!aa", func(u *User) {
		u.FailedAccessCount = 3
	})

	v := NewVerifier(repo.Users())
	ctx := context.Background()

	result, err := v.Verify(ctx, user, "Aa1!aa")
	require.NoError(t, err)
	assert.Equal(t, VerifySuccess, result)

	stored, err := repo.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.FailedAccessCount)
}

func TestVerifyCustomLimits(t *testing.T) {
	repo := setupRepoManager(t)
	user := seedUser(t, repo, "alice", "alice@example.com", "Aa1!aa")

	v := NewVerifier(repo.Users(), WithVerifierLimits(2, time.Minute))
	ctx := context.Background()

	result, err := v.Verify(ctx, user, "wrong")
	require.NoError(t, err)
	assert.Equal(t, VerifyFailed, result)

	result, err = v.Verify(ctx, user, "wrong")
	require.NoError(t, err)
	assert.Equal(t, VerifyLockedOut, result)
}

type panicHasher struct {
	t *testing.T
}

func (p panicHasher) HashPassword(string) (string, error) {
	p.t.Fatal("hasher should not be called")
	return "", nil
}

func (p panicHasher) ComparePasswordAndHash(string, string) error {
	p.t.Fatal("password must not be checked for disabled accounts")
	return nil
}
