package identity

import (
	"context"
	"errors"
	"time"
)

// VerifyResult is the outcome of a credential check.
type VerifyResult int

const (
	VerifyFailed VerifyResult = iota
	VerifySuccess
	VerifyLockedOut
	VerifyDisabled
)

const (
	// DefaultMaxFailedAccessCount is the number of consecutive failures
	// that opens the lockout window.
	DefaultMaxFailedAccessCount = 5
	// DefaultLockoutDuration is how long the window stays open.
	DefaultLockoutDuration = 5 * time.Minute
)

// Verifier checks passwords and maintains the failure counter and lockout
// window on the user record. Counter updates are persisted immediately so
// parallel login attempts observe each other's failures.
type Verifier struct {
	users           Users
	hasher          PasswordHasher
	maxFailed       int
	lockoutDuration time.Duration
	logger          Logger
	now             func() time.Time
}

type VerifierOption func(*Verifier)

func WithVerifierLimits(maxFailed int, lockoutDuration time.Duration) VerifierOption {
	return func(v *Verifier) {
		if maxFailed > 0 {
			v.maxFailed = maxFailed
		}
		if lockoutDuration > 0 {
			v.lockoutDuration = lockoutDuration
		}
	}
}

func WithVerifierLogger(logger Logger) VerifierOption {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

func WithVerifierHasher(hasher PasswordHasher) VerifierOption {
	return func(v *Verifier) {
		if hasher != nil {
			v.hasher = hasher
		}
	}
}

func NewVerifier(users Users, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		users:           users,
		hasher:          bcryptHasher{},
		maxFailed:       DefaultMaxFailedAccessCount,
		lockoutDuration: DefaultLockoutDuration,
		logger:          defLogger{},
		now:             time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Verify checks the password against the account. Disabled accounts are
// rejected before the password is touched, and an open lockout window
// rejects even a correct password without advancing the counter.
func (v *Verifier) Verify(ctx context.Context, user *User, password string) (VerifyResult, error) {
	if user == nil {
		return VerifyFailed, nil
	}

	if !user.IsActive {
		return VerifyDisabled, nil
	}

	now := v.now()
	if user.IsLockedOut(now) {
		return VerifyLockedOut, nil
	}

	if err := v.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if !errors.Is(err, ErrMismatchedHashAndPassword) {
			return VerifyFailed, err
		}
		return v.recordFailure(ctx, user, now)
	}

	return v.recordSuccess(ctx, user)
}

func (v *Verifier) recordFailure(ctx context.Context, user *User, now time.Time) (VerifyResult, error) {
	user.FailedAccessCount++

	result := VerifyFailed
	if user.FailedAccessCount >= v.maxFailed {
		end := now.Add(v.lockoutDuration)
		user.LockoutEnd = &end
		user.FailedAccessCount = 0
		result = VerifyLockedOut
		v.logger.Info("account %s locked out until %s", user.Username, end.Format(time.RFC3339))
	}

	v.users.Update(user)
	if _, err := v.users.SaveChanges(ctx); err != nil {
		return VerifyFailed, err
	}

	return result, nil
}

func (v *Verifier) recordSuccess(ctx context.Context, user *User) (VerifyResult, error) {
	if user.FailedAccessCount != 0 || user.LockoutEnd != nil {
		user.FailedAccessCount = 0
		user.LockoutEnd = nil
		v.users.Update(user)
		if _, err := v.users.SaveChanges(ctx); err != nil {
			return VerifyFailed, err
		}
	}

	return VerifySuccess, nil
}
