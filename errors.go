package identity

import (
	goerrors "github.com/goliatone/go-errors"
)

// Sentinel errors for the authentication surface. Handlers match on these
// with errors.Is, or unwrap to *goerrors.Error to reach the text code and
// metadata.
var (
	// ErrInvalidCredentials hides whether the identifier or the secret was
	// wrong, and is also returned when the identifier matches no account.
	ErrInvalidCredentials = goerrors.New(
		"invalid credentials provided",
		goerrors.CategoryAuth,
	).WithTextCode("INVALID_CREDENTIALS").WithCode(goerrors.CodeUnauthorized)

	// ErrAccountLockedOut is returned while the lockout window is open,
	// regardless of whether the supplied secret is correct.
	ErrAccountLockedOut = goerrors.New(
		"account is temporarily locked, try again later",
		goerrors.CategoryAuth,
	).WithTextCode("ACCOUNT_LOCKED_OUT").WithCode(goerrors.CodeUnauthorized)

	// ErrAccountDisabled short-circuits credential verification for
	// deactivated accounts before their password is ever checked.
	ErrAccountDisabled = goerrors.New(
		"account is not active",
		goerrors.CategoryAuth,
	).WithTextCode("ACCOUNT_DISABLED").WithCode(goerrors.CodeUnauthorized)

	// ErrTwoFactorRequired signals that the password stage passed and the
	// caller must complete the code step before tokens are issued.
	ErrTwoFactorRequired = goerrors.New(
		"two factor authentication code required",
		goerrors.CategoryAuth,
	).WithTextCode("TWO_FACTOR_REQUIRED").WithCode(goerrors.CodeUnauthorized)

	ErrTwoFactorNotEnabled = goerrors.New(
		"two factor authentication is not enabled for this account",
		goerrors.CategoryBadInput,
	).WithTextCode("TWO_FACTOR_NOT_ENABLED").WithCode(goerrors.CodeBadRequest)

	// ErrInvalidCode covers wrong or expired one-time codes.
	ErrInvalidCode = goerrors.New(
		"invalid or expired verification code",
		goerrors.CategoryAuth,
	).WithTextCode("INVALID_CODE").WithCode(goerrors.CodeUnauthorized)

	// ErrInvalidOrExpiredToken covers refresh tokens and single-use tokens
	// that do not match the stored value or have passed their expiry.
	ErrInvalidOrExpiredToken = goerrors.New(
		"invalid or expired token",
		goerrors.CategoryAuth,
	).WithTextCode("INVALID_OR_EXPIRED_TOKEN").WithCode(goerrors.CodeUnauthorized)

	ErrInvalidCurrentPassword = goerrors.New(
		"current password is incorrect",
		goerrors.CategoryAuth,
	).WithTextCode("INVALID_CURRENT_PASSWORD").WithCode(goerrors.CodeUnauthorized)

	ErrEmailAlreadyConfirmed = goerrors.New(
		"email address is already confirmed",
		goerrors.CategoryConflict,
	).WithTextCode("EMAIL_ALREADY_CONFIRMED").WithCode(goerrors.CodeConflict)

	ErrUsernameTaken = goerrors.New(
		"username is already taken",
		goerrors.CategoryConflict,
	).WithTextCode("USERNAME_TAKEN").WithCode(goerrors.CodeConflict)

	ErrEmailTaken = goerrors.New(
		"email is already registered",
		goerrors.CategoryConflict,
	).WithTextCode("EMAIL_TAKEN").WithCode(goerrors.CodeConflict)

	ErrRoleNameTaken = goerrors.New(
		"role name is already taken",
		goerrors.CategoryConflict,
	).WithTextCode("ROLE_NAME_TAKEN").WithCode(goerrors.CodeConflict)

	// ErrRoleInUse blocks deletion of a role that still has assignments.
	ErrRoleInUse = goerrors.New(
		"role has active assignments and cannot be deleted",
		goerrors.CategoryConflict,
	).WithTextCode("ROLE_IN_USE").WithCode(goerrors.CodeConflict)
)
