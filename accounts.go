package identity

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"

	"github.com/goliatone/go-identity/repository"
)

// RegisterPayload carries the fields accepted at sign-up.
type RegisterPayload struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	// UseHashid derives the user id from the email so re-imports of the
	// same directory produce stable ids.
	UseHashid bool `json:"-"`
}

// Validate will run validation rules
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(0, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.FirstName, validation.Length(0, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
	)
}

// Accounts coordinates registration, password management and email
// confirmation on top of the repositories.
type Accounts struct {
	repo         RepositoryManager
	hasher       PasswordHasher
	policy       PasswordPolicy
	provider     TokenProvider
	notifier     Notifier
	activitySink ActivitySink
	logger       Logger
	now          func() time.Time
}

type AccountsOption func(*Accounts)

func WithAccountsHasher(hasher PasswordHasher) AccountsOption {
	return func(a *Accounts) {
		if hasher != nil {
			a.hasher = hasher
		}
	}
}

func WithAccountsPolicy(policy PasswordPolicy) AccountsOption {
	return func(a *Accounts) {
		a.policy = policy
	}
}

func WithAccountsNotifier(notifier Notifier) AccountsOption {
	return func(a *Accounts) {
		if notifier != nil {
			a.notifier = notifier
		}
	}
}

func WithAccountsProvider(provider TokenProvider) AccountsOption {
	return func(a *Accounts) {
		if provider != nil {
			a.provider = provider
		}
	}
}

func WithAccountsLogger(logger Logger) AccountsOption {
	return func(a *Accounts) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithAccountsActivitySink(sink ActivitySink) AccountsOption {
	return func(a *Accounts) {
		a.activitySink = normalizeActivitySink(sink)
	}
}

func NewAccounts(repo RepositoryManager, signingKey []byte, opts ...AccountsOption) *Accounts {
	a := &Accounts{
		repo:         repo,
		hasher:       bcryptHasher{},
		policy:       DefaultPasswordPolicy(),
		provider:     NewStampTokenProvider(signingKey),
		notifier:     NewLogNotifier(nil),
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Register creates an account with the default role. Username and email
// conflicts are checked case-insensitively, so "Alice" blocks "alice".
func (a *Accounts) Register(ctx context.Context, payload RegisterPayload) (*User, error) {
	if err := payload.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload").
			WithCode(goerrors.CodeBadRequest)
	}

	if err := a.policy.Validate(payload.Password); err != nil {
		return nil, err
	}

	username := resolveUsername(payload.Username, payload.Email)

	if taken, err := a.repo.Users().UsernameExists(ctx, username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUsernameTaken
	}

	if taken, err := a.repo.Users().EmailExists(ctx, payload.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}

	hash, err := a.hasher.HashPassword(payload.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	phone, err := normalizePhone(payload.Phone)
	if err != nil {
		return nil, err
	}

	user := &User{
		Username:      username,
		Email:         strings.TrimSpace(payload.Email),
		PasswordHash:  hash,
		FirstName:     payload.FirstName,
		LastName:      payload.LastName,
		Phone:         phone,
		IsActive:      true,
		SecurityStamp: uuid.NewString(),
	}

	if payload.UseHashid {
		if id, err := hashid.NewUUID(user.Email); err == nil {
			user.ID = id
		}
	}

	a.repo.Users().Add(user)

	role, err := a.repo.Roles().GetOrCreate(ctx, DefaultRoleName)
	if err != nil {
		return nil, err
	}

	if err := a.repo.Roles().Assign(ctx, user, role); err != nil {
		return nil, err
	}

	if _, err := a.repo.SaveChanges(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
	}

	user.Roles = []*Role{role}

	a.emitEvent(ctx, ActivityEventUserRegistered, user.ID.String(), map[string]any{
		"username": user.Username,
	})

	return user, nil
}

// ForgotPassword starts a reset. The outcome is identical whether or not
// the email belongs to an account, so the endpoint cannot be used to
// probe for registered addresses.
func (a *Accounts) ForgotPassword(ctx context.Context, email string) error {
	user, err := a.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil
		}
		return err
	}

	token, err := a.provider.Generate(user, PurposePasswordReset)
	if err != nil {
		return err
	}

	if err := a.notifier.SendPasswordReset(ctx, user, token); err != nil {
		a.logger.Error("failed to deliver password reset for %s: %v", email, err)
	}

	return nil
}

// ResetPassword finishes a reset begun by ForgotPassword. Unlike the
// initiation step this reports an unknown email, matching what its
// callers have always depended on.
func (a *Accounts) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	user, err := a.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return errUserNotFound(email)
		}
		return err
	}

	if err := a.policy.Validate(newPassword); err != nil {
		return err
	}

	if !a.provider.Check(user, PurposePasswordReset, token) {
		return ErrInvalidOrExpiredToken
	}

	return a.setPassword(ctx, user, newPassword, ActivityEventPasswordReset)
}

// ChangePassword rotates the password for a signed-in user after checking
// the current one.
func (a *Accounts) ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error {
	user, err := a.repo.Users().GetByUsername(ctx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return errUserNotFound(username)
		}
		return err
	}

	if err := a.hasher.ComparePasswordAndHash(currentPassword, user.PasswordHash); err != nil {
		return ErrInvalidCurrentPassword
	}

	if err := a.policy.Validate(newPassword); err != nil {
		return err
	}

	return a.setPassword(ctx, user, newPassword, ActivityEventPasswordChanged)
}

// SendEmailConfirmation delivers a confirmation token for an unconfirmed
// address.
func (a *Accounts) SendEmailConfirmation(ctx context.Context, email string) error {
	user, err := a.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return errUserNotFound(email)
		}
		return err
	}

	if user.EmailConfirmed {
		return ErrEmailAlreadyConfirmed
	}

	token, err := a.provider.Generate(user, PurposeEmailConfirm)
	if err != nil {
		return err
	}

	if err := a.notifier.SendEmailConfirmation(ctx, user, token); err != nil {
		a.logger.Error("failed to deliver email confirmation for %s: %v", email, err)
	}

	return nil
}

// ConfirmEmail marks the address confirmed when the token checks out.
func (a *Accounts) ConfirmEmail(ctx context.Context, email, token string) error {
	user, err := a.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return errUserNotFound(email)
		}
		return err
	}

	if user.EmailConfirmed {
		return ErrEmailAlreadyConfirmed
	}

	if !a.provider.Check(user, PurposeEmailConfirm, token) {
		return ErrInvalidOrExpiredToken
	}

	user.EmailConfirmed = true
	a.repo.Users().RotateSecurityStamp(user)

	if _, err := a.repo.SaveChanges(ctx); err != nil {
		return err
	}

	a.emitEvent(ctx, ActivityEventEmailConfirmed, user.ID.String(), nil)

	return nil
}

// Deactivate turns the account off and kills its refresh token. The
// record stays in place; login reports the account as disabled.
func (a *Accounts) Deactivate(ctx context.Context, username string) error {
	user, err := a.repo.Users().GetByUsername(ctx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return errUserNotFound(username)
		}
		return err
	}

	user.IsActive = false
	user.RefreshToken = nil
	user.RefreshTokenExpiry = nil
	a.repo.Users().RotateSecurityStamp(user)

	if _, err := a.repo.SaveChanges(ctx); err != nil {
		return err
	}

	a.emitEvent(ctx, ActivityEventUserDeactivated, user.ID.String(), nil)

	return nil
}

// GetUser fetches a user with their roles loaded.
func (a *Accounts) GetUser(ctx context.Context, identifier string) (*User, error) {
	user, err := a.repo.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	roles, err := a.repo.Roles().RolesOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles

	return user, nil
}

// ListUsers returns users ordered by username. Deleted records never
// appear.
func (a *Accounts) ListUsers(ctx context.Context, criteria ...repository.SelectCriteria) ([]*User, error) {
	return a.repo.Users().GetAll(ctx, append(criteria, repository.OrderBy("username"))...)
}

// setPassword commits the new hash together with a stamp rotation so the
// consumed reset token and every other outstanding one stop verifying.
func (a *Accounts) setPassword(ctx context.Context, user *User, newPassword string, event ActivityEventType) error {
	hash, err := a.hasher.HashPassword(newPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user.PasswordHash = hash
	user.RefreshToken = nil
	user.RefreshTokenExpiry = nil
	a.repo.Users().RotateSecurityStamp(user)

	if _, err := a.repo.SaveChanges(ctx); err != nil {
		return err
	}

	a.emitEvent(ctx, event, user.ID.String(), nil)

	return nil
}

func (a *Accounts) emitEvent(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(a.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: a.now(),
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if err := sink.Record(ctx, event); err != nil {
		a.logger.Error("activity sink record error: %v", err)
	}
}

func resolveUsername(username, email string) string {
	username = strings.TrimSpace(username)
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}

// normalizePhone stores numbers in E.164 so lookups do not depend on how
// the user typed them. Empty input stays empty.
func normalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(raw, "US")
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid phone number").
			WithCode(goerrors.CodeBadRequest)
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
