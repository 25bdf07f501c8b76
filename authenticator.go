package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-identity/repository"
)

// DefaultRefreshExpirationDays is the refresh token lifetime.
const DefaultRefreshExpirationDays = 7

// Auther drives the session lifecycle: login, the two-factor step-up,
// refresh rotation and logout.
type Auther struct {
	repo              RepositoryManager
	verifier          CredentialVerifier
	tokens            TokenIssuer
	provider          TokenProvider
	notifier          Notifier
	activitySink      ActivitySink
	logger            Logger
	refreshExpiration int
	now               func() time.Time
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, opts Config) *Auther {
	tokens := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	refreshExpiration := opts.GetRefreshExpiration()
	if refreshExpiration <= 0 {
		refreshExpiration = DefaultRefreshExpirationDays
	}

	verifierOpts := []VerifierOption{}
	if opts.GetMaxFailedAccessCount() > 0 || opts.GetLockoutDuration() > 0 {
		verifierOpts = append(verifierOpts, WithVerifierLimits(
			opts.GetMaxFailedAccessCount(),
			time.Duration(opts.GetLockoutDuration())*time.Minute,
		))
	}

	return &Auther{
		repo:              repo,
		verifier:          NewVerifier(repo.Users(), verifierOpts...),
		tokens:            tokens,
		provider:          NewStampTokenProvider([]byte(opts.GetSigningKey())),
		notifier:          NewLogNotifier(nil),
		activitySink:      noopActivitySink{},
		logger:            defLogger{},
		refreshExpiration: refreshExpiration,
		now:               time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithVerifier swaps the credential verifier, mostly used by tests.
func (s *Auther) WithVerifier(verifier CredentialVerifier) *Auther {
	if verifier != nil {
		s.verifier = verifier
	}
	return s
}

// WithTokenIssuer swaps the access and refresh token source.
func (s *Auther) WithTokenIssuer(tokens TokenIssuer) *Auther {
	if tokens != nil {
		s.tokens = tokens
	}
	return s
}

// WithTokenProvider swaps the single-use token source.
func (s *Auther) WithTokenProvider(provider TokenProvider) *Auther {
	if provider != nil {
		s.provider = provider
	}
	return s
}

// WithNotifier configures the out-of-band delivery channel.
func (s *Auther) WithNotifier(notifier Notifier) *Auther {
	if notifier != nil {
		s.notifier = notifier
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithClock overrides the time source, used by tests.
func (s *Auther) WithClock(now func() time.Time) *Auther {
	if now != nil {
		s.now = now
	}
	return s
}

// TokenIssuer returns the token issuer used by this Authenticator
func (s *Auther) TokenIssuer() TokenIssuer {
	return s.tokens
}

// Login verifies credentials and issues a token pair. Accounts with the
// second factor enabled get a code delivered instead and the caller must
// complete VerifyTwoFactor.
//
// An unknown identifier reports the same invalid-credentials failure as a
// wrong password.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	user, err := s.repo.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.emitAuthEvent(ctx, ActivityEventLoginFailure, "", map[string]any{
				"identifier": identifier,
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	result, err := s.verifier.Verify(ctx, user, password)
	if err != nil {
		s.logger.Error("Login credential verification error: %v", err)
		return nil, err
	}

	if verifyErr := verifyResultError(result); verifyErr != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, user.ID.String(), map[string]any{
			"identifier": identifier,
			"error":      verifyErr.Error(),
		})
		return nil, verifyErr
	}

	if user.TwoFactorEnabled {
		if err := s.startTwoFactor(ctx, user); err != nil {
			return nil, err
		}
		return nil, ErrTwoFactorRequired
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, user.ID.String(), map[string]any{
		"identifier": identifier,
	})

	return pair, nil
}

// VerifyTwoFactor completes the second factor and issues a token pair.
func (s *Auther) VerifyTwoFactor(ctx context.Context, identifier, code string) (*TokenPair, error) {
	user, err := s.repo.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnabled
	}

	if !s.provider.Check(user, PurposeTwoFactor, code) {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, user.ID.String(), map[string]any{
			"identifier": identifier,
			"error":      ErrInvalidCode.Error(),
		})
		return nil, ErrInvalidCode
	}

	// Rotating the stamp here makes the consumed code worthless even
	// inside its time window.
	s.repo.Users().RotateSecurityStamp(user)

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, user.ID.String(), map[string]any{
		"identifier": identifier,
		"two_factor": true,
	})

	return pair, nil
}

// SendTwoFactorCode delivers a fresh code, invalidating any earlier one.
func (s *Auther) SendTwoFactorCode(ctx context.Context, identifier string) error {
	user, err := s.repo.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrInvalidCredentials
		}
		return err
	}

	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}

	return s.startTwoFactor(ctx, user)
}

// Refresh trades a refresh token for a new pair. Both tokens rotate: the
// old refresh token is overwritten and will not verify again.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrInvalidOrExpiredToken
	}

	user, err := s.repo.Users().GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, err
	}

	now := s.now()
	if user.RefreshTokenExpiry == nil || !user.RefreshTokenExpiry.After(now) {
		return nil, ErrInvalidOrExpiredToken
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefresh, user.ID.String(), nil)

	return pair, nil
}

// Logout clears the stored refresh token. Logging out an already
// logged-out session succeeds; an unknown username is reported.
func (s *Auther) Logout(ctx context.Context, username string) error {
	user, err := s.repo.Users().GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	if user.RefreshToken == nil && user.RefreshTokenExpiry == nil {
		return nil
	}

	user.RefreshToken = nil
	user.RefreshTokenExpiry = nil
	s.repo.Users().Update(user)

	if _, err := s.repo.SaveChanges(ctx); err != nil {
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventLogout, user.ID.String(), nil)

	return nil
}

// issueTokens mints the access token from the user's roles, rotates the
// stored refresh token and commits both in one unit of work.
func (s *Auther) issueTokens(ctx context.Context, user *User) (*TokenPair, error) {
	roleList, err := s.repo.Roles().RolesOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roleList))
	for _, r := range roleList {
		names = append(names, r.Name)
	}

	access, expiresAt, err := s.tokens.IssueAccessToken(user, names)
	if err != nil {
		return nil, err
	}

	refresh, err := s.tokens.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	refreshExpiry := s.now().AddDate(0, 0, s.refreshExpiration)
	user.RefreshToken = &refresh
	user.RefreshTokenExpiry = &refreshExpiry
	s.repo.Users().Update(user)

	if _, err := s.repo.SaveChanges(ctx); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		TokenType:    "Bearer",
	}, nil
}

// startTwoFactor rotates the stamp, commits, and sends the derived code.
// Rotation first means a code from a previous attempt can no longer win.
func (s *Auther) startTwoFactor(ctx context.Context, user *User) error {
	s.repo.Users().RotateSecurityStamp(user)
	if _, err := s.repo.SaveChanges(ctx); err != nil {
		return err
	}

	code, err := s.provider.Generate(user, PurposeTwoFactor)
	if err != nil {
		return err
	}

	// Delivery is best effort. The stamp has already rotated, so the
	// caller still gets the step-up prompt and can ask for a resend.
	if err := s.notifier.SendTwoFactorCode(ctx, user, code); err != nil {
		s.logger.Error("failed to deliver two factor code: %v", err)
	}

	return nil
}

func verifyResultError(result VerifyResult) error {
	switch result {
	case VerifySuccess:
		return nil
	case VerifyDisabled:
		return ErrAccountDisabled
	case VerifyLockedOut:
		return ErrAccountLockedOut
	default:
		return ErrInvalidCredentials
	}
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Error("activity sink record error: %v", err)
	}
}

var _ Authenticator = (*Auther)(nil)

// errUserNotFound keeps not-found reporting consistent for operations
// that intentionally reveal account existence.
func errUserNotFound(identifier string) error {
	return goerrors.New("user not found", goerrors.CategoryNotFound).
		WithTextCode("USER_NOT_FOUND").
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}
