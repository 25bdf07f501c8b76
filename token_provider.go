package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Purpose names the operation a single-use token is bound to. Tokens
// generated for one purpose never verify under another.
type Purpose string

const (
	// PurposeTwoFactor matches the token provider name used by the email
	// based second factor.
	PurposeTwoFactor Purpose = "Email"

	PurposeEmailConfirm  Purpose = "EmailConfirmation"
	PurposePasswordReset Purpose = "ResetPassword"
)

// StampTokenProvider derives tokens from the user's security stamp. The
// stamp is part of the MAC input, so rotating it invalidates every token
// issued before the rotation without any server-side token storage.
//
// Two-factor codes are short numeric codes valid for the current and the
// previous time step. Link tokens carry an explicit expiry protected by
// the same MAC.
type StampTokenProvider struct {
	key      []byte
	codeStep time.Duration
	tokenTTL time.Duration
	now      func() time.Time
}

// NewStampTokenProvider builds a provider keyed with the given secret.
func NewStampTokenProvider(key []byte) *StampTokenProvider {
	return &StampTokenProvider{
		key:      key,
		codeStep: 90 * time.Second,
		tokenTTL: 24 * time.Hour,
		now:      time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (p *StampTokenProvider) WithClock(now func() time.Time) *StampTokenProvider {
	p.now = now
	return p
}

// WithTokenTTL overrides the link token lifetime.
func (p *StampTokenProvider) WithTokenTTL(ttl time.Duration) *StampTokenProvider {
	p.tokenTTL = ttl
	return p
}

// Generate produces a token for the user and purpose. Two-factor tokens
// come out as 6-digit codes, everything else as an opaque url-safe token.
func (p *StampTokenProvider) Generate(user *User, purpose Purpose) (string, error) {
	if user == nil {
		return "", goerrors.New("user must not be nil", goerrors.CategoryInternal)
	}
	if user.SecurityStamp == "" {
		return "", goerrors.New("user has no security stamp", goerrors.CategoryInternal)
	}

	if purpose == PurposeTwoFactor {
		return p.code(user, p.step(p.now())), nil
	}

	expiry := p.now().Add(p.tokenTTL).Unix()
	mac := p.mac(user, purpose, strconv.FormatInt(expiry, 10))
	return fmt.Sprintf("%d.%s", expiry, mac), nil
}

// Check verifies a token produced by Generate. Two-factor codes are
// accepted for the current and the immediately preceding time step.
func (p *StampTokenProvider) Check(user *User, purpose Purpose, token string) bool {
	if user == nil || user.SecurityStamp == "" || token == "" {
		return false
	}

	if purpose == PurposeTwoFactor {
		step := p.step(p.now())
		for _, s := range []uint64{step, step - 1} {
			if subtle.ConstantTimeCompare([]byte(p.code(user, s)), []byte(token)) == 1 {
				return true
			}
		}
		return false
	}

	rawExpiry, mac, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}

	expiry, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil || p.now().Unix() > expiry {
		return false
	}

	expected := p.mac(user, purpose, rawExpiry)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(mac)) == 1
}

func (p *StampTokenProvider) step(t time.Time) uint64 {
	return uint64(t.Unix()) / uint64(p.codeStep.Seconds())
}

// code derives a 6 digit value from the MAC the same way TOTP truncates
// its counter hash.
func (p *StampTokenProvider) code(user *User, step uint64) string {
	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], step)

	h := hmac.New(sha256.New, p.key)
	h.Write([]byte(user.ID.String()))
	h.Write([]byte(PurposeTwoFactor))
	h.Write([]byte(user.SecurityStamp))
	h.Write(counter[:])
	sum := h.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	return fmt.Sprintf("%06d", value%1000000)
}

func (p *StampTokenProvider) mac(user *User, purpose Purpose, payload string) string {
	h := hmac.New(sha256.New, p.key)
	h.Write([]byte(user.ID.String()))
	h.Write([]byte(purpose))
	h.Write([]byte(user.SecurityStamp))
	h.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
