package identity

import (
	"errors"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// PasswordPolicy mirrors the account system defaults: a short floor plus
// one of each character class and at least one distinct character.
type PasswordPolicy struct {
	MinLength           int
	RequireDigit        bool
	RequireLowercase    bool
	RequireUppercase    bool
	RequireNonAlphanum  bool
	RequiredUniqueChars int
}

// DefaultPasswordPolicy returns the standard policy.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:           6,
		RequireDigit:        true,
		RequireLowercase:    true,
		RequireUppercase:    true,
		RequireNonAlphanum:  true,
		RequiredUniqueChars: 1,
	}
}

// Validate checks the candidate password against the policy. The error
// value carries every failed rule, not just the first one.
func (p PasswordPolicy) Validate(password string) error {
	err := validation.Validate(password,
		validation.Required,
		validation.Length(p.MinLength, 0),
		validation.By(p.characterClasses),
	)
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "password does not meet policy").
		WithTextCode("INVALID_PASSWORD").
		WithCode(goerrors.CodeBadRequest)
}

func (p PasswordPolicy) characterClasses(value any) error {
	password, _ := value.(string)

	var digit, lower, upper, special bool
	unique := map[rune]struct{}{}
	for _, r := range password {
		unique[r] = struct{}{}
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		default:
			special = true
		}
	}

	switch {
	case p.RequireDigit && !digit:
		return errors.New("must contain at least one digit")
	case p.RequireLowercase && !lower:
		return errors.New("must contain at least one lowercase letter")
	case p.RequireUppercase && !upper:
		return errors.New("must contain at least one uppercase letter")
	case p.RequireNonAlphanum && !special:
		return errors.New("must contain at least one non-alphanumeric character")
	case len(unique) < p.RequiredUniqueChars:
		return errors.New("must contain more distinct characters")
	}
	return nil
}
