package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordPolicyAcceptsCompliantPassword(t *testing.T) {
	policy := DefaultPasswordPolicy()

	assert.NoError(t, policy.Validate("Aa1!aa"))
	assert.NoError(t, policy.Validate("Str0ng&Password"))
}

func TestPasswordPolicyRejections(t *testing.T) {
	policy := DefaultPasswordPolicy()

	tests := []struct {
		name     string
		password string
	}{
		{"empty", ""},
		{"too short", "Aa1!a"},
		{"no digit", "Aaa!aa"},
		{"no lowercase", "AA1!AA"},
		{"no uppercase", "aa1!aa"},
		{"no special character", "Aa1aaa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, policy.Validate(tt.password))
		})
	}
}

func TestPasswordPolicyRequiredUniqueChars(t *testing.T) {
	policy := DefaultPasswordPolicy()
	policy.RequiredUniqueChars = 5

	assert.Error(t, policy.Validate("Aa1!!!"))
	assert.NoError(t, policy.Validate("Aa1!bc"))
}

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("Aa1!aa")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.NoError(t, ComparePasswordAndHash("Aa1!aa", hash))
	assert.ErrorIs(t, ComparePasswordAndHash("wrong", hash), ErrMismatchedHashAndPassword)
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := HashPassword("")
	require.Error(t, err)
}
