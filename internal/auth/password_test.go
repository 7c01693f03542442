package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ============================================
// HashPassword Tests
// ============================================

func TestHashPassword_MinimumLength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "six characters", password: "cobol1"},
		{name: "demo password", password: "password"},
		{name: "six multibyte characters", password: "パスワード1"},
		{name: "five characters", password: "cobol", wantErr: ErrPasswordTooShort},
		{name: "five multibyte characters", password: "パスワード", wantErr: ErrPasswordTooShort},
		{name: "empty", password: "", wantErr: ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, hash)
				return
			}
			require.NoError(t, err)
			cost, err := bcrypt.Cost([]byte(hash))
			require.NoError(t, err)
			assert.Equal(t, bcryptCost, cost)
		})
	}
}

func TestHashPassword_ErrorMessage(t *testing.T) {
	_, err := HashPassword("12345")

	assert.EqualError(t, err, "password must be at least 6 characters long")
}

func TestHashPassword_TooLongForBcrypt(t *testing.T) {
	_, err := HashPassword(strings.Repeat("x", 80))

	assert.ErrorIs(t, err, bcrypt.ErrPasswordTooLong)
}

func TestHashPassword_SaltsEveryHash(t *testing.T) {
	first, err := HashPassword("grace1")
	require.NoError(t, err)
	second, err := HashPassword("grace1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

// ============================================
// CheckPassword Tests
// ============================================

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("Hopper1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
	}{
		{name: "match", password: "Hopper1", hash: hash, want: true},
		{name: "different case", password: "hopper1", hash: hash},
		{name: "empty password", password: "", hash: hash},
		{name: "malformed hash", password: "Hopper1", hash: "not-a-hash"},
		{name: "empty hash", password: "Hopper1", hash: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckPassword(tt.password, tt.hash))
		})
	}
}
