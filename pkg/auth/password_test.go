package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndCompare(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("Aa1!aaaa")
	require.NoError(t, err)
	assert.NotEqual(t, "Aa1!aaaa", hash)

	ok, err := h.Compare("Aa1!aaaa", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare("Aa1!aaab", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHasher_LongPassword(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(bcrypt.MinCost)
	long := "Aa1!" + strings.Repeat("a", 124)

	hash, err := h.Hash(long)
	require.NoError(t, err)

	ok, err := h.Compare(long, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare("Ab1!"+strings.Repeat("a", 124), hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHasher_MalformedHash(t *testing.T) {
	t.Parallel()

	ok, err := NewPasswordHasher(bcrypt.MinCost).Compare("Aa1!aaaa", "not-a-hash")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewPasswordHasher_FallsBackToDefaultCost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(99).cost)
	assert.Equal(t, 12, NewPasswordHasher(12).cost)
}

func TestValidatePasswordStrength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "strong", password: "Aa1!aaaa"},
		{name: "too short", password: "Aa1!a", wantErr: true},
		{name: "no upper", password: "aa1!aaaa", wantErr: true},
		{name: "no lower", password: "AA1!AAAA", wantErr: true},
		{name: "no digit", password: "Aaa!aaaa", wantErr: true},
		{name: "no special", password: "Aa1aaaaa", wantErr: true},
		{name: "special outside the allowed set", password: "Aa1#aaaa", wantErr: true},
		{name: "space", password: "Aa1! aaaa", wantErr: true},
		{name: "non ascii letter", password: "Aa1!aaaé", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordStrength(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
