package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gizilens/backend/internal/domain"
)

func newTestTokenManager() *TokenManager {
	return NewTokenManager("test-access-key", "test-refresh-key")
}

func TestTokenManager_CreateAccessToken_SetsExpectedClaims(t *testing.T) {
	t.Parallel()

	m := newTestTokenManager()
	userID := uuid.NewString()

	token, err := m.CreateAccessToken(domain.TokenPayload{ID: userID, Role: domain.RoleClient})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.VerifyAccessToken(token, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, domain.RoleClient, claims.Role)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.IssuedAt)
	assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, 2*time.Second)
	assert.Nil(t, claims.ExpiresAt)
}

func TestTokenManager_TokensCarryUniqueIDs(t *testing.T) {
	t.Parallel()

	m := newTestTokenManager()
	payload := domain.TokenPayload{ID: uuid.NewString(), Role: domain.RoleAdmin}

	first, err := m.CreateRefreshToken(payload)
	require.NoError(t, err)
	second, err := m.CreateRefreshToken(payload)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenManager_VerifyToken_UsesRefreshKey(t *testing.T) {
	t.Parallel()

	m := newTestTokenManager()
	payload := domain.TokenPayload{ID: uuid.NewString(), Role: domain.RoleModerator}

	refresh, err := m.CreateRefreshToken(payload)
	require.NoError(t, err)
	got, err := m.VerifyToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	access, err := m.CreateAccessToken(payload)
	require.NoError(t, err)
	_, err = m.VerifyToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_VerifyAccessToken_RejectsRefreshToken(t *testing.T) {
	t.Parallel()

	m := newTestTokenManager()
	refresh, err := m.CreateRefreshToken(domain.TokenPayload{ID: uuid.NewString(), Role: domain.RoleClient})
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(refresh, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_VerifyAccessToken_MaxAge(t *testing.T) {
	t.Parallel()

	issued := time.Now().Add(-25 * time.Hour)
	m := newTestTokenManager().WithClock(func() time.Time { return issued })

	token, err := m.CreateAccessToken(domain.TokenPayload{ID: uuid.NewString(), Role: domain.RoleClient})
	require.NoError(t, err)

	m.WithClock(time.Now)
	_, err = m.VerifyAccessToken(token, 24*time.Hour)
	assert.ErrorIs(t, err, ErrTokenTooOld)

	_, err = m.VerifyAccessToken(token, 48*time.Hour)
	assert.NoError(t, err)
}

func TestTokenManager_Verify_RejectsTampering(t *testing.T) {
	t.Parallel()

	m := newTestTokenManager()
	token, err := m.CreateRefreshToken(domain.TokenPayload{ID: uuid.NewString(), Role: domain.RoleClient})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forged := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	_, err = m.VerifyToken(forged)
	assert.Error(t, err)

	_, err = m.VerifyToken("not-a-token")
	assert.Error(t, err)
}

func TestTokenManager_Verify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	m := newTestTokenManager()
	claims := &Claims{UserID: uuid.NewString(), Role: domain.RoleClient}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-refresh-key"))
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.Error(t, err)
}

func TestTokenManager_Verify_RequiresPayload(t *testing.T) {
	t.Parallel()

	m := newTestTokenManager()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Role: domain.RoleClient}).
		SignedString([]byte("test-refresh-key"))
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.ErrorIs(t, err, ErrMissingPayload)
}
