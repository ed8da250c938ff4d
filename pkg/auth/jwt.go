package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gizilens/backend/internal/domain"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenTooOld    = errors.New("token exceeded maximum age")
	ErrSigningMethod  = errors.New("invalid signing method")
	ErrMissingPayload = errors.New("token payload is incomplete")
)

// Claims carries the user id and role. Tokens never expire on their own;
// access token age is enforced from IssuedAt, refresh tokens live as long as their session.
type Claims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Payload() domain.TokenPayload {
	return domain.TokenPayload{ID: c.UserID, Role: c.Role}
}

type TokenManager struct {
	accessKey  []byte
	refreshKey []byte
	now        func() time.Time
}

func NewTokenManager(accessKey, refreshKey string) *TokenManager {
	return &TokenManager{
		accessKey:  []byte(accessKey),
		refreshKey: []byte(refreshKey),
		now:        time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

// CreateAccessToken signs payload with the access key.
func (m *TokenManager) CreateAccessToken(payload domain.TokenPayload) (string, error) {
	return m.sign(payload, m.accessKey)
}

// CreateRefreshToken signs payload with the refresh key.
func (m *TokenManager) CreateRefreshToken(payload domain.TokenPayload) (string, error) {
	return m.sign(payload, m.refreshKey)
}

func (m *TokenManager) sign(payload domain.TokenPayload, key []byte) (string, error) {
	claims := &Claims{
		UserID: payload.ID,
		Role:   payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(m.now()),
			ID:       uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// VerifyToken checks a refresh token signature and returns its payload.
func (m *TokenManager) VerifyToken(tokenString string) (domain.TokenPayload, error) {
	claims, err := m.parse(tokenString, m.refreshKey)
	if err != nil {
		return domain.TokenPayload{}, err
	}
	return claims.Payload(), nil
}

// VerifyAccessToken checks an access token signature and rejects tokens
// issued more than maxAge ago. A zero maxAge disables the age check.
func (m *TokenManager) VerifyAccessToken(tokenString string, maxAge time.Duration) (*Claims, error) {
	claims, err := m.parse(tokenString, m.accessKey)
	if err != nil {
		return nil, err
	}

	if maxAge > 0 {
		if claims.IssuedAt == nil {
			return nil, ErrMissingPayload
		}
		if m.now().Sub(claims.IssuedAt.Time) > maxAge {
			return nil, ErrTokenTooOld
		}
	}
	return claims, nil
}

func (m *TokenManager) parse(tokenString string, key []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrSigningMethod
		}
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.Role == "" {
		return nil, ErrMissingPayload
	}
	return claims, nil
}
