package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gizilens/backend/internal/domain"
	"github.com/gizilens/backend/internal/repository/postgres"
)

const (
	msgSessionNotFound = "Session ID not found."
	msgSessionExpired  = "Session expired."
)

type SessionRepository interface {
	Create(ctx context.Context, s *domain.UserSession) (string, error)
	GetByID(ctx context.Context, id string) (*domain.UserSession, error)
	ListByUserID(ctx context.Context, userID string) ([]domain.SessionSummary, error)
	DeleteByIDAndUser(ctx context.Context, id, userID string) error
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type Sealer interface {
	Seal(v any) (string, error)
	Unseal(sealed string, v any) error
}

type TokenManager interface {
	CreateAccessToken(payload domain.TokenPayload) (string, error)
	VerifyToken(token string) (domain.TokenPayload, error)
}

// Created is returned by Create: the plaintext refresh token for the cookie
// and the id of the new session.
type Created struct {
	SessionID string
	Token     string
}

// Token is an unsealed session refresh token and the role of its owner.
type Token struct {
	Token string
	Role  string
}

type Refreshed struct {
	AccessToken string
	Role        string
}

// Service manages the lifecycle of login sessions.
type Service struct {
	sessions SessionRepository
	users    UserRepository
	sealer   Sealer
	tokens   TokenManager
	ttl      time.Duration
	now      func() time.Time
	log      logrus.FieldLogger
}

func NewService(sessions SessionRepository, users UserRepository, sealer Sealer, tokens TokenManager, ttl time.Duration, log logrus.FieldLogger) *Service {
	return &Service{
		sessions: sessions,
		users:    users,
		sealer:   sealer,
		tokens:   tokens,
		ttl:      ttl,
		now:      time.Now,
		log:      log.WithField("component", "session_service"),
	}
}

// Create seals the refresh token and stores a new session expiring after the configured TTL.
func (s *Service) Create(ctx context.Context, issued domain.IssuedTokens) (*Created, error) {
	sealed, err := s.sealer.Seal(issued.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to seal refresh token: %w", err)
	}

	session := &domain.UserSession{
		UserID:    issued.UserID,
		Token:     sealed,
		UserAgent: issued.UserAgent,
		ExpiresAt: s.now().Add(s.ttl),
	}
	id, err := s.sessions.Create(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &Created{SessionID: id, Token: issued.RefreshToken}, nil
}

// Get returns the unsealed refresh token of a live session together with its owner's role.
// Looking up an expired session purges every expired session before rejecting the request.
func (s *Service) Get(ctx context.Context, sessionID string) (*Token, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, domain.NewNotFound(msgSessionNotFound)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session owner: %w", err)
	}
	if user == nil {
		return nil, domain.NewForbidden()
	}

	if session.IsExpired(s.now()) {
		if n, err := s.sessions.DeleteExpired(ctx); err != nil {
			s.log.WithError(err).Warn("failed to clean up expired sessions")
		} else {
			s.log.WithField("deleted", n).Debug("cleaned up expired sessions")
		}
		return nil, domain.NewUnauthorized(msgSessionExpired)
	}

	var token string
	if err := s.sealer.Unseal(session.Token, &token); err != nil {
		return nil, fmt.Errorf("failed to unseal session token: %w", err)
	}

	return &Token{Token: token, Role: user.Role}, nil
}

// ValidateToken checks a presented refresh token against the one stored in the
// session and mints a new access token for the expected role.
func (s *Service) ValidateToken(role, presented, stored string) (*Refreshed, error) {
	if subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) != 1 {
		return nil, domain.NewForbidden()
	}

	payload, err := s.tokens.VerifyToken(presented)
	if err != nil {
		return nil, domain.NewForbidden()
	}
	if payload.Role != role {
		return nil, domain.NewForbidden()
	}

	access, err := s.tokens.CreateAccessToken(domain.TokenPayload{ID: payload.ID, Role: payload.Role})
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}
	return &Refreshed{AccessToken: access, Role: payload.Role}, nil
}

// Delete removes a session owned by userID.
func (s *Service) Delete(ctx context.Context, sessionID, userID string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return domain.NewNotFound(msgSessionNotFound)
	}
	if session.UserID != userID {
		return domain.NewForbidden()
	}

	if err := s.sessions.DeleteByIDAndUser(ctx, sessionID, userID); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return domain.NewNotFound(msgSessionNotFound)
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every session of the user.
func (s *Service) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.sessions.DeleteByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.SessionSummary, error) {
	list, err := s.sessions.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return list, nil
}

// PurgeExpired deletes every expired session.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return n, nil
}
