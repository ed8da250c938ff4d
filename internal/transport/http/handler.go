package http

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gizilens/backend/internal/config"
	"github.com/gizilens/backend/internal/domain"
	"github.com/gizilens/backend/internal/service/session"
	usersvc "github.com/gizilens/backend/internal/service/user"
)

type UserService interface {
	Register(ctx context.Context, in usersvc.RegisterInput) (string, error)
	Login(ctx context.Context, email, password, userAgent string) (*domain.IssuedTokens, error)
	GetProfile(ctx context.Context, id, role string) (*domain.User, error)
	Update(ctx context.Context, role string, in usersvc.UpdateInput) error
	Logout(ctx context.Context, role, userID, sessionID string) error
	Delete(ctx context.Context, callerID, callerRole, targetID string) error
	Undelete(ctx context.Context, callerID, callerRole, targetID string) error
}

type SessionService interface {
	Create(ctx context.Context, issued domain.IssuedTokens) (*session.Created, error)
	Get(ctx context.Context, sessionID string) (*session.Token, error)
	ValidateToken(role, presented, stored string) (*session.Refreshed, error)
	List(ctx context.Context, userID string) ([]domain.SessionSummary, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	users      UserService
	sessions   SessionService
	cookie     config.CookieConfig
	sessionTTL time.Duration
	checks     map[string]HealthCheck
	log        logrus.FieldLogger
}

func NewHandler(users UserService, sessions SessionService, cookie config.CookieConfig, sessionTTL time.Duration, checks map[string]HealthCheck, log logrus.FieldLogger) *Handler {
	registerValidators()
	return &Handler{
		users:      users,
		sessions:   sessions,
		cookie:     cookie,
		sessionTTL: sessionTTL,
		checks:     checks,
		log:        log.WithField("component", "http"),
	}
}
