package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gizilens/backend/internal/domain"
	"github.com/gizilens/backend/internal/events"
	"github.com/gizilens/backend/internal/repository/postgres"
)

const (
	msgEmailExists        = "Email already exists."
	msgInvalidCredentials = "Invalid username or password."
	msgInvalidPassword    = "Invalid password."
	msgNoUpdateFields     = "No fields to update."
	msgUserNotFound       = "User not found."
	msgUserIDNotFound     = "User ID not found."
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetCredentialsByEmail(ctx context.Context, email string) (*domain.UserCredentials, error)
	GetCredentialsByID(ctx context.Context, id string) (*domain.UserCredentials, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	ExistsDeletedByID(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, u *domain.User) (string, error)
	Update(ctx context.Context, upd domain.UserUpdate) error
	SoftDelete(ctx context.Context, id string) error
	Undelete(ctx context.Context, id string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(password, hash string) (bool, error)
}

type TokenCreator interface {
	CreateAccessToken(payload domain.TokenPayload) (string, error)
	CreateRefreshToken(payload domain.TokenPayload) (string, error)
}

type Sessions interface {
	Delete(ctx context.Context, sessionID, userID string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      string
	Photo     string
}

type UpdateInput struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Service implements the account use cases.
type Service struct {
	users        Repository
	sessions     Sessions
	hasher       PasswordHasher
	tokens       TokenCreator
	publisher    events.Publisher
	defaultPhoto string
	log          logrus.FieldLogger
}

func NewService(users Repository, sessions Sessions, hasher PasswordHasher, tokens TokenCreator, publisher events.Publisher, defaultPhoto string, log logrus.FieldLogger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		users:        users,
		sessions:     sessions,
		hasher:       hasher,
		tokens:       tokens,
		publisher:    publisher,
		defaultPhoto: defaultPhoto,
		log:          log.WithField("component", "user_service"),
	}
}

// Register creates an account and returns its id.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, error) {
	if !domain.IsValidRole(in.Role) {
		return "", domain.NewBadRequest("Invalid role.")
	}

	taken, err := s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return "", fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return "", domain.NewConflict(msgEmailExists)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", err
	}

	photo := in.Photo
	if photo == "" {
		photo = s.defaultPhoto
	}

	id, err := s.users.Create(ctx, &domain.User{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Password:  hash,
		Role:      in.Role,
		Photo:     photo,
	})
	if err != nil {
		if errors.Is(err, postgres.ErrDuplicateEmail) {
			return "", domain.NewConflict(msgEmailExists)
		}
		return "", fmt.Errorf("failed to register user: %w", err)
	}

	s.publish(ctx, events.Event{Type: events.UserRegistered, UserID: id, Role: in.Role})
	return id, nil
}

// Login checks the credentials and mints an access/refresh token pair.
// Unknown emails and wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, email, password, userAgent string) (*domain.IssuedTokens, error) {
	creds, err := s.users.GetCredentialsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}
	if creds == nil {
		return nil, domain.NewBadRequest(msgInvalidCredentials)
	}

	ok, err := s.hasher.Compare(password, creds.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NewBadRequest(msgInvalidCredentials)
	}

	user, err := s.users.GetByID(ctx, creds.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domain.NewNotFound(msgUserNotFound)
	}

	payload := domain.TokenPayload{ID: user.ID, Role: user.Role}
	issued := &domain.IssuedTokens{Role: user.Role, UserID: user.ID, UserAgent: userAgent}

	var g errgroup.Group
	g.Go(func() error {
		token, err := s.tokens.CreateAccessToken(payload)
		if err != nil {
			return fmt.Errorf("failed to create access token: %w", err)
		}
		issued.AccessToken = token
		return nil
	})
	g.Go(func() error {
		token, err := s.tokens.CreateRefreshToken(payload)
		if err != nil {
			return fmt.Errorf("failed to create refresh token: %w", err)
		}
		issued.RefreshToken = token
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{Type: events.UserLoggedIn, UserID: user.ID, Role: user.Role})
	return issued, nil
}

// GetProfile returns the active user whose id and role match the token.
func (s *Service) GetProfile(ctx context.Context, id, role string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domain.NewNotFound(msgUserIDNotFound)
	}
	if user.Role != role {
		return nil, domain.NewForbidden()
	}
	return user, nil
}

// Update changes the profile after re-checking the current password.
// Fields that are empty or equal to the stored value are left out.
func (s *Service) Update(ctx context.Context, role string, in UpdateInput) error {
	user, err := s.users.GetByID(ctx, in.ID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || user.Role != role {
		return domain.NewForbidden()
	}

	creds, err := s.users.GetCredentialsByID(ctx, in.ID)
	if err != nil {
		return fmt.Errorf("failed to get credentials: %w", err)
	}
	if creds == nil {
		return domain.NewForbidden()
	}
	ok, err := s.hasher.Compare(in.Password, creds.Password)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewBadRequest(msgInvalidPassword)
	}

	upd := domain.UserUpdate{ID: in.ID}
	if in.FirstName != user.FirstName {
		upd.FirstName = in.FirstName
	}
	if in.LastName != user.LastName {
		upd.LastName = in.LastName
	}
	if in.Email != "" && in.Email != user.Email {
		taken, err := s.users.ExistsByEmail(ctx, in.Email)
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if taken {
			return domain.NewConflict(msgEmailExists)
		}
		upd.Email = in.Email
	}

	err = s.users.Update(ctx, upd)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, postgres.ErrNoUpdateFields):
		return domain.NewBadRequest(msgNoUpdateFields)
	case errors.Is(err, postgres.ErrDuplicateEmail):
		return domain.NewConflict(msgEmailExists)
	case errors.Is(err, postgres.ErrNotFound):
		return domain.NewNotFound(msgUserIDNotFound)
	default:
		return fmt.Errorf("failed to update user: %w", err)
	}
}

// Logout ends one of the caller's sessions.
func (s *Service) Logout(ctx context.Context, role, userID, sessionID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return domain.NewNotFound(msgUserIDNotFound)
	}
	if user.Role != role {
		return domain.NewForbidden()
	}

	if err := s.sessions.Delete(ctx, sessionID, userID); err != nil {
		return err
	}

	s.publish(ctx, events.Event{Type: events.UserLoggedOut, UserID: userID, Role: role})
	return nil
}

// Delete soft-deletes targetID and ends all of its sessions. Only admins may do this.
func (s *Service) Delete(ctx context.Context, callerID, callerRole, targetID string) error {
	found, err := s.users.ExistsByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !found {
		return domain.NewNotFound(msgUserIDNotFound)
	}
	if err := s.requireAdmin(ctx, callerID, callerRole); err != nil {
		return err
	}

	killed, err := s.sessions.DeleteAllForUser(ctx, targetID)
	if err != nil {
		return err
	}

	if err := s.users.SoftDelete(ctx, targetID); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return domain.NewNotFound(msgUserIDNotFound)
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": targetID, "sessions": killed}).Info("user deleted")
	s.publish(ctx, events.Event{Type: events.UserDeleted, UserID: targetID, ActorID: callerID})
	return nil
}

// Undelete restores a soft-deleted user. Only admins may do this.
func (s *Service) Undelete(ctx context.Context, callerID, callerRole, targetID string) error {
	found, err := s.users.ExistsDeletedByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !found {
		return domain.NewNotFound(msgUserIDNotFound)
	}
	if err := s.requireAdmin(ctx, callerID, callerRole); err != nil {
		return err
	}

	if err := s.users.Undelete(ctx, targetID); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return domain.NewNotFound(msgUserIDNotFound)
		}
		return fmt.Errorf("failed to undelete user: %w", err)
	}

	s.publish(ctx, events.Event{Type: events.UserUndeleted, UserID: targetID, ActorID: callerID})
	return nil
}

func (s *Service) requireAdmin(ctx context.Context, callerID, callerRole string) error {
	found, err := s.users.ExistsByID(ctx, callerID)
	if err != nil {
		return fmt.Errorf("failed to check caller: %w", err)
	}
	if !found || callerRole != domain.RoleAdmin {
		return domain.NewForbidden()
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithError(err).WithField("type", event.Type).Warn("failed to publish event")
	}
}
