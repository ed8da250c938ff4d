// Package testutil holds in-memory stand-ins for the PostgreSQL repositories
// and the event publisher.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gizilens/backend/internal/domain"
	"github.com/gizilens/backend/internal/events"
	"github.com/gizilens/backend/internal/repository/postgres"
)

type UserStore struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

// Put stores u as-is, assigning an id when it has none.
func (s *UserStore) Put(u domain.User) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users[u.ID] = u
	return u.ID
}

// Raw returns the stored row, including soft-deleted users and the password hash.
func (s *UserStore) Raw(id string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *UserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.IsDeleted {
		return nil, nil
	}
	u.Password = ""
	return &u, nil
}

func (s *UserStore) GetCredentialsByEmail(_ context.Context, email string) (*domain.UserCredentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email && !u.IsDeleted {
			return &domain.UserCredentials{ID: u.ID, Password: u.Password}, nil
		}
	}
	return nil, nil
}

func (s *UserStore) GetCredentialsByID(_ context.Context, id string) (*domain.UserCredentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.IsDeleted {
		return nil, nil
	}
	return &domain.UserCredentials{ID: u.ID, Password: u.Password}, nil
}

func (s *UserStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email && !u.IsDeleted {
			return true, nil
		}
	}
	return false, nil
}

func (s *UserStore) ExistsByID(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return ok && !u.IsDeleted, nil
}

func (s *UserStore) ExistsDeletedByID(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return ok && u.IsDeleted, nil
}

// Create enforces the same unique email constraint as the users table,
// soft-deleted rows included.
func (s *UserStore) Create(_ context.Context, u *domain.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return "", postgres.ErrDuplicateEmail
		}
	}
	now := time.Now().UTC()
	row := *u
	row.ID = uuid.NewString()
	row.CreatedAt, row.UpdatedAt = now, now
	s.users[row.ID] = row
	return row.ID, nil
}

func (s *UserStore) Update(_ context.Context, upd domain.UserUpdate) error {
	if upd.FirstName == "" && upd.LastName == "" && upd.Email == "" {
		return postgres.ErrNoUpdateFields
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[upd.ID]
	if !ok || u.IsDeleted {
		return postgres.ErrNotFound
	}
	if upd.Email != "" {
		for id, other := range s.users {
			if id != upd.ID && other.Email == upd.Email {
				return postgres.ErrDuplicateEmail
			}
		}
		u.Email = upd.Email
	}
	if upd.FirstName != "" {
		u.FirstName = upd.FirstName
	}
	if upd.LastName != "" {
		u.LastName = upd.LastName
	}
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return nil
}

func (s *UserStore) SoftDelete(_ context.Context, id string) error {
	return s.setDeleted(id, true)
}

func (s *UserStore) Undelete(_ context.Context, id string) error {
	return s.setDeleted(id, false)
}

func (s *UserStore) setDeleted(id string, deleted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.IsDeleted == deleted {
		return postgres.ErrNotFound
	}
	u.IsDeleted = deleted
	s.users[id] = u
	return nil
}

type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.UserSession
	Now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.UserSession), Now: time.Now}
}

// Put stores s as-is, assigning an id when it has none.
func (s *SessionStore) Put(sess domain.UserSession) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	s.sessions[sess.ID] = sess
	return sess.ID
}

func (s *SessionStore) CountForUser(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			n++
		}
	}
	return n
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) Create(_ context.Context, sess *domain.UserSession) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now().UTC()
	sess.ID = uuid.NewString()
	sess.CreatedAt, sess.UpdatedAt = now, now
	s.sessions[sess.ID] = *sess
	return sess.ID, nil
}

func (s *SessionStore) GetByID(_ context.Context, id string) (*domain.UserSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) ListByUserID(_ context.Context, userID string) ([]domain.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.SessionSummary{}
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *SessionStore) DeleteByIDAndUser(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.UserID != userID {
		return postgres.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *SessionStore) DeleteByUserID(_ context.Context, userID string) (int64, error) {
	return s.deleteWhere(func(sess domain.UserSession) bool { return sess.UserID == userID }), nil
}

func (s *SessionStore) DeleteExpired(_ context.Context) (int64, error) {
	now := s.Now()
	return s.deleteWhere(func(sess domain.UserSession) bool { return sess.IsExpired(now) }), nil
}

func (s *SessionStore) deleteWhere(match func(domain.UserSession) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if match(sess) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Publisher records every published event.
type Publisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *Publisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *Publisher) Close() error { return nil }

func (p *Publisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
