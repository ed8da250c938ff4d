package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gizilens/backend/internal/domain"
	cache "github.com/gizilens/backend/internal/repository/redis"
)

const (
	sessionNamespace = "session"
	userListSubkey   = "user"
	sessionColumns   = "id, user_id, token, user_agent, expires_at, created_at, updated_at"
)

type SessionRepo struct {
	DB    *sql.DB
	cache *cache.Store
	ttl   time.Duration
	log   logrus.FieldLogger
}

func NewSessionRepo(db *sql.DB, store *cache.Store, ttl time.Duration, log logrus.FieldLogger) *SessionRepo {
	return &SessionRepo{
		DB:    db,
		cache: store,
		ttl:   ttl,
		log:   log.WithField("component", "session_repo"),
	}
}

func scanSession(row interface{ Scan(dest ...any) error }) (*domain.UserSession, error) {
	var s domain.UserSession
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Token,
		&s.UserAgent,
		&s.ExpiresAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func sessionToRow(s *domain.UserSession) cache.Row {
	return cache.Row{
		"id":         s.ID,
		"user_id":    s.UserID,
		"token":      s.Token,
		"user_agent": s.UserAgent,
		"expires_at": cache.FormatTime(s.ExpiresAt),
		"created_at": cache.FormatTime(s.CreatedAt),
		"updated_at": cache.FormatTime(s.UpdatedAt),
	}
}

func sessionFromRow(row cache.Row) *domain.UserSession {
	return &domain.UserSession{
		ID:        row.String("id"),
		UserID:    row.String("user_id"),
		Token:     row.String("token"),
		UserAgent: row.String("user_agent"),
		ExpiresAt: row.Time("expires_at"),
		CreatedAt: row.Time("created_at"),
		UpdatedAt: row.Time("updated_at"),
	}
}

// Create inserts the session and fills in its generated id and timestamps.
func (r *SessionRepo) Create(ctx context.Context, s *domain.UserSession) (string, error) {
	query := `
	INSERT INTO sessions (user_id, token, user_agent, expires_at)
	VALUES ($1, $2, $3, $4)
	RETURNING id, created_at, updated_at;
	`
	err := r.DB.QueryRowContext(ctx, query, s.UserID, s.Token, s.UserAgent, s.ExpiresAt).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	if err := r.cache.DeleteArray(ctx, sessionNamespace, userListSubkey, s.UserID); err != nil {
		return "", fmt.Errorf("failed to invalidate cached session list: %w", err)
	}
	return s.ID, nil
}

// GetByID returns the session or nil if it does not exist, cache first.
func (r *SessionRepo) GetByID(ctx context.Context, id string) (*domain.UserSession, error) {
	row, err := r.cache.GetTableRow(ctx, sessionNamespace, detailsSubkey, id)
	if err != nil {
		r.log.WithError(err).Warn("failed to read session from cache")
	}
	if row != nil {
		return sessionFromRow(row), nil
	}

	query := `
	SELECT ` + sessionColumns + `
	FROM sessions
	WHERE id = $1
	LIMIT 1;
	`
	session, err := scanSession(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if err := r.cache.SetTableRow(ctx, sessionNamespace, detailsSubkey, id, sessionToRow(session), r.ttl); err != nil {
		r.log.WithError(err).Warn("failed to cache session")
	}
	return session, nil
}

// ListByUserID returns summaries of the user's sessions, newest first.
func (r *SessionRepo) ListByUserID(ctx context.Context, userID string) ([]domain.SessionSummary, error) {
	cached, err := r.cache.GetArray(ctx, sessionNamespace, userListSubkey, userID)
	if err != nil {
		r.log.WithError(err).Warn("failed to read session list from cache")
	}
	if cached != nil {
		summaries, err := decodeSummaries(cached)
		if err == nil {
			return summaries, nil
		}
		r.log.WithError(err).Warn("discarding malformed cached session list")
	}

	query := `
	SELECT id, user_agent, expires_at, created_at
	FROM sessions
	WHERE user_id = $1
	ORDER BY created_at DESC;
	`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	summaries := []domain.SessionSummary{}
	for rows.Next() {
		var s domain.SessionSummary
		if err := rows.Scan(&s.ID, &s.UserAgent, &s.ExpiresAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}

	items := make([]any, len(summaries))
	for i, s := range summaries {
		items[i] = s
	}
	if err := r.cache.SetArray(ctx, sessionNamespace, userListSubkey, userID, items, r.ttl); err != nil {
		r.log.WithError(err).Warn("failed to cache session list")
	}
	return summaries, nil
}

func decodeSummaries(items []any) ([]domain.SessionSummary, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	summaries := []domain.SessionSummary{}
	if err := json.Unmarshal(raw, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// DeleteByIDAndUser removes one session owned by userID.
func (r *SessionRepo) DeleteByIDAndUser(ctx context.Context, id, userID string) error {
	query := `
	DELETE FROM sessions
	WHERE id = $1 AND user_id = $2;
	`
	result, err := r.DB.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return err
	}
	return r.evict(ctx, []string{id}, []string{userID})
}

// DeleteByUserID removes every session of the user and returns how many were deleted.
func (r *SessionRepo) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	query := `
	DELETE FROM sessions
	WHERE user_id = $1
	RETURNING id;
	`
	ids, _, err := r.deleteReturning(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return int64(len(ids)), r.evict(ctx, ids, []string{userID})
}

// DeleteExpired removes every session whose expiry has been reached.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
	DELETE FROM sessions
	WHERE expires_at <= NOW()
	RETURNING id, user_id;
	`
	ids, userIDs, err := r.deleteReturning(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return int64(len(ids)), r.evict(ctx, ids, userIDs)
}

func (r *SessionRepo) deleteReturning(ctx context.Context, query string, args ...any) ([]string, []string, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var ids, userIDs []string
	for rows.Next() {
		var id, userID string
		dest := []any{&id}
		if len(cols) > 1 {
			dest = append(dest, &userID)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		if userID != "" {
			userIDs = append(userIDs, userID)
		}
	}
	return ids, userIDs, rows.Err()
}

func (r *SessionRepo) evict(ctx context.Context, ids, userIDs []string) error {
	var errs []error
	for _, id := range ids {
		if err := r.cache.DeleteTableRow(ctx, sessionNamespace, detailsSubkey, id); err != nil {
			errs = append(errs, err)
		}
	}

	seen := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		if err := r.cache.DeleteArray(ctx, sessionNamespace, userListSubkey, userID); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to invalidate cached sessions: %w", err)
	}
	return nil
}
