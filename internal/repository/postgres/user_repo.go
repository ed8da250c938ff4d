package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gizilens/backend/internal/domain"
	cache "github.com/gizilens/backend/internal/repository/redis"
)

const (
	userNamespace = "user"
	detailsSubkey = "details"
	userColumns   = "id, first_name, last_name, email, role, photo, is_deleted, created_at, updated_at"
)

type UserRepo struct {
	DB    *sql.DB
	cache *cache.Store
	ttl   time.Duration
	log   logrus.FieldLogger
}

func NewUserRepo(db *sql.DB, store *cache.Store, ttl time.Duration, log logrus.FieldLogger) *UserRepo {
	return &UserRepo{
		DB:    db,
		cache: store,
		ttl:   ttl,
		log:   log.WithField("component", "user_repo"),
	}
}

// scanUser is a helper that scans a row into a User struct
func scanUser(row interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.Role,
		&u.Photo,
		&u.IsDeleted,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func userToRow(u *domain.User) cache.Row {
	return cache.Row{
		"id":         u.ID,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"email":      u.Email,
		"role":       u.Role,
		"photo":      u.Photo,
		"is_deleted": strconv.FormatBool(u.IsDeleted),
		"created_at": cache.FormatTime(u.CreatedAt),
		"updated_at": cache.FormatTime(u.UpdatedAt),
	}
}

func userFromRow(row cache.Row) *domain.User {
	return &domain.User{
		ID:        row.String("id"),
		FirstName: row.String("first_name"),
		LastName:  row.String("last_name"),
		Email:     row.String("email"),
		Role:      row.String("role"),
		Photo:     row.String("photo"),
		IsDeleted: row.Bool("is_deleted"),
		CreatedAt: row.Time("created_at"),
		UpdatedAt: row.Time("updated_at"),
	}
}

// GetByID returns the active user with the given id, or nil if there is none.
// The profile is served from cache when present and cached after a database read.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row, err := r.cache.GetTableRow(ctx, userNamespace, detailsSubkey, id)
	if err != nil {
		r.log.WithError(err).Warn("failed to read user from cache")
	}
	if row != nil {
		return userFromRow(row), nil
	}

	query := `
	SELECT ` + userColumns + `
	FROM users
	WHERE id = $1 AND is_deleted = FALSE
	LIMIT 1;
	`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	if err := r.cache.SetTableRow(ctx, userNamespace, detailsSubkey, id, userToRow(user), r.ttl); err != nil {
		r.log.WithError(err).Warn("failed to cache user")
	}
	return user, nil
}

// GetCredentialsByEmail returns the id and password hash of the active user
// with the given email, or nil if there is none.
func (r *UserRepo) GetCredentialsByEmail(ctx context.Context, email string) (*domain.UserCredentials, error) {
	query := `
	SELECT id, password
	FROM users
	WHERE email = $1 AND is_deleted = FALSE
	LIMIT 1;
	`
	return r.getCredentials(ctx, query, email)
}

func (r *UserRepo) GetCredentialsByID(ctx context.Context, id string) (*domain.UserCredentials, error) {
	query := `
	SELECT id, password
	FROM users
	WHERE id = $1 AND is_deleted = FALSE
	LIMIT 1;
	`
	return r.getCredentials(ctx, query, id)
}

func (r *UserRepo) getCredentials(ctx context.Context, query string, arg string) (*domain.UserCredentials, error) {
	var creds domain.UserCredentials
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(&creds.ID, &creds.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user credentials: %w", err)
	}
	return &creds, nil
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND is_deleted = FALSE);`, email)
}

func (r *UserRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND is_deleted = FALSE);`, id)
}

// ExistsDeletedByID reports whether a soft-deleted user with the id exists.
func (r *UserRepo) ExistsDeletedByID(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND is_deleted = TRUE);`, id)
}

func (r *UserRepo) exists(ctx context.Context, query string, arg string) (bool, error) {
	var found bool
	if err := r.DB.QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return found, nil
}

// Create inserts the user and returns the generated id.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) (string, error) {
	query := `
	INSERT INTO users (first_name, last_name, password, email, role, photo)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id;
	`
	var id string
	err := r.DB.QueryRowContext(ctx, query, u.FirstName, u.LastName, u.Password, u.Email, u.Role, u.Photo).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicateEmail
		}
		return "", fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

// Update changes the non-empty profile fields of an active user.
func (r *UserRepo) Update(ctx context.Context, upd domain.UserUpdate) error {
	var (
		fields []string
		args   []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		fields = append(fields, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("first_name", upd.FirstName)
	add("last_name", upd.LastName)
	add("email", upd.Email)

	if len(fields) == 0 {
		return ErrNoUpdateFields
	}

	args = append(args, upd.ID)
	query := fmt.Sprintf(`
	UPDATE users
	SET %s, updated_at = NOW()
	WHERE id = $%d AND is_deleted = FALSE;
	`, strings.Join(fields, ", "), len(args))

	result, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return err
	}
	return r.evict(ctx, upd.ID)
}

func (r *UserRepo) SoftDelete(ctx context.Context, id string) error {
	query := `
	UPDATE users
	SET is_deleted = TRUE, updated_at = NOW()
	WHERE id = $1 AND is_deleted = FALSE;
	`
	return r.setDeleted(ctx, query, id)
}

func (r *UserRepo) Undelete(ctx context.Context, id string) error {
	query := `
	UPDATE users
	SET is_deleted = FALSE, updated_at = NOW()
	WHERE id = $1 AND is_deleted = TRUE;
	`
	return r.setDeleted(ctx, query, id)
}

func (r *UserRepo) setDeleted(ctx context.Context, query, id string) error {
	result, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to change user deletion state: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return err
	}
	return r.evict(ctx, id)
}

func (r *UserRepo) evict(ctx context.Context, id string) error {
	if err := r.cache.DeleteTableRow(ctx, userNamespace, detailsSubkey, id); err != nil {
		return fmt.Errorf("failed to invalidate cached user: %w", err)
	}
	return nil
}

func expectAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
