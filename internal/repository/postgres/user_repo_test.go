package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gizilens/backend/internal/domain"
	"github.com/gizilens/backend/internal/logger"
	cache "github.com/gizilens/backend/internal/repository/redis"
)

const testUserID = "8f14e45f-ceea-467f-a9f1-2b9c3f4e5a6b"

func newTestUserRepo(t *testing.T) (*UserRepo, *testDeps) {
	t.Helper()
	deps := newTestDeps(t)
	return NewUserRepo(deps.db, deps.store, time.Hour, logger.Discard()), deps
}

func userRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "first_name", "last_name", "email", "role", "photo", "is_deleted", "created_at", "updated_at"}).
		AddRow(testUserID, "Ada", "Lovelace", "a@b.com", domain.RoleClient, "https://cdn/p.png", false, now, now)
}

func TestUserRepo_GetByID_CachesAfterDatabaseRead(t *testing.T) {
	repo, deps := newTestUserRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	deps.mock.ExpectQuery("FROM users WHERE id = \\$1 AND is_deleted = FALSE").
		WithArgs(testUserID).
		WillReturnRows(userRows(now))

	first, err := repo.GetByID(ctx, testUserID)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "Ada", first.FirstName)
	assert.Empty(t, first.Password)

	key := cache.Key("user", "details", testUserID)
	require.True(t, deps.mr.Exists(key))
	assert.Equal(t, time.Hour, deps.mr.TTL(key))
	assert.Empty(t, deps.mr.HGet(key, "password"))

	// Served from cache: no second query is expected.
	second, err := repo.GetByID(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, first.Email, second.Email)
	assert.True(t, now.Equal(second.CreatedAt))

	require.NoError(t, deps.mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID_NotFound(t *testing.T) {
	repo, deps := newTestUserRepo(t)

	deps.mock.ExpectQuery("FROM users WHERE id = \\$1 AND is_deleted = FALSE").
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	user, err := repo.GetByID(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.False(t, deps.mr.Exists(cache.Key("user", "details", testUserID)))
}

func TestUserRepo_GetByID_FallsBackWhenCacheFails(t *testing.T) {
	repo, deps := newTestUserRepo(t)
	deps.mr.SetError("LOADING")

	deps.mock.ExpectQuery("FROM users WHERE id = \\$1").
		WithArgs(testUserID).
		WillReturnRows(userRows(time.Now()))

	user, err := repo.GetByID(context.Background(), testUserID)
	require.NoError(t, err)
	require.NotNil(t, user)
	require.NoError(t, deps.mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID_DatabaseError(t *testing.T) {
	repo, deps := newTestUserRepo(t)

	deps.mock.ExpectQuery("FROM users WHERE id = \\$1").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetByID(context.Background(), testUserID)
	assert.ErrorContains(t, err, "failed to get user by id")
}

func TestUserRepo_GetCredentialsByEmail(t *testing.T) {
	repo, deps := newTestUserRepo(t)
	ctx := context.Background()

	deps.mock.ExpectQuery("SELECT id, password FROM users WHERE email = \\$1 AND is_deleted = FALSE").
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password"}).AddRow(testUserID, "hash"))
	deps.mock.ExpectQuery("SELECT id, password FROM users WHERE email = \\$1").
		WithArgs("nobody@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password"}))

	creds, err := repo.GetCredentialsByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, &domain.UserCredentials{ID: testUserID, Password: "hash"}, creds)

	creds, err = repo.GetCredentialsByEmail(ctx, "nobody@b.com")
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestUserRepo_Exists(t *testing.T) {
	repo, deps := newTestUserRepo(t)
	ctx := context.Background()

	deps.mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM users WHERE email = \\$1 AND is_deleted = FALSE\\)").
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	deps.mock.ExpectQuery("SELECT EXISTS \\(SELECT 1 FROM users WHERE id = \\$1 AND is_deleted = TRUE\\)").
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	found, err := repo.ExistsByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.ExistsDeletedByID(ctx, testUserID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUserRepo_Create(t *testing.T) {
	repo, deps := newTestUserRepo(t)

	deps.mock.ExpectQuery("INSERT INTO users \\(first_name, last_name, password, email, role, photo\\)").
		WithArgs("Ada", "", "hash", "a@b.com", domain.RoleClient, "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testUserID))

	id, err := repo.Create(context.Background(), &domain.User{
		FirstName: "Ada",
		Email:     "a@b.com",
		Password:  "hash",
		Role:      domain.RoleClient,
	})
	require.NoError(t, err)
	assert.Equal(t, testUserID, id)
}

func TestUserRepo_Create_DuplicateEmail(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "pgx", err: &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}},
		{name: "lib/pq", err: &pq.Error{Code: "23505"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, deps := newTestUserRepo(t)
			deps.mock.ExpectQuery("INSERT INTO users").WillReturnError(tt.err)

			_, err := repo.Create(context.Background(), &domain.User{Email: "a@b.com"})
			assert.ErrorIs(t, err, ErrDuplicateEmail)
		})
	}
}

func TestUserRepo_Update_NoFields(t *testing.T) {
	repo, deps := newTestUserRepo(t)

	err := repo.Update(context.Background(), domain.UserUpdate{ID: testUserID})
	assert.ErrorIs(t, err, ErrNoUpdateFields)
	require.NoError(t, deps.mock.ExpectationsWereMet())
}

func TestUserRepo_Update_InvalidatesCache(t *testing.T) {
	repo, deps := newTestUserRepo(t)
	ctx := context.Background()

	key := cache.Key("user", "details", testUserID)
	require.NoError(t, deps.store.SetTableRow(ctx, "user", "details", testUserID, cache.Row{"id": testUserID}, time.Hour))

	deps.mock.ExpectExec("UPDATE users SET first_name = \\$1, email = \\$2, updated_at = NOW\\(\\) WHERE id = \\$3 AND is_deleted = FALSE").
		WithArgs("Grace", "g@b.com", testUserID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(ctx, domain.UserUpdate{ID: testUserID, FirstName: "Grace", Email: "g@b.com"})
	require.NoError(t, err)
	assert.False(t, deps.mr.Exists(key))
}

func TestUserRepo_Update_Errors(t *testing.T) {
	repo, deps := newTestUserRepo(t)
	ctx := context.Background()

	deps.mock.ExpectExec("UPDATE users SET last_name = \\$1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	deps.mock.ExpectExec("UPDATE users SET email = \\$1").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Update(ctx, domain.UserUpdate{ID: testUserID, LastName: "Hopper"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.Update(ctx, domain.UserUpdate{ID: testUserID, Email: "taken@b.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserRepo_SoftDeleteAndUndelete(t *testing.T) {
	repo, deps := newTestUserRepo(t)
	ctx := context.Background()

	require.NoError(t, deps.store.SetTableRow(ctx, "user", "details", testUserID, cache.Row{"id": testUserID}, time.Hour))

	deps.mock.ExpectExec("SET is_deleted = TRUE, updated_at = NOW\\(\\) WHERE id = \\$1 AND is_deleted = FALSE").
		WithArgs(testUserID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	deps.mock.ExpectExec("SET is_deleted = FALSE, updated_at = NOW\\(\\) WHERE id = \\$1 AND is_deleted = TRUE").
		WithArgs(testUserID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	deps.mock.ExpectExec("SET is_deleted = FALSE").
		WithArgs(testUserID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SoftDelete(ctx, testUserID))
	assert.False(t, deps.mr.Exists(cache.Key("user", "details", testUserID)))

	require.NoError(t, repo.Undelete(ctx, testUserID))
	assert.ErrorIs(t, repo.Undelete(ctx, testUserID), ErrNotFound)

	require.NoError(t, deps.mock.ExpectationsWereMet())
}
