package postgres

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/gizilens/backend/internal/logger"
	cache "github.com/gizilens/backend/internal/repository/redis"
)

type testDeps struct {
	db    *sql.DB
	mock  sqlmock.Sqlmock
	store *cache.Store
	mr    *miniredis.Miniredis
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &testDeps{
		db:    db,
		mock:  mock,
		store: cache.NewStore(client, logger.Discard()),
		mr:    mr,
	}
}
