package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/gizilens/backend/internal/config"
)

const pingTimeout = 5 * time.Second

// Connect opens a Redis client and pings it. When Redis is unreachable it logs
// a warning and returns nil, which callers treat as PostgreSQL-only mode.
func Connect(ctx context.Context, cfg config.RedisConfig, log logrus.FieldLogger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).WithField("addr", cfg.Addr).
			Warn("could not connect to Redis, falling back to PostgreSQL only")
		_ = client.Close()
		return nil
	}

	log.WithField("addr", cfg.Addr).Info("connected to Redis")
	return client
}
