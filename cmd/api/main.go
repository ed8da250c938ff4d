package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/gizilens/backend/internal/config"
	"github.com/gizilens/backend/internal/events"
	"github.com/gizilens/backend/internal/logger"
	"github.com/gizilens/backend/internal/repository/postgres"
	"github.com/gizilens/backend/internal/repository/redis"
	"github.com/gizilens/backend/internal/service/cleanup"
	"github.com/gizilens/backend/internal/service/session"
	"github.com/gizilens/backend/internal/service/user"
	"github.com/gizilens/backend/internal/telemetry"
	transportHttp "github.com/gizilens/backend/internal/transport/http"
	"github.com/gizilens/backend/pkg/auth"
)

const serviceName = "gizilens-backend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := telemetry.Setup(ctx, serviceName, cfg.OTLPEndpoint, cfg.OTLPInsecure, log)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(sctx)
	}()

	// Postgres and Redis connect in parallel; Redis is optional.
	var (
		db          *sql.DB
		redisClient *goredis.Client
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		db, err = postgres.Open(gctx, cfg.Database, log)
		return err
	})
	g.Go(func() error {
		redisClient = redis.Connect(gctx, cfg.Redis, log)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	if redisClient != nil {
		defer redisClient.Close()
	}

	if cfg.RunMigrationsOnStart {
		log.Info("running database migrations")
		if _, err := postgres.MigrateDir(ctx, db, cfg.MigrationsDir); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
		log.Info("database migration completed successfully")
	}

	// Repositories
	store := redis.NewStore(redisClient, log)
	userRepo := postgres.NewUserRepo(db, store, cfg.TTL.Cache, log)
	sessionRepo := postgres.NewSessionRepo(db, store, cfg.TTL.Cache, log)

	sealer, err := auth.NewSealer(cfg.Keys.CookieKey)
	if err != nil {
		log.WithError(err).Fatal("invalid cookie key")
	}
	tokens := auth.NewTokenManager(cfg.Keys.AccessJWTKey, cfg.Keys.RefreshJWTKey)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)

	publisher := events.New(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	defer publisher.Close()

	// Services
	sessionService := session.NewService(sessionRepo, userRepo, sealer, tokens, cfg.TTL.Session, log)
	userService := user.NewService(userRepo, sessionService, hasher, tokens, publisher, cfg.DefaultPhoto, log)

	cleanup.NewWorker(sessionService, cfg.CleanupInterval, log).Start(ctx)

	handler := transportHttp.NewHandler(userService, sessionService, cfg.Cookie, cfg.TTL.Session,
		map[string]transportHttp.HealthCheck{
			"postgres": db.PingContext,
			"redis":    store.Ping,
		}, log)
	router := transportHttp.NewRouter(handler, tokens, transportHttp.RouterConfig{
		APIKey:         cfg.Keys.APIKey,
		AllowedOrigins: cfg.AllowedOrigins,
		AccessMaxAge:   cfg.TTL.AccessTokenAge,
	}, log)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           otelhttp.NewHandler(router, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("server is shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
		return
	}

	log.Info("server exited gracefully")
}
