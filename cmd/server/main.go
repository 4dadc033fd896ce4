package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FriendsWebServer/internal/auth"
	"FriendsWebServer/internal/cache"
	"FriendsWebServer/internal/config"
	"FriendsWebServer/internal/httpapi"
	"FriendsWebServer/internal/metrics"
	"FriendsWebServer/internal/notifications"
	"FriendsWebServer/internal/service"
	"FriendsWebServer/internal/store/postgres"
)

const sessionSweepInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var (
		authSvc          *service.AuthService
		relSvc           *service.RelationshipService
		viewSvc          *service.RelationshipViews
		notificationsSvc *service.NotificationService
		dbPing           func(context.Context) error
		cachePing        func(context.Context) error
	)

	if cfg.DBDSN != "" {
		pgPool, err := postgres.Open(ctx, cfg.DBDSN, postgres.PoolOptions{})
		if err != nil {
			logger.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		if err := postgres.Migrate(ctx, pgPool); err != nil {
			logger.Error("db migrate failed", "err", err)
			os.Exit(1)
		}

		users := postgres.NewUsersStore(pgPool)
		sessions := postgres.NewSessionsStore(pgPool)
		relationships := postgres.NewRelationshipsStore(pgPool)
		directory := postgres.NewDirectoryStore(pgPool)
		tokens := postgres.NewNotificationTokensStore(pgPool)

		authSvc = &service.AuthService{
			Users:               users,
			Sessions:            sessions,
			SessionTTL:          cfg.SessionTTL,
			Logger:              logger,
			GoogleWebClientID:   cfg.GoogleClientID,
			AppleServiceID:      cfg.AppleServiceID,
			VerifyGoogleIDToken: auth.VerifyGoogleIDToken,
			VerifyAppleIDToken:  auth.VerifyAppleIDToken,
		}

		notificationsSvc = &service.NotificationService{
			Tokens: tokens,
			Users:  users,
			Logger: logger,
		}
		if cfg.PushEnabled() {
			sender, err := notifications.NewFCMSender(ctx, cfg.FCMProjectID, cfg.FCMCredentials)
			if err != nil {
				logger.Error("fcm sender init failed", "err", err)
				os.Exit(1)
			}
			notificationsSvc.Sender = sender
			logger.Info("push notifications enabled", "project_id", cfg.FCMProjectID)
		} else {
			logger.Info("push notifications disabled")
		}

		relSvc = &service.RelationshipService{
			Store:    relationships,
			Users:    users,
			Notifier: notificationsSvc,
			Metrics:  m,
			Logger:   logger,
		}
		viewSvc = &service.RelationshipViews{
			Relationships: relationships,
			Directory:     directory,
			Logger:        logger,
		}

		if cfg.RedisAddr != "" {
			friendCache, err := cache.Open(ctx, cache.Config{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
				TTL:      cfg.FriendCacheTTL,
			})
			if err != nil {
				// The cache only speeds up friend lists; run without it.
				logger.Warn("friend cache disabled", "err", err)
			} else {
				defer friendCache.Close()
				relSvc.Cache = friendCache
				viewSvc.Cache = friendCache
				cachePing = friendCache.Ping
				logger.Info("friend cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.FriendCacheTTL)
			}
		}

		dbPing = pgPool.Ping
		go sweepSessions(ctx, logger, sessions)
	} else {
		logger.Warn("APP_DB_DSN not set; /v1 routes will answer 501")
	}

	apiRouter := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:        logger,
		IsProd:        cfg.IsProd(),
		DBPing:        dbPing,
		CachePing:     cachePing,
		Metrics:       m,
		Auth:          authSvc,
		Relationships: relSvc,
		Views:         viewSvc,
		Notifications: notificationsSvc,
		SessionCodec:  auth.NewSessionCodec([]byte(cfg.CookieSecret)),
		CookieSecure:  cfg.CookieSecure(),
		SessionTTL:    cfg.SessionTTL,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

type expiredSessionDeleter interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// sweepSessions removes expired and revoked sessions until ctx is done.
func sweepSessions(ctx context.Context, logger *slog.Logger, sessions expiredSessionDeleter) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := sessions.DeleteExpired(ctx, now)
			if err != nil {
				logger.Warn("session sweep failed", "err", err)
				continue
			}
			if n > 0 {
				logger.Info("session sweep", "deleted", n)
			}
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
