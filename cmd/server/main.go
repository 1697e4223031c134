package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"bakeryerp/backend/internal/cache"
	"bakeryerp/backend/internal/config"
	"bakeryerp/backend/internal/httpapi"
	"bakeryerp/backend/internal/lock"
	"bakeryerp/backend/internal/notify"
	"bakeryerp/backend/internal/numbering"
	"bakeryerp/backend/internal/service"
	"bakeryerp/backend/internal/settings"
	"bakeryerp/backend/internal/store"
	"bakeryerp/backend/internal/store/memory"
	pgstore "bakeryerp/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err := validateConfig(cfg); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("server exited")
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var st store.Store
	closers := make([]func() error, 0, 3)
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.WithError(err).Warn("close error")
			}
		}
	}()

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(startCtx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		closers = append(closers, pg.Close)
		if cfg.SchemaAutoMigrate {
			if err := pg.Migrate(startCtx); err != nil {
				return err
			}
			logger.Info("schema migrated")
		}
		st = pg
		logger.Info("repository: postgres")
	} else {
		st = memory.NewSeeded()
		logger.Info("repository: in-memory")
	}

	var cfgSettings settings.Settings
	if err := st.View(startCtx, func(repo store.Repository) error {
		var err error
		cfgSettings, err = settings.Load(startCtx, repo)
		return err
	}); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	var (
		prefixCache cache.PrefixCache = cache.NoopPrefixCache{}
		locker      lock.Locker       = lock.Noop{}
	)
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		redisCache := cache.NewRedisPrefixCache(client)
		if err := redisCache.Ping(startCtx); err != nil {
			logger.WithError(err).Warn("redis unavailable, using noop cache and no series lock")
			_ = redisCache.Close()
		} else {
			prefixCache = redisCache
			locker = lock.NewRedisLocker(client, logger)
			closers = append(closers, redisCache.Close)
			logger.Info("cache: redis")
		}
	} else {
		logger.Info("cache: noop")
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.PubSubEnabled() {
		ps, err := notify.NewPubSubNotifier(startCtx, cfg.PubSubProjectID, cfg.PubSubTopic, cfg.PubSubCredentials)
		if err != nil {
			logger.WithError(err).Warn("pubsub unavailable, notifications go to the log only")
		} else {
			notifier = notify.MultiNotifier{notifier, ps}
			closers = append(closers, ps.Close)
			logger.WithField("topic", cfg.PubSubTopic).Info("notifier: pubsub")
		}
	}
	dispatcher := notify.NewDispatcher(notifier, cfgSettings.NotifyUsers, cfg.NotifyBuffer, logger)

	numbers := numbering.NewGenerator(cfgSettings.Prefixes, prefixCache, cfg.PrefixCacheTTL, logger)
	svc := service.New(st, cfgSettings, numbers, service.Options{
		Locker:  locker,
		LockTTL: cfg.SeriesLockTTL,
		Emitter: dispatcher,
		Logger:  logger,
	})
	api := httpapi.New(svc, httpapi.NewTokenVerifier(cfg.AuthSecret, cfg.AuthIssuer), cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", cfg.Address()).Info("posting engine listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownGraceSeconds)*time.Second)
		defer shutdownCancel()
		err := server.Shutdown(shutdownCtx)
		dispatcher.Close()
		return err
	})

	return g.Wait()
}

func validateConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.PubSubProjectID != "" && cfg.PubSubTopic == "" {
		return fmt.Errorf("PUBSUB_TOPIC is required when PUBSUB_PROJECT_ID is set")
	}
	if cfg.SchemaAutoMigrate && cfg.DatabaseURL == "" {
		return fmt.Errorf("SCHEMA_AUTO_MIGRATE needs DATABASE_URL")
	}
	return nil
}
