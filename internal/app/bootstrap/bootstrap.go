package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	pollengine "pollcast/contexts/live-polls/poll-engine"
	postgresadapter "pollcast/contexts/live-polls/poll-engine/adapters/postgres"
	redisadapter "pollcast/contexts/live-polls/poll-engine/adapters/redis"
	"pollcast/contexts/live-polls/poll-engine/ports"
	"pollcast/internal/platform/config"
	"pollcast/internal/platform/db"
	"pollcast/internal/platform/eventlog"
	"pollcast/internal/platform/httpserver"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	log      *eventlog.KafkaLog
	cache    *redisadapter.SnapshotCache
	logger   *slog.Logger
}

type WorkerApp struct {
	module   pollengine.Module
	postgres *db.Postgres
	log      *eventlog.KafkaLog
	cache    *redisadapter.SnapshotCache
	redis    *redis.Client
	cfg      config.Config
	logger   *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	// The API only appends, so it carries no offset store.
	eventLog := eventlog.NewKafkaLog(cfg.KafkaBrokers, cfg.EventTopic, nil, logger)

	cache, err := buildSnapshotCache(cfg, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	module := buildModule(cfg, pg, eventLog, cache, logger)
	server := httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		log:      eventLog,
		cache:    cache,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil, errors.New("REDIS_ADDR is required for consumer offsets")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		_ = pg.Close()
		return nil, err
	}

	eventLog := eventlog.NewKafkaLog(
		cfg.KafkaBrokers,
		cfg.EventTopic,
		eventlog.NewRedisOffsetStore(redisClient),
		logger,
	)

	cache, err := buildSnapshotCache(cfg, logger)
	if err != nil {
		_ = pg.Close()
		_ = redisClient.Close()
		return nil, err
	}

	return &WorkerApp{
		module:   buildModule(cfg, pg, eventLog, cache, logger),
		postgres: pg,
		log:      eventLog,
		cache:    cache,
		redis:    redisClient,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

func buildModule(
	cfg config.Config,
	pg *db.Postgres,
	eventLog *eventlog.KafkaLog,
	cache *redisadapter.SnapshotCache,
	logger *slog.Logger,
) pollengine.Module {
	repo := postgresadapter.NewRepository(pg.DB, logger)

	// A nil *SnapshotCache must stay a nil interface so the use case falls
	// back to live projection.
	var snapshotCache ports.SnapshotCache
	if cache != nil {
		snapshotCache = cache
	}

	return pollengine.NewModule(pollengine.Dependencies{
		Ledger:        repo,
		Appender:      eventLog,
		Subscriber:    eventLog,
		Cache:         snapshotCache,
		Clock:         postgresadapter.SystemClock{},
		IDGen:         postgresadapter.UUIDGenerator{},
		RetryMax:      cfg.ProducerRetryMax,
		RetryInitial:  cfg.ProducerRetryInitial,
		IngestionCG:   cfg.IngestionGroup,
		RefreshCG:     cfg.RefreshGroup,
		FromBeginning: cfg.FromBeginning,
		Logger:        logger,
	})
}

func buildSnapshotCache(cfg config.Config, logger *slog.Logger) (*redisadapter.SnapshotCache, error) {
	if !cfg.EnableLeaderboardSnapshot || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil, nil
	}
	return redisadapter.NewSnapshotCache(cfg.RedisAddr, logger)
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	var errs []error
	if a.log != nil {
		errs = append(errs, a.log.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.postgres != nil {
		errs = append(errs, a.postgres.Close())
	}
	return errors.Join(errs...)
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"ingestion_enabled", w.cfg.EnableIngestionConsumer,
		"refresh_enabled", w.cfg.EnableLeaderboardRefresh,
	)

	group, ctx := errgroup.WithContext(ctx)
	if w.cfg.EnableIngestionConsumer {
		group.Go(func() error {
			if err := w.module.Ingestion.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		})
	}
	if w.cfg.EnableLeaderboardRefresh {
		group.Go(func() error {
			if err := w.module.Refresher.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		})
	}
	return group.Wait()
}

func (w *WorkerApp) Close() error {
	var errs []error
	if w.log != nil {
		errs = append(errs, w.log.Close())
	}
	if w.cache != nil {
		errs = append(errs, w.cache.Close())
	}
	if w.redis != nil {
		errs = append(errs, w.redis.Close())
	}
	if w.postgres != nil {
		errs = append(errs, w.postgres.Close())
	}
	return errors.Join(errs...)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
