package main

import (
	"context"
	"fmt"
	"log/slog"

	"staybook/internal/app/bootstrap"
	"staybook/internal/app/middleware"
	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	"staybook/internal/infra/calendarfeed"
	"staybook/internal/infra/config"
	mongodb "staybook/internal/infra/db/mongo"
	"staybook/internal/infra/inbox"
	"staybook/internal/infra/lock"
	redislock "staybook/internal/infra/lock/redis"
	"staybook/internal/infra/notify"
	infraoutbox "staybook/internal/infra/outbox"
	"staybook/internal/infra/payments"
	"staybook/internal/infra/storage/memory"
	s3storage "staybook/internal/infra/storage/s3"
)

// runtime holds the adapters picked by the configuration and the application
// built on top of them.
type runtime struct {
	cfg    config.Config
	logger *slog.Logger
	app    *bootstrap.Application

	// mongo and outboxStore are nil in memory mode.
	mongo       *mongodb.Client
	outboxStore *infraoutbox.Store

	checks  map[string]func(ctx context.Context) error
	closers []func(ctx context.Context) error
}

func newRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger, checks: map[string]func(ctx context.Context) error{}}
	var (
		factory uow.UoWFactory
		box     appoutbox.Outbox
		idem    middleware.IdempotencyStore
	)
	switch cfg.StorageMode {
	case config.StorageMongo:
		client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		rt.mongo = client
		rt.closers = append(rt.closers, client.Close)
		rt.checks["mongo"] = client.Ping
		if err := mongodb.EnsureIndexes(ctx, client.DB); err != nil {
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		store, err := infraoutbox.NewStore(ctx, client.DB)
		if err != nil {
			return nil, fmt.Errorf("outbox store: %w", err)
		}
		rt.outboxStore = store
		if idem, err = mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL); err != nil {
			return nil, fmt.Errorf("idempotency store: %w", err)
		}
		factory = mongodb.Factory{DB: client.DB}
		box = store
	default:
		memBox := memory.NewOutbox()
		// Without a broker the events go straight to the notification handler.
		notifier := notify.Handler{
			Inbox:    inbox.NewMemory(),
			Notifier: notify.LogSink{Logger: logger.With("component", "notify")},
			Logger:   logger,
		}
		memBox.Sink = func(ctx context.Context, rec appoutbox.EventRecord) error {
			payload, err := infraoutbox.Envelope(rec, "")
			if err != nil {
				return err
			}
			return notifier.HandleEvent(ctx, payload)
		}
		factory = memory.Factory{Store: memory.NewStore()}
		box = memBox
		idem = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
		logger.Warn("using in-memory storage; data is lost on exit")
	}

	var locker policies.Locker = lock.NewLocal()
	if cfg.RedisAddr != "" {
		client, err := redislock.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })
		rt.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		locker = redislock.NewLocker(client, "staybook:lock:")
	}

	deps := bootstrap.Deps{
		UoWFactory:         factory,
		Outbox:             box,
		Idempotency:        idem,
		Payments:           payments.NewProcessor(logger.With("component", "payments")),
		Fetcher:            calendarfeed.NewHTTPFetcher(cfg.CalendarFetchTO),
		Codec:              calendarfeed.ICSCodec{},
		Locker:             locker,
		Logger:             logger,
		PendingTTL:         cfg.PendingBookingTTL,
		CancellationWindow: cfg.CancellationWindow,
		LockTTL:            cfg.CalendarSyncLockTTL,
		UIDHost:            cfg.CalendarUIDHost,
		Currency:           cfg.Currency,
	}
	if cfg.FeedPublishing() {
		feeds, err := s3storage.NewFeedPublisher(s3storage.Config{
			Endpoint:       cfg.S3Endpoint,
			PublicEndpoint: cfg.S3PublicEndpoint,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			Bucket:         cfg.S3Bucket,
			UseSSL:         cfg.S3UseSSL,
		}, logger.With("component", "feeds"))
		if err != nil {
			return nil, fmt.Errorf("feed publisher: %w", err)
		}
		deps.Feeds = feeds
	}

	app, err := bootstrap.Build(deps)
	if err != nil {
		return nil, err
	}
	rt.app = app
	logger.Info("application ready",
		"storage", cfg.StorageMode,
		"commands", len(app.CommandKeys()),
		"queries", len(app.QueryKeys()),
		"feed_publishing", cfg.FeedPublishing(),
		"distributed_lock", cfg.RedisAddr != "",
	)
	return rt, nil
}

func (rt *runtime) close(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			rt.logger.Warn("close failed", "error", err)
		}
	}
}
