package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"sportsfeed/internal/bluesky"
	"sportsfeed/internal/enrich"
	"sportsfeed/internal/fetch"
	"sportsfeed/internal/service"
	"sportsfeed/internal/source/nhl"
	"sportsfeed/internal/source/youtube"
	"sportsfeed/internal/storage/postgres"
	"sportsfeed/internal/taskqueue"
)

func (a *app) openDB(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", a.cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	a.logger.Info("connected to database")
	return db, nil
}

func (a *app) fetchClient() *fetch.Client {
	return fetch.New(fetch.Config{
		Timeout:       a.cfg.Fetch.Timeout,
		UserAgent:     a.cfg.Fetch.UserAgent,
		MaxImageBytes: a.cfg.Fetch.MaxImageBytes,
	})
}

func (a *app) articleIngester(db *sqlx.DB) (*service.IngestService, error) {
	source, err := nhl.New(nhl.Config{
		BaseURL:    a.cfg.NHL.BaseURL,
		MaxResults: a.cfg.NHL.MaxResults,
	}, a.fetchClient(), a.logger)
	if err != nil {
		return nil, err
	}

	return service.NewIngestService(
		source,
		postgres.NewContentStore(db),
		postgres.NewSyncStateStore(db),
		a.logger,
		service.IngestConfig{DefaultThumbnail: a.cfg.NHL.DefaultThumbnail},
	), nil
}

func (a *app) videoIngester(db *sqlx.DB) (*service.IngestService, error) {
	if err := a.cfg.ValidateYouTube(); err != nil {
		return nil, err
	}

	yt := a.cfg.YouTube
	source, err := youtube.New(youtube.Config{
		BaseURL:        yt.BaseURL,
		APIKey:         yt.APIKey,
		ChannelID:      yt.ChannelID,
		MaxResults:     yt.MaxResults,
		Duration:       yt.Duration,
		TitlePrefix:    *yt.TitlePrefix,
		Timeout:        yt.Timeout,
		MaxAttempts:    yt.Retry.MaxAttempts,
		InitialBackoff: yt.Retry.InitialBackoff,
		MaxBackoff:     yt.Retry.MaxBackoff,
	}, a.logger)
	if err != nil {
		return nil, err
	}

	return service.NewIngestService(
		source,
		postgres.NewContentStore(db),
		postgres.NewSyncStateStore(db),
		a.logger,
		service.IngestConfig{DefaultThumbnail: yt.DefaultThumbnail},
	), nil
}

// publisher logs in to Bluesky. The returned close func ends the session.
func (a *app) publisher(ctx context.Context, db *sqlx.DB) (*service.PublishService, func(), error) {
	if err := a.cfg.ValidateBluesky(); err != nil {
		return nil, nil, err
	}

	client := bluesky.New(bluesky.Config{
		Host:     a.cfg.Bluesky.Host,
		Handle:   a.cfg.Bluesky.Handle,
		Password: a.cfg.Bluesky.Password,
		Timeout:  a.cfg.Bluesky.Timeout,
	}, a.logger)
	if err := client.Login(ctx); err != nil {
		return nil, nil, fmt.Errorf("bluesky login: %w", err)
	}

	enricher := enrich.New(enrich.Config{
		BaseURL:   a.cfg.Enrich.BaseURL,
		APIKey:    a.cfg.Enrich.APIKey,
		Model:     a.cfg.Enrich.Model,
		Timeout:   a.cfg.Enrich.Timeout,
		MaxLength: a.cfg.Enrich.MaxLength,
		Sport:     a.cfg.Enrich.Sport,
	}, a.logger)

	svc := service.NewPublishService(
		postgres.NewContentStore(db),
		postgres.NewTransactionManager(db),
		enricher,
		a.fetchClient(),
		client,
		a.logger,
		service.PublishConfig{ItemTimeout: a.cfg.Bluesky.ItemTimeout},
	)

	closeFn := func() {
		// ctx may already be cancelled by a shutdown signal.
		if err := client.Close(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("failed to close bluesky session", "error", err)
		}
	}
	return svc, closeFn, nil
}

// dispatcher wires all three pipelines for the worker and in-process
// scheduler.
func (a *app) dispatcher(ctx context.Context, db *sqlx.DB) (*service.Dispatcher, func(), error) {
	articles, err := a.articleIngester(db)
	if err != nil {
		return nil, nil, err
	}
	videos, err := a.videoIngester(db)
	if err != nil {
		return nil, nil, err
	}
	pub, closeFn, err := a.publisher(ctx, db)
	if err != nil {
		return nil, nil, err
	}

	return service.NewDispatcher(articles, videos, pub, a.logger), closeFn, nil
}

func (a *app) taskQueue() (*taskqueue.RabbitMQ, error) {
	return taskqueue.NewRabbitMQ(taskqueue.Config{
		URL:        a.cfg.RabbitMQ.URL,
		Exchange:   a.cfg.RabbitMQ.Exchange,
		RoutingKey: a.cfg.RabbitMQ.RoutingKey,
		QueueName:  a.cfg.RabbitMQ.QueueName,
	}, a.logger)
}
