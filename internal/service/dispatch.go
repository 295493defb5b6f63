package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sportsfeed/internal/domain"
)

var (
	ErrUnknownTask       = errors.New("unknown task")
	ErrTaskNotConfigured = errors.New("task not configured")
)

// Dispatcher routes queued tasks to the pipeline that handles them.
type Dispatcher struct {
	articles  Ingester
	videos    Ingester
	publisher Publisher
	logger    *slog.Logger
}

// NewDispatcher accepts nil for any pipeline the process cannot run; tasks
// for it then fail with ErrTaskNotConfigured.
func NewDispatcher(articles, videos Ingester, publisher Publisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		articles:  articles,
		videos:    videos,
		publisher: publisher,
		logger:    logger.With("component", "dispatcher"),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, task domain.Task) error {
	logger := d.logger.With("task", task.Name)

	switch task.Name {
	case domain.TaskScrapeArticles:
		return d.ingest(ctx, logger, d.articles, task)
	case domain.TaskScrapeVideos:
		return d.ingest(ctx, logger, d.videos, task)
	case domain.TaskPublish:
		if d.publisher == nil {
			return fmt.Errorf("%s: %w", task.Name, ErrTaskNotConfigured)
		}
		stats, err := d.publisher.Publish(ctx)
		if err != nil {
			return err
		}
		logger.Info("task finished", "published", stats.Published, "failed", stats.Failed)
		return nil
	default:
		return fmt.Errorf("%q: %w", task.Name, ErrUnknownTask)
	}
}

func (d *Dispatcher) ingest(ctx context.Context, logger *slog.Logger, ingester Ingester, task domain.Task) error {
	if ingester == nil {
		return fmt.Errorf("%s: %w", task.Name, ErrTaskNotConfigured)
	}

	stats, err := ingester.Ingest(ctx, task.Options)
	if err != nil {
		return err
	}

	logger.Info("task finished", "new", stats.New, "errors", stats.Errors)
	return nil
}
