package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sportsfeed/internal/domain"
)

type PublishConfig struct {
	// ItemTimeout bounds one claimed item. Zero means no bound.
	ItemTimeout time.Duration
}

// PublishService claims every pending item and posts it once.
type PublishService struct {
	content   ContentStore
	txManager TransactionManager
	enricher  Enricher
	images    ImageFetcher
	poster    Poster
	logger    *slog.Logger
	config    PublishConfig
}

func NewPublishService(
	content ContentStore,
	txManager TransactionManager,
	enricher Enricher,
	images ImageFetcher,
	poster Poster,
	logger *slog.Logger,
	cfg PublishConfig,
) *PublishService {
	return &PublishService{
		content:   content,
		txManager: txManager,
		enricher:  enricher,
		images:    images,
		poster:    poster,
		logger:    logger.With("component", "publisher"),
		config:    cfg,
	}
}

// Publish claims pending items in a committed transaction, then posts them
// one by one. Claimed items are never returned to pending: a failed post is
// counted and logged, not retried.
//
// ctx bounds only the claim. Once committed, the claimed items are already
// marked published, so each one is attempted under its own ItemTimeout even
// if ctx is cancelled or its deadline passes mid-batch.
func (s *PublishService) Publish(ctx context.Context) (*domain.PublishStats, error) {
	startTime := time.Now()

	var claimed []domain.ContentItem
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		claimed, err = s.content.ClaimPending(txCtx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}

	stats := &domain.PublishStats{Claimed: len(claimed)}
	s.logger.Info("claimed pending items", "count", len(claimed))

	postCtx := context.WithoutCancel(ctx)
	for _, item := range interleave(claimed) {
		if err := s.publishOne(postCtx, item); err != nil {
			stats.Failed++
			s.logger.Error("failed to publish item",
				"id", item.ID,
				"kind", item.Kind,
				"external_id", item.ExternalID,
				"error", err,
			)
			continue
		}
		stats.Published++
	}

	stats.Duration = time.Since(startTime)

	s.logger.Info("publish completed",
		"claimed", stats.Claimed,
		"published", stats.Published,
		"failed", stats.Failed,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (s *PublishService) publishOne(ctx context.Context, item domain.ContentItem) error {
	if s.config.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ItemTimeout)
		defer cancel()
	}

	caption, ok := s.enricher.Caption(ctx, item.Title, item.Description, item.Kind == domain.KindVideo)
	if !ok {
		s.logger.Warn("caption unavailable, using title", "id", item.ID)
		caption = item.Title
	}

	if err := s.content.SetCaption(ctx, item.ID, caption); err != nil {
		s.logger.Error("failed to store caption", "id", item.ID, "error", err)
	}

	embed := domain.Embed{
		Title:       item.Title,
		Description: item.Description,
		URI:         item.Link,
		Thumb:       s.thumbnail(ctx, item),
	}

	if err := s.poster.SendPost(ctx, caption, embed); err != nil {
		return fmt.Errorf("send post: %w", err)
	}

	s.logger.Info("published item", "id", item.ID, "kind", item.Kind, "link", item.Link)
	return nil
}

// thumbnail returns nil whenever the image cannot be fetched or uploaded;
// the post then goes out without a preview image.
func (s *PublishService) thumbnail(ctx context.Context, item domain.ContentItem) *domain.Blob {
	if item.ThumbnailURL == "" {
		return nil
	}

	data, mimeType, err := s.images.Image(ctx, item.ThumbnailURL)
	if err != nil {
		s.logger.Debug("skipping thumbnail", "id", item.ID, "url", item.ThumbnailURL, "error", err)
		return nil
	}

	blob, err := s.poster.UploadBlob(ctx, data, mimeType)
	if err != nil {
		s.logger.Warn("failed to upload thumbnail", "id", item.ID, "error", err)
		return nil
	}
	return blob
}

// interleave alternates articles and videos, keeping claim order within
// each kind and appending whatever is left of the longer list.
func interleave(items []domain.ContentItem) []domain.ContentItem {
	var articles, videos []domain.ContentItem
	for _, item := range items {
		if item.Kind == domain.KindVideo {
			videos = append(videos, item)
		} else {
			articles = append(articles, item)
		}
	}

	out := make([]domain.ContentItem, 0, len(items))
	for i := 0; i < len(articles) || i < len(videos); i++ {
		if i < len(articles) {
			out = append(out, articles[i])
		}
		if i < len(videos) {
			out = append(out, videos[i])
		}
	}
	return out
}
