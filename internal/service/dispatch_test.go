package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"sportsfeed/internal/domain"
	"sportsfeed/internal/service/mocks"
)

func TestDispatcher_Dispatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	articles := mocks.NewMockIngester(ctrl)
	videos := mocks.NewMockIngester(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)

	d := NewDispatcher(articles, videos, publisher, logger)

	opts := domain.IngestOptions{ChannelID: "UC1", MaxResults: 3}
	articles.EXPECT().Ingest(ctx, domain.IngestOptions{}).Return(&domain.IngestStats{New: 2}, nil)
	videos.EXPECT().Ingest(ctx, opts).Return(&domain.IngestStats{New: 1}, nil)
	publisher.EXPECT().Publish(ctx).Return(&domain.PublishStats{Published: 3}, nil)

	assert.NoError(t, d.Dispatch(ctx, domain.Task{Name: domain.TaskScrapeArticles}))
	assert.NoError(t, d.Dispatch(ctx, domain.Task{Name: domain.TaskScrapeVideos, Options: opts}))
	assert.NoError(t, d.Dispatch(ctx, domain.Task{Name: domain.TaskPublish}))
}

func TestDispatcher_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	articles := mocks.NewMockIngester(ctrl)
	d := NewDispatcher(articles, nil, nil, logger)

	articles.EXPECT().Ingest(ctx, gomock.Any()).Return(nil, errors.New("listing unavailable"))

	assert.ErrorContains(t, d.Dispatch(ctx, domain.Task{Name: domain.TaskScrapeArticles}), "listing unavailable")
	assert.ErrorIs(t, d.Dispatch(ctx, domain.Task{Name: domain.TaskScrapeVideos}), ErrTaskNotConfigured)
	assert.ErrorIs(t, d.Dispatch(ctx, domain.Task{Name: domain.TaskPublish}), ErrTaskNotConfigured)
	assert.ErrorIs(t, d.Dispatch(ctx, domain.Task{Name: "reindex"}), ErrUnknownTask)
}
