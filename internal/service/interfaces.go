package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"sportsfeed/internal/domain"
)

type Source interface {
	ID() string
	Name() string
	Kind() domain.Kind
	ListCandidates(ctx context.Context, opts domain.IngestOptions) ([]domain.Candidate, error)
	FetchDetail(ctx context.Context, candidate domain.Candidate) (*domain.Detail, error)
}

type ContentStore interface {
	Exists(ctx context.Context, kind domain.Kind, externalID string) (bool, error)
	ExistingIDs(ctx context.Context, kind domain.Kind, ids []string) (map[string]bool, error)
	InsertIfAbsent(ctx context.Context, item *domain.ContentItem) (bool, error)
	ClaimPending(ctx context.Context) ([]domain.ContentItem, error)
	SetCaption(ctx context.Context, id int64, caption string) error
}

type SyncStateStore interface {
	Get(ctx context.Context, sourceID string) (*domain.SyncState, error)
	Update(ctx context.Context, state *domain.SyncState) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Enricher generates a caption. ok is false when no usable text came back.
type Enricher interface {
	Caption(ctx context.Context, title, description string, highlight bool) (string, bool)
}

type ImageFetcher interface {
	Image(ctx context.Context, url string) ([]byte, string, error)
}

type Poster interface {
	UploadBlob(ctx context.Context, data []byte, mimeType string) (*domain.Blob, error)
	SendPost(ctx context.Context, text string, embed domain.Embed) error
}

type Ingester interface {
	Ingest(ctx context.Context, opts domain.IngestOptions) (*domain.IngestStats, error)
}

type Publisher interface {
	Publish(ctx context.Context) (*domain.PublishStats, error)
}
