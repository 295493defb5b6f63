package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sportsfeed/internal/domain"
)

var ErrEmptyTitle = errors.New("detail has no title")

type IngestConfig struct {
	// DefaultThumbnail replaces a missing thumbnail so every row has one.
	DefaultThumbnail string
}

// IngestService pulls one source into the content store.
type IngestService struct {
	source    Source
	content   ContentStore
	syncState SyncStateStore
	logger    *slog.Logger
	config    IngestConfig
}

func NewIngestService(
	source Source,
	content ContentStore,
	syncState SyncStateStore,
	logger *slog.Logger,
	cfg IngestConfig,
) *IngestService {
	return &IngestService{
		source:    source,
		content:   content,
		syncState: syncState,
		logger:    logger.With("source", source.ID()),
		config:    cfg,
	}
}

// Ingest lists the source, stores every candidate not seen before as
// pending and reports what was added. A failure on one candidate is logged
// and counted; only a failed listing or existence batch aborts the run.
func (s *IngestService) Ingest(ctx context.Context, opts domain.IngestOptions) (*domain.IngestStats, error) {
	startTime := time.Now()
	kind := s.source.Kind()

	s.logger.Info("starting ingest", "source_name", s.source.Name(), "kind", kind)

	listed, err := s.source.ListCandidates(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	candidates := normalizeCandidates(kind, listed)
	s.logger.Info("listed candidates", "count", len(listed), "unique", len(candidates))

	stats := &domain.IngestStats{
		SourceID: s.source.ID(),
		Listed:   len(candidates),
		Titles:   []string{},
	}

	toFetch, err := s.filterKnown(ctx, kind, candidates)
	if err != nil {
		return nil, fmt.Errorf("filter known: %w", err)
	}
	stats.Skipped = len(candidates) - len(toFetch)

	var lastID string
	for _, c := range toFetch {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		item, err := s.ingestOne(ctx, kind, c)
		if err != nil {
			stats.Errors++
			s.logger.Error("failed to ingest candidate",
				"external_id", c.ExternalID,
				"error", err,
			)
			continue
		}
		if item == nil {
			stats.Skipped++
			continue
		}

		stats.New++
		stats.Titles = append(stats.Titles, "Added: "+item.Title)
		lastID = item.ExternalID
	}

	if err := s.updateSyncState(ctx, stats, lastID); err != nil {
		s.logger.Warn("failed to update sync state", "error", err)
	}

	stats.Duration = time.Since(startTime)

	s.logger.Info("ingest completed",
		"listed", stats.Listed,
		"new", stats.New,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)

	return stats, nil
}

// normalizeCandidates canonicalizes identifiers and keeps the first
// occurrence of each, preserving listing order.
func normalizeCandidates(kind domain.Kind, listed []domain.Candidate) []domain.Candidate {
	seen := make(map[string]bool, len(listed))
	out := make([]domain.Candidate, 0, len(listed))

	for _, c := range listed {
		c.ExternalID = kind.NormalizeID(c.ExternalID)
		if c.ExternalID == "" || seen[c.ExternalID] {
			continue
		}
		seen[c.ExternalID] = true

		if kind == domain.KindArticle {
			c.Link = domain.NormalizeLink(c.Link)
		}
		out = append(out, c)
	}
	return out
}

func (s *IngestService) filterKnown(ctx context.Context, kind domain.Kind, candidates []domain.Candidate) ([]domain.Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ExternalID
	}

	existing, err := s.content.ExistingIDs(ctx, kind, ids)
	if err != nil {
		return nil, err
	}

	var toFetch []domain.Candidate
	for _, c := range candidates {
		if !existing[c.ExternalID] {
			toFetch = append(toFetch, c)
		}
	}
	return toFetch, nil
}

// ingestOne returns nil without error when the candidate turned out to be
// stored already.
func (s *IngestService) ingestOne(ctx context.Context, kind domain.Kind, c domain.Candidate) (*domain.ContentItem, error) {
	exists, err := s.content.Exists(ctx, kind, c.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("check existence: %w", err)
	}
	if exists {
		return nil, nil
	}

	detail, err := s.source.FetchDetail(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("fetch detail: %w", err)
	}

	title := strings.TrimSpace(detail.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	thumbnail := detail.ThumbnailURL
	if thumbnail == "" {
		thumbnail = s.config.DefaultThumbnail
	}

	link := c.Link
	if link == "" {
		link = c.Locator
	}

	item := &domain.ContentItem{
		Kind:         kind,
		SourceID:     s.source.ID(),
		ExternalID:   c.ExternalID,
		Title:        title,
		Description:  strings.TrimSpace(detail.Description),
		Link:         link,
		ThumbnailURL: thumbnail,
		PublishState: domain.StatePending,
	}

	inserted, err := s.content.InsertIfAbsent(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	if !inserted {
		s.logger.Debug("lost insert race", "external_id", c.ExternalID)
		return nil, nil
	}

	s.logger.Debug("stored new item", "external_id", c.ExternalID, "title", title)
	return item, nil
}

func (s *IngestService) updateSyncState(ctx context.Context, stats *domain.IngestStats, lastID string) error {
	state, err := s.syncState.Get(ctx, s.source.ID())
	if err != nil {
		return err
	}

	state.SourceID = s.source.ID()
	state.LastSyncedAt = time.Now()
	state.TotalSynced += int64(stats.New)
	if lastID != "" {
		state.LastExternalID = lastID
	}

	return s.syncState.Update(ctx, state)
}
