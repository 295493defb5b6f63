package nhl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sportsfeed/internal/domain"
)

const (
	SourceID   = "nhl"
	SourceName = "NHL.com News"
)

var (
	ErrListingNotFound = errors.New("editorial list not found")
	ErrMissingTitle    = errors.New("article title not found")
)

// PageFetcher loads and parses an HTML page.
type PageFetcher interface {
	Document(ctx context.Context, url string) (*goquery.Document, error)
}

// Config holds NHL source configuration.
type Config struct {
	BaseURL    string
	MaxResults int
}

// Source implements service.Source for the NHL.com news section.
type Source struct {
	fetcher    PageFetcher
	baseURL    *url.URL
	newsURL    string
	maxResults int
	logger     *slog.Logger
}

// New creates a new NHL source.
func New(cfg Config, fetcher PageFetcher, logger *slog.Logger) (*Source, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	return &Source{
		fetcher:    fetcher,
		baseURL:    base,
		newsURL:    base.JoinPath("news/").String(),
		maxResults: cfg.MaxResults,
		logger:     logger.With("source", SourceID),
	}, nil
}

// ID returns the source identifier.
func (s *Source) ID() string {
	return SourceID
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

func (s *Source) Kind() domain.Kind {
	return domain.KindArticle
}

// ListCandidates returns the story links of the latest-news list, in page order.
func (s *Source) ListCandidates(ctx context.Context, opts domain.IngestOptions) ([]domain.Candidate, error) {
	doc, err := s.fetcher.Document(ctx, s.newsURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}

	sections := doc.Find("section.nhl-c-editorial-list")
	if sections.Length() == 0 {
		return nil, ErrListingNotFound
	}

	limit := s.maxResults
	if opts.MaxResults > 0 {
		limit = opts.MaxResults
	}

	var candidates []domain.Candidate
	seen := make(map[string]bool)

	sections.Last().Find("a.nhl-c-card-wrap").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if limit > 0 && len(candidates) >= limit {
			return false
		}
		if !a.HasClass("-story") {
			return true
		}

		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return true
		}

		link := s.resolve(s.baseURL, href)
		if link == "" || seen[link] {
			return true
		}
		seen[link] = true

		candidates = append(candidates, domain.Candidate{
			Locator:    link,
			ExternalID: link,
			Link:       link,
		})
		return true
	})

	s.logger.Debug("listed candidates", "count", len(candidates))

	return candidates, nil
}

// FetchDetail loads the article page and extracts title, summary and thumbnail.
func (s *Source) FetchDetail(ctx context.Context, c domain.Candidate) (*domain.Detail, error) {
	doc, err := s.fetcher.Document(ctx, c.Locator)
	if err != nil {
		return nil, fmt.Errorf("fetch article: %w", err)
	}

	title := cleanText(doc.Find("h1.nhl-c-article__title").First().Text())
	if title == "" {
		return nil, ErrMissingTitle
	}

	detail := &domain.Detail{
		Title:       title,
		Description: cleanText(doc.Find("p.nhl-c-article__summary").First().Text()),
	}

	if thumb := extractThumbnail(doc); thumb != "" {
		if page, err := url.Parse(c.Locator); err == nil {
			thumb = s.resolve(page, thumb)
		}
		detail.ThumbnailURL = thumb
	}

	return detail, nil
}

// extractThumbnail tries the header image, then its responsive source, then
// the video poster.
func extractThumbnail(doc *goquery.Document) string {
	header := doc.Find("div.nhl-c-article__header-image").First()
	if header.Length() > 0 {
		if src, ok := header.Find("img").First().Attr("src"); ok && strings.TrimSpace(src) != "" {
			return strings.TrimSpace(src)
		}
		if srcset, ok := header.Find("source").First().Attr("srcset"); ok {
			if src := firstSrcsetURL(srcset); src != "" {
				return src
			}
		}
	}

	if src, ok := doc.Find("div.vjs-poster img").First().Attr("src"); ok && strings.TrimSpace(src) != "" {
		return strings.TrimSpace(src)
	}

	return ""
}

// firstSrcsetURL returns the URL of the first srcset candidate.
func firstSrcsetURL(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (s *Source) resolve(base *url.URL, ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		s.logger.Debug("skipping malformed link", "href", ref, "error", err)
		return ""
	}
	return base.ResolveReference(u).String()
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
