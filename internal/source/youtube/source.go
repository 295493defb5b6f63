package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sportsfeed/internal/domain"
)

const (
	SourceID   = "youtube"
	SourceName = "YouTube Highlights"

	watchURL = "https://www.youtube.com/watch?v="
)

var (
	ErrMissingAPIKey  = errors.New("youtube api key is required")
	ErrMissingChannel = errors.New("youtube channel id is required")
	ErrVideoNotFound  = errors.New("video not found")
)

var descriptionCutoff = regexp.MustCompile(`-{6,}`)

// Config holds YouTube source configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	ChannelID      string
	MaxResults     int
	Duration       string
	TitlePrefix    string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// APIError is a well-formed non-2xx response from the Data API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status: %d: %s", e.StatusCode, e.Message)
}

// Source implements service.Source for a YouTube channel's highlight videos.
type Source struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	channelID      string
	maxResults     int
	duration       string
	titlePrefix    string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a new YouTube source.
func New(cfg Config, logger *slog.Logger) (*Source, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		channelID:      cfg.ChannelID,
		maxResults:     cfg.MaxResults,
		duration:       cfg.Duration,
		titlePrefix:    cfg.TitlePrefix,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID),
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
	return domain.KindVideo
}

// WatchURL returns the canonical watch link for a video ID.
func WatchURL(videoID string) string {
	return watchURL + url.QueryEscape(videoID)
}

// ListCandidates searches the channel for its latest videos, newest first.
func (s *Source) ListCandidates(ctx context.Context, opts domain.IngestOptions) ([]domain.Candidate, error) {
	channelID := firstNonEmpty(opts.ChannelID, s.channelID)
	if channelID == "" {
		return nil, ErrMissingChannel
	}

	maxResults := s.maxResults
	if opts.MaxResults > 0 {
		maxResults = opts.MaxResults
	}

	duration := firstNonEmpty(opts.Duration, s.duration)
	switch duration {
	case "", "any", "short", "medium", "long":
	default:
		return nil, fmt.Errorf("invalid duration filter %q", duration)
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("channelId", channelID)
	params.Set("order", "date")
	params.Set("type", "video")
	if maxResults > 0 {
		params.Set("maxResults", strconv.Itoa(maxResults))
	}
	if duration != "" {
		params.Set("videoDuration", duration)
	}

	var resp SearchResponse
	if err := s.getJSON(ctx, "search", params, &resp); err != nil {
		return nil, fmt.Errorf("search videos: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(resp.Items))
	for _, item := range resp.Items {
		videoID := item.ID.VideoID
		if videoID == "" {
			continue
		}

		title := html.UnescapeString(item.Snippet.Title)
		if s.titlePrefix != "" && !strings.HasPrefix(title, s.titlePrefix) {
			s.logger.Debug("skipping video", "external_id", videoID, "title", title)
			continue
		}

		candidates = append(candidates, domain.Candidate{
			Locator:      videoID,
			ExternalID:   videoID,
			Link:         WatchURL(videoID),
			Title:        title,
			ThumbnailURL: item.Snippet.bestThumbnail(),
		})
	}

	s.logger.Debug("listed candidates",
		"channel_id", channelID,
		"items", len(resp.Items),
		"candidates", len(candidates),
	)

	return candidates, nil
}

// FetchDetail loads the full description of one video.
func (s *Source) FetchDetail(ctx context.Context, c domain.Candidate) (*domain.Detail, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("id", c.Locator)

	var resp VideosResponse
	if err := s.getJSON(ctx, "videos", params, &resp); err != nil {
		return nil, fmt.Errorf("fetch video: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, ErrVideoNotFound
	}

	snippet := resp.Items[0].Snippet

	return &domain.Detail{
		Title:        firstNonEmpty(c.Title, html.UnescapeString(snippet.Title)),
		Description:  trimDescription(snippet.Description),
		ThumbnailURL: firstNonEmpty(c.ThumbnailURL, snippet.bestThumbnail()),
	}, nil
}

// trimDescription keeps the text before the first run of six or more dashes,
// where channels append boilerplate links.
func trimDescription(desc string) string {
	if loc := descriptionCutoff.FindStringIndex(desc); loc != nil {
		desc = desc[:loc[0]]
	}
	return strings.TrimSpace(desc)
}

func (s *Source) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	params.Set("key", s.apiKey)
	reqURL := fmt.Sprintf("%s/%s?%s", s.baseURL, endpoint, params.Encode())

	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		var retryable bool
		retryable, err = s.doRequest(ctx, reqURL, out)
		if err == nil {
			return nil
		}

		if !retryable || attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"endpoint", endpoint,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return err
}

// doRequest reports whether a failure happened at the transport level and is
// therefore worth retrying.
func (s *Source) doRequest(ctx context.Context, reqURL string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "SportsFeed/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope ErrorResponse
		if body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil {
			if json.Unmarshal(body, &envelope) == nil {
				apiErr.Message = envelope.Error.Message
			}
		}
		return false, apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}

	return false, nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if s.maxBackoff > 0 && backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
