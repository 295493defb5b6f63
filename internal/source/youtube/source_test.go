package youtube

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sportsfeed/internal/domain"
)

const searchJSON = `{
  "items": [
    {"id": {"kind": "youtube#video", "videoId": "vid1"},
     "snippet": {"title": "NHL Highlights | Bruins vs. Leafs", "thumbnails": {"high": {"url": "https://i.ytimg.com/vid1/hq.jpg"}}}},
    {"id": {"kind": "youtube#video", "videoId": "vid2"},
     "snippet": {"title": "Top 10 saves of the week", "thumbnails": {"high": {"url": "https://i.ytimg.com/vid2/hq.jpg"}}}},
    {"id": {"kind": "youtube#video", "videoId": "vid3"},
     "snippet": {"title": "NHL Highlights | Oilers @ Kings &amp; more", "thumbnails": {"default": {"url": "https://i.ytimg.com/vid3/d.jpg"}}}},
    {"id": {"kind": "youtube#playlist"}, "snippet": {"title": "NHL Highlights playlist"}}
  ]
}`

const videosJSON = `{
  "items": [
    {"id": "vid1", "snippet": {"title": "NHL Highlights | Bruins vs. Leafs",
      "description": "Boston edges Toronto in overtime.\n\n------------\nSubscribe: https://nhl.com",
      "thumbnails": {"high": {"url": "https://i.ytimg.com/vid1/hq.jpg"}}}}
  ]
}`

type YouTubeSourceTestSuite struct {
	suite.Suite
	server   *httptest.Server
	handler  http.HandlerFunc
	requests atomic.Int32
	logger   *slog.Logger
}

func (s *YouTubeSourceTestSuite) SetupTest() {
	s.requests.Store(0)
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			_, _ = w.Write([]byte(searchJSON))
		case "/videos":
			_, _ = w.Write([]byte(videosJSON))
		default:
			http.NotFound(w, r)
		}
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.handler(w, r)
	}))
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func (s *YouTubeSourceTestSuite) TearDownTest() {
	s.server.Close()
}

func TestYouTubeSourceTestSuite(t *testing.T) {
	suite.Run(t, new(YouTubeSourceTestSuite))
}

func (s *YouTubeSourceTestSuite) newSource() *Source {
	source, err := New(Config{
		BaseURL:        s.server.URL,
		APIKey:         "test-key",
		ChannelID:      "UC-default",
		MaxResults:     10,
		Duration:       "medium",
		TitlePrefix:    "NHL Highlights",
		Timeout:        2 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, s.logger)
	s.Require().NoError(err)
	return source
}

func (s *YouTubeSourceTestSuite) TestNew_MissingAPIKey() {
	_, err := New(Config{BaseURL: s.server.URL}, s.logger)
	s.ErrorIs(err, ErrMissingAPIKey)
}

func (s *YouTubeSourceTestSuite) TestListCandidates_FiltersByPrefix() {
	var query map[string]string
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{
			"channelId":     r.URL.Query().Get("channelId"),
			"maxResults":    r.URL.Query().Get("maxResults"),
			"videoDuration": r.URL.Query().Get("videoDuration"),
			"key":           r.URL.Query().Get("key"),
		}
		_, _ = w.Write([]byte(searchJSON))
	}

	candidates, err := s.newSource().ListCandidates(context.Background(), domain.IngestOptions{})
	s.Require().NoError(err)

	s.Require().Len(candidates, 2)
	s.Equal("vid1", candidates[0].ExternalID)
	s.Equal("https://www.youtube.com/watch?v=vid1", candidates[0].Link)
	s.Equal("https://i.ytimg.com/vid1/hq.jpg", candidates[0].ThumbnailURL)
	s.Equal("NHL Highlights | Oilers @ Kings & more", candidates[1].Title)
	s.Equal("https://i.ytimg.com/vid3/d.jpg", candidates[1].ThumbnailURL)

	s.Equal("UC-default", query["channelId"])
	s.Equal("10", query["maxResults"])
	s.Equal("medium", query["videoDuration"])
	s.Equal("test-key", query["key"])
}

func (s *YouTubeSourceTestSuite) TestListCandidates_OptionsOverride() {
	var channel, maxResults, duration string
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		channel = r.URL.Query().Get("channelId")
		maxResults = r.URL.Query().Get("maxResults")
		duration = r.URL.Query().Get("videoDuration")
		_, _ = w.Write([]byte(`{"items": []}`))
	}

	candidates, err := s.newSource().ListCandidates(context.Background(), domain.IngestOptions{
		ChannelID:  "UC-other",
		MaxResults: 3,
		Duration:   "long",
	})
	s.Require().NoError(err)
	s.Empty(candidates)

	s.Equal("UC-other", channel)
	s.Equal("3", maxResults)
	s.Equal("long", duration)
}

func (s *YouTubeSourceTestSuite) TestListCandidates_InvalidDuration() {
	_, err := s.newSource().ListCandidates(context.Background(), domain.IngestOptions{Duration: "forever"})
	s.ErrorContains(err, "invalid duration")
	s.Equal(int32(0), s.requests.Load())
}

func (s *YouTubeSourceTestSuite) TestListCandidates_ErrorResponseNotRetried() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "quotaExceeded"}}`))
	}

	_, err := s.newSource().ListCandidates(context.Background(), domain.IngestOptions{})

	var apiErr *APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusForbidden, apiErr.StatusCode)
	s.Equal("quotaExceeded", apiErr.Message)
	s.Equal(int32(1), s.requests.Load())
}

func (s *YouTubeSourceTestSuite) TestListCandidates_RetriesTransportFailure() {
	var calls atomic.Int32
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			hijackAndClose(w)
			return
		}
		_, _ = w.Write([]byte(searchJSON))
	}

	candidates, err := s.newSource().ListCandidates(context.Background(), domain.IngestOptions{})
	s.Require().NoError(err)
	s.Len(candidates, 2)
	s.Equal(int32(3), calls.Load())
}

func (s *YouTubeSourceTestSuite) TestListCandidates_GivesUpAfterMaxAttempts() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		hijackAndClose(w)
	}

	_, err := s.newSource().ListCandidates(context.Background(), domain.IngestOptions{})
	s.ErrorContains(err, "execute request")
	s.Equal(int32(3), s.requests.Load())
}

func (s *YouTubeSourceTestSuite) TestFetchDetail() {
	detail, err := s.newSource().FetchDetail(context.Background(), domain.Candidate{
		Locator:      "vid1",
		Title:        "NHL Highlights | Bruins vs. Leafs",
		ThumbnailURL: "https://i.ytimg.com/vid1/hq.jpg",
	})
	s.Require().NoError(err)

	s.Equal("NHL Highlights | Bruins vs. Leafs", detail.Title)
	s.Equal("Boston edges Toronto in overtime.", detail.Description)
	s.Equal("https://i.ytimg.com/vid1/hq.jpg", detail.ThumbnailURL)
}

func (s *YouTubeSourceTestSuite) TestFetchDetail_NotFound() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": []}`))
	}

	_, err := s.newSource().FetchDetail(context.Background(), domain.Candidate{Locator: "gone"})
	s.ErrorIs(err, ErrVideoNotFound)
}

func (s *YouTubeSourceTestSuite) TestCalculateBackoff() {
	src := &Source{initialBackoff: time.Second, maxBackoff: 3 * time.Second}

	s.Equal(time.Second, src.calculateBackoff(1))
	s.Equal(2*time.Second, src.calculateBackoff(2))
	s.Equal(3*time.Second, src.calculateBackoff(3))
}

func (s *YouTubeSourceTestSuite) TestTrimDescription() {
	s.Equal("Recap", trimDescription("  Recap \n-------\nlinks"))
	s.Equal("No cutoff --- here", trimDescription("No cutoff --- here"))
}

func hijackAndClose(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("response writer does not support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(err)
	}
	_ = conn.Close()
}
