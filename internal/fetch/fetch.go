package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrNotImage is returned by Image when the response is not an image.
var ErrNotImage = errors.New("not an image")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

type Config struct {
	Timeout       time.Duration
	UserAgent     string
	MaxImageBytes int64
}

// Client performs GET requests against source pages and image hosts.
type Client struct {
	httpClient    *http.Client
	userAgent     string
	maxImageBytes int64
}

func New(cfg Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgent:     cfg.UserAgent,
		maxImageBytes: cfg.MaxImageBytes,
	}
}

// Document fetches url and parses the body as HTML.
func (c *Client) Document(ctx context.Context, url string) (*goquery.Document, error) {
	resp, err := c.get(ctx, url, "text/html,application/xhtml+xml")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Image downloads an image and returns its bytes and MIME type.
func (c *Client) Image(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := c.get(ctx, url, "image/*")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	mimeType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("content type %q: %w", resp.Header.Get("Content-Type"), ErrNotImage)
	}

	body := io.Reader(resp.Body)
	if c.maxImageBytes > 0 {
		body = io.LimitReader(resp.Body, c.maxImageBytes+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if c.maxImageBytes > 0 && int64(len(data)) > c.maxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", c.maxImageBytes)
	}

	return data, mimeType, nil
}

func (c *Client) get(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", accept)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	return resp, nil
}
