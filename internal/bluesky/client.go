package bluesky

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/ipfs/go-cid"

	"sportsfeed/internal/domain"
)

const (
	postCollection = "app.bsky.feed.post"
	userAgent      = "sportsfeed"
)

var ErrNotLoggedIn = errors.New("bluesky session not established")

type Config struct {
	Host     string
	Handle   string
	Password string
	Timeout  time.Duration
}

// APIError is an XRPC error response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("xrpc %d %s: %s", e.Status, e.Code, e.Message)
}

// Client is an authenticated XRPC client for one account. It is created once
// at startup, logged in explicitly and closed on shutdown.
type Client struct {
	httpClient *http.Client
	host       string
	handle     string
	password   string
	logger     *slog.Logger

	mu   sync.Mutex
	auth *xrpc.AuthInfo
}

func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		host:     strings.TrimSuffix(cfg.Host, "/"),
		handle:   cfg.Handle,
		password: cfg.Password,
		logger:   logger.With("component", "bluesky"),
	}
}

// xrpcClient returns a client bearing token. Each call gets its own value so
// a concurrent refresh never swaps credentials under an in-flight request.
func (c *Client) xrpcClient(auth *xrpc.AuthInfo) *xrpc.Client {
	ua := userAgent
	return &xrpc.Client{
		Client:    c.httpClient,
		Host:      c.host,
		Auth:      auth,
		UserAgent: &ua,
	}
}

func (c *Client) session() *xrpc.AuthInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auth
}

// Login creates a session for the configured account.
func (c *Client) Login(ctx context.Context) error {
	out, err := comatproto.ServerCreateSession(ctx, c.xrpcClient(nil), &comatproto.ServerCreateSession_Input{
		Identifier: c.handle,
		Password:   c.password,
	})
	if err != nil {
		return fmt.Errorf("create session: %w", apiError(err))
	}

	c.mu.Lock()
	c.auth = &xrpc.AuthInfo{
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
		Handle:     out.Handle,
		Did:        out.Did,
	}
	c.mu.Unlock()

	c.logger.Info("logged in", "handle", out.Handle, "did", out.Did)
	return nil
}

// Close deletes the session. It is safe to call without a session.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	auth := c.auth
	c.auth = nil
	c.mu.Unlock()

	if auth == nil {
		return nil
	}
	if err := comatproto.ServerDeleteSession(ctx, c.xrpcClient(refreshAuth(auth))); err != nil {
		return fmt.Errorf("delete session: %w", apiError(err))
	}
	return nil
}

// UploadBlob stores image bytes and returns a reference for embeds.
func (c *Client) UploadBlob(ctx context.Context, data []byte, mimeType string) (*domain.Blob, error) {
	var out comatproto.RepoUploadBlob_Output
	// RepoUploadBlob always sends */*; the PDS records the declared type.
	err := c.authed(ctx, func(xc *xrpc.Client) error {
		return xc.Do(ctx, xrpc.Procedure, mimeType, "com.atproto.repo.uploadBlob", nil, bytes.NewReader(data), &out)
	})
	if err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}
	if out.Blob == nil {
		return nil, errors.New("upload blob: empty response")
	}

	return &domain.Blob{
		Ref:      out.Blob.Ref.String(),
		MimeType: out.Blob.MimeType,
		Size:     out.Blob.Size,
	}, nil
}

// SendPost creates a post with an external link embed. Text longer than
// maxPostGraphemes is cut to fit.
func (c *Client) SendPost(ctx context.Context, text string, embed domain.Embed) error {
	auth := c.session()
	if auth == nil {
		return ErrNotLoggedIn
	}

	text = capGraphemes(text, maxPostGraphemes)
	post := &appbsky.FeedPost{
		Text:      text,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Langs:     []string{"en"},
		Facets:    hashtagFacets(text),
		Embed: &appbsky.FeedPost_Embed{
			EmbedExternal: &appbsky.EmbedExternal{
				External: &appbsky.EmbedExternal_External{
					Uri:         embed.URI,
					Title:       embed.Title,
					Description: embed.Description,
				},
			},
		},
	}
	if embed.Thumb != nil {
		thumb, err := lexBlob(embed.Thumb)
		if err != nil {
			return err
		}
		post.Embed.EmbedExternal.External.Thumb = thumb
	}

	var out *comatproto.RepoCreateRecord_Output
	err := c.authed(ctx, func(xc *xrpc.Client) error {
		var err error
		out, err = comatproto.RepoCreateRecord(ctx, xc, &comatproto.RepoCreateRecord_Input{
			Repo:       auth.Did,
			Collection: postCollection,
			Record:     &lexutil.LexiconTypeDecoder{Val: post},
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}

	c.logger.Debug("post created", "uri", out.Uri, "link", embed.URI)
	return nil
}

// authed runs call with the access token, refreshing an expired token once
// and replaying the call.
func (c *Client) authed(ctx context.Context, call func(*xrpc.Client) error) error {
	auth := c.session()
	if auth == nil {
		return ErrNotLoggedIn
	}

	err := apiError(call(c.xrpcClient(auth)))

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "ExpiredToken" {
		return err
	}

	c.logger.Debug("access token expired, refreshing")
	auth, err = c.refresh(ctx, auth)
	if err != nil {
		return err
	}

	return apiError(call(c.xrpcClient(auth)))
}

func (c *Client) refresh(ctx context.Context, old *xrpc.AuthInfo) (*xrpc.AuthInfo, error) {
	out, err := comatproto.ServerRefreshSession(ctx, c.xrpcClient(refreshAuth(old)))
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", apiError(err))
	}

	auth := &xrpc.AuthInfo{
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
		Handle:     out.Handle,
		Did:        out.Did,
	}
	c.mu.Lock()
	c.auth = auth
	c.mu.Unlock()
	return auth, nil
}

// refreshAuth presents the refresh token as bearer, which is what
// refreshSession and deleteSession expect.
func refreshAuth(auth *xrpc.AuthInfo) *xrpc.AuthInfo {
	return &xrpc.AuthInfo{
		AccessJwt: auth.RefreshJwt,
		Handle:    auth.Handle,
		Did:       auth.Did,
	}
}

// apiError maps an xrpc failure onto *APIError. Transport errors pass
// through unchanged.
func apiError(err error) error {
	if err == nil {
		return nil
	}

	var xerr *xrpc.Error
	if !errors.As(err, &xerr) {
		return err
	}

	out := &APIError{Status: xerr.StatusCode}
	var body *xrpc.XRPCError
	if errors.As(xerr.Wrapped, &body) {
		out.Code = body.ErrStr
		out.Message = body.Message
	}
	return out
}

func lexBlob(b *domain.Blob) (*lexutil.LexBlob, error) {
	ref, err := cid.Decode(b.Ref)
	if err != nil {
		return nil, fmt.Errorf("parse blob ref %q: %w", b.Ref, err)
	}
	return &lexutil.LexBlob{
		Ref:      lexutil.LexLink(ref),
		MimeType: b.MimeType,
		Size:     b.Size,
	}, nil
}
