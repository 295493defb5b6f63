package bluesky

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/rivo/uniseg"
	"github.com/stretchr/testify/suite"

	"sportsfeed/internal/domain"
)

var rawPrefix = cid.Prefix{
	Version:  1,
	Codec:    cid.Raw,
	MhType:   multihash.SHA2_256,
	MhLength: -1,
}

type fakePDS struct {
	mu         sync.Mutex
	calls      []string
	records    []comatproto.RepoCreateRecord_Input
	expireNext bool
	access     string
}

func (f *fakePDS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	nsid := r.URL.Path[len("/xrpc/"):]
	f.calls = append(f.calls, nsid)
	w.Header().Set("Content-Type", "application/json")

	switch nsid {
	case "com.atproto.server.createSession":
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "app-password" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`)
			return
		}
		f.access = "access-1"
		_, _ = io.WriteString(w, `{"accessJwt":"access-1","refreshJwt":"refresh-1","handle":"feed.test","did":"did:plc:feed"}`)
	case "com.atproto.server.refreshSession":
		if r.Header.Get("Authorization") != "Bearer refresh-1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"InvalidToken","message":"bad refresh"}`)
			return
		}
		f.access = "access-2"
		_, _ = io.WriteString(w, `{"accessJwt":"access-2","refreshJwt":"refresh-2","handle":"feed.test","did":"did:plc:feed"}`)
	case "com.atproto.server.deleteSession":
		w.WriteHeader(http.StatusOK)
	case "com.atproto.repo.uploadBlob", "com.atproto.repo.createRecord":
		if f.expireNext || r.Header.Get("Authorization") != "Bearer "+f.access {
			f.expireNext = false
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"ExpiredToken","message":"Token has expired"}`)
			return
		}
		if nsid == "com.atproto.repo.uploadBlob" {
			data, _ := io.ReadAll(r.Body)
			ref, err := rawPrefix.Sum(data)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"blob": map[string]any{
					"$type":    "blob",
					"ref":      map[string]string{"$link": ref.String()},
					"mimeType": r.Header.Get("Content-Type"),
					"size":     len(data),
				},
			})
			return
		}
		var req comatproto.RepoCreateRecord_Input
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"InvalidRequest","message":"bad record"}`)
			return
		}
		f.records = append(f.records, req)
		_, _ = io.WriteString(w, `{"uri":"at://did:plc:feed/app.bsky.feed.post/1","cid":"bafyreipost"}`)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

type ClientTestSuite struct {
	suite.Suite
	pds    *fakePDS
	server *httptest.Server
	client *Client
	ctx    context.Context
}

func (s *ClientTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.pds = &fakePDS{}
	s.server = httptest.NewServer(s.pds)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.client = New(Config{
		Host:     s.server.URL + "/",
		Handle:   "feed.test",
		Password: "app-password",
		Timeout:  5 * time.Second,
	}, logger)
}

func (s *ClientTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientTestSuite) post(i int) *appbsky.FeedPost {
	s.Require().Greater(len(s.pds.records), i)
	post, ok := s.pds.records[i].Record.Val.(*appbsky.FeedPost)
	s.Require().True(ok, "record is %T", s.pds.records[i].Record.Val)
	return post
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) TestSendPost_RequiresLogin() {
	err := s.client.SendPost(s.ctx, "hello", domain.Embed{URI: "https://example.com"})
	s.ErrorIs(err, ErrNotLoggedIn)

	_, err = s.client.UploadBlob(s.ctx, []byte("x"), "image/png")
	s.ErrorIs(err, ErrNotLoggedIn)
}

func (s *ClientTestSuite) TestLogin_BadPassword() {
	s.client.password = "wrong"

	err := s.client.Login(s.ctx)

	var apiErr *APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusUnauthorized, apiErr.Status)
	s.Equal("AuthenticationRequired", apiErr.Code)
}

func (s *ClientTestSuite) TestUploadAndPost() {
	s.Require().NoError(s.client.Login(s.ctx))

	data := []byte("pngbytes")
	want, err := rawPrefix.Sum(data)
	s.Require().NoError(err)

	blob, err := s.client.UploadBlob(s.ctx, data, "image/png")
	s.Require().NoError(err)
	s.Equal(want.String(), blob.Ref)
	s.Equal("image/png", blob.MimeType)
	s.EqualValues(8, blob.Size)

	err = s.client.SendPost(s.ctx, "Big win tonight 🏒 #GameDay #GoBruins", domain.Embed{
		Title:       "Bruins beat Leafs",
		Description: "Recap",
		URI:         "https://www.nhl.com/news/recap",
		Thumb:       blob,
	})
	s.Require().NoError(err)

	s.Require().Len(s.pds.records, 1)
	rec := s.pds.records[0]
	s.Equal("did:plc:feed", rec.Repo)
	s.Equal(postCollection, rec.Collection)

	post := s.post(0)
	s.Equal(postCollection, post.LexiconTypeID)
	s.Equal([]string{"en"}, post.Langs)
	s.Require().NotNil(post.Embed)
	s.Require().NotNil(post.Embed.EmbedExternal)
	external := post.Embed.EmbedExternal.External
	s.Equal("https://www.nhl.com/news/recap", external.Uri)
	s.Equal("Bruins beat Leafs", external.Title)
	s.Require().NotNil(external.Thumb)
	s.Equal(want.String(), external.Thumb.Ref.String())
	s.Equal("image/png", external.Thumb.MimeType)
	s.Len(post.Facets, 2)
}

func (s *ClientTestSuite) TestSendPost_WithoutThumb() {
	s.Require().NoError(s.client.Login(s.ctx))

	s.Require().NoError(s.client.SendPost(s.ctx, "No image", domain.Embed{URI: "https://example.com"}))

	post := s.post(0)
	s.Require().NotNil(post.Embed.EmbedExternal)
	s.Nil(post.Embed.EmbedExternal.External.Thumb)
}

func (s *ClientTestSuite) TestSendPost_InvalidThumbRef() {
	s.Require().NoError(s.client.Login(s.ctx))

	err := s.client.SendPost(s.ctx, "x", domain.Embed{
		URI:   "https://example.com",
		Thumb: &domain.Blob{Ref: "not-a-cid", MimeType: "image/png", Size: 1},
	})

	s.ErrorContains(err, "parse blob ref")
	s.Empty(s.pds.records)
}

func (s *ClientTestSuite) TestSendPost_CapsLongText() {
	s.Require().NoError(s.client.Login(s.ctx))
	long := strings.Repeat("🏒 Overtime winner ", 40) + "#NHL"

	s.Require().NoError(s.client.SendPost(s.ctx, long, domain.Embed{URI: "https://example.com"}))

	post := s.post(0)
	n := uniseg.GraphemeClusterCount(post.Text)
	s.LessOrEqual(n, maxPostGraphemes)
	s.Greater(n, maxPostGraphemes-5)
	s.True(strings.HasSuffix(post.Text, "…"))
	s.True(utf8.ValidString(post.Text))
	for _, f := range post.Facets {
		s.LessOrEqual(f.Index.ByteEnd, int64(len(post.Text)))
	}
}

func (s *ClientTestSuite) TestExpiredToken_RefreshesOnce() {
	s.Require().NoError(s.client.Login(s.ctx))
	s.pds.expireNext = true

	err := s.client.SendPost(s.ctx, "after refresh", domain.Embed{URI: "https://example.com"})
	s.Require().NoError(err)

	s.Equal([]string{
		"com.atproto.server.createSession",
		"com.atproto.repo.createRecord",
		"com.atproto.server.refreshSession",
		"com.atproto.repo.createRecord",
	}, s.pds.calls)
}

func (s *ClientTestSuite) TestClose() {
	s.NoError(s.client.Close(s.ctx))

	s.Require().NoError(s.client.Login(s.ctx))
	s.NoError(s.client.Close(s.ctx))
	s.Equal("com.atproto.server.deleteSession", s.pds.calls[len(s.pds.calls)-1])

	s.ErrorIs(s.client.SendPost(s.ctx, "x", domain.Embed{}), ErrNotLoggedIn)
}

func TestHashtagFacets(t *testing.T) {
	text := "Célébration! #GoHabsGo and #NHL"
	facets := hashtagFacets(text)

	if len(facets) != 2 {
		t.Fatalf("expected 2 facets, got %d", len(facets))
	}
	first := facets[0]
	if got := text[first.Index.ByteStart:first.Index.ByteEnd]; got != "#GoHabsGo" {
		t.Errorf("unexpected first facet span %q", got)
	}
	if tag := facets[1].Features[0].RichtextFacet_Tag; tag == nil || tag.Tag != "NHL" {
		t.Errorf("unexpected tag %+v", tag)
	}
	if hashtagFacets("no tags here") != nil {
		t.Error("expected nil facets")
	}
}

func TestHashtagFacets_Boundaries(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "emoji before tag", text: "🏒#NHL tonight", want: []string{"#NHL"}},
		{name: "punctuation", text: "Final (#GoLeafsGo)!", want: []string{"#GoLeafsGo"}},
		{name: "start of text", text: "#Oilers win", want: []string{"#Oilers"}},
		{name: "word before hash", text: "game#7 recap", want: nil},
		{name: "url fragment", text: "https://nhl.com/#scores", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, f := range hashtagFacets(tt.text) {
				got = append(got, tt.text[f.Index.ByteStart:f.Index.ByteEnd])
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCapGraphemes(t *testing.T) {
	if got := capGraphemes("short #NHL", maxPostGraphemes); got != "short #NHL" {
		t.Errorf("short text changed: %q", got)
	}

	// Family emoji is one grapheme made of several runes.
	long := strings.Repeat("👨‍👩‍👧", 10)
	got := capGraphemes(long, 5)
	if n := uniseg.GraphemeClusterCount(got); n != 5 {
		t.Errorf("expected 5 graphemes, got %d in %q", n, got)
	}
	if !strings.HasPrefix(long, strings.TrimSuffix(got, "…")) {
		t.Errorf("cut inside a grapheme: %q", got)
	}
}
