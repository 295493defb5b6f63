package domain

import "time"

// Kind discriminates the content variants stored in content_items.
type Kind string

const (
	KindArticle Kind = "article"
	KindVideo   Kind = "video"
)

// NormalizeID maps a source-provided identifier to the deduplication key.
// Article links are normalized; video IDs are used verbatim.
func (k Kind) NormalizeID(id string) string {
	if k == KindArticle {
		return NormalizeLink(id)
	}
	return id
}

type PublishState string

const (
	StatePending   PublishState = "pending"
	StatePublished PublishState = "published"
)

type ContentItem struct {
	ID               int64        `db:"id"`
	Kind             Kind         `db:"kind"`
	SourceID         string       `db:"source_id"` // identifies the source (e.g., "nhl", "youtube")
	ExternalID       string       `db:"external_id"`
	Title            string       `db:"title"`
	Description      string       `db:"description"`
	Link             string       `db:"link"`
	ThumbnailURL     string       `db:"thumbnail_url"`
	GeneratedCaption *string      `db:"generated_caption"`
	PublishState     PublishState `db:"publish_state"`
	CreatedAt        time.Time    `db:"created_at"`
	PublishedAt      *time.Time   `db:"published_at"`
}

// Candidate is one entry discovered on a listing page. Title and
// ThumbnailURL are optional hints some listings already carry.
type Candidate struct {
	Locator      string
	ExternalID   string
	Link         string
	Title        string
	ThumbnailURL string
}

// Detail holds the fields extracted from a detail page.
type Detail struct {
	Title        string
	Description  string
	ThumbnailURL string
}

// IngestOptions are optional per-run parameters for video sources.
type IngestOptions struct {
	ChannelID  string `json:"channel_id,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
	Duration   string `json:"duration,omitempty"`
}

// Blob references an uploaded image on the publishing platform.
type Blob struct {
	Ref      string
	MimeType string
	Size     int64
}

// Embed is a link-preview payload attached to a post.
type Embed struct {
	Title       string
	Description string
	URI         string
	Thumb       *Blob
}
