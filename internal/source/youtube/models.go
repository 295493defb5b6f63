package youtube

// SearchResponse represents the search.list response structure.
type SearchResponse struct {
	Items []SearchItem `json:"items"`
}

type SearchItem struct {
	ID      SearchID `json:"id"`
	Snippet Snippet  `json:"snippet"`
}

type SearchID struct {
	Kind    string `json:"kind"`
	VideoID string `json:"videoId"`
}

// VideosResponse represents the videos.list response structure.
type VideosResponse struct {
	Items []VideoItem `json:"items"`
}

type VideoItem struct {
	ID      string  `json:"id"`
	Snippet Snippet `json:"snippet"`
}

type Snippet struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	ChannelID   string               `json:"channelId"`
	Thumbnails  map[string]Thumbnail `json:"thumbnails"`
}

type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ErrorResponse is the error envelope returned with non-2xx statuses.
type ErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// bestThumbnail prefers the high resolution variant.
func (s Snippet) bestThumbnail() string {
	for _, size := range []string{"high", "medium", "default"} {
		if t, ok := s.Thumbnails[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}
