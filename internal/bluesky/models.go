package bluesky

import (
	"regexp"
	"strings"
	"unicode"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/rivo/uniseg"
)

// maxPostGraphemes is the app.bsky.feed.post text limit.
const maxPostGraphemes = 300

// A tag starts at the beginning of text or after any character that cannot be
// part of a tag, so "🏒#NHL" and "(#NHL)" are both tagged.
var hashtagPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_#/&])(#[\p{L}\p{N}_]+)`)

// hashtagFacets marks every #tag in text so clients render it as a link.
// Offsets are UTF-8 byte positions.
func hashtagFacets(text string) []*appbsky.RichtextFacet {
	matches := hashtagPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	facets := make([]*appbsky.RichtextFacet, 0, len(matches))
	for _, m := range matches {
		start, end := m[2], m[3]
		facets = append(facets, &appbsky.RichtextFacet{
			Index: &appbsky.RichtextFacet_ByteSlice{
				ByteStart: int64(start),
				ByteEnd:   int64(end),
			},
			Features: []*appbsky.RichtextFacet_Features_Elem{{
				RichtextFacet_Tag: &appbsky.RichtextFacet_Tag{
					Tag: text[start+1 : end],
				},
			}},
		})
	}
	return facets
}

// capGraphemes cuts text to at most limit grapheme clusters, marking the cut
// with an ellipsis.
func capGraphemes(text string, limit int) string {
	if uniseg.GraphemeClusterCount(text) <= limit {
		return text
	}

	g := uniseg.NewGraphemes(text)
	end := 0
	for n := 0; n < limit-1 && g.Next(); n++ {
		_, end = g.Positions()
	}
	return strings.TrimRightFunc(text[:end], unicode.IsSpace) + "…"
}
