package domain

import (
	"net/url"
	"strings"
)

// NormalizeLink canonicalizes an article link so that URL variations of the
// same page map to one deduplication key. A single trailing slash is removed
// from the path and tracking parameters (utm_*, fb_*, source, ref) are dropped
// from the query. Remaining parameters keep their original order.
func NormalizeLink(raw string) string {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimSuffix(raw, "/")
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = strings.TrimSuffix(u.RawPath, "/")

	if u.RawQuery != "" {
		pairs := strings.Split(u.RawQuery, "&")
		kept := make([]string, 0, len(pairs))
		for _, pair := range pairs {
			if pair == "" {
				continue
			}
			name, _, _ := strings.Cut(pair, "=")
			if decoded, err := url.QueryUnescape(name); err == nil {
				name = decoded
			}
			if isTrackingParam(name) {
				continue
			}
			kept = append(kept, pair)
		}
		u.RawQuery = strings.Join(kept, "&")
	}
	u.ForceQuery = false

	return u.String()
}

func isTrackingParam(name string) bool {
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "utm_"), strings.HasPrefix(name, "fb_"):
		return true
	case name == "source", name == "ref":
		return true
	}
	return false
}
