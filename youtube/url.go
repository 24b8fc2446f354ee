package youtube

import (
	"net/url"
	"regexp"
	"strings"
)

var videoIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// VideoID extracts the 11-character video ID from the usual link shapes:
// watch?v=, youtu.be/, shorts/, embed/ and live/. It returns "" when no ID
// can be found.
func VideoID(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if videoIDRegex.MatchString(rawURL) {
		return rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var candidate string
	switch {
	case host == "youtu.be":
		candidate = segments[0]
	case strings.HasSuffix(host, "youtube.com"):
		if v := u.Query().Get("v"); v != "" {
			candidate = v
			break
		}
		if len(segments) >= 2 {
			switch segments[0] {
			case "shorts", "embed", "live", "v":
				candidate = segments[1]
			}
		}
	}

	if videoIDRegex.MatchString(candidate) {
		return candidate
	}
	return ""
}
