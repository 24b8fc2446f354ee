// Package youtube downloads videos with yt-dlp.
package youtube

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Sentinel errors for fetch operations.
var (
	ErrYtdlpNotInstalled = errors.New("youtube: yt-dlp not installed")
	ErrVideoUnavailable  = errors.New("youtube: video unavailable")
	ErrRateLimited       = errors.New("youtube: rate limited")
	ErrNetworkTimeout    = errors.New("youtube: network timeout")
	ErrInvalidURL        = errors.New("youtube: invalid URL")
	ErrMissingOutput     = errors.New("youtube: download produced no output file")
)

// FetchError wraps a failed download with the URL it was for.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// stderrTail keeps the last part of yt-dlp's stderr for error messages.
func stderrTail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := len(s) - max
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return "..." + s[cut:]
}

// classifyStderr maps well-known yt-dlp failure messages onto sentinels.
// It returns nil when nothing matched.
func classifyStderr(stderr string) error {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "http error 429"), strings.Contains(msg, "too many requests"):
		return ErrRateLimited
	case strings.Contains(msg, "video unavailable"),
		strings.Contains(msg, "private video"),
		strings.Contains(msg, "has been removed"),
		strings.Contains(msg, "members-only"),
		strings.Contains(msg, "sign in to confirm your age"):
		return ErrVideoUnavailable
	case strings.Contains(msg, "unsupported url"), strings.Contains(msg, "is not a valid url"):
		return ErrInvalidURL
	case strings.Contains(msg, "timed out"):
		return ErrNetworkTimeout
	}
	return nil
}

// isPermanent reports whether retrying the download cannot help.
func isPermanent(err error) bool {
	return errors.Is(err, ErrYtdlpNotInstalled) ||
		errors.Is(err, ErrVideoUnavailable) ||
		errors.Is(err, ErrInvalidURL)
}
