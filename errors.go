package vea

import (
	"github.com/baba2413/VEA/analyzer"
	"github.com/baba2413/VEA/config"
	"github.com/baba2413/VEA/internal/retry"
	"github.com/baba2413/VEA/links"
	"github.com/baba2413/VEA/storage"
	"github.com/baba2413/VEA/youtube"
)

// Error handling types exported for library users.
//
// Using errors.As() for typed errors:
//
//	var fe *vea.FetchError
//	if errors.As(err, &fe) {
//		fmt.Printf("download of %s failed: %v\n", fe.URL, fe.Err)
//	}
//
// Using errors.Is() for sentinel errors:
//
//	if errors.Is(err, vea.ErrVideoUnavailable) {
//		fmt.Println("video is private or removed")
//	}

// Type aliases for convenient error handling.
type (
	// MalformedInputError reports an input document with the wrong shape.
	MalformedInputError = links.MalformedInputError
	// MissingCredentialError reports a selected capability without its key.
	MissingCredentialError = config.MissingCredentialError
	// FetchError wraps a failed download.
	FetchError = youtube.FetchError
	// AnalyzeError wraps a failed analysis.
	AnalyzeError = analyzer.AnalyzeError
	// PersistenceError wraps a failure to read or write the result file.
	PersistenceError = storage.PersistenceError
	// RetryableError wraps errors that occurred after retries were exhausted.
	RetryableError = retry.RetryableError
)

// Sentinel errors exported from sub-packages.
var (
	ErrYtdlpNotInstalled = youtube.ErrYtdlpNotInstalled
	ErrVideoUnavailable  = youtube.ErrVideoUnavailable
	ErrRateLimited       = youtube.ErrRateLimited
	ErrNetworkTimeout    = youtube.ErrNetworkTimeout
	ErrInvalidURL        = youtube.ErrInvalidURL

	ErrEmptyResponse    = analyzer.ErrEmptyResponse
	ErrProcessingFailed = analyzer.ErrProcessingFailed

	// Storage errors
	ErrStorageCorrupt = storage.ErrStorageCorrupt
	ErrLockTimeout    = storage.ErrLockTimeout
	ErrInvalidInput   = storage.ErrInvalidInput
)

// IsRetryable determines if an error should be retried.
func IsRetryable(err error) bool {
	return retry.IsRetryable(err)
}
