// Package analyzer sends local media files to remote content-analysis
// services and returns their textual verdict.
package analyzer

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for analysis operations.
var (
	// ErrEmptyResponse means the service answered without any text.
	ErrEmptyResponse = errors.New("analyzer: empty response")
	// ErrProcessingFailed means the remote side gave up on the uploaded
	// file. It is terminal and never retried.
	ErrProcessingFailed = errors.New("analyzer: remote processing failed")
	// ErrNoAnalyzers is returned by an empty Chain.
	ErrNoAnalyzers = errors.New("analyzer: no analyzers configured")
)

// Analyzer turns a local media file into descriptive text.
type Analyzer interface {
	// Name identifies the analyzer in logs and errors.
	Name() string
	// Analyze returns the analysis of the file at path. Failures are
	// returned as *AnalyzeError.
	Analyze(ctx context.Context, path string) (string, error)
}

// AnalyzeError wraps a failed analysis with the analyzer and file involved.
type AnalyzeError struct {
	Analyzer string
	Path     string
	Err      error
}

func (e *AnalyzeError) Error() string {
	return fmt.Sprintf("analyze %s with %s: %v", e.Path, e.Analyzer, e.Err)
}

func (e *AnalyzeError) Unwrap() error { return e.Err }

// FrameSampler extracts JPEG frames evenly spaced across a video.
type FrameSampler interface {
	SampleFrames(ctx context.Context, path string, n int) ([][]byte, error)
}

// AudioExtractor writes the audio track of a video to a new file.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, input, output string) error
}
