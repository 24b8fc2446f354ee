// Package ffmpeg wraps the ffmpeg and ffprobe binaries: duration probing,
// fixed-window clipping, frame sampling and audio extraction.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNotInstalled is returned when ffmpeg or ffprobe cannot be found.
var ErrNotInstalled = errors.New("ffmpeg: binary not found")

// Options selects the binaries to run. Empty paths are looked up in PATH.
type Options struct {
	FFmpegPath  string
	FFprobePath string
}

// Executor runs ffmpeg and ffprobe.
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
}

// New resolves both binaries and returns an Executor.
func New(logger zerolog.Logger, opts Options) (*Executor, error) {
	ffmpegPath, err := lookPath(opts.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobePath, err := lookPath(opts.FFprobePath, "ffprobe")
	if err != nil {
		return nil, err
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}, nil
}

func lookPath(configured, name string) (string, error) {
	if configured == "" {
		configured = name
	}
	p, err := exec.LookPath(configured)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotInstalled, name, err)
	}
	return p, nil
}

// Run executes ffmpeg with args, overwriting outputs and logging errors only.
func (e *Executor) Run(ctx context.Context, args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("no arguments provided")
	}

	full := append([]string{"-y", "-hide_banner", "-loglevel", "error"}, args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", full).
		Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			msg = "..." + msg[len(msg)-500:]
		}
		if msg != "" {
			return fmt.Errorf("ffmpeg execution failed: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}
	return nil
}
