package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Default encoding settings for clips.
const (
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
	DefaultWindow     = 30 * time.Second
)

// ClipOptions defines clip extraction parameters.
type ClipOptions struct {
	Start      time.Duration
	Duration   time.Duration
	Output     string
	VideoCodec string
	AudioCodec string
}

// ExtractClip re-encodes [Start, Start+Duration) of input into Output.
func (e *Executor) ExtractClip(ctx context.Context, input string, opts ClipOptions) error {
	if opts.Duration <= 0 {
		return fmt.Errorf("invalid clip duration %v", opts.Duration)
	}

	vcodec := opts.VideoCodec
	if vcodec == "" {
		vcodec = DefaultVideoCodec
	}
	acodec := opts.AudioCodec
	if acodec == "" {
		acodec = DefaultAudioCodec
	}

	e.logger.Info().
		Str("input", input).
		Str("output", opts.Output).
		Dur("start", opts.Start).
		Dur("duration", opts.Duration).
		Msg("extracting clip")

	err := e.Run(ctx,
		"-i", input,
		"-ss", seconds(opts.Start),
		"-t", seconds(opts.Duration),
		"-c:v", vcodec,
		"-c:a", acodec,
		"-avoid_negative_ts", "make_zero",
		opts.Output,
	)
	if err != nil {
		return fmt.Errorf("clip extraction failed: %w", err)
	}
	return nil
}

// Clipper cuts a video into fixed-size windows.
type Clipper struct {
	exec *Executor
}

// NewClipper returns a Clipper backed by e.
func NewClipper(e *Executor) *Clipper {
	return &Clipper{exec: e}
}

// ClipFile writes every window of input into outDir and returns the clip
// paths in order. It stops at the first failed clip.
func (c *Clipper) ClipFile(ctx context.Context, input, outDir string, window time.Duration) ([]string, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("input video: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	total, err := c.exec.Duration(ctx, input)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	segs := Segments(total, window)

	c.exec.logger.Info().
		Str("input", input).
		Dur("total", total).
		Int("clips", len(segs)).
		Msg("clipping video")

	paths := make([]string, 0, len(segs))
	for _, s := range segs {
		out := filepath.Join(outDir, ClipName(base, s))
		if err := c.exec.ExtractClip(ctx, input, ClipOptions{
			Start:    s.Start,
			Duration: s.Duration(),
			Output:   out,
		}); err != nil {
			return paths, fmt.Errorf("clip %d/%d: %w", s.Index, len(segs), err)
		}
		paths = append(paths, out)
	}
	return paths, nil
}

// seconds formats d as decimal seconds for ffmpeg time arguments.
func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
