package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// lastFrameMargin keeps the final sample inside the stream; seeking to the
// exact container duration yields no frame.
const lastFrameMargin = 100 * time.Millisecond

// FrameTimestamps returns n evenly spaced offsets from 0 to just before the
// end of a video of the given duration.
func FrameTimestamps(duration time.Duration, n int) []time.Duration {
	if n <= 0 {
		return nil
	}
	last := duration - lastFrameMargin
	if last < 0 {
		last = 0
	}
	out := make([]time.Duration, n)
	if n == 1 {
		return out
	}
	step := float64(last) / float64(n-1)
	for i := range out {
		out[i] = time.Duration(step * float64(i))
	}
	out[n-1] = last
	return out
}

// ExtractFrame writes the frame at offset as a JPEG to output.
func (e *Executor) ExtractFrame(ctx context.Context, input string, at time.Duration, output string) error {
	return e.Run(ctx,
		"-ss", seconds(at),
		"-i", input,
		"-frames:v", "1",
		"-q:v", "3",
		output,
	)
}

// SampleFrames returns n JPEG frames evenly spaced across input.
func (e *Executor) SampleFrames(ctx context.Context, input string, n int) ([][]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("frame count must be > 0, got %d", n)
	}

	total, err := e.Duration(ctx, input)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "vea-frames-*")
	if err != nil {
		return nil, fmt.Errorf("create frame directory: %w", err)
	}
	defer os.RemoveAll(dir)

	frames := make([][]byte, 0, n)
	for i, at := range FrameTimestamps(total, n) {
		out := filepath.Join(dir, fmt.Sprintf("frame_%03d.jpg", i))
		if err := e.ExtractFrame(ctx, input, at, out); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn().Err(err).Dur("at", at).Msg("frame extraction failed, skipping")
			continue
		}
		data, err := os.ReadFile(out)
		if err != nil || len(data) == 0 {
			continue
		}
		frames = append(frames, data)
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("failed to sample frames from %s", input)
	}
	e.logger.Debug().Str("input", input).Int("frames", len(frames)).Msg("sampled frames")
	return frames, nil
}
