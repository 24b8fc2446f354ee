package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// Duration returns the container duration of filePath.
func (e *Executor) Duration(ctx context.Context, filePath string) (time.Duration, error) {
	if filePath == "" {
		return 0, fmt.Errorf("file path is required")
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseDuration(output)
}

// probeResult matches the part of ffprobe's JSON output we read.
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseDuration(output []byte) (time.Duration, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	secs, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("ffprobe reported no usable duration %q", probe.Format.Duration)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
