package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// ExtractAudio writes the audio track of input to output. The codec follows
// the output extension: libmp3lame for .mp3, 16-bit PCM otherwise.
func (e *Executor) ExtractAudio(ctx context.Context, input, output string) error {
	codec := "pcm_s16le"
	if strings.EqualFold(filepath.Ext(output), ".mp3") {
		codec = "libmp3lame"
	}

	e.logger.Info().
		Str("input", input).
		Str("output", output).
		Str("codec", codec).
		Msg("extracting audio")

	if err := e.Run(ctx, "-i", input, "-vn", "-acodec", codec, output); err != nil {
		return fmt.Errorf("audio extraction failed: %w", err)
	}
	return nil
}
