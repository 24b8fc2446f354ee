package ffmpeg

import (
	"fmt"
	"time"
)

// Segment is one fixed-size window [Start, End) of a source file.
type Segment struct {
	// Index is 1-based.
	Index int
	Start time.Duration
	End   time.Duration
}

// Duration returns the segment length.
func (s Segment) Duration() time.Duration { return s.End - s.Start }

// Segments splits total into ceil(total/window) windows; the last one is
// truncated to what remains. It returns nil when either argument is <= 0.
func Segments(total, window time.Duration) []Segment {
	if total <= 0 || window <= 0 {
		return nil
	}

	n := int(total / window)
	if total%window > 0 {
		n++
	}

	segs := make([]Segment, 0, n)
	for i := 0; i < n; i++ {
		start := time.Duration(i) * window
		end := start + window
		if end > total {
			end = total
		}
		segs = append(segs, Segment{Index: i + 1, Start: start, End: end})
	}
	return segs
}

// ClipName returns "<base>_clip_<NNN>_<start>s-<end>s.mp4" with whole seconds.
func ClipName(base string, s Segment) string {
	return fmt.Sprintf("%s_clip_%03d_%.0fs-%.0fs.mp4", base, s.Index, s.Start.Seconds(), s.End.Seconds())
}
