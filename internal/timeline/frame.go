package timeline

import (
	"context"
	"time"
)

// Frame is one archived photo with its estimated capture time.
// Immutable once created.
type Frame struct {
	Timestamp time.Time
	Path      string
}

// MetadataReader reads the capture time embedded in a frame file.
// Implementations return an error when neither an original capture time nor
// a creation time is available.
type MetadataReader interface {
	CaptureTime(ctx context.Context, path string) (time.Time, error)
}

// Interpolate assigns an estimated timestamp to every frame of a capture
// session from the real timestamps of its first and last frames, assuming a
// uniform capture rate within the session. names must be in capture order;
// paths in the result are dir-joined in the same order.
//
// A single-frame session gets first as its timestamp. A multi-frame session
// whose boundary timestamps do not yield a positive interval (equal or
// inverted, e.g. second-granularity metadata on a short burst) falls back to
// the given spacing. The uniform-rate assumption is a stated policy of the
// archive layout, not a verified fact: a directory matching the naming
// convention is trusted to be one continuous run.
func Interpolate(dir string, names []string, first, last time.Time, fallback time.Duration) []Frame {
	frames := make([]Frame, 0, len(names))
	if len(names) == 0 {
		return frames
	}

	var interval time.Duration
	if len(names) > 1 {
		interval = last.Sub(first) / time.Duration(len(names)-1)
		if interval <= 0 {
			interval = fallback
		}
	}

	for i, name := range names {
		frames = append(frames, Frame{
			Timestamp: first.Add(time.Duration(i) * interval),
			Path:      joinPath(dir, name),
		})
	}
	return frames
}
