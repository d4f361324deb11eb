package window

import (
	"time"

	"github.com/hbb4/time-lapse/internal/timeline"
)

// Span is an inclusive time window.
type Span struct {
	Start time.Time
	End   time.Time
}

// Capped builds the absolute-time window around an event: the raw window is
// [event-lead, event+tail], then each side is capped by taking the earlier of
// the raw edge and its bound. The end cap may itself be a second event, such
// as nautical dusk.
func Capped(event time.Time, lead, tail time.Duration, startCap, endCap time.Time) Span {
	start := event.Add(-lead)
	if startCap.Before(start) {
		start = startCap
	}
	end := event.Add(tail)
	if endCap.Before(end) {
		end = endCap
	}
	return Span{Start: start, End: end}
}

// ClipPolicy sizes and positions a ratio-centered clip.
type ClipPolicy struct {
	Duration time.Duration
	FPS      int

	// CenterRatio is the fraction of the clip that falls before the anchor
	// event. 0.5 centers the event; a sunrise clip may deliberately place
	// the event later than a sunset clip.
	CenterRatio float64
}

// FrameCount returns the clip length in frames.
func (p ClipPolicy) FrameCount() int {
	return int(p.Duration.Seconds()) * p.FPS
}

// Rewind appends a reversed, decimated replay to frames: every step-th frame
// taken backwards from the last, where step = max(1, len/target). target is
// the approximate replay length in frames. The input is not modified.
func Rewind(frames []timeline.Frame, target int) []timeline.Frame {
	n := len(frames)
	if n == 0 || target <= 0 {
		return frames
	}

	step := n / target
	if step < 1 {
		step = 1
	}

	out := make([]timeline.Frame, 0, n+n/step+1)
	out = append(out, frames...)
	for i := n - 1; i >= 0; i -= step {
		out = append(out, frames[i])
	}
	return out
}
