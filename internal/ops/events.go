package ops

import (
	"context"
	"path/filepath"
	"time"

	"github.com/hbb4/time-lapse/internal/errors"
	"github.com/hbb4/time-lapse/internal/render"
	"github.com/hbb4/time-lapse/internal/solar"
)

// EventsInput contains parameters for the Events operation.
type EventsInput struct {
	Archive   string
	OutputDir string

	// From and To bound the calendar dates to consider; zero values default
	// to the span of the indexed archive.
	From time.Time
	To   time.Time

	Cutoff time.Time

	// Overlap selects the overlapping-timelapse variant, which shifts the
	// sunrise event further into the clip so the preceding night gets more
	// screen time.
	Overlap bool

	Overwrite bool
	Captions  bool
}

// EventsOutput summarizes a batch run over sunrise and sunset events.
type EventsOutput struct {
	Rendered []RenderedClip `json:"rendered"`

	SkippedExisting int `json:"skipped_existing"`
	SkippedNoEvent  int `json:"skipped_no_event"`
	SkippedEmpty    int `json:"skipped_empty"`
	Failed          int `json:"failed"`
}

// Events renders a ratio-centered clip for every sunrise and sunset the
// archive covers. Each (date, event) pair is an independent unit of work:
// polar dates, empty windows, existing outputs, and encoder failures are
// counted and skipped, never fatal.
func Events(ctx context.Context, deps *Deps, input EventsInput) (*EventsOutput, error) {
	if err := validateOutputDir(input.OutputDir); err != nil {
		return nil, err
	}

	idx, err := buildIndex(ctx, deps, input.Archive, input.Cutoff)
	if err != nil {
		return nil, err
	}

	out := &EventsOutput{Rendered: []RenderedClip{}}

	spanStart, spanEnd, ok := idx.Span()
	if !ok {
		return out, nil
	}

	from := input.From
	if from.IsZero() {
		from = spanStart
	}
	to := input.To
	if to.IsZero() {
		to = spanEnd
	}

	cfg := deps.Config
	log := deps.logger()

	sunriseRatio := cfg.SunriseRatio
	if input.Overlap {
		sunriseRatio = cfg.OverlapSunriseRatio
	}

	for date := civilDay(from, deps.Loc); !date.After(civilDay(to, deps.Loc)); date = date.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, kind := range []solar.Kind{solar.Sunrise, solar.Sunset} {
			event, ok := solar.EventTime(date, kind, solar.ZenithOfficial, deps.place(), deps.Loc)
			if !ok {
				log.Info("skipping", "event", kind,
					"err", errors.NewNoSolarEvent(date.Format("2006-01-02"), solar.ZenithOfficial))
				out.SkippedNoEvent++
				continue
			}
			if !coveredBySpan(event, spanStart, spanEnd) {
				continue
			}

			ratio := cfg.SunsetRatio
			if kind == solar.Sunrise {
				ratio = sunriseRatio
			}

			frames := idx.RangeByAnchor(event, cfg.ClipFrames(), ratio)
			if len(frames) == 0 {
				log.Warn("empty window", "date", date.Format("2006-01-02"), "event", kind)
				out.SkippedEmpty++
				continue
			}

			outPath := filepath.Join(input.OutputDir, render.OutputName(date, string(kind)))
			if render.ShouldSkip(outPath, input.Overwrite) {
				log.Info("output exists, skipping", "output", outPath)
				out.SkippedExisting++
				continue
			}

			log.Info("rendering event clip",
				"date", date.Format("2006-01-02"), "event", kind,
				"time", event.Format("15:04"), "frames", len(frames), "ratio", ratio)

			err := deps.Encoder.Encode(ctx, frames, outPath, render.Options{
				FPS:       cfg.FPS,
				CRF:       cfg.CRF,
				Captions:  input.Captions,
				Overwrite: input.Overwrite,
			})
			if err != nil {
				log.Warn("encode failed", "output", outPath, "err", err)
				out.Failed++
				continue
			}

			clip := RenderedClip{
				Date:      date.Format("2006-01-02"),
				Label:     string(kind),
				Output:    outPath,
				EventTime: event,
				Frames:    len(frames),
			}
			recordRender(deps, clip, frames[0].Timestamp, frames[len(frames)-1].Timestamp)
			out.Rendered = append(out.Rendered, clip)
		}
	}

	return out, nil
}
