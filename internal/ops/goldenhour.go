package ops

import (
	"context"
	"path/filepath"
	"time"

	"github.com/hbb4/time-lapse/internal/errors"
	"github.com/hbb4/time-lapse/internal/render"
	"github.com/hbb4/time-lapse/internal/solar"
	"github.com/hbb4/time-lapse/internal/window"
)

// GoldenHourLabel names the golden-hour output variant.
const GoldenHourLabel = "goldenhr_sunset"

// GoldenHourInput contains parameters for the GoldenHour operation.
type GoldenHourInput struct {
	Archive   string
	OutputDir string

	// Dates are the calendar dates to render; empty defaults to every date
	// the archive spans.
	Dates []time.Time

	Cutoff    time.Time
	Overwrite bool
	Captions  bool
}

// GoldenHourOutput summarizes a golden-hour batch run.
type GoldenHourOutput struct {
	Rendered []RenderedClip `json:"rendered"`

	SkippedExisting int `json:"skipped_existing"`
	SkippedNoEvent  int `json:"skipped_no_event"`
	SkippedEmpty    int `json:"skipped_empty"`
	Failed          int `json:"failed"`
}

// GoldenHour renders the wide absolute-time window bracketing each date's
// sunset: from GoldenHourLeadMin before it to GoldenHourTailMin after,
// with each side capped at the configured wall-clock bound (start no later
// than StartCapHour, end no later than EndCapHour).
func GoldenHour(ctx context.Context, deps *Deps, input GoldenHourInput) (*GoldenHourOutput, error) {
	if err := validateOutputDir(input.OutputDir); err != nil {
		return nil, err
	}

	idx, err := buildIndex(ctx, deps, input.Archive, input.Cutoff)
	if err != nil {
		return nil, err
	}

	out := &GoldenHourOutput{Rendered: []RenderedClip{}}

	dates := input.Dates
	if len(dates) == 0 {
		spanStart, spanEnd, ok := idx.Span()
		if !ok {
			return out, nil
		}
		for d := civilDay(spanStart, deps.Loc); !d.After(civilDay(spanEnd, deps.Loc)); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}
	}

	cfg := deps.Config
	log := deps.logger()

	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		date = civilDay(date, deps.Loc)

		sunset, ok := solar.EventTime(date, solar.Sunset, solar.ZenithOfficial, deps.place(), deps.Loc)
		if !ok {
			log.Info("skipping", "event", GoldenHourLabel,
				"err", errors.NewNoSolarEvent(date.Format("2006-01-02"), solar.ZenithOfficial))
			out.SkippedNoEvent++
			continue
		}

		span := window.Capped(sunset,
			time.Duration(cfg.GoldenHourLeadMin)*time.Minute,
			time.Duration(cfg.GoldenHourTailMin)*time.Minute,
			capAt(date, cfg.StartCapHour, deps.Loc),
			capAt(date, cfg.EndCapHour, deps.Loc),
		)

		frames := idx.RangeByTime(span.Start, span.End)
		if len(frames) == 0 {
			log.Warn("skipping", "event", GoldenHourLabel,
				"err", errors.NewEmptyWindow(span.Start.Format(time.RFC3339), span.End.Format(time.RFC3339)))
			out.SkippedEmpty++
			continue
		}

		outPath := filepath.Join(input.OutputDir, render.OutputName(date, GoldenHourLabel))
		if render.ShouldSkip(outPath, input.Overwrite) {
			log.Info("output exists, skipping", "output", outPath)
			out.SkippedExisting++
			continue
		}

		log.Info("rendering golden hour",
			"date", date.Format("2006-01-02"), "sunset", sunset.Format("15:04"),
			"window_start", span.Start.Format("15:04"), "window_end", span.End.Format("15:04"),
			"frames", len(frames))

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
			Label:     GoldenHourLabel,
			Output:    outPath,
			EventTime: sunset,
			Frames:    len(frames),
		}
		recordRender(deps, clip, span.Start, span.End)
		out.Rendered = append(out.Rendered, clip)
	}

	return out, nil
}

// capAt returns the wall-clock cap for a date, e.g. 17:00 local.
func capAt(date time.Time, hour int, loc *time.Location) time.Time {
	year, month, day := date.In(loc).Date()
	return time.Date(year, month, day, hour, 0, 0, 0, loc)
}
