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

// RewindLabel names the rewind output variant.
const RewindLabel = "goldenhr_rewind"

// RewindInput contains parameters for the Rewind operation.
type RewindInput struct {
	Archive   string
	OutputDir string

	// Date is the calendar date to render.
	Date time.Time

	Cutoff    time.Time
	Overwrite bool
	Captions  bool
}

// RewindOutput describes the result of a rewind render.
type RewindOutput struct {
	Rendered *RenderedClip `json:"rendered,omitempty"`

	SkippedExisting bool `json:"skipped_existing,omitempty"`
	SkippedNoEvent  bool `json:"skipped_no_event,omitempty"`
	SkippedEmpty    bool `json:"skipped_empty,omitempty"`
}

// Rewind renders one date's dusk sequence with a reverse-replay tail: the
// window runs from the capped golden-hour start to nautical dusk, and the
// selected frames are followed by a decimated reversed copy of themselves.
func Rewind(ctx context.Context, deps *Deps, input RewindInput) (*RewindOutput, error) {
	if err := validateOutputDir(input.OutputDir); err != nil {
		return nil, err
	}

	cfg := deps.Config
	log := deps.logger()
	date := civilDay(input.Date, deps.Loc)

	sunset, okSunset := solar.EventTime(date, solar.Sunset, solar.ZenithOfficial, deps.place(), deps.Loc)
	dusk, okDusk := solar.EventTime(date, solar.Sunset, solar.ZenithNautical, deps.place(), deps.Loc)
	if !okSunset || !okDusk {
		zenith := solar.ZenithOfficial
		if okSunset {
			zenith = solar.ZenithNautical
		}
		log.Info("skipping", "event", RewindLabel,
			"err", errors.NewNoSolarEvent(date.Format("2006-01-02"), zenith))
		return &RewindOutput{SkippedNoEvent: true}, nil
	}

	outPath := filepath.Join(input.OutputDir, render.OutputName(date, RewindLabel))
	if render.ShouldSkip(outPath, input.Overwrite) {
		log.Info("output exists, skipping", "output", outPath)
		return &RewindOutput{SkippedExisting: true}, nil
	}

	// Default the index cutoff to just before the requested date so one
	// date's render never indexes the whole archive.
	cutoff := input.Cutoff
	if cutoff.IsZero() {
		cutoff = date.AddDate(0, 0, -2)
	}

	idx, err := buildIndex(ctx, deps, input.Archive, cutoff)
	if err != nil {
		return nil, err
	}

	// The window ends at last light rather than a fixed offset: nautical
	// dusk is the end cap.
	span := window.Capped(sunset,
		time.Duration(cfg.GoldenHourLeadMin)*time.Minute,
		time.Duration(cfg.GoldenHourTailMin)*time.Minute,
		capAt(date, cfg.StartCapHour, deps.Loc),
		dusk,
	)

	frames := idx.RangeByTime(span.Start, span.End)
	if len(frames) == 0 {
		log.Warn("skipping", "event", RewindLabel,
			"err", errors.NewEmptyWindow(span.Start.Format(time.RFC3339), span.End.Format(time.RFC3339)))
		return &RewindOutput{SkippedEmpty: true}, nil
	}

	sequence := window.Rewind(frames, cfg.RewindFrames)

	log.Info("rendering rewind",
		"date", date.Format("2006-01-02"), "sunset", sunset.Format("15:04"),
		"dusk", dusk.Format("15:04"), "forward", len(frames), "total", len(sequence))

	err = deps.Encoder.Encode(ctx, sequence, outPath, render.Options{
		FPS:       cfg.FPS,
		CRF:       cfg.CRF,
		Captions:  input.Captions,
		Overwrite: input.Overwrite,
	})
	if err != nil {
		return nil, err
	}

	clip := RenderedClip{
		Date:      date.Format("2006-01-02"),
		Label:     RewindLabel,
		Output:    outPath,
		EventTime: sunset,
		Frames:    len(sequence),
	}
	recordRender(deps, clip, span.Start, span.End)
	return &RewindOutput{Rendered: &clip}, nil
}
