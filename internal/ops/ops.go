// Package ops implements the batch operations behind the CLI commands. Each
// operation builds the archive index once, walks its calendar dates, and
// absorbs per-unit failures (a session, a date, an event) so a large run
// completes even when individual inputs are malformed.
package ops

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hbb4/time-lapse/internal/config"
	"github.com/hbb4/time-lapse/internal/errors"
	"github.com/hbb4/time-lapse/internal/manifest"
	"github.com/hbb4/time-lapse/internal/render"
	"github.com/hbb4/time-lapse/internal/solar"
	"github.com/hbb4/time-lapse/internal/timeline"
)

// Pagination limits for the history operation.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// eventSpanBuffer pads the archive span when deciding whether an event is
// covered by it: an event just outside the indexed range may still have
// usable frames on one side.
const eventSpanBuffer = 2 * time.Hour

// Deps bundles the collaborators an operation needs. Reader and Encoder are
// interfaces so tests substitute fakes; DB may be nil to disable manifest
// recording.
type Deps struct {
	Config  *config.Config
	Loc     *time.Location
	Reader  timeline.MetadataReader
	Encoder render.Encoder
	DB      *sql.DB
	Logger  *slog.Logger
}

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// RenderedClip describes one produced video.
type RenderedClip struct {
	Date      string    `json:"date"`
	Label     string    `json:"label"`
	Output    string    `json:"output"`
	EventTime time.Time `json:"event_time"`
	Frames    int       `json:"frames"`
}

// place returns the configured observer location.
func (d *Deps) place() solar.Place {
	return solar.Place{Latitude: d.Config.Latitude, Longitude: d.Config.Longitude}
}

// logger never returns nil.
func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// buildIndex validates the archive path and scans it.
func buildIndex(ctx context.Context, deps *Deps, archive string, cutoff time.Time) (*timeline.Index, error) {
	info, err := os.Stat(archive)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("archive path not accessible: %v", err))
	}
	if !info.IsDir() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("archive path is not a directory: %s", archive))
	}

	return timeline.Build(ctx, archive, deps.Reader, timeline.BuildOptions{
		Prefix:          deps.Config.FramePrefix,
		Ext:             deps.Config.FrameExt,
		ExcludeMarker:   deps.Config.ExcludeMarker,
		Cutoff:          cutoff,
		DefaultInterval: deps.Config.DefaultInterval(),
	}, deps.logger())
}

// validateOutputDir fails fast on a missing or unwritable output directory,
// before any indexing work starts.
func validateOutputDir(dir string) error {
	if dir == "" {
		return errors.NewInvalidRequest("output directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("output directory not writable: %v", err))
	}
	probe, err := os.CreateTemp(dir, ".sunlapse-probe-")
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("output directory not writable: %v", err))
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

// recordRender writes a manifest row for a produced video. Manifest failures
// are absorbed: history is best-effort and never fails a render.
func recordRender(deps *Deps, clip RenderedClip, windowStart, windowEnd time.Time) {
	if deps.DB == nil {
		return
	}
	err := manifest.Insert(deps.DB, &manifest.Record{
		Date:        clip.Date,
		Label:       clip.Label,
		OutputPath:  clip.Output,
		FrameCount:  clip.Frames,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	})
	if err != nil {
		deps.logger().Warn("manifest record failed", "output", clip.Output, "err", err)
	}
}

// civilDay truncates t to midnight in loc.
func civilDay(t time.Time, loc *time.Location) time.Time {
	year, month, day := t.In(loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// coveredBySpan reports whether the event falls inside the archive span,
// padded by eventSpanBuffer on both sides.
func coveredBySpan(event, start, end time.Time) bool {
	return !event.Before(start.Add(-eventSpanBuffer)) && !event.After(end.Add(eventSpanBuffer))
}
