package ops

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hbb4/time-lapse/internal/config"
	"github.com/hbb4/time-lapse/internal/errors"
	"github.com/hbb4/time-lapse/internal/render"
	"github.com/hbb4/time-lapse/internal/timeline"
)

// fakeReader serves capture times from a map, keyed by file path.
type fakeReader struct {
	times map[string]time.Time
}

func (r *fakeReader) CaptureTime(_ context.Context, path string) (time.Time, error) {
	ts, ok := r.times[path]
	if !ok {
		return time.Time{}, errors.NewMetadataUnavailable(path)
	}
	return ts, nil
}

// encodeCall captures one Encode invocation.
type encodeCall struct {
	Frames  []timeline.Frame
	OutPath string
	Opts    render.Options
}

// fakeEncoder records calls and creates empty output files so the skip
// policy sees them on subsequent runs.
type fakeEncoder struct {
	mu    sync.Mutex
	calls []encodeCall
	fail  bool
}

func (e *fakeEncoder) Encode(_ context.Context, frames []timeline.Frame, outPath string, opts render.Options) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail {
		return errors.NewExternalTool("ffmpeg", fmt.Errorf("exit status 1"))
	}
	e.calls = append(e.calls, encodeCall{Frames: frames, OutPath: outPath, Opts: opts})
	return os.WriteFile(outPath, nil, 0644)
}

func pacific(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return loc
}

// writeSession creates count empty frame files under dir and registers the
// boundary capture times with the reader at the given interval.
func writeSession(t *testing.T, reader *fakeReader, dir string, count int, first time.Time, interval time.Duration) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for i := 1; i <= count; i++ {
		path := filepath.Join(dir, fmt.Sprintf("TLS_%09d.jpg", i))
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	reader.times[filepath.Join(dir, "TLS_000000001.jpg")] = first
	reader.times[filepath.Join(dir, fmt.Sprintf("TLS_%09d.jpg", count))] = first.Add(time.Duration(count-1) * interval)
}

// newDeps builds test deps with fakes and no manifest.
func newDeps(t *testing.T, reader *fakeReader, encoder *fakeEncoder) *Deps {
	t.Helper()
	return &Deps{
		Config:  config.DefaultConfig(),
		Loc:     pacific(t),
		Reader:  reader,
		Encoder: encoder,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// duskArchive builds an archive whose single session covers the afternoon
// and evening of 2025-12-15 Pacific time (14:00 to 21:00 at 10 second
// intervals, 2521 frames). Sunset that day is 16:51:51 PST.
func duskArchive(t *testing.T, reader *fakeReader) string {
	t.Helper()
	root := t.TempDir()
	loc := pacific(t)
	first := time.Date(2025, time.December, 15, 14, 0, 0, 0, loc)
	writeSession(t, reader, filepath.Join(root, "20251215"), 2521, first, 10*time.Second)
	return root
}
