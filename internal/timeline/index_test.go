package timeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hbb4/time-lapse/internal/errors"
)

// fakeReader serves capture times from a map, keyed by file path.
type fakeReader struct {
	times map[string]time.Time
	reads int
}

func (r *fakeReader) CaptureTime(_ context.Context, path string) (time.Time, error) {
	r.reads++
	ts, ok := r.times[path]
	if !ok {
		return time.Time{}, errors.NewMetadataUnavailable(path)
	}
	return ts, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeSession creates count empty frame files under dir and registers the
// boundary capture times with the reader.
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
	reader.times[filepath.Join(dir, fmt.Sprintf("TLS_%09d.jpg", 1))] = first
	reader.times[filepath.Join(dir, fmt.Sprintf("TLS_%09d.jpg", count))] = first.Add(time.Duration(count-1) * interval)
}

func defaultOpts() BuildOptions {
	return BuildOptions{Prefix: "TLS_", Ext: ".jpg", ExcludeMarker: "thumbnail"}
}

func TestBuild_SortedAcrossSessions(t *testing.T) {
	root := t.TempDir()
	reader := &fakeReader{times: map[string]time.Time{}}

	base := time.Date(2025, time.October, 1, 6, 0, 0, 0, time.UTC)
	// Deliberately reversed: the lexically later directory holds earlier
	// frames, so sortedness must come from the final sort, not from
	// visitation order.
	writeSession(t, reader, filepath.Join(root, "a_later"), 5, base.Add(time.Hour), 10*time.Second)
	writeSession(t, reader, filepath.Join(root, "b_earlier"), 5, base, 10*time.Second)

	idx, err := Build(context.Background(), root, reader, defaultOpts(), quietLogger())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if idx.Len() != 10 {
		t.Fatalf("Len = %d, want 10", idx.Len())
	}
	if idx.Sessions != 2 {
		t.Errorf("Sessions = %d, want 2", idx.Sessions)
	}

	start, end, ok := idx.Span()
	if !ok {
		t.Fatal("Span not ok")
	}
	if !start.Equal(base) {
		t.Errorf("span start = %s, want %s", start, base)
	}
	if !end.Equal(base.Add(time.Hour + 40*time.Second)) {
		t.Errorf("span end = %s", end)
	}

	all := idx.RangeByTime(start, end)
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.Before(all[i-1].Timestamp) {
			t.Fatalf("frames out of order at %d: %s < %s", i, all[i].Timestamp, all[i-1].Timestamp)
		}
	}
}

func TestBuild_TwoReadsPerSession(t *testing.T) {
	root := t.TempDir()
	reader := &fakeReader{times: map[string]time.Time{}}
	writeSession(t, reader, filepath.Join(root, "big"), 200, time.Date(2025, time.October, 1, 6, 0, 0, 0, time.UTC), 10*time.Second)

	if _, err := Build(context.Background(), root, reader, defaultOpts(), quietLogger()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Indexing cost is O(sessions), not O(frames).
	if reader.reads != 2 {
		t.Errorf("metadata reads = %d, want 2", reader.reads)
	}
}

func TestBuild_SkipsThumbnailSubtree(t *testing.T) {
	root := t.TempDir()
	reader := &fakeReader{times: map[string]time.Time{}}

	base := time.Date(2025, time.October, 1, 6, 0, 0, 0, time.UTC)
	writeSession(t, reader, filepath.Join(root, "session"), 3, base, 10*time.Second)
	writeSession(t, reader, filepath.Join(root, "session", "thumbnail"), 3, base, 10*time.Second)

	idx, err := Build(context.Background(), root, reader, defaultOpts(), quietLogger())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if idx.Len() != 3 {
		t.Errorf("Len = %d, want 3 (thumbnail subtree must be excluded)", idx.Len())
	}
}

func TestBuild_SkipsUnreadableSessionAtomically(t *testing.T) {
	root := t.TempDir()
	reader := &fakeReader{times: map[string]time.Time{}}

	base := time.Date(2025, time.October, 1, 6, 0, 0, 0, time.UTC)
	writeSession(t, reader, filepath.Join(root, "good"), 3, base, 10*time.Second)
	writeSession(t, reader, filepath.Join(root, "bad"), 3, base.Add(time.Hour), 10*time.Second)
	// Break the bad session's last frame metadata.
	delete(reader.times, filepath.Join(root, "bad", "TLS_000000003.jpg"))

	idx, err := Build(context.Background(), root, reader, defaultOpts(), quietLogger())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// The whole bad session is dropped, not individual frames.
	if idx.Len() != 3 {
		t.Errorf("Len = %d, want 3", idx.Len())
	}
	if idx.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", idx.Skipped)
	}
}

func TestBuild_SkipsUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions do not apply to root")
	}

	root := t.TempDir()
	reader := &fakeReader{times: map[string]time.Time{}}

	base := time.Date(2025, time.October, 1, 6, 0, 0, 0, time.UTC)
	writeSession(t, reader, filepath.Join(root, "good"), 3, base, 10*time.Second)

	locked := filepath.Join(root, "locked")
	writeSession(t, reader, locked, 3, base.Add(time.Hour), 10*time.Second)
	if err := os.Chmod(locked, 0000); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	idx, err := Build(context.Background(), root, reader, defaultOpts(), quietLogger())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// The unreadable subtree is one skipped unit; the rest of the archive
	// still indexes.
	if idx.Len() != 3 {
		t.Errorf("Len = %d, want 3", idx.Len())
	}
	if idx.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", idx.Skipped)
	}
}

func TestBuild_CutoffSkipsOldSessions(t *testing.T) {
	root := t.TempDir()
	reader := &fakeReader{times: map[string]time.Time{}}

	old := time.Date(2025, time.March, 1, 6, 0, 0, 0, time.UTC)
	recent := time.Date(2025, time.October, 1, 6, 0, 0, 0, time.UTC)
	writeSession(t, reader, filepath.Join(root, "old"), 50, old, 10*time.Second)
	writeSession(t, reader, filepath.Join(root, "recent"), 5, recent, 10*time.Second)

	opts := defaultOpts()
	opts.Cutoff = time.Date(2025, time.September, 23, 0, 0, 0, 0, time.UTC)

	idx, err := Build(context.Background(), root, reader, opts, quietLogger())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if idx.Len() != 5 {
		t.Errorf("Len = %d, want 5", idx.Len())
	}
	// The old session costs exactly one read: the cutoff check runs before
	// the last-frame read.
	if reader.reads != 3 {
		t.Errorf("metadata reads = %d, want 3", reader.reads)
	}
}

func TestBuild_IgnoresNonMatchingDirectories(t *testing.T) {
	root := t.TempDir()
	reader := &fakeReader{times: map[string]time.Time{}}

	other := filepath.Join(root, "notes")
	if err := os.MkdirAll(other, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(other, "readme.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(other, "IMG_0001.jpg"), nil, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	idx, err := Build(context.Background(), root, reader, defaultOpts(), quietLogger())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if idx.Len() != 0 || idx.Sessions != 0 || idx.Skipped != 0 {
		t.Errorf("got len=%d sessions=%d skipped=%d, want all zero", idx.Len(), idx.Sessions, idx.Skipped)
	}
}

// indexOf builds an index directly from evenly spaced frames for query tests.
func indexOf(n int, start time.Time, interval time.Duration) *Index {
	idx := &Index{}
	for i := 0; i < n; i++ {
		idx.frames = append(idx.frames, Frame{
			Timestamp: start.Add(time.Duration(i) * interval),
			Path:      fmt.Sprintf("/archive/TLS_%09d.jpg", i+1),
		})
	}
	return idx
}

func TestRangeByTime_InclusiveBothEnds(t *testing.T) {
	base := time.Date(2025, time.October, 1, 12, 0, 0, 0, time.UTC)
	idx := indexOf(10, base, time.Minute)

	got := idx.RangeByTime(base.Add(2*time.Minute), base.Add(5*time.Minute))
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if !got[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("first = %s", got[0].Timestamp)
	}
	if !got[3].Timestamp.Equal(base.Add(5 * time.Minute)) {
		t.Errorf("last = %s", got[3].Timestamp)
	}

	if got := idx.RangeByTime(base.Add(time.Hour), base.Add(2*time.Hour)); len(got) != 0 {
		t.Errorf("out-of-span query returned %d frames", len(got))
	}
}

func TestRangeByAnchor_CenterRatio(t *testing.T) {
	base := time.Date(2025, time.October, 1, 12, 0, 0, 0, time.UTC)
	idx := indexOf(1000, base, time.Second)

	anchor := base.Add(500 * time.Second) // frame index 500
	got := idx.RangeByAnchor(anchor, 100, 0.45)

	if len(got) != 100 {
		t.Fatalf("len = %d, want 100", len(got))
	}
	// floor(100*0.45) = 45 frames before the anchor.
	if !got[45].Timestamp.Equal(anchor) {
		t.Errorf("anchor frame at wrong position: got[45] = %s, want %s", got[45].Timestamp, anchor)
	}
}

func TestRangeByAnchor_ClampedAtStart(t *testing.T) {
	base := time.Date(2025, time.October, 1, 12, 0, 0, 0, time.UTC)
	idx := indexOf(1000, base, time.Second)

	// Anchor near the start: the window cannot extend before frame 0.
	got := idx.RangeByAnchor(base.Add(10*time.Second), 100, 0.5)
	if len(got) != 100 {
		t.Fatalf("len = %d, want 100", len(got))
	}
	if !got[0].Timestamp.Equal(base) {
		t.Errorf("first = %s, want archive start", got[0].Timestamp)
	}
}

func TestRangeByAnchor_ShiftsLeftAtEnd(t *testing.T) {
	base := time.Date(2025, time.October, 1, 12, 0, 0, 0, time.UTC)
	idx := indexOf(1000, base, time.Second)

	// Anchor near the end: the window shifts left to stay full-length
	// rather than truncating.
	got := idx.RangeByAnchor(base.Add(990*time.Second), 100, 0.5)
	if len(got) != 100 {
		t.Fatalf("len = %d, want 100", len(got))
	}
	if !got[99].Timestamp.Equal(base.Add(999 * time.Second)) {
		t.Errorf("last = %s, want archive end", got[99].Timestamp)
	}
	if !got[0].Timestamp.Equal(base.Add(900 * time.Second)) {
		t.Errorf("first = %s, want end-100", got[0].Timestamp)
	}
}

func TestRangeByAnchor_SmallArchive(t *testing.T) {
	base := time.Date(2025, time.October, 1, 12, 0, 0, 0, time.UTC)
	idx := indexOf(30, base, time.Second)

	// Requesting more frames than exist returns the whole archive.
	got := idx.RangeByAnchor(base.Add(15*time.Second), 100, 0.5)
	if len(got) != 30 {
		t.Fatalf("len = %d, want 30", len(got))
	}
}
