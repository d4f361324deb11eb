package timeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// BuildOptions control archive scanning.
type BuildOptions struct {
	// Prefix and Ext define the session naming convention; a directory's
	// session is its lexically sorted Prefix*Ext files.
	Prefix string
	Ext    string

	// ExcludeMarker skips any subtree whose path contains it (derived
	// thumbnails and similar).
	ExcludeMarker string

	// Cutoff, when non-zero, drops whole sessions whose first real timestamp
	// predates it. The check runs after a single metadata read, so
	// out-of-range sessions never cost more than one read.
	Cutoff time.Time

	// DefaultInterval is the frame spacing assumed for a session whose
	// boundary timestamps do not yield one.
	DefaultInterval time.Duration
}

// Index is a globally time-sorted sequence of frames over an entire archive.
// It is built once and never mutated; queries are safe to run concurrently.
type Index struct {
	frames []Frame

	// Sessions and Skipped count the directories that contributed frames and
	// the ones dropped: unreadable or out-of-range timestamps, or a subtree
	// the walk itself could not read.
	Sessions int
	Skipped  int
}

// Build scans root recursively, groups matching files per directory into
// capture sessions, interpolates each session's timestamps from its first and
// last frames, and merges everything into one index sorted ascending by
// timestamp. Frames with equal timestamps keep their discovery order.
//
// A session is atomic: if either boundary read fails the whole directory is
// skipped and logged, never the run. Metadata cost stays at two reads per
// session regardless of session size.
func Build(ctx context.Context, root string, reader MetadataReader, opts BuildOptions, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	type session struct {
		dir   string
		names []string
	}
	var sessions []session
	var unreadable int

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A subtree the walk cannot read is one skipped unit, not a
			// failed run. Only an unreadable root is fatal.
			if path == root {
				return err
			}
			logger.Warn("skipping unreadable directory", "dir", path, "err", err)
			unreadable++
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if opts.ExcludeMarker != "" && strings.Contains(path, opts.ExcludeMarker) {
			return fs.SkipDir
		}

		names, err := sessionFiles(path, opts.Prefix, opts.Ext)
		if err != nil {
			return err
		}
		if len(names) > 0 {
			sessions = append(sessions, session{dir: path, names: names})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	idx := &Index{Skipped: unreadable}
	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		first, err := reader.CaptureTime(ctx, joinPath(s.dir, s.names[0]))
		if err != nil {
			logger.Warn("skipping session: first frame unreadable", "dir", s.dir, "err", err)
			idx.Skipped++
			continue
		}
		if !opts.Cutoff.IsZero() && first.Before(opts.Cutoff) {
			idx.Skipped++
			continue
		}
		last, err := reader.CaptureTime(ctx, joinPath(s.dir, s.names[len(s.names)-1]))
		if err != nil {
			logger.Warn("skipping session: last frame unreadable", "dir", s.dir, "err", err)
			idx.Skipped++
			continue
		}

		idx.frames = append(idx.frames, Interpolate(s.dir, s.names, first, last, opts.DefaultInterval)...)
		idx.Sessions++
	}

	// One sort over the whole accumulator; stable so that equal timestamps
	// keep discovery order.
	sort.SliceStable(idx.frames, func(i, j int) bool {
		return idx.frames[i].Timestamp.Before(idx.frames[j].Timestamp)
	})

	logger.Info("archive indexed", "frames", len(idx.frames), "sessions", idx.Sessions, "skipped", idx.Skipped)
	return idx, nil
}

// sessionFiles returns the directory's matching file names, sorted.
func sessionFiles(dir, prefix, ext string) ([]string, error) {
	entries, err := filepath.Glob(filepath.Join(dir, prefix+"*"+ext))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, filepath.Base(e))
	}
	sort.Strings(names)
	return names, nil
}

func joinPath(dir, name string) string {
	return filepath.Join(dir, name)
}

// Len returns the number of indexed frames.
func (idx *Index) Len() int {
	return len(idx.frames)
}

// Span returns the timestamps of the first and last frames.
// ok is false for an empty index.
func (idx *Index) Span() (start, end time.Time, ok bool) {
	if len(idx.frames) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return idx.frames[0].Timestamp, idx.frames[len(idx.frames)-1].Timestamp, true
}

// RangeByTime returns the ordered frames with start <= timestamp <= end,
// inclusive on both sides.
func (idx *Index) RangeByTime(start, end time.Time) []Frame {
	lo := sort.Search(len(idx.frames), func(i int) bool {
		return !idx.frames[i].Timestamp.Before(start)
	})
	hi := sort.Search(len(idx.frames), func(i int) bool {
		return idx.frames[i].Timestamp.After(end)
	})
	if lo >= hi {
		return nil
	}
	return idx.frames[lo:hi]
}

// RangeByAnchor returns a window of total frames positioned so that
// floor(total*centerRatio) of them fall before the first frame at or after
// anchor. The window is clamped to the archive: when its right edge would
// pass the end, the whole window shifts left instead of coming up short, so
// the result always holds min(total, Len()) frames.
func (idx *Index) RangeByAnchor(anchor time.Time, total int, centerRatio float64) []Frame {
	if total <= 0 || len(idx.frames) == 0 {
		return nil
	}

	anchorIdx := sort.Search(len(idx.frames), func(i int) bool {
		return !idx.frames[i].Timestamp.Before(anchor)
	})

	before := int(float64(total) * centerRatio)
	start := max(anchorIdx-before, 0)
	end := start + total
	if end > len(idx.frames) {
		end = len(idx.frames)
		start = max(end-total, 0)
	}
	return idx.frames[start:end]
}
