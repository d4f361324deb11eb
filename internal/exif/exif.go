// Package exif reads frame capture times through the external exiftool
// binary. Only the first and last frames of a session are ever read, so a
// process spawn per call is acceptable.
package exif

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/hbb4/time-lapse/internal/errors"
)

// timestampLayout matches the -d pattern passed to exiftool.
const timestampLayout = "2006-01-02 15:04:05"

// Reader reads capture times via exiftool, interpreting the embedded local
// timestamps in a fixed location.
type Reader struct {
	// Binary is the exiftool executable; defaults to "exiftool" on PATH.
	Binary string

	// Loc is the location the camera's wall-clock timestamps are in.
	Loc *time.Location
}

// NewReader returns a Reader using the exiftool on PATH.
func NewReader(loc *time.Location) *Reader {
	return &Reader{Binary: "exiftool", Loc: loc}
}

// CaptureTime returns the frame's original capture time, falling back to the
// file-creation field when the camera did not record one. A frame with
// neither field yields ErrMetadataUnavailable; a tool failure yields
// ErrExternalTool.
func (r *Reader) CaptureTime(ctx context.Context, path string) (time.Time, error) {
	cmd := exec.CommandContext(ctx, r.Binary,
		"-DateTimeOriginal", "-CreateDate",
		"-d", "%Y-%m-%d %H:%M:%S", "-s3",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return time.Time{}, errors.NewExternalTool("exiftool", err)
	}
	return r.parse(string(out), path)
}

// parse extracts the first timestamp line from exiftool output. The tool
// prints DateTimeOriginal first when present, then CreateDate, so taking the
// first non-empty line implements the fallback order.
func (r *Reader) parse(output, path string) (time.Time, error) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ts, err := time.ParseInLocation(timestampLayout, line, r.Loc)
		if err != nil {
			return time.Time{}, errors.NewMetadataUnavailable(path)
		}
		return ts, nil
	}
	return time.Time{}, errors.NewMetadataUnavailable(path)
}
