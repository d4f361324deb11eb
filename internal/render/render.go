// Package render turns an ordered frame list into a video file through the
// external ffmpeg binary. The encoder's internals are not this system's
// concern; this package owns only the invocation contract: staging, filter
// selection, output naming, and the overwrite policy.
package render

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "image/jpeg" // frame header probing

	"github.com/hbb4/time-lapse/internal/errors"
	"github.com/hbb4/time-lapse/internal/timeline"
)

// Options configure one encode.
type Options struct {
	FPS int
	CRF int

	// Captions burns each frame's formatted timestamp into the video.
	Captions bool

	// Overwrite replaces an existing output file. When false the caller is
	// expected to have skipped existing outputs already; ffmpeg still runs
	// with -n as a backstop.
	Overwrite bool
}

// Encoder produces a video from an ordered frame list.
type Encoder interface {
	Encode(ctx context.Context, frames []timeline.Frame, outPath string, opts Options) error
}

// OutputName builds the conventional output file name, {date}_{label}.mp4.
func OutputName(date time.Time, label string) string {
	return date.Format("2006-01-02") + "_" + label + ".mp4"
}

// ShouldSkip reports whether an existing output at path makes this
// invocation a no-op under the skip policy.
func ShouldSkip(path string, overwrite bool) bool {
	if overwrite {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// FFmpeg encodes through the ffmpeg binary on PATH.
type FFmpeg struct {
	Binary string
	Logger *slog.Logger
}

// NewFFmpeg returns an encoder using the ffmpeg on PATH.
func NewFFmpeg(logger *slog.Logger) *FFmpeg {
	return &FFmpeg{Binary: "ffmpeg", Logger: logger}
}

// Encode stages the frames as a numbered symlink sequence in a temp
// directory and runs ffmpeg over it. Portrait normalization rotates the
// video 270 degrees when the source frames are wider than tall.
func (f *FFmpeg) Encode(ctx context.Context, frames []timeline.Frame, outPath string, opts Options) error {
	if len(frames) == 0 {
		return errors.NewInvalidRequest("no frames to encode")
	}

	stageDir, err := os.MkdirTemp("", "sunlapse-stage-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stageDir)

	if err := stageFrames(stageDir, frames); err != nil {
		return err
	}

	var captionPath string
	if opts.Captions {
		captionPath = filepath.Join(stageDir, "captions.cmd")
		if err := os.WriteFile(captionPath, []byte(captionScript(frames, opts.FPS)), 0644); err != nil {
			return fmt.Errorf("write caption script: %w", err)
		}
	}

	rotate := landscape(frames[0].Path)
	args := buildArgs(stageDir, outPath, captionPath, rotate, opts)

	cmd := exec.CommandContext(ctx, f.Binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.NewExternalTool("ffmpeg", fmt.Errorf("%v: %s", err, tail(string(out), 400)))
	}

	if f.Logger != nil {
		f.Logger.Info("encoded video", "output", outPath, "frames", len(frames))
	}
	return nil
}

// stageFrames links the ordered frames into dir as frame_%09d.jpg.
func stageFrames(dir string, frames []timeline.Frame) error {
	for i, frame := range frames {
		abs, err := filepath.Abs(frame.Path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", frame.Path, err)
		}
		link := filepath.Join(dir, fmt.Sprintf("frame_%09d.jpg", i+1))
		if err := os.Symlink(abs, link); err != nil {
			return fmt.Errorf("stage frame %d: %w", i+1, err)
		}
	}
	return nil
}

// captionScript emits an ffmpeg sendcmd script that retargets the drawtext
// filter to each frame's timestamp at that frame's presentation time.
func captionScript(frames []timeline.Frame, fps int) string {
	var b strings.Builder
	for i, frame := range frames {
		t := float64(i) / float64(fps)
		text := strings.ReplaceAll(frame.Timestamp.Format("2006-01-02 15:04:05"), ":", "\\:")
		fmt.Fprintf(&b, "%.4f drawtext reinit 'text=%s';\n", t, text)
	}
	return b.String()
}

// buildArgs assembles the ffmpeg invocation.
func buildArgs(stageDir, outPath, captionPath string, rotate bool, opts Options) []string {
	overwriteFlag := "-n"
	if opts.Overwrite {
		overwriteFlag = "-y"
	}

	args := []string{
		"-loglevel", "error",
		overwriteFlag,
		"-framerate", strconv.Itoa(opts.FPS),
		"-i", filepath.Join(stageDir, "frame_%09d.jpg"),
	}

	var filters []string
	if rotate {
		// 270 degree rotation normalizes landscape sources to portrait.
		filters = append(filters, "transpose=2")
	}
	if captionPath != "" {
		filters = append(filters,
			"sendcmd=f="+captionPath,
			"drawtext=text='':fontsize=40:fontcolor=white@0.8:x=w-tw-40:y=h-th-40")
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}

	args = append(args,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(opts.CRF),
		"-pix_fmt", "yuv420p",
		outPath,
	)
	return args
}

// landscape reports whether the image at path is wider than tall. Only the
// header is decoded; unreadable files count as portrait.
func landscape(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return false
	}
	return cfg.Width > cfg.Height
}

// tail returns the last n bytes of s for compact error reporting.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
