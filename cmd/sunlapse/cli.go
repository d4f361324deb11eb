package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hbb4/time-lapse/internal/config"
	"github.com/hbb4/time-lapse/internal/deps"
	"github.com/hbb4/time-lapse/internal/errors"
	"github.com/hbb4/time-lapse/internal/exif"
	"github.com/hbb4/time-lapse/internal/ops"
	"github.com/hbb4/time-lapse/internal/render"
)

// loggerFunc builds the process logger; verbose enables debug output.
type loggerFunc func(verbose bool) *slog.Logger

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, mkLogger loggerFunc) *cli.App {
	app := &cli.App{
		Name:    "sunlapse",
		Usage:   "Render sunrise, sunset and golden-hour videos from a timelapse frame archive",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to a config file overriding ~/.sunlapse/config.json"},
			&cli.BoolFlag{Name: "verbose", Usage: "Enable debug logging"},
		},
		Commands: []*cli.Command{
			scanCmd(db, cfg, mkLogger),
			eventsCmd(db, cfg, mkLogger),
			goldenhourCmd(db, cfg, mkLogger),
			rewindCmd(db, cfg, mkLogger),
			historyCmd(db, cfg, mkLogger),
			doctorCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// buildDeps assembles the operation collaborators from flags and config.
func buildDeps(c *cli.Context, db *sql.DB, cfg *config.Config, mkLogger loggerFunc) (*ops.Deps, error) {
	if path := c.String("config"); path != "" {
		override, err := config.LoadFile(path)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("config file: %v", err))
		}
		cfg = override
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("timezone: %v", err))
	}

	logger := slog.Default()
	if mkLogger != nil {
		logger = mkLogger(c.Bool("verbose"))
	}

	return &ops.Deps{
		Config:  cfg,
		Loc:     loc,
		Reader:  exif.NewReader(loc),
		Encoder: render.NewFFmpeg(logger),
		DB:      db,
		Logger:  logger,
	}, nil
}

// renderFlags are shared by every command that produces video. The golden
// hour variants caption their frames unless told otherwise; event clips do
// not.
func renderFlags(captionsDefault bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "archive", Aliases: []string{"a"}, Required: true, Usage: "Frame archive root directory"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: ".", Usage: "Output directory for videos"},
		&cli.StringFlag{Name: "cutoff", Usage: "Skip sessions older than this (YYYY-MM-DD or Nd, e.g. 14d)"},
		&cli.BoolFlag{Name: "overwrite", Usage: "Re-render outputs that already exist"},
		&cli.BoolFlag{Name: "captions", Value: captionsDefault, Usage: "Burn per-frame capture-time captions into the video"},
	}
}

// scanCmd creates the scan command.
func scanCmd(db *sql.DB, cfg *config.Config, mkLogger loggerFunc) *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Index the archive and report its shape without rendering",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "archive", Aliases: []string{"a"}, Required: true, Usage: "Frame archive root directory"},
			&cli.StringFlag{Name: "cutoff", Usage: "Skip sessions older than this (YYYY-MM-DD or Nd, e.g. 14d)"},
		},
		Action: func(c *cli.Context) error {
			d, err := buildDeps(c, db, cfg, mkLogger)
			if err != nil {
				return outputError(err)
			}

			cutoff, err := parseCutoff(c.String("cutoff"), d.Loc)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Scan(c.Context, d, ops.ScanInput{
				Archive: c.String("archive"),
				Cutoff:  cutoff,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// eventsCmd creates the events command.
func eventsCmd(db *sql.DB, cfg *config.Config, mkLogger loggerFunc) *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Render a clip for every sunrise and sunset the archive covers",
		Flags: append(renderFlags(false),
			&cli.StringFlag{Name: "from", Usage: "First calendar date to consider (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "to", Usage: "Last calendar date to consider (YYYY-MM-DD)"},
			&cli.BoolFlag{Name: "overlap", Usage: "Place sunrise deeper into the clip for overlapping timelapses"},
		),
		Action: func(c *cli.Context) error {
			d, err := buildDeps(c, db, cfg, mkLogger)
			if err != nil {
				return outputError(err)
			}

			input := ops.EventsInput{
				Archive:   c.String("archive"),
				OutputDir: c.String("output"),
				Overlap:   c.Bool("overlap"),
				Overwrite: c.Bool("overwrite"),
				Captions:  c.Bool("captions"),
			}
			if input.Cutoff, err = parseCutoff(c.String("cutoff"), d.Loc); err != nil {
				return outputError(err)
			}
			if input.From, err = parseDate(c.String("from"), d.Loc); err != nil {
				return outputError(err)
			}
			if input.To, err = parseDate(c.String("to"), d.Loc); err != nil {
				return outputError(err)
			}

			output, err := ops.Events(c.Context, d, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// goldenhourCmd creates the goldenhour command.
func goldenhourCmd(db *sql.DB, cfg *config.Config, mkLogger loggerFunc) *cli.Command {
	return &cli.Command{
		Name:  "goldenhour",
		Usage: "Render the wide evening window around each date's sunset",
		Flags: append(renderFlags(true),
			&cli.StringSliceFlag{Name: "date", Aliases: []string{"d"}, Usage: "Calendar date to render (YYYY-MM-DD, repeatable; default all archive dates)"},
		),
		Action: func(c *cli.Context) error {
			d, err := buildDeps(c, db, cfg, mkLogger)
			if err != nil {
				return outputError(err)
			}

			input := ops.GoldenHourInput{
				Archive:   c.String("archive"),
				OutputDir: c.String("output"),
				Overwrite: c.Bool("overwrite"),
				Captions:  c.Bool("captions"),
			}
			if input.Cutoff, err = parseCutoff(c.String("cutoff"), d.Loc); err != nil {
				return outputError(err)
			}
			for _, s := range c.StringSlice("date") {
				date, err := parseDate(s, d.Loc)
				if err != nil {
					return outputError(err)
				}
				input.Dates = append(input.Dates, date)
			}

			output, err := ops.GoldenHour(c.Context, d, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// rewindCmd creates the rewind command.
func rewindCmd(db *sql.DB, cfg *config.Config, mkLogger loggerFunc) *cli.Command {
	return &cli.Command{
		Name:  "rewind",
		Usage: "Render one date's dusk sequence with a reverse-replay tail",
		Flags: append(renderFlags(true),
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Required: true, Usage: "Calendar date to render (YYYY-MM-DD)"},
		),
		Action: func(c *cli.Context) error {
			d, err := buildDeps(c, db, cfg, mkLogger)
			if err != nil {
				return outputError(err)
			}

			date, err := parseDate(c.String("date"), d.Loc)
			if err != nil {
				return outputError(err)
			}

			input := ops.RewindInput{
				Archive:   c.String("archive"),
				OutputDir: c.String("output"),
				Date:      date,
				Overwrite: c.Bool("overwrite"),
				Captions:  c.Bool("captions"),
			}
			if input.Cutoff, err = parseCutoff(c.String("cutoff"), d.Loc); err != nil {
				return outputError(err)
			}

			output, err := ops.Rewind(c.Context, d, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(db *sql.DB, cfg *config.Config, mkLogger loggerFunc) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List previously rendered videos, most recent first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultHistoryLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			d, err := buildDeps(c, db, cfg, mkLogger)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.History(d, ops.HistoryInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// doctorCmd creates the doctor command.
func doctorCmd() *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Check that exiftool and ffmpeg are installed",
		Action: func(_ *cli.Context) error {
			errs := deps.CheckAll()
			if len(errs) == 0 {
				fmt.Println("all external tools found")
				return nil
			}
			for _, err := range errs {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
			return cli.Exit("", 1)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if sErr, ok := err.(*errors.Error); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseDate parses a YYYY-MM-DD flag value; empty means unset.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, errors.NewInvalidRequest(fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s))
	}
	return t, nil
}

// parseCutoff parses a cutoff flag: either an absolute YYYY-MM-DD date or a
// relative "Nd" window back from today, e.g. 14d.
func parseCutoff(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil || days < 0 {
			return time.Time{}, errors.NewInvalidRequest(fmt.Sprintf("invalid cutoff %q, want YYYY-MM-DD or Nd", s))
		}
		return time.Now().In(loc).AddDate(0, 0, -days), nil
	}
	return parseDate(s, loc)
}
