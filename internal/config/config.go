package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Config holds application configuration. Every policy value that differs
// between the render variants (ratios, offsets, caps, rewind length) is a
// named field here rather than a constant buried in an operation.
type Config struct {
	// Latitude and Longitude of the camera, in degrees. East and north
	// are positive.
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// Timezone is the IANA name of the camera's timezone. Event times and
	// window caps are expressed in this zone.
	Timezone string `json:"timezone"`

	// FramePrefix, FrameExt, and ExcludeMarker define the archive naming
	// convention: a capture session is a directory of FramePrefix*FrameExt
	// files, and any directory whose path contains ExcludeMarker is skipped.
	FramePrefix   string `json:"frame_prefix"`
	FrameExt      string `json:"frame_ext"`
	ExcludeMarker string `json:"exclude_marker"`

	// ClipDurationSec and FPS size ratio-centered clips:
	// frame count = duration * fps.
	ClipDurationSec int `json:"clip_duration_sec"`
	FPS             int `json:"fps"`

	// CRF is the x264 quality factor passed to the encoder.
	CRF int `json:"crf"`

	// SunriseRatio and SunsetRatio position the event within a ratio-centered
	// clip: the fraction of the clip that falls before the event. The overlap
	// variant shifts sunrise further in.
	SunriseRatio        float64 `json:"sunrise_ratio"`
	SunsetRatio         float64 `json:"sunset_ratio"`
	OverlapSunriseRatio float64 `json:"overlap_sunrise_ratio"`

	// GoldenHourLeadMin and GoldenHourTailMin bound the golden-hour window
	// around sunset. StartCapHour and EndCapHour are the wall-clock caps:
	// the window never starts later than StartCapHour nor ends later than
	// EndCapHour local time.
	GoldenHourLeadMin int `json:"golden_hour_lead_min"`
	GoldenHourTailMin int `json:"golden_hour_tail_min"`
	StartCapHour      int `json:"start_cap_hour"`
	EndCapHour        int `json:"end_cap_hour"`

	// RewindFrames is the target length of the reverse-replay tail,
	// about 1.5 seconds at 30 fps.
	RewindFrames int `json:"rewind_frames"`

	// DefaultIntervalSec is the assumed capture interval for a session whose
	// boundary timestamps do not yield one (equal or inverted metadata).
	DefaultIntervalSec int `json:"default_interval_sec"`
}

// DefaultConfig returns the default configuration: the San Francisco camera
// with the tuned policy values.
func DefaultConfig() *Config {
	return &Config{
		Latitude:            37.791667734079596,
		Longitude:           -122.41549323195979,
		Timezone:            "America/Los_Angeles",
		FramePrefix:         "TLS_",
		FrameExt:            ".jpg",
		ExcludeMarker:       "thumbnail",
		ClipDurationSec:     60,
		FPS:                 30,
		CRF:                 18,
		SunriseRatio:        0.45,
		SunsetRatio:         0.5,
		OverlapSunriseRatio: 0.7,
		GoldenHourLeadMin:   150,
		GoldenHourTailMin:   120,
		StartCapHour:        17,
		EndCapHour:          21,
		RewindFrames:        45,
		DefaultIntervalSec:  10,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir().
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadFile loads configuration from an explicit path, for the --config flag.
func LoadFile(path string) (*Config, error) {
	return loadFile(path)
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// ClipFrames returns the frame count of a ratio-centered clip.
func (c *Config) ClipFrames() int {
	return c.ClipDurationSec * c.FPS
}

// DefaultInterval returns the fallback capture interval as a duration.
func (c *Config) DefaultInterval() time.Duration {
	return time.Duration(c.DefaultIntervalSec) * time.Second
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence when non-zero; a zero in the overlay means
// "not set", so a policy cannot be overridden to literal zero from the file.
func Merge(base, overlay *Config) *Config {
	result := *base

	if overlay.Latitude != 0 {
		result.Latitude = overlay.Latitude
	}
	if overlay.Longitude != 0 {
		result.Longitude = overlay.Longitude
	}
	if overlay.Timezone != "" {
		result.Timezone = overlay.Timezone
	}
	if overlay.FramePrefix != "" {
		result.FramePrefix = overlay.FramePrefix
	}
	if overlay.FrameExt != "" {
		result.FrameExt = overlay.FrameExt
	}
	if overlay.ExcludeMarker != "" {
		result.ExcludeMarker = overlay.ExcludeMarker
	}
	if overlay.ClipDurationSec != 0 {
		result.ClipDurationSec = overlay.ClipDurationSec
	}
	if overlay.FPS != 0 {
		result.FPS = overlay.FPS
	}
	if overlay.CRF != 0 {
		result.CRF = overlay.CRF
	}
	if overlay.SunriseRatio != 0 {
		result.SunriseRatio = overlay.SunriseRatio
	}
	if overlay.SunsetRatio != 0 {
		result.SunsetRatio = overlay.SunsetRatio
	}
	if overlay.OverlapSunriseRatio != 0 {
		result.OverlapSunriseRatio = overlay.OverlapSunriseRatio
	}
	if overlay.GoldenHourLeadMin != 0 {
		result.GoldenHourLeadMin = overlay.GoldenHourLeadMin
	}
	if overlay.GoldenHourTailMin != 0 {
		result.GoldenHourTailMin = overlay.GoldenHourTailMin
	}
	if overlay.StartCapHour != 0 {
		result.StartCapHour = overlay.StartCapHour
	}
	if overlay.EndCapHour != 0 {
		result.EndCapHour = overlay.EndCapHour
	}
	if overlay.RewindFrames != 0 {
		result.RewindFrames = overlay.RewindFrames
	}
	if overlay.DefaultIntervalSec != 0 {
		result.DefaultIntervalSec = overlay.DefaultIntervalSec
	}

	return &result
}
