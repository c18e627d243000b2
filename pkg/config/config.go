// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/timelapse/pkg/adapters/camerasource"
	"github.com/user/timelapse/pkg/adapters/chromesource"
	"github.com/user/timelapse/pkg/adapters/h264encoder"
	"github.com/user/timelapse/pkg/adapters/patternsource"
	"github.com/user/timelapse/pkg/ports"
	"github.com/user/timelapse/pkg/recorder"
	"github.com/user/timelapse/pkg/stages/convert"
)

// ErrInvalid is wrapped by every Validate error.
var ErrInvalid = errors.New("config: invalid configuration")

// Source kinds.
const (
	SourcePattern = "pattern"
	SourceCamera  = "camera"
	SourceChrome  = "chrome"
)

// Config represents the full configuration for timelapse.
type Config struct {
	// Output
	OutputPath string `yaml:"output"`

	Video   VideoConfig   `yaml:"video"`
	Encoder EncoderConfig `yaml:"encoder"`
	Source  SourceConfig  `yaml:"source"`

	// Debug
	Debug    bool   `yaml:"debug"`
	DebugDir string `yaml:"debug_dir"`
}

// VideoConfig holds the output video and sampling settings.
type VideoConfig struct {
	Width            int    `yaml:"width"`
	Height           int    `yaml:"height"`
	Quality          string `yaml:"quality"` // low, medium or high; sets Bitrate when it is 0
	Bitrate          int    `yaml:"bitrate"`
	FrameRate        int    `yaml:"fps"`
	KeyframeInterval int    `yaml:"keyframe_interval"` // seconds
	SampleIntervalMs int    `yaml:"sample_interval_ms"`
	ChromaMerge      string `yaml:"chroma_merge"` // full for packed planes, literal for stride-2 device planes
}

// EncoderConfig selects the ffmpeg encoder.
type EncoderConfig struct {
	Codec        string   `yaml:"codec"` // "auto" or an ffmpeg encoder name
	Preset       string   `yaml:"preset"`
	FFmpegPath   string   `yaml:"ffmpeg_path"`
	InputSlots   int      `yaml:"input_slots"`
	EOSTimeoutMs int      `yaml:"eos_timeout_ms"`
	ExtraArgs    []string `yaml:"extra_args"`
}

// SourceConfig selects and configures the frame source.
type SourceConfig struct {
	Kind      string `yaml:"kind"` // pattern, camera or chrome
	FrameRate int    `yaml:"fps"`  // capture rate

	// pattern
	Label string `yaml:"label"`

	// camera
	Format    string   `yaml:"format"`
	Input     string   `yaml:"input"`
	InputArgs []string `yaml:"input_args"`

	// chrome
	URL               string            `yaml:"url"`
	ChromePath        string            `yaml:"chrome_path"`
	Headless          bool              `yaml:"headless"`
	ScreencastQuality int               `yaml:"screencast_quality"`
	UserAgent         string            `yaml:"user_agent"`
	IgnoreHTTPSErrors bool              `yaml:"ignore_https_errors"`
	Headers           map[string]string `yaml:"headers"`
}

// QualityBitrate maps a quality preset name to a bitrate in bits per second.
func QualityBitrate(preset string) (int, bool) {
	switch preset {
	case "low":
		return 250_000, true
	case "medium", "":
		return 400_000, true
	case "high":
		return 1_000_000, true
	default:
		return 0, false
	}
}

// Defaults returns a Config with default values.
func Defaults() Config {
	cam := camerasource.DefaultOptions()
	return Config{
		OutputPath: "timelapse-{time}.mp4",
		Video: VideoConfig{
			Width:            640,
			Height:           480,
			Quality:          "medium",
			FrameRate:        30,
			KeyframeInterval: 2,
			SampleIntervalMs: 1000,
			ChromaMerge:      "full",
		},
		Encoder: EncoderConfig{
			Codec:        "auto",
			Preset:       "veryfast",
			InputSlots:   2,
			EOSTimeoutMs: 500,
		},
		Source: SourceConfig{
			Kind:              SourcePattern,
			FrameRate:         30,
			Label:             "timelapse",
			Format:            cam.Format,
			Input:             cam.Input,
			Headless:          true,
			ScreencastQuality: 80,
		},
		DebugDir: "./debug",
	}
}

// LoadFromFile loads configuration from a YAML file on top of Defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the values a session cannot start without.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalid}, args...)...))
	}

	if c.OutputPath == "" {
		add("output path is empty")
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 || c.Video.Width%2 != 0 || c.Video.Height%2 != 0 {
		add("video size %dx%d must be positive and even", c.Video.Width, c.Video.Height)
	}
	if c.Video.FrameRate <= 0 {
		add("fps must be positive")
	}
	if c.Video.KeyframeInterval <= 0 {
		add("keyframe interval must be positive")
	}
	if c.Video.SampleIntervalMs <= 0 {
		add("sample interval must be positive")
	}
	if c.Video.Bitrate < 0 {
		add("bitrate must not be negative")
	}
	if _, ok := QualityBitrate(c.Video.Quality); !ok {
		add("unknown quality %q", c.Video.Quality)
	}
	if _, err := convert.ParseMode(c.Video.ChromaMerge); err != nil {
		add("%s", err)
	}

	switch c.Source.Kind {
	case SourcePattern:
	case SourceCamera:
		if c.Source.Input == "" {
			add("camera input is empty")
		}
	case SourceChrome:
		if c.Source.URL == "" {
			add("chrome source needs a url")
		}
	default:
		add("unknown source %q", c.Source.Kind)
	}

	return errors.Join(errs...)
}

// BitrateOrPreset returns the explicit bitrate, or the quality preset's.
func (c Config) BitrateOrPreset() int {
	if c.Video.Bitrate > 0 {
		return c.Video.Bitrate
	}
	bitrate, _ := QualityBitrate(c.Video.Quality)
	return bitrate
}

// ToRecorderConfig converts Config to recorder.Config.
func (c Config) ToRecorderConfig() recorder.Config {
	mode, _ := convert.ParseMode(c.Video.ChromaMerge)
	return recorder.Config{
		OutputPath:          c.OutputPath,
		Width:               c.Video.Width,
		Height:              c.Video.Height,
		Codec:               ports.MimeTypeAVC,
		Bitrate:             c.BitrateOrPreset(),
		FrameRate:           c.Video.FrameRate,
		KeyframeIntervalSec: c.Video.KeyframeInterval,
		SampleInterval:      time.Duration(c.Video.SampleIntervalMs) * time.Millisecond,
		ChromaMerge:         mode,
	}
}

// EncoderOptions converts the encoder section to h264encoder.Options.
func (c Config) EncoderOptions() h264encoder.Options {
	return h264encoder.Options{
		Codec:      c.Encoder.Codec,
		Preset:     c.Encoder.Preset,
		InputSlots: c.Encoder.InputSlots,
		EOSTimeout: time.Duration(c.Encoder.EOSTimeoutMs) * time.Millisecond,
		ExtraArgs:  c.Encoder.ExtraArgs,
	}
}

// PatternOptions converts the source section for patternsource.
func (c Config) PatternOptions() patternsource.Options {
	return patternsource.Options{
		Width:     c.Video.Width,
		Height:    c.Video.Height,
		FrameRate: c.Source.FrameRate,
		Label:     c.Source.Label,
	}
}

// CameraOptions converts the source section for camerasource.
func (c Config) CameraOptions() camerasource.Options {
	return camerasource.Options{
		Format:    c.Source.Format,
		Input:     c.Source.Input,
		Width:     c.Video.Width,
		Height:    c.Video.Height,
		FrameRate: c.Source.FrameRate,
		InputArgs: c.Source.InputArgs,
	}
}

// ChromeOptions converts the source section for chromesource.
func (c Config) ChromeOptions() chromesource.Options {
	return chromesource.Options{
		URL:               c.Source.URL,
		Width:             c.Video.Width,
		Height:            c.Video.Height,
		ChromePath:        c.Source.ChromePath,
		Headless:          c.Source.Headless,
		Quality:           c.Source.ScreencastQuality,
		UserAgent:         c.Source.UserAgent,
		IgnoreHTTPSErrors: c.Source.IgnoreHTTPSErrors,
		Headers:           c.Source.Headers,
	}
}
