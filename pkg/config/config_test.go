package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/timelapse/pkg/recorder"
	"github.com/user/timelapse/pkg/stages/convert"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	rc := cfg.ToRecorderConfig()
	want := recorder.DefaultConfig()
	if rc.Width != want.Width || rc.Height != want.Height {
		t.Errorf("expected %dx%d, got %dx%d", want.Width, want.Height, rc.Width, rc.Height)
	}
	if rc.Bitrate != 400_000 || rc.FrameRate != 30 || rc.KeyframeIntervalSec != 2 {
		t.Errorf("unexpected encoder settings %+v", rc)
	}
	if rc.SampleInterval != time.Second {
		t.Errorf("expected 1s sampling, got %s", rc.SampleInterval)
	}
	// The bundled sources deliver packed planes.
	if rc.ChromaMerge != convert.ModeFull {
		t.Errorf("expected full chroma merge, got %s", rc.ChromaMerge)
	}
	if rc.Codec != want.Codec {
		t.Errorf("expected codec %s, got %s", want.Codec, rc.Codec)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timelapse.yaml")
	content := `
output: /videos/plant-{n}.mp4
video:
  width: 1280
  height: 720
  quality: high
  sample_interval_ms: 5000
  chroma_merge: literal
encoder:
  codec: h264_v4l2m2m
  eos_timeout_ms: 800
source:
  kind: chrome
  url: https://example.com
  headers:
    X-Test: "1"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	rc := cfg.ToRecorderConfig()
	if rc.OutputPath != "/videos/plant-{n}.mp4" {
		t.Errorf("unexpected output path %s", rc.OutputPath)
	}
	if rc.Width != 1280 || rc.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", rc.Width, rc.Height)
	}
	if rc.Bitrate != 1_000_000 {
		t.Errorf("expected the high preset bitrate, got %d", rc.Bitrate)
	}
	if rc.SampleInterval != 5*time.Second {
		t.Errorf("expected 5s sampling, got %s", rc.SampleInterval)
	}
	if rc.ChromaMerge != convert.ModeLiteral {
		t.Errorf("expected literal chroma merge, got %s", rc.ChromaMerge)
	}
	// Unset values keep their defaults.
	if rc.FrameRate != 30 {
		t.Errorf("expected default fps, got %d", rc.FrameRate)
	}

	enc := cfg.EncoderOptions()
	if enc.Codec != "h264_v4l2m2m" || enc.EOSTimeout != 800*time.Millisecond || enc.Preset != "veryfast" {
		t.Errorf("unexpected encoder options %+v", enc)
	}

	chrome := cfg.ChromeOptions()
	if chrome.URL != "https://example.com" || chrome.Headers["X-Test"] != "1" || !chrome.Headless {
		t.Errorf("unexpected chrome options %+v", chrome)
	}
	if chrome.Width != 1280 || chrome.Quality != 80 {
		t.Errorf("unexpected chrome size or quality %+v", chrome)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("video: [unclosed"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty output", func(c *Config) { c.OutputPath = "" }},
		{"odd width", func(c *Config) { c.Video.Width = 641 }},
		{"zero fps", func(c *Config) { c.Video.FrameRate = 0 }},
		{"zero keyframe interval", func(c *Config) { c.Video.KeyframeInterval = 0 }},
		{"zero sample interval", func(c *Config) { c.Video.SampleIntervalMs = 0 }},
		{"negative bitrate", func(c *Config) { c.Video.Bitrate = -1 }},
		{"unknown quality", func(c *Config) { c.Video.Quality = "ultra" }},
		{"unknown chroma merge", func(c *Config) { c.Video.ChromaMerge = "diagonal" }},
		{"unknown source", func(c *Config) { c.Source.Kind = "scanner" }},
		{"camera without input", func(c *Config) { c.Source.Kind = SourceCamera; c.Source.Input = "" }},
		{"chrome without url", func(c *Config) { c.Source.Kind = SourceChrome }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestBitrateOrPreset(t *testing.T) {
	cfg := Defaults()
	cfg.Video.Quality = "low"
	if got := cfg.BitrateOrPreset(); got != 250_000 {
		t.Errorf("expected the low preset, got %d", got)
	}

	cfg.Video.Bitrate = 2_000_000
	if got := cfg.BitrateOrPreset(); got != 2_000_000 {
		t.Errorf("expected the explicit bitrate, got %d", got)
	}
}

func TestSourceOptions(t *testing.T) {
	cfg := Defaults()
	cfg.Source.FrameRate = 15
	cfg.Source.Input = "/dev/video3"

	if p := cfg.PatternOptions(); p.Width != 640 || p.FrameRate != 15 || p.Label != "timelapse" {
		t.Errorf("unexpected pattern options %+v", p)
	}
	if c := cfg.CameraOptions(); c.Input != "/dev/video3" || c.Height != 480 || c.FrameRate != 15 {
		t.Errorf("unexpected camera options %+v", c)
	}
}
