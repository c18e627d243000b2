package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/timelapse/pkg/adapters/h264encoder"
	"github.com/user/timelapse/pkg/adapters/mp4probe"
	"github.com/user/timelapse/pkg/adapters/osfilesystem"
	"github.com/user/timelapse/pkg/config"
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := h264encoder.FindFFmpeg(); err != nil {
		t.Skip("ffmpeg not available")
	}
}

func TestVersion(t *testing.T) {
	for _, args := range [][]string{{"timelapse", "version"}, {"timelapse", "--version"}} {
		var out bytes.Buffer
		app := newApp(strings.NewReader(""))
		app.Writer = &out

		if err := app.Run(args); err != nil {
			t.Fatalf("%v failed: %v", args, err)
		}
		if !strings.Contains(out.String(), "version dev") {
			t.Errorf("%v: unexpected output %q", args, out.String())
		}
	}
}

func TestRecord_InvalidConfig(t *testing.T) {
	app := newApp(strings.NewReader(""))
	app.Writer = io.Discard

	err := app.Run([]string{"timelapse", "record", "--quiet", "--width", "641"})
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestRecord_MissingConfigFile(t *testing.T) {
	app := newApp(strings.NewReader(""))
	app.Writer = io.Discard

	err := app.Run([]string{"timelapse", "record", "--quiet", "--config", filepath.Join(t.TempDir(), "none.yaml")})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a not-exist error, got %v", err)
	}
}

func TestInspect_RequiresOneFile(t *testing.T) {
	app := newApp(strings.NewReader(""))
	app.Writer = io.Discard

	if err := app.Run([]string{"timelapse", "inspect"}); err == nil {
		t.Error("expected an error without a file argument")
	}
	if err := app.Run([]string{"timelapse", "inspect", filepath.Join(t.TempDir(), "none.mp4")}); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestRecord_PatternSource(t *testing.T) {
	requireFFmpeg(t)

	dir := t.TempDir()
	output := filepath.Join(dir, "pattern-{n}.mp4")
	summary := filepath.Join(dir, "summary-{n}.md")

	app := newApp(strings.NewReader(""))
	app.Writer = io.Discard
	err := app.Run([]string{
		"timelapse", "record", "--quiet",
		"--source", "pattern",
		"--width", "160", "--height", "120",
		"--codec", "libx264",
		"--sample-interval", "100ms",
		"--duration", "1500ms",
		"--output", output,
		"--summary", summary,
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	video := filepath.Join(dir, "pattern-1.mp4")
	info, err := mp4probe.ProbeFile(osfilesystem.New(), video)
	if err != nil {
		t.Fatalf("probe %s: %v", video, err)
	}
	if info.Width != 160 || info.Height != 120 {
		t.Errorf("expected 160x120, got %dx%d", info.Width, info.Height)
	}
	if info.Samples == 0 || info.Keyframes == 0 {
		t.Errorf("expected samples and a keyframe, got %+v", info)
	}

	data, err := os.ReadFile(filepath.Join(dir, "summary-1.md"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if !strings.Contains(string(data), "pattern-1.mp4") {
		t.Errorf("summary does not mention the video:\n%s", data)
	}
}

func TestRecord_Interactive(t *testing.T) {
	requireFFmpeg(t)

	dir := t.TempDir()
	r, w := io.Pipe()
	go func() {
		w.Write([]byte("\n"))
		time.Sleep(time.Second)
		w.Write([]byte("\n"))
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("\n"))
		time.Sleep(time.Second)
		w.Close()
	}()

	app := newApp(r)
	app.Writer = io.Discard
	err := app.Run([]string{
		"timelapse", "record", "--quiet", "--interactive",
		"--width", "160", "--height", "120",
		"--codec", "libx264",
		"--sample-interval", "100ms",
		"--output", filepath.Join(dir, "take-{n}.mp4"),
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}

	// Two sessions: toggled off by the second line, then stopped at end of input.
	for _, name := range []string{"take-1.mp4", "take-2.mp4"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}
