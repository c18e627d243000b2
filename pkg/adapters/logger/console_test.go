package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/user/timelapse/pkg/ports"
)

func TestConsoleLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(ports.LevelWarn, &buf)

	log.Debug("debug %d", 1)
	log.Info("info %d", 2)
	log.Warn("warn %d", 3)
	log.Error("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("messages below warn should be filtered, got %q", out)
	}
	if !strings.Contains(out, "warn 3") || !strings.Contains(out, "error 4") {
		t.Errorf("expected warn and error lines, got %q", out)
	}
}

func TestConsoleLogger_Quiet(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(ports.LevelQuiet, &buf)

	log.Error("should not appear")
	if buf.Len() != 0 {
		t.Errorf("quiet logger wrote %q", buf.String())
	}
}

func TestConsoleLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(ports.LevelDebug, &buf).WithComponent("encoder")

	log.Info("slot %d at %dx%d", 1, 640, 480)

	if got := strings.TrimSpace(buf.String()); got != "[encoder] slot 1 at 640x480" {
		t.Errorf("unexpected line %q", got)
	}
}

func TestConsoleLogger_Timestamps(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(ports.LevelInfo, &buf).WithTimestamps(true)
	log.out.now = func() time.Time { return time.Date(2026, 1, 1, 9, 8, 7, 6_000_000, time.UTC) }

	log.Info("hello")

	if got := strings.TrimSpace(buf.String()); got != "09:08:07.006 hello" {
		t.Errorf("unexpected line %q", got)
	}
}
