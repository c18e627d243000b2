package summarizer

import (
	"strings"
	"testing"
	"time"

	"github.com/user/timelapse/pkg/mocks"
)

func testSummary() *Summary {
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	return &Summary{
		GeneratedAt: start.Add(time.Hour),
		Session: SessionInfo{
			Number:    3,
			Path:      "/videos/garden.mp4",
			StartedAt: start,
			StoppedAt: start.Add(10 * time.Minute),
		},
		Frames: FrameCounts{
			Seen:       18000,
			Accepted:   600,
			Submitted:  598,
			Dropped:    2,
			Mismatched: 0,
		},
		Settings: Settings{
			Source:           "camera",
			Encoder:          "h264_v4l2m2m",
			Backend:          "hardware",
			Width:            640,
			Height:           480,
			Bitrate:          400_000,
			FrameRate:        30,
			KeyframeInterval: 2,
			SampleInterval:   time.Second,
			ChromaMerge:      "literal",
		},
		Video: VideoInfo{
			AccessUnits: 598,
			Keyframes:   10,
			Fragments:   10,
			DurationMs:  19933,
			FileSize:    1024 * 1024,
			Width:       640,
			Height:      480,
		},
	}
}

func TestMarkdownFormatter_Format(t *testing.T) {
	result := NewMarkdownFormatter().Format(testSummary())

	checks := []string{
		"# Timelapse Summary",
		"#3",
		"/videos/garden.mp4",
		"2024-01-15 10:30:00",
		"10m0s",
		"640x480",
		"19933 ms",
		"| Frames Written | 598 |",
		"| Keyframes | 10 |",
		"1.00 MB",
		"30.1x",
		"| Sampled | 600 |",
		"| Dropped (encoder busy) | 2 |",
		"h264_v4l2m2m (hardware)",
		"400 kbps",
		"30 fps",
		"| Sample Interval | 1s |",
		"literal",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected output to contain %q", check)
		}
	}
}

func TestMarkdownFormatter_WithoutProbe(t *testing.T) {
	s := testSummary()
	s.Video.Fragments = 0
	s.Video.FileSize = 0

	result := NewMarkdownFormatter().Format(s)
	if strings.Contains(result, "Keyframes") || strings.Contains(result, "File Size") {
		t.Error("probe-only rows should be omitted")
	}
}

func TestMarkdownFormatter_WithTranslator(t *testing.T) {
	translator := func(key string) string {
		translations := map[string]string{
			"Timelapse Summary": "タイムラプス概要",
			"Session":           "セッション",
			"hardware":          "ハードウェア",
		}
		if v, ok := translations[key]; ok {
			return v
		}
		return key
	}

	result := NewMarkdownFormatter(WithTranslator(translator)).Format(testSummary())

	for _, want := range []string{"タイムラプス概要", "## セッション", "h264_v4l2m2m (ハードウェア)"} {
		if !strings.Contains(result, want) {
			t.Errorf("expected translated %q", want)
		}
	}
}

func TestMarkdownFormatter_WithVersion(t *testing.T) {
	result := NewMarkdownFormatter(WithVersion("v1.2.0")).Format(testSummary())
	if !strings.Contains(result, "v1.2.0") {
		t.Error("expected output to contain version 'v1.2.0'")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1024 * 1024, "1.00 MB"},
		{1024 * 1024 * 1024, "1.00 GB"},
		{1536 * 1024 * 1024, "1.50 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatBytes(tt.bytes); got != tt.want {
				t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestFormatBitrate(t *testing.T) {
	tests := map[int]string{
		500:       "500 bps",
		400_000:   "400 kbps",
		2_500_000: "2.5 Mbps",
	}
	for bps, want := range tests {
		if got := formatBitrate(bps); got != want {
			t.Errorf("formatBitrate(%d) = %q, want %q", bps, got, want)
		}
	}
}

func TestWriter_Write(t *testing.T) {
	fs := mocks.NewFileSystem()
	w := NewWriter(FormatFunc(func(s *Summary) string { return "summary" }), fs)

	if err := w.Write("reports/session.md", testSummary()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, ok := fs.GetFile("reports/session.md")
	if !ok || string(data) != "summary" {
		t.Errorf("unexpected file content %q", data)
	}
	if ok, _ := fs.Exists("reports"); !ok {
		t.Error("expected the reports directory to be created")
	}
}
