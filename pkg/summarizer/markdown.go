package summarizer

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator translates headings and labels.
func WithTranslator(t func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.t = t
	}
}

// WithVersion adds the program version to the footer.
func WithVersion(version string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.version = version
	}
}

// MarkdownFormatter renders a Summary as a Markdown document.
type MarkdownFormatter struct {
	t       func(string) string
	version string
}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{t: func(s string) string { return s }}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	var b strings.Builder
	t := f.t

	fmt.Fprintf(&b, "# %s\n\n", t("Timelapse Summary"))

	f.section(&b, t("Session"), [][2]string{
		{t("Session"), fmt.Sprintf("#%d", s.Session.Number)},
		{t("Output"), s.Session.Path},
		{t("Started"), formatTime(s.Session.StartedAt)},
		{t("Recorded For"), formatDuration(s.Session.WallDuration())},
	})

	video := [][2]string{
		{t("Resolution"), fmt.Sprintf("%dx%d", s.Video.Width, s.Video.Height)},
		{t("Duration"), fmt.Sprintf("%d ms", s.Video.DurationMs)},
		{t("Frames Written"), fmt.Sprintf("%d", s.Video.AccessUnits)},
	}
	if s.Video.Fragments > 0 {
		video = append(video,
			[2]string{t("Keyframes"), fmt.Sprintf("%d", s.Video.Keyframes)},
			[2]string{t("Fragments"), fmt.Sprintf("%d", s.Video.Fragments)},
		)
	}
	if s.Video.FileSize > 0 {
		video = append(video, [2]string{t("File Size"), formatBytes(s.Video.FileSize)})
	}
	if speedup := s.Speedup(); speedup > 0 {
		video = append(video, [2]string{t("Speedup"), fmt.Sprintf("%.1fx", speedup)})
	}
	f.section(&b, t("Video"), video)

	f.section(&b, t("Frames"), [][2]string{
		{t("Seen"), fmt.Sprintf("%d", s.Frames.Seen)},
		{t("Sampled"), fmt.Sprintf("%d", s.Frames.Accepted)},
		{t("Encoded"), fmt.Sprintf("%d", s.Frames.Submitted)},
		{t("Dropped (encoder busy)"), fmt.Sprintf("%d", s.Frames.Dropped)},
		{t("Dropped (size mismatch)"), fmt.Sprintf("%d", s.Frames.Mismatched)},
	})

	encoder := s.Settings.Encoder
	if s.Settings.Backend != "" {
		encoder = fmt.Sprintf("%s (%s)", encoder, t(s.Settings.Backend))
	}
	f.section(&b, t("Settings"), [][2]string{
		{t("Source"), s.Settings.Source},
		{t("Encoder"), encoder},
		{t("Bitrate"), formatBitrate(s.Settings.Bitrate)},
		{t("Frame Rate"), fmt.Sprintf("%d fps", s.Settings.FrameRate)},
		{t("Keyframe Interval"), fmt.Sprintf("%d s", s.Settings.KeyframeInterval)},
		{t("Sample Interval"), formatDuration(s.Settings.SampleInterval)},
		{t("Chroma Merge"), s.Settings.ChromaMerge},
	})

	footer := fmt.Sprintf("%s %s", t("Generated at"), formatTime(s.GeneratedAt))
	if f.version != "" {
		footer += fmt.Sprintf(" (timelapse %s)", f.version)
	}
	fmt.Fprintf(&b, "---\n\n_%s_\n", footer)

	return b.String()
}

func (f *MarkdownFormatter) section(b *strings.Builder, title string, rows [][2]string) {
	fmt.Fprintf(b, "## %s\n\n", title)
	fmt.Fprintf(b, "| %s | %s |\n|---|---|\n", f.t("Item"), f.t("Value"))
	for _, row := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", row[0], row[1])
	}
	b.WriteString("\n")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatBitrate(bps int) string {
	switch {
	case bps >= 1_000_000:
		return fmt.Sprintf("%.1f Mbps", float64(bps)/1_000_000)
	case bps >= 1000:
		return fmt.Sprintf("%d kbps", bps/1000)
	default:
		return fmt.Sprintf("%d bps", bps)
	}
}
