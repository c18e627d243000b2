// Package summarizer provides summary generation for recording results.
package summarizer

import (
	"time"

	"github.com/user/timelapse/pkg/adapters/mp4probe"
	"github.com/user/timelapse/pkg/recorder"
)

// Summary contains all data collected during one recording session.
type Summary struct {
	// Metadata
	GeneratedAt time.Time `yaml:"generated_at"`

	Session  SessionInfo `yaml:"session"`
	Frames   FrameCounts `yaml:"frames"`
	Settings Settings    `yaml:"settings"`
	Video    VideoInfo   `yaml:"video"`
}

// SessionInfo identifies the session and its wall-clock span.
type SessionInfo struct {
	Number    int       `yaml:"number"`
	Path      string    `yaml:"path"`
	StartedAt time.Time `yaml:"started_at"`
	StoppedAt time.Time `yaml:"stopped_at"`
}

// WallDuration returns how long the session recorded.
func (s SessionInfo) WallDuration() time.Duration {
	if s.StoppedAt.IsZero() {
		return 0
	}
	return s.StoppedAt.Sub(s.StartedAt)
}

// FrameCounts tracks frames through the pipeline.
type FrameCounts struct {
	Seen       int `yaml:"seen"`
	Accepted   int `yaml:"accepted"`
	Submitted  int `yaml:"submitted"`
	Dropped    int `yaml:"dropped"`
	Mismatched int `yaml:"mismatched"`
}

// Settings contains the recording configuration.
type Settings struct {
	Source           string        `yaml:"source"`
	Encoder          string        `yaml:"encoder"` // ffmpeg encoder name
	Backend          string        `yaml:"backend"` // hardware or software
	Width            int           `yaml:"width"`
	Height           int           `yaml:"height"`
	Bitrate          int           `yaml:"bitrate"`
	FrameRate        int           `yaml:"fps"`
	KeyframeInterval int           `yaml:"keyframe_interval"` // seconds
	SampleInterval   time.Duration `yaml:"sample_interval"`
	ChromaMerge      string        `yaml:"chroma_merge"`
}

// VideoInfo contains information about the output video.
type VideoInfo struct {
	AccessUnits int   `yaml:"access_units"`
	Keyframes   int   `yaml:"keyframes"`
	Fragments   int   `yaml:"fragments"`
	DurationMs  int   `yaml:"duration_ms"`
	FileSize    int64 `yaml:"file_size"`
	Width       int   `yaml:"width"`
	Height      int   `yaml:"height"`
}

// Speedup returns how many times faster than real time the video plays.
func (s *Summary) Speedup() float64 {
	if s.Video.DurationMs <= 0 {
		return 0
	}
	return float64(s.Session.WallDuration().Milliseconds()) / float64(s.Video.DurationMs)
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSession copies a finished session's statistics. The video section is
// derived from them until WithProbe replaces it with what the file holds.
func (b *Builder) WithSession(stats recorder.SessionStats) *Builder {
	b.summary.Session = SessionInfo{
		Number:    stats.Number,
		Path:      stats.Path,
		StartedAt: stats.StartedAt,
		StoppedAt: stats.StoppedAt,
	}
	b.summary.Frames = FrameCounts{
		Seen:       stats.FramesSeen,
		Accepted:   stats.FramesAccepted,
		Submitted:  stats.FramesSubmitted,
		Dropped:    stats.FramesDropped,
		Mismatched: stats.FramesMismatched,
	}
	b.summary.Video = VideoInfo{
		AccessUnits: stats.AccessUnits,
		DurationMs:  int(stats.VideoDuration().Milliseconds()),
		Width:       stats.Width,
		Height:      stats.Height,
	}
	return b
}

// WithSettings sets recording settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// WithProbe fills the video section from the written file.
func (b *Builder) WithProbe(info mp4probe.Info) *Builder {
	b.summary.Video = VideoInfo{
		AccessUnits: info.Samples,
		Keyframes:   info.Keyframes,
		Fragments:   info.Fragments,
		DurationMs:  int(info.Duration.Milliseconds()),
		FileSize:    info.Size,
		Width:       info.Width,
		Height:      info.Height,
	}
	return b
}

// WithVideo sets video output information.
func (b *Builder) WithVideo(video VideoInfo) *Builder {
	b.summary.Video = video
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
