package recorder

import (
	"errors"
	"time"

	"github.com/user/timelapse/pkg/stages/encode"
	"github.com/user/timelapse/pkg/stages/mux"
	"github.com/user/timelapse/pkg/stages/sample"
)

// SessionStats describes a finished (or running) recording session.
type SessionStats struct {
	Number    int
	Path      string
	Width     int
	Height    int
	FrameRate int
	StartedAt time.Time
	StoppedAt time.Time

	FramesSeen       int // frames delivered while recording
	FramesAccepted   int // frames admitted by the sampler
	FramesSubmitted  int // frames queued into the encoder
	FramesDropped    int // frames dropped for lack of an encoder slot
	FramesMismatched int // frames dropped because their size did not match the session
	AccessUnits      int // encoded units written to the container
}

// VideoDuration returns the playback length of the written video.
func (s SessionStats) VideoDuration() time.Duration {
	if s.FrameRate <= 0 {
		return 0
	}
	return time.Duration(s.AccessUnits) * time.Second / time.Duration(s.FrameRate)
}

// WallDuration returns how long the session recorded.
func (s SessionStats) WallDuration() time.Duration {
	if s.StoppedAt.IsZero() {
		return 0
	}
	return s.StoppedAt.Sub(s.StartedAt)
}

// session groups everything that lives exactly as long as one recording.
type session struct {
	sampler  *sample.Sampler
	pipeline *encode.Pipeline
	writer   *mux.Writer
	scratch  []byte
	stats    SessionStats
}

// close tears the session down. Every step runs; errors are joined.
func (s *session) close(now time.Time) error {
	s.sampler.Reset()
	err := errors.Join(s.pipeline.Close(), s.writer.Stop())

	es := s.pipeline.Stats()
	s.stats.FramesSubmitted = es.Submitted
	s.stats.FramesDropped = es.Dropped
	s.stats.AccessUnits = s.writer.Written()
	s.stats.StoppedAt = now
	return err
}
