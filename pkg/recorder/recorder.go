// Package recorder turns a continuous frame stream into time-lapse videos,
// one file per start/stop session.
package recorder

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/user/timelapse/pkg/pipeline"
	"github.com/user/timelapse/pkg/ports"
	"github.com/user/timelapse/pkg/stages/convert"
	"github.com/user/timelapse/pkg/stages/encode"
	"github.com/user/timelapse/pkg/stages/mux"
	"github.com/user/timelapse/pkg/stages/sample"
)

// Config contains the session settings.
type Config struct {
	// OutputPath is the video file written by each session. "{n}" expands to
	// the session number and "{time}" to the start time (20060102-150405).
	OutputPath string

	// Width and Height are used when no frame has been seen yet.
	Width  int
	Height int

	Codec               string
	Bitrate             int // bits per second
	FrameRate           int
	KeyframeIntervalSec int

	SampleInterval time.Duration
	ChromaMerge    convert.Mode
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		OutputPath:          "timelapse.mp4",
		Width:               640,
		Height:              480,
		Codec:               ports.MimeTypeAVC,
		Bitrate:             400_000,
		FrameRate:           30,
		KeyframeIntervalSec: 2,
		SampleInterval:      sample.DefaultInterval,
		ChromaMerge:         convert.ModeLiteral,
	}
}

// Dependencies are the collaborators a Recorder builds sessions from.
// NewEncoder and NewSink are called once per session.
type Dependencies struct {
	NewEncoder func() ports.HardwareEncoder
	NewSink    func() ports.ContainerSink
	Debug      ports.DebugSink
	Clock      func() time.Time
}

// Recorder coordinates sampling, conversion, encoding and muxing.
//
// HandleFrame (or Run) is called from the pipeline goroutine while Start and
// Stop come from control goroutines. One mutex guards the session and every
// encoder and container call. Start and Stop are serialized with each other,
// including their notifications, so observers see changes in order.
type Recorder struct {
	cfg       Config
	deps      Dependencies
	logger    ports.Logger
	converter *convert.Converter

	ctlMu sync.Mutex

	mu         sync.Mutex
	session    *session
	lastWidth  int
	lastHeight int
	sessions   int
	last       SessionStats

	obsMu     sync.Mutex
	observers []Observer
}

// New creates an idle Recorder.
func New(cfg Config, deps Dependencies, logger ports.Logger) *Recorder {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Recorder{
		cfg:       cfg,
		deps:      deps,
		logger:    logger.WithComponent("recorder"),
		converter: convert.New(cfg.ChromaMerge),
	}
}

// Recording reports whether a session is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}

// LastSession returns the statistics of the most recently stopped session.
func (r *Recorder) LastSession() SessionStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Start begins a new session. It does nothing if one is already running. On
// failure everything built so far is torn down and the recorder stays idle.
func (r *Recorder) Start() error {
	r.ctlMu.Lock()
	defer r.ctlMu.Unlock()

	r.mu.Lock()
	if r.session != nil {
		r.mu.Unlock()
		return nil
	}

	s, err := r.openSession()
	if err != nil {
		r.mu.Unlock()
		r.logger.Error("Failed to start recording: %s", err)
		return err
	}
	r.session = s
	r.mu.Unlock()

	r.logger.Info("Recording started: %s (%dx%d)", s.stats.Path, s.stats.Width, s.stats.Height)
	r.notify(true)
	return nil
}

func (r *Recorder) openSession() (*session, error) {
	if r.deps.NewEncoder == nil || r.deps.NewSink == nil {
		return nil, fmt.Errorf("%w: encoder and container factories are required", ErrConfiguration)
	}

	width, height := r.lastWidth, r.lastHeight
	if width == 0 || height == 0 {
		width, height = r.cfg.Width, r.cfg.Height
	}

	now := r.deps.Clock()
	number := r.sessions + 1
	path := expandPath(r.cfg.OutputPath, number, now)

	writer := mux.New(r.deps.NewSink(), r.logger)
	if err := writer.Open(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	p := encode.New(r.deps.NewEncoder(), writer, r.logger)
	err := p.Configure(ports.EncoderConfig{
		Codec:               r.cfg.Codec,
		Width:               width,
		Height:              height,
		Layout:              ports.LayoutSemiPlanar,
		Bitrate:             r.cfg.Bitrate,
		FrameRate:           r.cfg.FrameRate,
		KeyframeIntervalSec: r.cfg.KeyframeIntervalSec,
	})
	if err != nil {
		if cerr := p.Close(); cerr != nil {
			r.logger.Debug("Encoder cleanup after failed start: %s", cerr)
		}
		if serr := writer.Stop(); serr != nil {
			r.logger.Debug("Container cleanup after failed start: %s", serr)
		}
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	r.sessions = number
	return &session{
		sampler:  sample.New(r.cfg.SampleInterval),
		pipeline: p,
		writer:   writer,
		stats: SessionStats{
			Number:    number,
			Path:      path,
			Width:     width,
			Height:    height,
			FrameRate: r.cfg.FrameRate,
			StartedAt: now,
		},
	}, nil
}

// Stop ends the current session. It does nothing when idle. The recorder is
// idle afterwards even if teardown reported errors.
func (r *Recorder) Stop() error {
	r.ctlMu.Lock()
	defer r.ctlMu.Unlock()

	r.mu.Lock()
	s := r.session
	if s == nil {
		r.mu.Unlock()
		return nil
	}

	err := s.close(r.deps.Clock())
	r.session = nil
	r.last = s.stats
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("Recording stopped with errors: %s", err)
	}
	r.logger.Info("Recording stopped: %d frames written to %s", s.stats.AccessUnits, s.stats.Path)
	r.notify(false)
	return err
}

// HandleFrame processes one frame from the source and always releases it.
func (r *Recorder) HandleFrame(frame ports.RawFrame) {
	defer frame.Release()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastWidth, r.lastHeight = frame.Width, frame.Height

	s := r.session
	if s == nil {
		return
	}
	s.stats.FramesSeen++
	r.process(s, frame)

	if _, err := s.pipeline.Flush(); err != nil {
		r.logger.Warn("Failed to write encoder output: %s", err)
	}
}

func (r *Recorder) process(s *session, frame ports.RawFrame) {
	if frame.Width != s.stats.Width || frame.Height != s.stats.Height {
		s.stats.FramesMismatched++
		r.logger.Debug("Frame %dx%d does not match session %dx%d, dropped",
			frame.Width, frame.Height, s.stats.Width, s.stats.Height)
		return
	}

	if !s.sampler.Accept(r.deps.Clock()) {
		return
	}

	merged, err := r.converter.Merge(frame, s.scratch)
	if err != nil {
		s.stats.FramesMismatched++
		r.logger.Warn("Frame dropped: %s", err)
		return
	}
	s.scratch = merged
	s.stats.FramesAccepted++

	if r.deps.Debug != nil && r.deps.Debug.Enabled() {
		if err := r.deps.Debug.SaveSampledFrame(s.stats.FramesAccepted, frameImage(frame)); err != nil {
			r.logger.Debug("Failed to save sampled frame: %s", err)
		}
	}

	ok, err := s.pipeline.SubmitFrame(pipeline.MergedFrame{
		Width:  frame.Width,
		Height: frame.Height,
		Data:   merged,
	})
	if err != nil {
		r.logger.Error("Failed to submit frame: %s", err)
		return
	}
	if !ok {
		r.logger.Debug("Encoder busy, sampled frame dropped")
	}
}

// Run feeds frames to HandleFrame until ctx is done or frames is closed.
func (r *Recorder) Run(ctx context.Context, frames <-chan ports.RawFrame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			r.HandleFrame(frame)
		}
	}
}

// frameImage wraps the frame planes without copying; valid until Release.
func frameImage(frame ports.RawFrame) image.Image {
	return &image.YCbCr{
		Y:              frame.Y,
		Cb:             frame.U,
		Cr:             frame.V,
		YStride:        frame.Width,
		CStride:        frame.Width / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, frame.Width, frame.Height),
	}
}

func expandPath(tmpl string, number int, start time.Time) string {
	return strings.NewReplacer(
		"{n}", strconv.Itoa(number),
		"{time}", start.Format("20060102-150405"),
	).Replace(tmpl)
}
