// Package encode drives a hardware encoder session and hands its output to the
// container writer.
package encode

import (
	"errors"
	"fmt"
	"time"

	"github.com/user/timelapse/pkg/pipeline"
	"github.com/user/timelapse/pkg/ports"
)

// Muxer is the part of the container writer the pipeline talks to.
type Muxer interface {
	AddTrack(format ports.OutputFormat) (int, error)
	Start() error
	WriteAccessUnit(au pipeline.AccessUnit) error
}

// State is the encode pipeline lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateConfigured
	StateRunning
	StateDraining
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stats counts what happened to frames and output buffers.
type Stats struct {
	Submitted   int // frames queued into the encoder
	Dropped     int // frames dropped because no input slot was free
	Emitted     int // access units handed out
	CodecConfig int // parameter-set buffers skipped
	Discarded   int // buffers dropped because the track was not ready
}

// Pipeline owns one encoder session. It is not safe for concurrent use; the
// recorder serializes every call.
type Pipeline struct {
	encoder ports.HardwareEncoder
	muxer   Muxer
	logger  ports.Logger
	now     func() time.Time

	cfg          ports.EncoderConfig
	state        State
	configuredAt time.Time
	lastMarker   int64
	counter      int64
	formatSeen   bool
	trackReady   bool
	trackID      int
	stats        Stats
}

// New creates a Pipeline in the Uninitialized state.
func New(encoder ports.HardwareEncoder, muxer Muxer, logger ports.Logger) *Pipeline {
	return &Pipeline{
		encoder:    encoder,
		muxer:      muxer,
		logger:     logger.WithComponent("encoder"),
		now:        time.Now,
		lastMarker: -1,
	}
}

// Configure validates cfg, configures the encoder and starts it.
func (p *Pipeline) Configure(cfg ports.EncoderConfig) error {
	if p.state != StateUninitialized {
		return fmt.Errorf("%w: configure in state %s", ErrInvalidState, p.state)
	}
	if cfg.Codec == "" {
		cfg.Codec = ports.MimeTypeAVC
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	if err := p.encoder.Configure(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	p.cfg = cfg
	p.state = StateConfigured

	if err := p.encoder.Start(); err != nil {
		return fmt.Errorf("%w: start encoder: %v", ErrConfiguration, err)
	}
	p.configuredAt = p.now()
	p.state = StateRunning

	p.logger.Debug("Encoder running: %s %dx%d, %d bps, %d fps, keyframe every %d s",
		cfg.Codec, cfg.Width, cfg.Height, cfg.Bitrate, cfg.FrameRate, cfg.KeyframeIntervalSec)
	return nil
}

func validateConfig(cfg ports.EncoderConfig) error {
	switch {
	case cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width%2 != 0 || cfg.Height%2 != 0:
		return fmt.Errorf("%w: unsupported dimensions %dx%d", ErrConfiguration, cfg.Width, cfg.Height)
	case cfg.Bitrate <= 0:
		return fmt.Errorf("%w: bitrate must be positive, got %d", ErrConfiguration, cfg.Bitrate)
	case cfg.FrameRate <= 0:
		return fmt.Errorf("%w: frame rate must be positive, got %d", ErrConfiguration, cfg.FrameRate)
	case cfg.KeyframeIntervalSec < 0:
		return fmt.Errorf("%w: keyframe interval must not be negative, got %d", ErrConfiguration, cfg.KeyframeIntervalSec)
	}
	return nil
}

// Config returns the configuration the encoder is running with.
func (p *Pipeline) Config() ports.EncoderConfig {
	return p.cfg
}

// SubmitFrame copies frame into a free encoder input slot. It never blocks:
// when every slot is busy the frame is dropped and false is returned.
func (p *Pipeline) SubmitFrame(frame pipeline.MergedFrame) (bool, error) {
	if p.state != StateRunning {
		return false, fmt.Errorf("%w: submit in state %s", ErrInvalidState, p.state)
	}
	if frame.Width != p.cfg.Width || frame.Height != p.cfg.Height {
		return false, fmt.Errorf("%w: got %dx%d, configured %dx%d",
			ErrFrameSize, frame.Width, frame.Height, p.cfg.Width, p.cfg.Height)
	}

	slot, ok := p.encoder.DequeueInputSlot()
	if !ok {
		p.stats.Dropped++
		p.logger.Debug("No free input slot, frame dropped")
		return false, nil
	}

	buf := p.encoder.InputBuffer(slot)
	if len(buf) < len(frame.Data) {
		err := fmt.Errorf("%w: input slot %d holds %d bytes, frame has %d",
			ErrFrameSize, slot, len(buf), len(frame.Data))
		return false, errors.Join(err, p.encoder.ReturnInputSlot(slot))
	}
	n := copy(buf, frame.Data)

	if err := p.encoder.QueueInput(slot, n, p.nextMarker(), 0); err != nil {
		err = fmt.Errorf("queue input slot %d: %w", slot, err)
		return false, errors.Join(err, p.encoder.ReturnInputSlot(slot))
	}
	p.stats.Submitted++
	return true, nil
}

// nextMarker returns microseconds since Configure, forced strictly increasing.
func (p *Pipeline) nextMarker() int64 {
	m := p.now().Sub(p.configuredAt).Microseconds()
	if m <= p.lastMarker {
		m = p.lastMarker + 1
	}
	p.lastMarker = m
	return m
}

// DrainOutput collects every output buffer the encoder has ready. The caller
// writes each unit and then calls its Release.
func (p *Pipeline) DrainOutput() ([]pipeline.AccessUnit, error) {
	if p.state != StateRunning && p.state != StateDraining {
		return nil, fmt.Errorf("%w: drain in state %s", ErrInvalidState, p.state)
	}
	units, _, err := p.drain()
	return units, err
}

// drain polls until the encoder has nothing more. eos reports whether the
// end of stream was reached.
func (p *Pipeline) drain() (units []pipeline.AccessUnit, eos bool, err error) {
	for {
		ev, err := p.encoder.PollOutput()
		if err != nil {
			return units, false, fmt.Errorf("poll encoder output: %w", err)
		}

		switch ev.Kind {
		case ports.OutputNone:
			return units, false, nil

		case ports.OutputEndOfStream:
			return units, true, nil

		case ports.OutputFormatChanged:
			if err := p.registerTrack(); err != nil {
				return units, false, err
			}

		case ports.OutputBuffer:
			au, ok := p.accept(ev)
			if ok {
				units = append(units, au)
			}
			if ev.Flags&ports.FlagEndOfStream != 0 {
				return units, true, nil
			}
		}
	}
}

func (p *Pipeline) registerTrack() error {
	if p.formatSeen {
		p.logger.Warn("Output format changed again, ignored")
		return nil
	}
	p.formatSeen = true

	format := p.encoder.OutputFormat()
	if format.FrameRate == 0 {
		format.FrameRate = p.cfg.FrameRate
	}
	id, err := p.muxer.AddTrack(format)
	if err != nil {
		return fmt.Errorf("register track: %w", err)
	}
	if err := p.muxer.Start(); err != nil {
		return fmt.Errorf("start container: %w", err)
	}

	p.trackID = id
	p.trackReady = true
	p.logger.Debug("Track %d ready: %dx%d", id, format.Width, format.Height)
	return nil
}

func (p *Pipeline) accept(ev ports.OutputEvent) (pipeline.AccessUnit, bool) {
	if ev.Flags&ports.FlagCodecConfig != 0 {
		p.stats.CodecConfig++
		p.releaseOutput(ev.Index)
		return pipeline.AccessUnit{}, false
	}
	if len(ev.Data) == 0 {
		p.releaseOutput(ev.Index)
		return pipeline.AccessUnit{}, false
	}
	if !p.trackReady {
		p.stats.Discarded++
		p.logger.Warn("Output buffer arrived before the track was ready, dropped")
		p.releaseOutput(ev.Index)
		return pipeline.AccessUnit{}, false
	}

	pts := pipeline.PresentationTime(p.counter, p.cfg.FrameRate)
	p.counter++
	p.stats.Emitted++

	index := ev.Index
	flags := ev.Flags &^ ports.FlagEndOfStream
	return pipeline.NewAccessUnit(ev.Data, pts, flags, p.trackID, func() {
		p.releaseOutput(index)
	}), true
}

func (p *Pipeline) releaseOutput(index int) {
	if err := p.encoder.ReleaseOutput(index); err != nil {
		p.logger.Debug("Failed to release output buffer %d: %s", index, err)
	}
}

// Flush drains the encoder and writes every unit through the muxer, releasing
// each one. It returns the number of units written.
func (p *Pipeline) Flush() (int, error) {
	units, err := p.DrainOutput()
	written, werr := p.write(units)
	return written, errors.Join(err, werr)
}

func (p *Pipeline) write(units []pipeline.AccessUnit) (int, error) {
	var errs []error
	written := 0
	for _, au := range units {
		if err := p.muxer.WriteAccessUnit(au); err != nil {
			errs = append(errs, err)
		} else {
			written++
		}
		au.Release()
	}
	return written, errors.Join(errs...)
}

// Close ends the session. From Running it signals end of stream, writes what
// one final drain returns, then stops and releases the encoder. Every step
// runs even if an earlier one fails. Calling Close again does nothing.
func (p *Pipeline) Close() error {
	if p.state == StateClosed {
		return nil
	}

	var errs []error
	step := func(name string, err error) {
		if err != nil {
			p.logger.Warn("Encoder teardown step %s failed: %s", name, err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if p.state == StateRunning {
		p.state = StateDraining
		step("signal end of stream", p.encoder.SignalEndOfStream())

		units, eos, err := p.drain()
		step("final drain", err)
		n, err := p.write(units)
		step("write final output", err)
		p.logger.Debug("Final drain wrote %d units (end of stream: %t)", n, eos)

		step("stop", p.encoder.Stop())
	}
	step("release", p.encoder.Release())

	p.state = StateClosed
	return errors.Join(errs...)
}

// FrameCounter returns the number of access units emitted so far.
func (p *Pipeline) FrameCounter() int64 {
	return p.counter
}

// State returns the lifecycle state.
func (p *Pipeline) State() State {
	return p.state
}

// Stats returns the frame and buffer counters.
func (p *Pipeline) Stats() Stats {
	return p.stats
}
