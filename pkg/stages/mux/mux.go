// Package mux owns the output container of a recording session.
package mux

import (
	"errors"
	"fmt"

	"github.com/user/timelapse/pkg/pipeline"
	"github.com/user/timelapse/pkg/ports"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("mux: invalid state")

	// ErrProtocolViolation is returned when a second track is registered.
	ErrProtocolViolation = errors.New("mux: track already registered")

	// ErrNotStarted is returned when writing before Start.
	ErrNotStarted = errors.New("mux: container not started")

	// ErrNonMonotonicPTS is returned when an access unit does not advance the timeline.
	ErrNonMonotonicPTS = errors.New("mux: presentation time not increasing")

	// ErrUnknownTrack is returned when writing to a track that was never registered.
	ErrUnknownTrack = errors.New("mux: unknown track")
)

// State is the container lifecycle state.
type State int

const (
	StateUnopened State = iota
	StateAwaitingFormat
	StateStarted
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateAwaitingFormat:
		return "awaiting-format"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Writer drives a ContainerSink through its lifecycle and enforces the
// single-track and monotonic-timestamp rules.
type Writer struct {
	sink   ports.ContainerSink
	logger ports.Logger

	state    State
	path     string
	trackID  int
	hasTrack bool
	lastPTS  int64
	written  int
}

// New creates a Writer over sink.
func New(sink ports.ContainerSink, logger ports.Logger) *Writer {
	return &Writer{
		sink:   sink,
		logger: logger.WithComponent("muxer"),
	}
}

// Open creates the output at path.
func (w *Writer) Open(path string) error {
	if w.state != StateUnopened {
		return fmt.Errorf("%w: open in state %s", ErrInvalidState, w.state)
	}

	if err := w.sink.Open(path); err != nil {
		return fmt.Errorf("open container %s: %w", path, err)
	}

	w.path = path
	w.state = StateAwaitingFormat
	w.logger.Debug("Container opened: %s", path)
	return nil
}

// AddTrack registers the single video track.
func (w *Writer) AddTrack(format ports.OutputFormat) (int, error) {
	if w.hasTrack {
		return w.trackID, ErrProtocolViolation
	}
	if w.state != StateAwaitingFormat {
		return -1, fmt.Errorf("%w: add track in state %s", ErrInvalidState, w.state)
	}

	id, err := w.sink.AddTrack(format)
	if err != nil {
		return -1, fmt.Errorf("add track: %w", err)
	}

	w.trackID = id
	w.hasTrack = true
	w.logger.Debug("Track %d registered: %s %dx%d", id, format.Codec, format.Width, format.Height)
	return id, nil
}

// Start writes the container header. Requires a registered track.
func (w *Writer) Start() error {
	if w.state != StateAwaitingFormat || !w.hasTrack {
		return fmt.Errorf("%w: start in state %s (track registered: %t)", ErrInvalidState, w.state, w.hasTrack)
	}

	if err := w.sink.Start(); err != nil {
		return fmt.Errorf("start container: %w", err)
	}

	w.state = StateStarted
	w.lastPTS = -1
	return nil
}

// TrackID returns the registered track and whether one exists.
func (w *Writer) TrackID() (int, bool) {
	return w.trackID, w.hasTrack
}

// WriteAccessUnit appends one encoded unit.
func (w *Writer) WriteAccessUnit(au pipeline.AccessUnit) error {
	if w.state != StateStarted {
		return ErrNotStarted
	}
	if au.TrackID != w.trackID {
		return fmt.Errorf("%w: %d", ErrUnknownTrack, au.TrackID)
	}
	if au.PTS <= w.lastPTS {
		return fmt.Errorf("%w: %d after %d", ErrNonMonotonicPTS, au.PTS, w.lastPTS)
	}

	if err := w.sink.WriteSample(au.TrackID, au.Data[:au.Size], au.PTS, au.Flags); err != nil {
		return fmt.Errorf("write sample at %dus: %w", au.PTS, err)
	}

	w.lastPTS = au.PTS
	w.written++
	return nil
}

// Stop finalizes and releases the output. Calling it when nothing is open, or
// a second time, does nothing.
func (w *Writer) Stop() error {
	if w.state == StateUnopened || w.state == StateStopped {
		return nil
	}

	var errs []error
	if w.state == StateStarted {
		if err := w.sink.Stop(); err != nil {
			w.logger.Warn("Failed to finalize container: %s", err)
			errs = append(errs, fmt.Errorf("stop container: %w", err))
		}
	}
	if err := w.sink.Release(); err != nil {
		w.logger.Warn("Failed to release container: %s", err)
		errs = append(errs, fmt.Errorf("release container: %w", err))
	}

	w.state = StateStopped
	w.logger.Debug("Container closed with %d samples: %s", w.written, w.path)
	return errors.Join(errs...)
}

// State returns the lifecycle state.
func (w *Writer) State() State {
	return w.state
}

// Written returns the number of access units written.
func (w *Writer) Written() int {
	return w.written
}
