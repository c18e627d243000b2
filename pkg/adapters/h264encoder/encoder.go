// Package h264encoder provides a ports.HardwareEncoder backed by an ffmpeg
// process. Raw frames go to ffmpeg's stdin and an H.264 elementary stream comes
// back on stdout, so any encoder ffmpeg drives (libx264, v4l2m2m, VAAPI,
// VideoToolbox, NVENC) can be used.
package h264encoder

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/user/timelapse/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// Options selects the ffmpeg encoder and its tuning.
type Options struct {
	// Codec is the ffmpeg encoder name. Default "libx264".
	Codec string
	// Preset is passed to libx264. Default "veryfast".
	Preset string
	// InputSlots is the number of frames that may be queued at once. Default 2.
	InputSlots int
	// EOSTimeout bounds the wait for ffmpeg to flush after end of stream. Default 500ms.
	EOSTimeout time.Duration
	// ExtraArgs are inserted before the output options.
	ExtraArgs []string
}

// DefaultOptions returns the default Options.
func DefaultOptions() Options {
	return Options{
		Codec:      "libx264",
		Preset:     "veryfast",
		InputSlots: 2,
		EOSTimeout: 500 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Codec == "" {
		o.Codec = d.Codec
	}
	if o.Preset == "" {
		o.Preset = d.Preset
	}
	if o.InputSlots <= 0 {
		o.InputSlots = d.InputSlots
	}
	if o.EOSTimeout <= 0 {
		o.EOSTimeout = d.EOSTimeout
	}
	return o
}

type encoderState int

const (
	stateIdle encoderState = iota
	stateConfigured
	stateRunning
	stateEndOfStream
	stateStopped
	stateReleased
)

type queuedInput struct {
	slot int
	size int
}

// Encoder implements ports.HardwareEncoder over an ffmpeg child process.
type Encoder struct {
	opts   Options
	logger ports.Logger

	mu          sync.Mutex
	state       encoderState
	cfg         ports.EncoderConfig
	ffmpegPath  string
	slots       [][]byte
	free        []int
	inFlight    map[int]bool
	markers     []int64
	outputs     []ports.OutputEvent
	nextOutput  int
	format      ports.OutputFormat
	formatReady bool
	failure     error

	cmd        *exec.Cmd
	stderr     syncBuffer
	input      chan queuedInput
	group      *errgroup.Group
	readerDone chan struct{}
	killed     bool
}

// New creates an Encoder.
func New(opts Options, logger ports.Logger) *Encoder {
	return &Encoder{
		opts:   opts.withDefaults(),
		logger: logger.WithComponent("h264encoder"),
	}
}

// Configure checks cfg and locates ffmpeg.
func (e *Encoder) Configure(cfg ports.EncoderConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateIdle {
		return fmt.Errorf("%w: already configured", ErrUnsupportedConfig)
	}
	if cfg.Codec != "" && cfg.Codec != ports.MimeTypeAVC {
		return fmt.Errorf("%w: codec %s", ErrUnsupportedConfig, cfg.Codec)
	}
	if cfg.Layout != ports.LayoutSemiPlanar && cfg.Layout != ports.LayoutPlanar {
		return fmt.Errorf("%w: pixel layout %d", ErrUnsupportedConfig, cfg.Layout)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.FrameRate <= 0 || cfg.Bitrate <= 0 {
		return fmt.Errorf("%w: %dx%d at %d fps, %d bps", ErrUnsupportedConfig, cfg.Width, cfg.Height, cfg.FrameRate, cfg.Bitrate)
	}

	path, err := FindFFmpeg()
	if err != nil {
		return err
	}

	frameSize := cfg.Width * cfg.Height * 3 / 2
	e.slots = make([][]byte, e.opts.InputSlots)
	e.free = make([]int, 0, e.opts.InputSlots)
	for i := range e.slots {
		e.slots[i] = make([]byte, frameSize)
		e.free = append(e.free, i)
	}
	e.inFlight = make(map[int]bool)
	e.cfg = cfg
	e.ffmpegPath = path
	e.state = stateConfigured
	return nil
}

// Start launches ffmpeg with its writer and reader goroutines.
func (e *Encoder) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateConfigured {
		return ErrNotConfigured
	}

	args := buildArgs(e.cfg, e.opts)
	cmd := exec.Command(e.ffmpegPath, args...)
	cmd.Stderr = &e.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	e.cmd = cmd
	e.input = make(chan queuedInput, len(e.slots))
	e.readerDone = make(chan struct{})
	e.group = new(errgroup.Group)
	e.group.Go(func() error { return e.writeLoop(stdin) })
	e.group.Go(func() error { return e.readLoop(stdout) })
	e.state = stateRunning

	e.logger.Debug("ffmpeg started: %s %v", e.ffmpegPath, args)
	return nil
}

// writeLoop feeds queued slots to ffmpeg and returns each slot afterwards.
func (e *Encoder) writeLoop(stdin io.WriteCloser) error {
	defer stdin.Close()

	var werr error
	for in := range e.input {
		if werr == nil {
			if _, err := stdin.Write(e.slots[in.slot][:in.size]); err != nil {
				werr = fmt.Errorf("write frame: %w", err)
			}
		}
		e.mu.Lock()
		e.free = append(e.free, in.slot)
		e.mu.Unlock()
	}
	return werr
}

// readLoop splits ffmpeg's output into access units and queues them.
func (e *Encoder) readLoop(stdout io.Reader) error {
	defer close(e.readerDone)

	var splitter auSplitter
	r := bufio.NewReaderSize(stdout, 64*1024)
	chunk := make([]byte, 32*1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			for _, au := range splitter.push(chunk[:n]) {
				e.emit(au)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			e.fail(fmt.Errorf("read ffmpeg output: %w", err))
			return err
		}
	}

	if rest := splitter.flush(); rest != nil {
		e.emit(rest)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateRunning {
		e.failure = ErrProcessExited
		return nil
	}
	e.outputs = append(e.outputs, ports.OutputEvent{Kind: ports.OutputEndOfStream})
	return nil
}

func (e *Encoder) emit(au []byte) {
	info := inspect(au)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.formatReady && len(info.sps) > 0 && len(info.pps) > 0 {
		e.format = ports.OutputFormat{
			Codec:     ports.MimeTypeAVC,
			Width:     e.cfg.Width,
			Height:    e.cfg.Height,
			FrameRate: e.cfg.FrameRate,
			SPS:       info.sps,
			PPS:       info.pps,
		}
		if sps, err := avc.ParseSPSNALUnit(info.sps[0], false); err == nil {
			e.format.Width, e.format.Height = int(sps.Width), int(sps.Height)
		} else {
			e.logger.Debug("Failed to parse SPS: %s", err)
		}
		e.formatReady = true
		e.outputs = append(e.outputs, ports.OutputEvent{Kind: ports.OutputFormatChanged})
	}

	var flags ports.BufferFlags
	var marker int64
	switch {
	case !info.hasVideo:
		flags |= ports.FlagCodecConfig
	case len(e.markers) > 0:
		marker = e.markers[0]
		e.markers = e.markers[1:]
	}
	if info.keyframe {
		flags |= ports.FlagKeyframe
	}

	e.outputs = append(e.outputs, ports.OutputEvent{
		Kind:   ports.OutputBuffer,
		Index:  e.nextOutput,
		Data:   au,
		Flags:  flags,
		Marker: marker,
	})
	e.nextOutput++
}

func (e *Encoder) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failure == nil {
		e.failure = err
	}
}

// DequeueInputSlot hands out a free slot without blocking.
func (e *Encoder) DequeueInputSlot() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateRunning || len(e.free) == 0 {
		return -1, false
	}
	slot := e.free[len(e.free)-1]
	e.free = e.free[:len(e.free)-1]
	e.inFlight[slot] = true
	return slot, true
}

// InputBuffer returns the buffer backing slot.
func (e *Encoder) InputBuffer(slot int) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if slot < 0 || slot >= len(e.slots) {
		return nil
	}
	return e.slots[slot]
}

// QueueInput hands a filled slot to the writer goroutine.
func (e *Encoder) QueueInput(slot, size int, marker int64, flags ports.BufferFlags) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateRunning {
		return ErrNotRunning
	}
	if !e.inFlight[slot] {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	if size != len(e.slots[slot]) {
		return fmt.Errorf("%w: frame of %d bytes, expected %d", ErrUnsupportedConfig, size, len(e.slots[slot]))
	}

	e.markers = append(e.markers, marker)
	delete(e.inFlight, slot)
	// Never blocks: the channel holds one entry per slot.
	e.input <- queuedInput{slot: slot, size: size}

	if flags&ports.FlagEndOfStream != 0 {
		e.endOfStreamLocked()
	}
	return nil
}

// ReturnInputSlot puts a dequeued but unqueued slot back on the free list.
func (e *Encoder) ReturnInputSlot(slot int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.inFlight[slot] {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	delete(e.inFlight, slot)
	e.free = append(e.free, slot)
	return nil
}

// PollOutput returns the next queued event. A failure of the ffmpeg process
// is reported once, after every queued event has been returned.
func (e *Encoder) PollOutput() (ports.OutputEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.outputs) > 0 {
		ev := e.outputs[0]
		e.outputs = e.outputs[1:]
		return ev, nil
	}
	if e.failure != nil {
		err := e.failure
		e.failure = nil
		return ports.OutputEvent{Kind: ports.OutputNone}, fmt.Errorf("%w: %s", err, bytes.TrimSpace(e.stderr.Bytes()))
	}
	return ports.OutputEvent{Kind: ports.OutputNone}, nil
}

// OutputFormat returns the format parsed from the first parameter sets.
func (e *Encoder) OutputFormat() ports.OutputFormat {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.format
}

// ReleaseOutput drops the reference to an output buffer. Output buffers are
// not recycled, so this only validates the index.
func (e *Encoder) ReleaseOutput(index int) error {
	if index < 0 {
		return fmt.Errorf("h264encoder: invalid output index %d", index)
	}
	return nil
}

// SignalEndOfStream closes ffmpeg's input and waits up to EOSTimeout for the
// remaining output. ffmpeg is killed if it does not finish in time.
func (e *Encoder) SignalEndOfStream() error {
	e.mu.Lock()
	if e.state != stateRunning {
		e.mu.Unlock()
		return nil
	}
	e.endOfStreamLocked()
	done := e.readerDone
	e.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-time.After(e.opts.EOSTimeout):
		e.logger.Warn("ffmpeg did not finish within %s, killing it", e.opts.EOSTimeout)
		e.kill()
		return nil
	}
}

func (e *Encoder) endOfStreamLocked() {
	e.state = stateEndOfStream
	close(e.input)
}

func (e *Encoder) kill() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd != nil && e.cmd.Process != nil && !e.killed {
		e.killed = true
		_ = e.cmd.Process.Kill()
	}
}

// Stop ends the ffmpeg process and waits for its goroutines.
func (e *Encoder) Stop() error {
	e.mu.Lock()
	switch e.state {
	case stateRunning:
		e.endOfStreamLocked()
		e.state = stateStopped
		e.mu.Unlock()
		e.kill()
	case stateEndOfStream:
		e.state = stateStopped
		e.mu.Unlock()
		select {
		case <-e.readerDone:
		default:
			e.kill()
		}
	default:
		e.mu.Unlock()
		return nil
	}

	gerr := e.group.Wait()
	werr := e.cmd.Wait()

	e.mu.Lock()
	killed := e.killed
	e.mu.Unlock()
	if killed {
		return nil
	}
	if werr != nil {
		return fmt.Errorf("ffmpeg failed: %w\nstderr: %s", werr, e.stderr.Bytes())
	}
	if gerr != nil && !errors.Is(gerr, io.ErrClosedPipe) {
		return gerr
	}
	return nil
}

// Release stops ffmpeg if needed and frees the input slots. Safe to call more than once.
func (e *Encoder) Release() error {
	err := e.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.slots = nil
	e.free = nil
	e.outputs = nil
	e.state = stateReleased
	return err
}

// Ensure Encoder implements ports.HardwareEncoder
var _ ports.HardwareEncoder = (*Encoder)(nil)
