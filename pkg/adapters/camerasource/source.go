// Package camerasource provides a ports.FrameSource that reads raw 4:2:0
// frames from an ffmpeg capture process. Any ffmpeg input works: a V4L2
// camera, AVFoundation, DirectShow, an RTSP stream or a lavfi test source.
package camerasource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/user/timelapse/pkg/adapters/framepool"
	"github.com/user/timelapse/pkg/adapters/h264encoder"
	"github.com/user/timelapse/pkg/ports"
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("camerasource: already started")

// Options configures the capture.
type Options struct {
	// Format is the ffmpeg input format (-f). Default depends on the platform.
	Format string
	// Input is the device or URL (-i). Default depends on the platform.
	Input     string
	Width     int
	Height    int
	FrameRate int
	// InputArgs are inserted before -i.
	InputArgs []string
}

// DefaultOptions returns platform defaults for the first camera.
func DefaultOptions() Options {
	opts := Options{Width: 640, Height: 480, FrameRate: 30}
	switch runtime.GOOS {
	case "darwin":
		opts.Format, opts.Input = "avfoundation", "0"
	case "windows":
		opts.Format, opts.Input = "dshow", "video=Integrated Camera"
	default:
		opts.Format, opts.Input = "v4l2", "/dev/video0"
	}
	return opts
}

// Source captures frames through ffmpeg.
type Source struct {
	opts   Options
	pool   *framepool.Pool
	logger ports.Logger
	clock  func() time.Time

	mu      sync.Mutex
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	done    chan struct{}
	readErr error
}

// New creates a Source.
func New(opts Options, logger ports.Logger) *Source {
	if opts.FrameRate <= 0 {
		opts.FrameRate = 30
	}
	pool := framepool.New(opts.Width, opts.Height)
	opts.Width, opts.Height = pool.Size()

	return &Source{
		opts:   opts,
		pool:   pool,
		logger: logger.WithComponent("camera"),
		clock:  time.Now,
	}
}

func buildArgs(opts Options) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if opts.Format != "" {
		args = append(args, "-f", opts.Format)
	}
	args = append(args, opts.InputArgs...)
	args = append(args,
		"-i", opts.Input,
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d", opts.Width, opts.Height),
		"-r", strconv.Itoa(opts.FrameRate),
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"pipe:1",
	)
	return args
}

// Start launches ffmpeg. The returned channel is closed when ffmpeg exits, ctx
// ends or Close is called.
func (s *Source) Start(ctx context.Context) (<-chan ports.RawFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return nil, ErrAlreadyStarted
	}
	if s.opts.Width <= 0 || s.opts.Height <= 0 || s.opts.Input == "" {
		return nil, fmt.Errorf("camerasource: input and size are required")
	}

	path, err := h264encoder.FindFFmpeg()
	if err != nil {
		return nil, err
	}

	ctx, s.cancel = context.WithCancel(ctx)
	args := buildArgs(s.opts)
	cmd := exec.CommandContext(ctx, path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.cancel()
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		s.cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	s.logger.Debug("ffmpeg started: %s %v", path, args)

	s.cmd = cmd
	s.done = make(chan struct{})
	out := make(chan ports.RawFrame, 1)
	go s.run(ctx, stdout, out)
	return out, nil
}

func (s *Source) run(ctx context.Context, stdout io.Reader, out chan<- ports.RawFrame) {
	defer close(s.done)
	defer close(out)

	r := bufio.NewReaderSize(stdout, s.opts.Width*s.opts.Height)
	for {
		frame := s.pool.Get(time.Time{})
		err := readPlanes(r, frame.Y, frame.U, frame.V)
		if err != nil {
			frame.Release()
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.mu.Lock()
				s.readErr = err
				s.mu.Unlock()
				s.logger.Warn("Camera read failed: %s", err)
			}
			_ = s.cmd.Wait()
			return
		}
		frame.CaptureTime = s.clock()

		select {
		case out <- frame:
		case <-ctx.Done():
			frame.Release()
			_ = s.cmd.Wait()
			return
		default:
			frame.Release()
		}
	}
}

func readPlanes(r io.Reader, planes ...[]byte) error {
	for _, p := range planes {
		if _, err := io.ReadFull(r, p); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return io.EOF
			}
			return err
		}
	}
	return nil
}

// Err returns the read error that ended capture, if any.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readErr
}

// Close stops ffmpeg and waits for the reader goroutine.
func (s *Source) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if done != nil {
		<-done
	}
	return nil
}

// Ensure Source implements ports.FrameSource
var _ ports.FrameSource = (*Source)(nil)
