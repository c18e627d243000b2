// Package patternsource provides a synthetic ports.FrameSource that renders a
// moving test pattern with a wall-clock overlay using the gg library.
package patternsource

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/user/timelapse/pkg/adapters/framepool"
	"github.com/user/timelapse/pkg/ports"
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("patternsource: already started")

// Options configures the pattern.
type Options struct {
	Width     int
	Height    int
	FrameRate int    // frames per second, default 30
	Label     string // drawn above the clock
}

// bar colours cycled once per second
var barColors = []color.RGBA{
	{R: 0xe0, G: 0x40, B: 0x40, A: 0xff},
	{R: 0x40, G: 0xc0, B: 0x40, A: 0xff},
	{R: 0x40, G: 0x60, B: 0xe0, A: 0xff},
	{R: 0xe0, G: 0xc0, B: 0x30, A: 0xff},
}

// Source renders frames on a ticker and delivers them on a channel.
type Source struct {
	opts  Options
	pool  *framepool.Pool
	dc    *gg.Context
	clock func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	frames int
}

// New creates a Source.
func New(opts Options) *Source {
	if opts.FrameRate <= 0 {
		opts.FrameRate = 30
	}
	pool := framepool.New(opts.Width, opts.Height)
	w, h := pool.Size()
	opts.Width, opts.Height = w, h

	return &Source{
		opts:  opts,
		pool:  pool,
		dc:    gg.NewContext(w, h),
		clock: time.Now,
	}
}

// Start begins rendering. The returned channel is closed when ctx ends or Close is called.
func (s *Source) Start(ctx context.Context) (<-chan ports.RawFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return nil, ErrAlreadyStarted
	}
	if s.opts.Width <= 0 || s.opts.Height <= 0 {
		return nil, fmt.Errorf("patternsource: invalid size %dx%d", s.opts.Width, s.opts.Height)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	out := make(chan ports.RawFrame, 1)

	go s.run(ctx, out)
	return out, nil
}

func (s *Source) run(ctx context.Context, out chan<- ports.RawFrame) {
	defer close(s.done)
	defer close(out)

	ticker := time.NewTicker(time.Second / time.Duration(s.opts.FrameRate))
	defer ticker.Stop()

	for n := 0; ; n++ {
		now := s.clock()
		frame := s.pool.FromImage(s.Render(n, now), now)

		select {
		case out <- frame:
			s.mu.Lock()
			s.frames++
			s.mu.Unlock()
		case <-ctx.Done():
			frame.Release()
			return
		default:
			// consumer is behind; live sources drop rather than queue
			frame.Release()
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// Render draws frame n captured at t.
func (s *Source) Render(n int, t time.Time) image.Image {
	dc := s.dc
	w, h := float64(s.opts.Width), float64(s.opts.Height)

	dc.SetRGB(0.08, 0.08, 0.1)
	dc.Clear()

	// Vertical bar sweeping across the frame once every two seconds.
	period := 2 * s.opts.FrameRate
	x := w * float64(n%period) / float64(period)
	dc.SetColor(barColors[(n/s.opts.FrameRate)%len(barColors)])
	dc.DrawRectangle(x, 0, w/16+1, h)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetRGB(1, 1, 1)
	if s.opts.Label != "" {
		dc.DrawStringAnchored(s.opts.Label, w/2, h/2-16, 0.5, 0.5)
	}
	dc.DrawStringAnchored(t.Format("2006-01-02 15:04:05.000"), w/2, h/2, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("#%d", n), w/2, h/2+16, 0.5, 0.5)

	return dc.Image()
}

// Delivered returns the number of frames handed to the consumer.
func (s *Source) Delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Close stops rendering and waits for the render goroutine.
func (s *Source) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Ensure Source implements ports.FrameSource
var _ ports.FrameSource = (*Source)(nil)
