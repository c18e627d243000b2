// Package chromesource provides a ports.FrameSource that time-lapses a web
// page through a headless Chrome screencast driven by chromedp.
package chromesource

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/user/timelapse/pkg/adapters/framepool"
	"github.com/user/timelapse/pkg/ports"
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("chromesource: already started")

// Options configures the browser and the captured page.
type Options struct {
	URL        string
	Width      int
	Height     int
	ChromePath string
	Headless   bool
	// Quality is the screencast JPEG quality. Default 80.
	Quality int
	// Repeat re-delivers the last page image when the screencast is idle for
	// this long, so static pages still produce frames. Default 500ms.
	Repeat            time.Duration
	UserAgent         string
	IgnoreHTTPSErrors bool
	Headers           map[string]string
}

// Source delivers screencast frames of one page.
type Source struct {
	opts   Options
	pool   *framepool.Pool
	logger ports.Logger
	clock  func() time.Time

	allocCancel context.CancelFunc
	cancel      context.CancelFunc
	ctx         context.Context

	mu        sync.Mutex
	out       chan ports.RawFrame
	active    bool
	last      image.Image
	lastSent  time.Time
	started   bool
	delivered int
}

// New creates a Source.
func New(opts Options, logger ports.Logger) *Source {
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 80
	}
	if opts.Repeat <= 0 {
		opts.Repeat = 500 * time.Millisecond
	}
	pool := framepool.New(opts.Width, opts.Height)
	opts.Width, opts.Height = pool.Size()

	return &Source{
		opts:   opts,
		pool:   pool,
		logger: logger.WithComponent("chrome"),
		clock:  time.Now,
	}
}

func (s *Source) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(s.opts.Width, s.opts.Height),
	}
	if s.opts.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}
	if path := ResolveChromePath(s.opts.ChromePath); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	if s.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.opts.UserAgent))
	}
	if s.opts.IgnoreHTTPSErrors {
		opts = append(opts,
			chromedp.Flag("ignore-certificate-errors", true),
			chromedp.Flag("allow-insecure-localhost", true))
	}
	return opts
}

// Start launches Chrome, loads the page and begins the screencast.
func (s *Source) Start(ctx context.Context) (<-chan ports.RawFrame, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	if s.opts.URL == "" || s.opts.Width <= 0 || s.opts.Height <= 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("chromesource: url and size are required")
	}
	s.started = true
	s.out = make(chan ports.RawFrame, 1)
	s.mu.Unlock()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, s.allocatorOptions()...)
	s.allocCancel = allocCancel
	s.ctx, s.cancel = chromedp.NewContext(allocCtx)

	chromedp.ListenTarget(s.ctx, s.onEvent)

	actions := []chromedp.Action{
		emulation.SetDeviceMetricsOverride(int64(s.opts.Width), int64(s.opts.Height), 1, false),
	}
	if len(s.opts.Headers) > 0 {
		headers := make(network.Headers, len(s.opts.Headers))
		for k, v := range s.opts.Headers {
			headers[k] = v
		}
		actions = append(actions, network.Enable(), network.SetExtraHTTPHeaders(headers))
	}
	actions = append(actions,
		chromedp.Navigate(s.opts.URL),
		page.StartScreencast().
			WithFormat(page.ScreencastFormatJpeg).
			WithQuality(int64(s.opts.Quality)).
			WithMaxWidth(int64(s.opts.Width)).
			WithMaxHeight(int64(s.opts.Height)).
			WithEveryNthFrame(1),
	)

	s.mu.Lock()
	s.active = true
	s.mu.Unlock()

	if err := chromedp.Run(s.ctx, actions...); err != nil {
		s.shutdown()
		return nil, fmt.Errorf("start screencast: %w", err)
	}
	s.logger.Info("Screencast started: %s (%dx%d)", s.opts.URL, s.opts.Width, s.opts.Height)

	go s.repeat()
	return s.out, nil
}

func (s *Source) onEvent(ev interface{}) {
	e, ok := ev.(*page.EventScreencastFrame)
	if !ok {
		return
	}

	// Acknowledge off the event goroutine, even when the frame is dropped.
	go chromedp.Run(s.ctx, page.ScreencastFrameAck(e.SessionID))

	data, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		s.logger.Debug("Failed to decode screencast frame: %s", err)
		return
	}

	s.mu.Lock()
	s.last = img
	s.mu.Unlock()
	s.deliver(img)
}

// repeat re-sends the last image while the page is not repainting. It shuts
// the source down once the browser context ends.
func (s *Source) repeat() {
	ticker := time.NewTicker(s.opts.Repeat / 2)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		img, idle := s.last, s.clock().Sub(s.lastSent) >= s.opts.Repeat
		s.mu.Unlock()
		if img != nil && idle {
			s.deliver(img)
		}
	}
}

func (s *Source) deliver(img image.Image) {
	now := s.clock()
	frame := s.pool.FromImage(img, now)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		frame.Release()
		return
	}
	select {
	case s.out <- frame:
		s.lastSent = now
		s.delivered++
	default:
		frame.Release()
	}
}

// Delivered returns the number of frames handed to the consumer.
func (s *Source) Delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}

func (s *Source) shutdown() {
	s.mu.Lock()
	wasActive := s.active
	s.active = false
	if wasActive {
		close(s.out)
	}
	s.mu.Unlock()

	if s.cancel != nil {
		if wasActive {
			stopCtx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
			_ = chromedp.Run(stopCtx, page.StopScreencast())
			cancel()
		}
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// Close stops the screencast and shuts Chrome down. Safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}
	s.shutdown()
	return nil
}

// Ensure Source implements ports.FrameSource
var _ ports.FrameSource = (*Source)(nil)
