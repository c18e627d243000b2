package chromesource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/user/timelapse/pkg/adapters/logger"
)

func TestSource_StartRequiresURL(t *testing.T) {
	src := New(Options{Width: 320, Height: 240}, logger.NewNoop())
	if _, err := src.Start(context.Background()); err == nil {
		t.Error("expected an error without a URL")
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestSource_Defaults(t *testing.T) {
	src := New(Options{URL: "about:blank", Width: 321, Height: 241}, logger.NewNoop())
	if src.opts.Quality != 80 || src.opts.Repeat != 500*time.Millisecond {
		t.Errorf("unexpected defaults %+v", src.opts)
	}
	if src.opts.Width != 320 || src.opts.Height != 240 {
		t.Errorf("expected even size 320x240, got %dx%d", src.opts.Width, src.opts.Height)
	}
}

func TestSource_CloseBeforeStart(t *testing.T) {
	src := New(Options{URL: "about:blank", Width: 64, Height: 64}, logger.NewNoop())
	if err := src.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestSource_CapturesPage(t *testing.T) {
	if ResolveChromePath("") == "" {
		t.Skip("Chrome not installed")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body style="margin:0;background:#204080">
<div id="t" style="font:40px sans-serif;color:white"></div>
<script>setInterval(()=>{document.getElementById('t').textContent=Date.now()},100)</script>
</body></html>`)
	}))
	defer server.Close()

	src := New(Options{
		URL:      server.URL,
		Width:    320,
		Height:   240,
		Headless: true,
		Repeat:   100 * time.Millisecond,
	}, logger.NewNoop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	frames, err := src.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := src.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case frame, ok := <-frames:
			if !ok {
				t.Fatal("channel closed early")
			}
			if frame.Width != 320 || frame.Height != 240 || len(frame.Y) != 320*240 {
				t.Errorf("unexpected frame %dx%d", frame.Width, frame.Height)
			}
			frame.Release()
		case <-ctx.Done():
			t.Fatal("timed out waiting for frames")
		}
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	for frame := range frames {
		frame.Release()
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
