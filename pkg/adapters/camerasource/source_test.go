package camerasource

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/user/timelapse/pkg/adapters/h264encoder"
	"github.com/user/timelapse/pkg/adapters/logger"
)

func TestBuildArgs(t *testing.T) {
	args := strings.Join(buildArgs(Options{
		Format:    "v4l2",
		Input:     "/dev/video2",
		Width:     320,
		Height:    240,
		FrameRate: 15,
		InputArgs: []string{"-input_format", "mjpeg"},
	}), " ")

	for _, want := range []string{
		"-f v4l2 -input_format mjpeg -i /dev/video2",
		"-vf scale=320:240",
		"-r 15",
		"-f rawvideo -pix_fmt yuv420p pipe:1",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("expected %q in %q", want, args)
		}
	}
}

func TestReadPlanes(t *testing.T) {
	y, u, v := make([]byte, 4), make([]byte, 1), make([]byte, 1)
	r := bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7})

	if err := readPlanes(r, y, u, v); err != nil {
		t.Fatalf("readPlanes failed: %v", err)
	}
	if y[3] != 4 || u[0] != 5 || v[0] != 6 {
		t.Errorf("unexpected planes %v %v %v", y, u, v)
	}

	// One byte left: a truncated frame reads as end of stream.
	if err := readPlanes(r, y, u, v); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Format == "" || opts.Input == "" {
		t.Errorf("expected a platform input, got %+v", opts)
	}
	if opts.Width != 640 || opts.Height != 480 || opts.FrameRate != 30 {
		t.Errorf("unexpected defaults %+v", opts)
	}
}

func TestSource_StartRequiresInput(t *testing.T) {
	src := New(Options{Width: 64, Height: 48}, logger.NewNoop())
	if _, err := src.Start(context.Background()); err == nil {
		t.Error("expected an error without an input")
	}
}

func TestSource_CapturesTestSource(t *testing.T) {
	if !h264encoder.IsFFmpegAvailable() {
		t.Skip("ffmpeg not available")
	}

	src := New(Options{
		Format:    "lavfi",
		Input:     "testsrc=size=64x48:rate=10:duration=1",
		Width:     64,
		Height:    48,
		FrameRate: 10,
		InputArgs: []string{"-re"},
	}, logger.NewNoop())
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	frames, err := src.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := src.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	count := 0
	for frame := range frames {
		if frame.Width != 64 || frame.Height != 48 || len(frame.Y) != 64*48 {
			t.Errorf("unexpected frame %dx%d", frame.Width, frame.Height)
		}
		count++
		frame.Release()
	}

	if ctx.Err() != nil {
		t.Fatal("capture did not finish before the deadline")
	}
	if count == 0 {
		t.Error("expected at least one frame")
	}
	if err := src.Err(); err != nil {
		t.Errorf("unexpected read error: %v", err)
	}
}
