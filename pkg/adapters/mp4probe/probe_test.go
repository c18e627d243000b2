package mp4probe

import (
	"bytes"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/user/timelapse/pkg/adapters/mp4sink"
	"github.com/user/timelapse/pkg/mocks"
	"github.com/user/timelapse/pkg/ports"
)

// 1280x720 High profile parameter sets.
var (
	testSPS = []byte{
		0x67, 0x64, 0x00, 0x1f, 0xac, 0xd9, 0x40, 0x50, 0x05, 0xbb, 0xff, 0x00,
		0x03, 0x00, 0x04, 0x6a, 0x02, 0x02, 0x02, 0x80, 0x00, 0x01, 0xf4, 0x80,
		0x00, 0x5d, 0xc0, 0x07, 0x8c, 0x18, 0xcb,
	}
	testPPS = []byte{0x68, 0xeb, 0xe3, 0xcb, 0x22, 0xc0}
)

func writeRecording(t *testing.T, fs *mocks.FileSystem, keyframes []bool) {
	t.Helper()

	sink := mp4sink.New(fs)
	if err := sink.Open("rec.mp4"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	track, err := sink.AddTrack(ports.OutputFormat{
		Codec:     ports.MimeTypeAVC,
		FrameRate: 30,
		SPS:       [][]byte{testSPS},
		PPS:       [][]byte{testPPS},
	})
	if err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}
	if err := sink.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i, key := range keyframes {
		data := []byte{0, 0, 0, 1, 0x41, 0x9a, byte(i)}
		var flags ports.BufferFlags
		if key {
			data = []byte{0, 0, 0, 1, 0x65, 0x88, byte(i)}
			flags = ports.FlagKeyframe
		}
		pts := int64(i) * 1_000_000 / 30
		if err := sink.WriteSample(track, data, pts, flags); err != nil {
			t.Fatalf("WriteSample failed: %v", err)
		}
	}
	if err := sink.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestProbeFile(t *testing.T) {
	fs := mocks.NewFileSystem()
	writeRecording(t, fs, []bool{true, false, true, false})

	info, err := ProbeFile(fs, "rec.mp4")
	if err != nil {
		t.Fatalf("ProbeFile failed: %v", err)
	}

	if info.Codec != "avc1" {
		t.Errorf("expected avc1, got %q", info.Codec)
	}
	if info.Width != 1280 || info.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", info.Width, info.Height)
	}
	if !info.Fragmented || info.Fragments != 2 {
		t.Errorf("expected 2 fragments, got %d (fragmented %t)", info.Fragments, info.Fragmented)
	}
	if info.Samples != 4 || info.Keyframes != 2 {
		t.Errorf("expected 4 samples and 2 keyframes, got %d and %d", info.Samples, info.Keyframes)
	}
	if info.Timescale != mp4sink.Timescale {
		t.Errorf("expected timescale %d, got %d", mp4sink.Timescale, info.Timescale)
	}
	if info.Duration != 133333*time.Microsecond {
		t.Errorf("expected 133.333ms, got %s", info.Duration)
	}
	if info.Size == 0 {
		t.Error("expected a file size")
	}
	if fps := info.FrameRate(); fps < 29.9 || fps > 30.1 {
		t.Errorf("expected about 30 fps, got %.2f", fps)
	}
}

func TestProbe_Errors(t *testing.T) {
	if _, err := ProbeFile(mocks.NewFileSystem(), "missing.mp4"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
	if _, err := Probe(bytes.NewReader([]byte("not an mp4 file"))); err == nil {
		t.Error("expected an error for garbage input")
	}
}

func TestInfo_FrameRateWithoutDuration(t *testing.T) {
	if fps := (Info{Samples: 3}).FrameRate(); fps != 0 {
		t.Errorf("expected 0, got %f", fps)
	}
}
