package h264encoder

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/user/timelapse/pkg/adapters/logger"
	"github.com/user/timelapse/pkg/ports"
)

func testConfig(w, h int) ports.EncoderConfig {
	return ports.EncoderConfig{
		Codec:               ports.MimeTypeAVC,
		Width:               w,
		Height:              h,
		Layout:              ports.LayoutSemiPlanar,
		Bitrate:             400_000,
		FrameRate:           30,
		KeyframeIntervalSec: 2,
	}
}

func TestBuildArgs(t *testing.T) {
	args := buildArgs(testConfig(640, 480), DefaultOptions())
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-pix_fmt nv12",
		"-s 640x480",
		"-r 30",
		"-c:v libx264",
		"-b:v 400000",
		"-g 60",
		"-bf 0",
		"-tune zerolatency",
		"-bsf:v h264_metadata=aud=insert",
		"-f h264 pipe:1",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in %q", want, joined)
		}
	}
}

func TestBuildArgs_HardwareCodec(t *testing.T) {
	opts := DefaultOptions()
	opts.Codec = "h264_v4l2m2m"
	cfg := testConfig(640, 480)
	cfg.Layout = ports.LayoutPlanar
	cfg.KeyframeIntervalSec = 0

	joined := strings.Join(buildArgs(cfg, opts), " ")
	if strings.Contains(joined, "zerolatency") {
		t.Error("libx264 tuning must not be passed to other encoders")
	}
	if !strings.Contains(joined, "-pix_fmt yuv420p") || !strings.Contains(joined, "-g 1") {
		t.Errorf("unexpected args %q", joined)
	}
}

func TestSplitter_SplitsAtDelimiters(t *testing.T) {
	aud := []byte{0, 0, 0, 1, 0x09, 0xf0}
	sps := []byte{0, 0, 0, 1, 0x67, 0x42}
	idr := []byte{0, 0, 1, 0x65, 0x88}
	slice := []byte{0, 0, 0, 1, 0x41, 0x9a}

	var stream []byte
	stream = append(stream, aud...)
	stream = append(stream, sps...)
	stream = append(stream, idr...)
	stream = append(stream, aud...)
	stream = append(stream, slice...)
	stream = append(stream, aud...)
	stream = append(stream, slice...)

	// Feed one byte at a time so delimiters straddle every boundary.
	var s auSplitter
	var units [][]byte
	for i := range stream {
		units = append(units, s.push(stream[i:i+1])...)
	}
	if rest := s.flush(); rest != nil {
		units = append(units, rest)
	}

	if len(units) != 3 {
		t.Fatalf("expected 3 access units, got %d", len(units))
	}
	if !bytes.Equal(units[0], append(append(append([]byte{}, aud...), sps...), idr...)) {
		t.Errorf("first unit: % x", units[0])
	}
	if !bytes.HasPrefix(units[1], aud) || !bytes.HasSuffix(units[1], slice) {
		t.Errorf("second unit: % x", units[1])
	}

	info := inspect(units[0])
	if !info.keyframe || !info.hasVideo || len(info.sps) != 1 {
		t.Errorf("unexpected first unit info %+v", info)
	}
	if info := inspect(units[1]); info.keyframe || !info.hasVideo {
		t.Errorf("unexpected second unit info %+v", info)
	}
}

func TestSplitter_ParameterSetsOnly(t *testing.T) {
	info := inspect([]byte{0, 0, 0, 1, 0x67, 0x42, 0, 0, 0, 1, 0x68, 0xce})
	if info.hasVideo || len(info.sps) != 1 || len(info.pps) != 1 {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestEncoder_StateErrors(t *testing.T) {
	enc := New(Options{}, logger.NewNoop())

	if err := enc.Start(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if _, ok := enc.DequeueInputSlot(); ok {
		t.Error("no slot should be available before Start")
	}
	if err := enc.QueueInput(0, 1, 0, 0); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
	if err := enc.ReturnInputSlot(0); !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("expected ErrInvalidSlot, got %v", err)
	}

	cfg := testConfig(640, 480)
	cfg.Codec = "video/hevc"
	if err := enc.Configure(cfg); !errors.Is(err, ErrUnsupportedConfig) {
		t.Errorf("expected ErrUnsupportedConfig, got %v", err)
	}

	if err := enc.Release(); err != nil {
		t.Errorf("Release of an idle encoder failed: %v", err)
	}
}

func TestEncoder_EncodesFrames(t *testing.T) {
	if !IsFFmpegAvailable() {
		t.Skip("ffmpeg not available")
	}

	const w, h, frames = 64, 64, 10
	opts := DefaultOptions()
	opts.EOSTimeout = 5 * time.Second
	enc := New(opts, logger.NewNoop())
	defer enc.Release()

	if err := enc.Configure(testConfig(w, h)); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := enc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// A slot given back unqueued is handed out again, and only once.
	slot, ok := enc.DequeueInputSlot()
	if !ok {
		t.Fatal("expected a free slot after Start")
	}
	if err := enc.QueueInput(slot, 1, 0, 0); !errors.Is(err, ErrUnsupportedConfig) {
		t.Fatalf("expected ErrUnsupportedConfig for a short frame, got %v", err)
	}
	if err := enc.ReturnInputSlot(slot); err != nil {
		t.Fatalf("ReturnInputSlot failed: %v", err)
	}
	if err := enc.ReturnInputSlot(slot); !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("expected ErrInvalidSlot on a second return, got %v", err)
	}

	var events []ports.OutputEvent
	poll := func() {
		for {
			ev, err := enc.PollOutput()
			if err != nil {
				t.Fatalf("PollOutput failed: %v", err)
			}
			if ev.Kind == ports.OutputNone {
				return
			}
			events = append(events, ev)
		}
	}

	for i := 0; i < frames; i++ {
		var slot int
		deadline := time.Now().Add(5 * time.Second)
		for {
			var ok bool
			if slot, ok = enc.DequeueInputSlot(); ok {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("no input slot became free")
			}
			poll()
			time.Sleep(5 * time.Millisecond)
		}

		buf := enc.InputBuffer(slot)
		for j := range buf {
			buf[j] = byte(16 + i*8)
		}
		if err := enc.QueueInput(slot, len(buf), int64(i), 0); err != nil {
			t.Fatalf("QueueInput failed: %v", err)
		}
		poll()
	}

	if err := enc.SignalEndOfStream(); err != nil {
		t.Fatalf("SignalEndOfStream failed: %v", err)
	}
	poll()
	if err := enc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	var formats, buffers, keyframes int
	sawEOS := false
	for _, ev := range events {
		switch ev.Kind {
		case ports.OutputFormatChanged:
			formats++
		case ports.OutputBuffer:
			if ev.Flags&ports.FlagCodecConfig == 0 {
				buffers++
			}
			if ev.Flags&ports.FlagKeyframe != 0 {
				keyframes++
			}
		case ports.OutputEndOfStream:
			sawEOS = true
		}
	}

	if formats != 1 {
		t.Errorf("expected one format change, got %d", formats)
	}
	if buffers != frames {
		t.Errorf("expected %d access units, got %d", frames, buffers)
	}
	if keyframes < 1 {
		t.Error("expected at least one keyframe")
	}
	if !sawEOS {
		t.Error("expected end of stream")
	}

	format := enc.OutputFormat()
	if format.Width != w || format.Height != h {
		t.Errorf("expected %dx%d from the SPS, got %dx%d", w, h, format.Width, format.Height)
	}
	if len(format.SPS) == 0 || len(format.PPS) == 0 {
		t.Error("expected parameter sets in the output format")
	}
}
