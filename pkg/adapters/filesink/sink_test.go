package filesink

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"testing"

	"github.com/user/timelapse/pkg/mocks"
)

var testBaseDir = filepath.Join("debug")

func testImage() image.Image {
	img := image.NewYCbCr(image.Rect(0, 0, 16, 16), image.YCbCrSubsampleRatio420)
	for i := range img.Y {
		img.Y[i] = 200
	}
	for i := range img.Cb {
		img.Cb[i] = 128
		img.Cr[i] = 128
	}
	return img
}

func TestSink_Enabled(t *testing.T) {
	sink := New(testBaseDir, mocks.NewFileSystem(), 0)
	if !sink.Enabled() {
		t.Error("expected Enabled to return true")
	}
}

func TestSink_SaveSampledFrame(t *testing.T) {
	fs := mocks.NewFileSystem()
	sink := New(testBaseDir, fs, 90)

	if err := sink.SaveSampledFrame(3, testImage()); err != nil {
		t.Fatalf("SaveSampledFrame failed: %v", err)
	}

	if ok, _ := fs.Exists(filepath.Join(testBaseDir, "frames")); !ok {
		t.Error("expected frames directory to be created")
	}

	path := filepath.Join(testBaseDir, "frames", "frame-0003.jpg")
	data, ok := fs.GetFile(path)
	if !ok {
		t.Fatalf("expected frame at %s", path)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("saved frame is not a JPEG: %v", err)
	}
	if decoded.Bounds().Dx() != 16 || decoded.Bounds().Dy() != 16 {
		t.Errorf("expected 16x16, got %v", decoded.Bounds())
	}
	r, g, b, _ := decoded.At(8, 8).RGBA()
	gray := color.Gray16{Y: uint16((r + g + b) / 3)}
	if gray.Y < 0xB000 {
		t.Errorf("expected a light frame, got %v", gray)
	}
}

func TestSink_DirectoryError(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.MkdirAllFunc = func(string) error { return errors.New("read-only") }
	sink := New(testBaseDir, fs, 0)

	if err := sink.SaveSampledFrame(1, testImage()); err == nil {
		t.Error("expected error when the directory cannot be created")
	}
	if len(fs.GetAllFiles()) != 0 {
		t.Error("no file should be written")
	}
}
