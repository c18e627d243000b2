// Package filesink saves sampled frames to disk for inspection.
package filesink

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"
	"sync"

	"github.com/user/timelapse/pkg/ports"
)

// DefaultQuality is the JPEG quality used when none is given.
const DefaultQuality = 85

// Sink writes every sampled frame as a numbered JPEG under baseDir.
type Sink struct {
	baseDir string
	fs      ports.FileSystem
	quality int

	once    sync.Once
	initErr error
}

// New creates a Sink. A quality outside 1..100 selects DefaultQuality.
func New(baseDir string, fs ports.FileSystem, quality int) *Sink {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Sink{
		baseDir: baseDir,
		fs:      fs,
		quality: quality,
	}
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// Dir returns the directory frames are written to.
func (s *Sink) Dir() string {
	return filepath.Join(s.baseDir, "frames")
}

// SaveSampledFrame encodes img as JPEG and writes it as frame-NNNN.jpg.
func (s *Sink) SaveSampledFrame(index int, img image.Image) error {
	s.once.Do(func() {
		s.initErr = s.fs.MkdirAll(s.Dir())
	})
	if s.initErr != nil {
		return fmt.Errorf("create debug directory: %w", s.initErr)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return fmt.Errorf("encode frame %d: %w", index, err)
	}

	path := filepath.Join(s.Dir(), fmt.Sprintf("frame-%04d.jpg", index))
	return s.fs.WriteFile(path, buf.Bytes())
}

// Ensure Sink implements ports.DebugSink
var _ ports.DebugSink = (*Sink)(nil)
