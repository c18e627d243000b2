package ports

import (
	"image"
)

// ContainerSink abstracts a single-track media container writer.
type ContainerSink interface {
	// Open creates the output at path.
	Open(path string) error

	// AddTrack registers the video track and returns its identifier.
	AddTrack(format OutputFormat) (int, error)

	// Start writes the container header. No samples may be written before it.
	Start() error

	// WriteSample appends one encoded access unit with its presentation time in microseconds.
	WriteSample(track int, data []byte, ptsUs int64, flags BufferFlags) error

	// Stop finalizes the container.
	Stop() error

	// Release frees the output handle. Safe to call more than once.
	Release() error
}

// DebugSink abstracts debug output for intermediate results.
// It allows saving sampled frames for inspection.
type DebugSink interface {
	// Enabled returns true if debug output is enabled.
	Enabled() bool

	// SaveSampledFrame saves a frame admitted by the sampler.
	SaveSampledFrame(index int, img image.Image) error
}
