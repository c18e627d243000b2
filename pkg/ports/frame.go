package ports

import (
	"context"
	"time"
)

// RawFrame is a planar 4:2:0 frame delivered by a FrameSource.
// The plane slices belong to the source and are only valid until Release.
type RawFrame struct {
	Width       int
	Height      int
	Y           []byte
	U           []byte
	V           []byte
	CaptureTime time.Time

	// ReleaseFunc hands the plane buffers back to the source. May be nil.
	ReleaseFunc func()
}

// Release returns the frame to its source. Safe to call on frames without a release hook.
func (f RawFrame) Release() {
	if f.ReleaseFunc != nil {
		f.ReleaseFunc()
	}
}

// FrameSource produces a continuous stream of raw frames.
type FrameSource interface {
	// Start begins capturing and returns a channel of frames.
	// The channel is closed when capture ends or ctx is cancelled.
	Start(ctx context.Context) (<-chan RawFrame, error)

	// Close stops capturing and releases the source.
	Close() error
}
