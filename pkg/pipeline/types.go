package pipeline

import (
	"github.com/user/timelapse/pkg/ports"
)

// MergedFrame is a frame in the semi-planar layout the encoder consumes:
// the Y plane followed by interleaved chroma pairs, w*h*3/2 bytes in total.
type MergedFrame struct {
	Width  int
	Height int
	Data   []byte
}

// AccessUnit is one encoded chunk ready for the container.
type AccessUnit struct {
	Data    []byte
	Size    int
	PTS     int64 // synthesized presentation time in microseconds
	Flags   ports.BufferFlags
	TrackID int

	release func()
}

// NewAccessUnit creates an AccessUnit whose Release calls release.
func NewAccessUnit(data []byte, pts int64, flags ports.BufferFlags, trackID int, release func()) AccessUnit {
	return AccessUnit{
		Data:    data,
		Size:    len(data),
		PTS:     pts,
		Flags:   flags,
		TrackID: trackID,
		release: release,
	}
}

// Keyframe reports whether the unit is independently decodable.
func (au AccessUnit) Keyframe() bool {
	return au.Flags&ports.FlagKeyframe != 0
}

// Release hands the backing buffer back to the encoder. Data must not be used afterwards.
func (au AccessUnit) Release() {
	if au.release != nil {
		au.release()
	}
}

// PresentationTime returns the synthesized timestamp, in microseconds, of the
// n-th output frame at the given nominal frame rate. The multiplication comes
// first so that rounding never accumulates: at 30 fps the sequence is
// 0, 33333, 66666, 100000.
func PresentationTime(n int64, frameRate int) int64 {
	if frameRate <= 0 {
		return 0
	}
	return n * 1_000_000 / int64(frameRate)
}
