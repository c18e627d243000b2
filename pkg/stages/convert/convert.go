// Package convert merges planar 4:2:0 frames into the semi-planar layout the
// encoder consumes.
package convert

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/timelapse/pkg/pipeline"
	"github.com/user/timelapse/pkg/ports"
)

// ErrFormatMismatch is returned when plane sizes do not match the frame geometry.
var ErrFormatMismatch = errors.New("convert: plane sizes do not match frame geometry")

// Mode selects the chroma merge algorithm.
type Mode int

const (
	// ModeLiteral walks both chroma planes with a stride of two and stops after
	// |U|/2 + |V|/2 bytes. With planes of w*h/4 bytes this fills only the first
	// half of the chroma region and leaves the rest zero. It matches the
	// behavior of devices whose chroma planes carry a pixel stride of two.
	ModeLiteral Mode = iota
	// ModeFull interleaves every U and V sample.
	ModeFull
)

// String returns the config name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeLiteral:
		return "literal"
	case ModeFull:
		return "full"
	default:
		return "unknown"
	}
}

// ParseMode parses a config name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "literal":
		return ModeLiteral, nil
	case "full":
		return ModeFull, nil
	default:
		return ModeLiteral, fmt.Errorf("convert: unknown chroma merge mode %q", s)
	}
}

// FrameSize returns the merged buffer length for a w×h frame.
func FrameSize(width, height int) int {
	return width * height * 3 / 2
}

// Converter merges Y, U and V planes into one semi-planar buffer.
type Converter struct {
	mode Mode
}

// New creates a Converter using the given merge mode.
func New(mode Mode) *Converter {
	return &Converter{mode: mode}
}

// Mode returns the merge mode.
func (c *Converter) Mode() Mode {
	return c.mode
}

// Merge writes the merged form of frame into dst, growing it if needed, and
// returns the filled slice.
func (c *Converter) Merge(frame ports.RawFrame, dst []byte) ([]byte, error) {
	if err := validate(frame); err != nil {
		return nil, err
	}

	lumaSize := frame.Width * frame.Height
	size := FrameSize(frame.Width, frame.Height)
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]

	copy(dst, frame.Y)
	chroma := dst[lumaSize:]

	switch c.mode {
	case ModeFull:
		for k := range frame.U {
			chroma[2*k] = frame.U[k]
			chroma[2*k+1] = frame.V[k]
		}
	default:
		clear(chroma)
		end := len(frame.Y) + len(frame.U)/2 + len(frame.V)/2
		u, v := 0, 0
		for i := lumaSize; i < end; i += 2 {
			dst[i] = frame.U[u]
			dst[i+1] = frame.V[v]
			u += 2
			v += 2
		}
	}

	return dst, nil
}

// Execute implements pipeline.Stage with a freshly allocated buffer.
func (c *Converter) Execute(ctx context.Context, frame ports.RawFrame) (pipeline.MergedFrame, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.MergedFrame{}, err
	}

	data, err := c.Merge(frame, nil)
	if err != nil {
		return pipeline.MergedFrame{}, err
	}

	return pipeline.MergedFrame{
		Width:  frame.Width,
		Height: frame.Height,
		Data:   data,
	}, nil
}

func validate(frame ports.RawFrame) error {
	w, h := frame.Width, frame.Height
	if w <= 0 || h <= 0 || w%2 != 0 || h%2 != 0 {
		return fmt.Errorf("%w: unsupported dimensions %dx%d", ErrFormatMismatch, w, h)
	}

	lumaSize := w * h
	chromaSize := lumaSize / 4
	if len(frame.Y) != lumaSize {
		return fmt.Errorf("%w: Y plane has %d bytes, expected %d", ErrFormatMismatch, len(frame.Y), lumaSize)
	}
	if len(frame.U) != chromaSize {
		return fmt.Errorf("%w: U plane has %d bytes, expected %d", ErrFormatMismatch, len(frame.U), chromaSize)
	}
	if len(frame.V) != chromaSize {
		return fmt.Errorf("%w: V plane has %d bytes, expected %d", ErrFormatMismatch, len(frame.V), chromaSize)
	}
	return nil
}

// Ensure Converter implements pipeline.Stage
var _ pipeline.Stage[ports.RawFrame, pipeline.MergedFrame] = (*Converter)(nil)
