// Package nullsink is the debug sink used when --debug is off.
package nullsink

import (
	"image"

	"github.com/user/timelapse/pkg/ports"
)

// Sink drops sampled frames without looking at them.
type Sink struct{}

func New() Sink { return Sink{} }

// Enabled reports false, so the recorder never copies frames for it.
func (Sink) Enabled() bool { return false }

func (Sink) SaveSampledFrame(int, image.Image) error { return nil }

var _ ports.DebugSink = Sink{}
