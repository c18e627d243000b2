package mocks

import (
	"image"
	"sync"

	"github.com/user/timelapse/pkg/ports"
)

// ContainerSink is a mock implementation of ports.ContainerSink.
type ContainerSink struct {
	mu sync.Mutex

	OpenFunc        func(path string) error
	AddTrackFunc    func(format ports.OutputFormat) (int, error)
	StartFunc       func() error
	WriteSampleFunc func(track int, data []byte, ptsUs int64, flags ports.BufferFlags) error
	StopFunc        func() error
	ReleaseFunc     func() error

	// Recorded calls for verification
	OpenedPath   string
	Tracks       []ports.OutputFormat
	StartCalled  bool
	Samples      []WriteSampleCall
	StopCalled   bool
	ReleaseCalls int
}

// WriteSampleCall records a call to WriteSample.
type WriteSampleCall struct {
	Track int
	Data  []byte
	PTS   int64
	Flags ports.BufferFlags
}

func (m *ContainerSink) Open(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenFunc != nil {
		if err := m.OpenFunc(path); err != nil {
			return err
		}
	}
	m.OpenedPath = path
	return nil
}

func (m *ContainerSink) AddTrack(format ports.OutputFormat) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddTrackFunc != nil {
		id, err := m.AddTrackFunc(format)
		if err != nil {
			return id, err
		}
	}
	m.Tracks = append(m.Tracks, format)
	return len(m.Tracks), nil
}

func (m *ContainerSink) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalled = true
	if m.StartFunc != nil {
		return m.StartFunc()
	}
	return nil
}

func (m *ContainerSink) WriteSample(track int, data []byte, ptsUs int64, flags ports.BufferFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteSampleFunc != nil {
		if err := m.WriteSampleFunc(track, data, ptsUs, flags); err != nil {
			return err
		}
	}
	m.Samples = append(m.Samples, WriteSampleCall{
		Track: track,
		Data:  append([]byte(nil), data...),
		PTS:   ptsUs,
		Flags: flags,
	})
	return nil
}

func (m *ContainerSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalled = true
	if m.StopFunc != nil {
		return m.StopFunc()
	}
	return nil
}

func (m *ContainerSink) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReleaseCalls++
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc()
	}
	return nil
}

// PTS returns the presentation times of all written samples.
func (m *ContainerSink) PTS() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.Samples))
	for i, s := range m.Samples {
		out[i] = s.PTS
	}
	return out
}

var _ ports.ContainerSink = (*ContainerSink)(nil)

// DebugSink is a mock implementation of ports.DebugSink.
type DebugSink struct {
	mu sync.RWMutex

	enabled bool

	SampledFrames map[int]image.Image
}

// NewDebugSink creates a new mock DebugSink.
func NewDebugSink(enabled bool) *DebugSink {
	return &DebugSink{
		enabled:       enabled,
		SampledFrames: make(map[int]image.Image),
	}
}

func (m *DebugSink) Enabled() bool {
	return m.enabled
}

func (m *DebugSink) SaveSampledFrame(index int, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SampledFrames[index] = img
	return nil
}

// Count returns the number of saved frames.
func (m *DebugSink) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SampledFrames)
}

var _ ports.DebugSink = (*DebugSink)(nil)

// NullSink is a no-op implementation of ports.DebugSink.
type NullSink struct{}

func (m *NullSink) Enabled() bool                                 { return false }
func (m *NullSink) SaveSampledFrame(index int, img image.Image) error { return nil }

var _ ports.DebugSink = (*NullSink)(nil)
