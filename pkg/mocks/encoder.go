package mocks

import (
	"fmt"
	"sync"

	"github.com/user/timelapse/pkg/ports"
)

// HardwareEncoder is a mock implementation of ports.HardwareEncoder.
//
// With AutoEncode set, every queued input immediately produces one output
// buffer, preceded by a format-changed event the first time, and
// SignalEndOfStream produces an end-of-stream event. Without it, tests script
// output by calling Emit.
type HardwareEncoder struct {
	mu sync.Mutex

	ConfigureFunc         func(cfg ports.EncoderConfig) error
	StartFunc             func() error
	QueueInputFunc        func(slot, size int, marker int64, flags ports.BufferFlags) error
	PollOutputFunc        func() (ports.OutputEvent, error)
	SignalEndOfStreamFunc func() error
	StopFunc              func() error
	ReleaseFunc           func() error

	// SlotCount is the number of input slots. Zero means two.
	SlotCount int
	// HoldSlots keeps queued slots busy until FreeSlots is called.
	HoldSlots bool
	// AutoEncode turns each queued input into an output buffer.
	AutoEncode bool
	// Format is reported by OutputFormat.
	Format ports.OutputFormat
	// KeyframeEvery marks every n-th auto-encoded buffer as a keyframe. Zero means every buffer.
	KeyframeEvery int

	busy    map[int]bool
	buffers [][]byte
	outputs []ports.OutputEvent
	nextOut int
	encoded int
	sentFmt bool

	// Recorded calls for verification
	ConfigureCalls    []ports.EncoderConfig
	StartCalled       bool
	QueueInputCalls   []QueueInputCall
	ReleasedOutputs   []int
	ReturnedSlots     []int
	EndOfStreamCalled bool
	StopCalled        bool
	ReleaseCalls      int
}

// QueueInputCall records a call to QueueInput.
type QueueInputCall struct {
	Slot   int
	Data   []byte
	Marker int64
	Flags  ports.BufferFlags
}

// NewHardwareEncoder creates a mock encoder that encodes every queued input.
func NewHardwareEncoder(format ports.OutputFormat) *HardwareEncoder {
	return &HardwareEncoder{
		AutoEncode: true,
		Format:     format,
	}
}

func (m *HardwareEncoder) slots() int {
	if m.SlotCount > 0 {
		return m.SlotCount
	}
	return 2
}

func (m *HardwareEncoder) Configure(cfg ports.EncoderConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConfigureCalls = append(m.ConfigureCalls, cfg)
	if m.ConfigureFunc != nil {
		if err := m.ConfigureFunc(cfg); err != nil {
			return err
		}
	}
	size := cfg.Width * cfg.Height * 3 / 2
	m.buffers = make([][]byte, m.slots())
	for i := range m.buffers {
		m.buffers[i] = make([]byte, size)
	}
	m.busy = make(map[int]bool)
	return nil
}

func (m *HardwareEncoder) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalled = true
	if m.StartFunc != nil {
		return m.StartFunc()
	}
	return nil
}

func (m *HardwareEncoder) DequeueInputSlot() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < len(m.buffers); i++ {
		if !m.busy[i] {
			m.busy[i] = true
			return i, true
		}
	}
	return -1, false
}

func (m *HardwareEncoder) InputBuffer(slot int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot < 0 || slot >= len(m.buffers) {
		return nil
	}
	return m.buffers[slot]
}

func (m *HardwareEncoder) QueueInput(slot, size int, marker int64, flags ports.BufferFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := make([]byte, size)
	copy(data, m.buffers[slot][:size])
	m.QueueInputCalls = append(m.QueueInputCalls, QueueInputCall{
		Slot:   slot,
		Data:   data,
		Marker: marker,
		Flags:  flags,
	})
	if m.QueueInputFunc != nil {
		if err := m.QueueInputFunc(slot, size, marker, flags); err != nil {
			return err
		}
	}
	if !m.HoldSlots {
		m.busy[slot] = false
	}

	if m.AutoEncode {
		if !m.sentFmt {
			m.sentFmt = true
			m.outputs = append(m.outputs, ports.OutputEvent{Kind: ports.OutputFormatChanged})
		}
		var outFlags ports.BufferFlags
		if m.KeyframeEvery <= 0 || m.encoded%m.KeyframeEvery == 0 {
			outFlags = ports.FlagKeyframe
		}
		m.encoded++
		m.outputs = append(m.outputs, ports.OutputEvent{
			Kind:   ports.OutputBuffer,
			Index:  m.nextOut,
			Data:   []byte{0x00, 0x00, 0x00, 0x01, 0x65, byte(m.encoded)},
			Flags:  outFlags,
			Marker: marker,
		})
		m.nextOut++
	}
	return nil
}

func (m *HardwareEncoder) PollOutput() (ports.OutputEvent, error) {
	if m.PollOutputFunc != nil {
		return m.PollOutputFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.outputs) == 0 {
		return ports.OutputEvent{Kind: ports.OutputNone}, nil
	}
	ev := m.outputs[0]
	m.outputs = m.outputs[1:]
	return ev, nil
}

func (m *HardwareEncoder) OutputFormat() ports.OutputFormat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Format
}

func (m *HardwareEncoder) ReleaseOutput(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReleasedOutputs = append(m.ReleasedOutputs, index)
	return nil
}

func (m *HardwareEncoder) SignalEndOfStream() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EndOfStreamCalled = true
	if m.SignalEndOfStreamFunc != nil {
		if err := m.SignalEndOfStreamFunc(); err != nil {
			return err
		}
	}
	if m.AutoEncode {
		m.outputs = append(m.outputs, ports.OutputEvent{Kind: ports.OutputEndOfStream})
	}
	return nil
}

func (m *HardwareEncoder) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalled = true
	if m.StopFunc != nil {
		return m.StopFunc()
	}
	return nil
}

func (m *HardwareEncoder) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReleaseCalls++
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc()
	}
	return nil
}

// Emit appends scripted output events returned by later PollOutput calls.
func (m *HardwareEncoder) Emit(events ...ports.OutputEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs = append(m.outputs, events...)
}

func (m *HardwareEncoder) ReturnInputSlot(slot int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.busy[slot] {
		return fmt.Errorf("slot %d is not in use", slot)
	}
	m.busy[slot] = false
	m.ReturnedSlots = append(m.ReturnedSlots, slot)
	return nil
}

// FreeSlots returns every busy input slot (for HoldSlots tests).
func (m *HardwareEncoder) FreeSlots() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.busy {
		m.busy[k] = false
	}
}

// Queued returns a copy of the recorded QueueInput calls.
func (m *HardwareEncoder) Queued() []QueueInputCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]QueueInputCall(nil), m.QueueInputCalls...)
}

var _ ports.HardwareEncoder = (*HardwareEncoder)(nil)
