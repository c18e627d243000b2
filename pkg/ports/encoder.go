package ports

// MimeTypeAVC is the codec kind for H.264 video.
const MimeTypeAVC = "video/avc"

// PixelLayout describes the byte layout of frames submitted to an encoder.
type PixelLayout int

const (
	// LayoutSemiPlanar is a full Y plane followed by interleaved U/V pairs (U first).
	LayoutSemiPlanar PixelLayout = iota
	// LayoutPlanar is a full Y plane followed by the U plane and the V plane.
	LayoutPlanar
)

// String returns the ffmpeg pixel format name for the layout.
func (l PixelLayout) String() string {
	switch l {
	case LayoutSemiPlanar:
		return "nv12"
	case LayoutPlanar:
		return "yuv420p"
	default:
		return "unknown"
	}
}

// EncoderConfig configures a hardware encoder session.
type EncoderConfig struct {
	Codec               string // e.g. MimeTypeAVC
	Width               int
	Height              int
	Layout              PixelLayout
	Bitrate             int // bits per second
	FrameRate           int // nominal output frames per second
	KeyframeIntervalSec int
}

// OutputFormat is the negotiated format reported by the encoder once it knows
// its codec parameters. It is what a container needs to register a track.
type OutputFormat struct {
	Codec     string
	Width     int
	Height    int
	FrameRate int
	SPS       [][]byte // sequence parameter sets without start codes
	PPS       [][]byte // picture parameter sets without start codes
}

// BufferFlags annotates encoder input and output buffers.
type BufferFlags uint32

const (
	// FlagKeyframe marks a buffer that can be decoded on its own.
	FlagKeyframe BufferFlags = 1 << iota
	// FlagCodecConfig marks a buffer holding only codec parameters, not media.
	FlagCodecConfig
	// FlagEndOfStream marks the last buffer of a stream.
	FlagEndOfStream
)

// OutputKind identifies what a poll of the encoder output produced.
type OutputKind int

const (
	// OutputNone means no output is ready right now.
	OutputNone OutputKind = iota
	// OutputFormatChanged means OutputFormat is now available.
	OutputFormatChanged
	// OutputBuffer means a completed buffer is ready.
	OutputBuffer
	// OutputEndOfStream means the encoder has emitted everything it will emit.
	OutputEndOfStream
)

// OutputEvent is the result of one non-blocking output poll.
type OutputEvent struct {
	Kind   OutputKind
	Index  int // output slot to release, valid for OutputBuffer
	Data   []byte
	Flags  BufferFlags
	Marker int64 // submission marker echoed by the encoder, informational only
}

// HardwareEncoder abstracts a single-client video encoder with a fixed pool of
// input slots and polled output, in the style of platform codec APIs.
// Implementations are not required to be safe for concurrent callers.
type HardwareEncoder interface {
	// Configure prepares the encoder session.
	Configure(cfg EncoderConfig) error

	// Start begins encoding after Configure.
	Start() error

	// DequeueInputSlot returns a free input slot without blocking.
	// ok is false when every slot is in use.
	DequeueInputSlot() (slot int, ok bool)

	// InputBuffer returns the writable buffer backing an input slot.
	InputBuffer(slot int) []byte

	// QueueInput submits size bytes of the slot's buffer for encoding.
	QueueInput(slot int, size int, marker int64, flags BufferFlags) error

	// ReturnInputSlot gives back a dequeued slot that will not be queued.
	ReturnInputSlot(slot int) error

	// PollOutput returns the next output event without blocking.
	PollOutput() (OutputEvent, error)

	// OutputFormat returns the negotiated format once OutputFormatChanged was seen.
	OutputFormat() OutputFormat

	// ReleaseOutput returns an output slot to the encoder.
	ReleaseOutput(index int) error

	// SignalEndOfStream tells the encoder no more input will arrive.
	SignalEndOfStream() error

	// Stop halts encoding.
	Stop() error

	// Release frees all encoder resources.
	Release() error
}
