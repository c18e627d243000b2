// Package mp4sink writes a single H.264 track as fragmented MP4.
package mp4sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/user/timelapse/pkg/ports"
)

// Timescale is one tick per microsecond so presentation times map exactly.
const Timescale = 1_000_000

// trackID is the only track the sink writes.
const trackID = 1

// maxFragmentSamples bounds a fragment when keyframes are rare.
const maxFragmentSamples = 300

var (
	// ErrNotOpen is returned when the sink is used before Open or after Release.
	ErrNotOpen = errors.New("mp4sink: not open")

	// ErrNotStarted is returned when samples arrive before Start.
	ErrNotStarted = errors.New("mp4sink: not started")

	// ErrMissingParameterSets is returned when a format has no SPS or PPS.
	ErrMissingParameterSets = errors.New("mp4sink: format has no SPS/PPS")
)

type pendingSample struct {
	data []byte
	pts  int64
	sync bool
}

// Sink implements ports.ContainerSink. Each group of pictures becomes one
// moof/mdat pair, so a file cut short still plays up to its last fragment.
type Sink struct {
	fs ports.FileSystem

	file     io.WriteCloser
	w        *bufio.Writer
	init     *mp4.InitSegment
	format   ports.OutputFormat
	started  bool
	seq      uint32
	pending  []pendingSample
	samples  int
	lastPTS  int64
	frameDur uint32
}

// New creates a Sink that creates its file through fs.
func New(fs ports.FileSystem) *Sink {
	return &Sink{fs: fs}
}

// Open creates the output file.
func (s *Sink) Open(path string) error {
	if s.file != nil {
		return fmt.Errorf("mp4sink: already open")
	}
	f, err := s.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	s.file = f
	s.w = bufio.NewWriter(f)
	return nil
}

// AddTrack builds the init segment for the video track described by format.
func (s *Sink) AddTrack(format ports.OutputFormat) (int, error) {
	if s.file == nil {
		return -1, ErrNotOpen
	}
	if s.init != nil {
		return -1, fmt.Errorf("mp4sink: track already added")
	}
	if len(format.SPS) == 0 || len(format.PPS) == 0 {
		return -1, ErrMissingParameterSets
	}

	if format.Width == 0 || format.Height == 0 {
		sps, err := avc.ParseSPSNALUnit(format.SPS[0], false)
		if err != nil {
			return -1, fmt.Errorf("parse SPS: %w", err)
		}
		format.Width, format.Height = int(sps.Width), int(sps.Height)
	}

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(Timescale, "video", "en")
	trak := init.Moov.Trak

	avcC, err := mp4.CreateAvcC(format.SPS, format.PPS, true)
	if err != nil {
		return -1, fmt.Errorf("create avcC: %w", err)
	}
	avc1 := mp4.CreateVisualSampleEntryBox("avc1", uint16(format.Width), uint16(format.Height), avcC)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(avc1)
	trak.Tkhd.Width = mp4.Fixed32(format.Width << 16)
	trak.Tkhd.Height = mp4.Fixed32(format.Height << 16)

	fps := format.FrameRate
	if fps <= 0 {
		fps = 30
	}
	s.frameDur = uint32(Timescale / fps)
	s.init = init
	s.format = format
	return trackID, nil
}

// Start writes ftyp and moov.
func (s *Sink) Start() error {
	if s.file == nil {
		return ErrNotOpen
	}
	if s.init == nil {
		return fmt.Errorf("mp4sink: no track added")
	}
	if s.started {
		return nil
	}

	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "avc1", "mp41"})
	if err := ftyp.Encode(s.w); err != nil {
		return fmt.Errorf("encode ftyp: %w", err)
	}
	if err := s.init.Moov.Encode(s.w); err != nil {
		return fmt.Errorf("encode moov: %w", err)
	}

	s.started = true
	s.seq = 1
	s.lastPTS = -1
	return nil
}

// WriteSample queues one access unit given in Annex B form. The pending
// fragment is written when the next keyframe arrives.
func (s *Sink) WriteSample(track int, data []byte, ptsUs int64, flags ports.BufferFlags) error {
	if !s.started {
		return ErrNotStarted
	}
	if track != trackID {
		return fmt.Errorf("mp4sink: unknown track %d", track)
	}
	if ptsUs <= s.lastPTS {
		return fmt.Errorf("mp4sink: pts %d not after %d", ptsUs, s.lastPTS)
	}

	sample := toAVCC(data)
	if len(sample) == 0 {
		return nil
	}
	sync := flags&ports.FlagKeyframe != 0

	if len(s.pending) > 0 && (sync || len(s.pending) >= maxFragmentSamples) {
		if err := s.flush(ptsUs); err != nil {
			return err
		}
	}

	s.pending = append(s.pending, pendingSample{data: sample, pts: ptsUs, sync: sync})
	s.lastPTS = ptsUs
	return nil
}

// flush writes the pending samples as one fragment. nextPTS gives the last
// sample its duration; a negative value uses the nominal frame duration.
func (s *Sink) flush(nextPTS int64) error {
	if len(s.pending) == 0 {
		return nil
	}

	frag, err := mp4.CreateFragment(s.seq, trackID)
	if err != nil {
		return fmt.Errorf("create fragment: %w", err)
	}
	s.seq++

	for i, smp := range s.pending {
		end := nextPTS
		if i+1 < len(s.pending) {
			end = s.pending[i+1].pts
		}
		dur := s.frameDur
		if end > smp.pts {
			dur = uint32(end - smp.pts)
		}

		sampleFlags := mp4.NonSyncSampleFlags
		if smp.sync {
			sampleFlags = mp4.SyncSampleFlags
		}
		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: sampleFlags,
				Size:  uint32(len(smp.data)),
				Dur:   dur,
			},
			DecodeTime: uint64(smp.pts),
			Data:       smp.data,
		})
	}

	if err := frag.Encode(s.w); err != nil {
		return fmt.Errorf("encode fragment %d: %w", s.seq-1, err)
	}
	s.samples += len(s.pending)
	s.pending = s.pending[:0]
	return nil
}

// Stop writes the last fragment and closes the file.
func (s *Sink) Stop() error {
	if s.file == nil {
		return nil
	}

	var errs []error
	if s.started {
		if err := s.flush(-1); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.w.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	s.file = nil
	s.started = false
	return errors.Join(errs...)
}

// Release closes the file without writing pending samples. Safe to call more than once.
func (s *Sink) Release() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.started = false
	s.pending = nil
	return err
}

// Samples returns the number of samples written to fragments.
func (s *Sink) Samples() int {
	return s.samples
}

// toAVCC converts an Annex B access unit to length-prefixed NAL units.
// Parameter sets and delimiters are dropped; they live in avcC.
func toAVCC(data []byte) []byte {
	nalus := avc.ExtractNalusFromByteStream(data)
	if len(nalus) == 0 {
		return nil
	}

	size := 0
	for _, nalu := range nalus {
		size += 4 + len(nalu)
	}
	out := make([]byte, 0, size)
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		switch avc.GetNaluType(nalu[0]) {
		case avc.NALU_SPS, avc.NALU_PPS, avc.NALU_AUD:
			continue
		}
		n := len(nalu)
		out = append(out, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
		out = append(out, nalu...)
	}
	return out
}

// Ensure Sink implements ports.ContainerSink
var _ ports.ContainerSink = (*Sink)(nil)
