package h264encoder

import (
	"bytes"

	"github.com/Eyevinn/mp4ff/avc"
)

// auSplitter cuts an Annex B byte stream into access units at each access
// unit delimiter.
type auSplitter struct {
	buf  []byte
	scan int // search resumes here; everything before it holds no delimiter
}

// push appends p and returns every access unit completed by it.
func (s *auSplitter) push(p []byte) [][]byte {
	s.buf = append(s.buf, p...)

	var units [][]byte
	for {
		from := s.scan - 4
		if from < 1 {
			from = 1
		}
		next := findDelimiter(s.buf, from)
		if next < 0 {
			s.scan = len(s.buf)
			return units
		}
		units = append(units, bytes.Clone(s.buf[:next]))
		s.buf = s.buf[next:]
		s.scan = 0
	}
}

// flush returns whatever is left at end of stream.
func (s *auSplitter) flush() []byte {
	rest := s.buf
	s.buf = nil
	s.scan = 0
	if len(bytes.Trim(rest, "\x00")) == 0 {
		return nil
	}
	return rest
}

// findDelimiter returns the offset of the first delimiter start code at or
// after from, counting a leading zero of a four-byte start code. Offset zero
// is never returned.
func findDelimiter(b []byte, from int) int {
	for i := from; i+3 < len(b); i++ {
		if b[i] != 0 || b[i+1] != 0 || b[i+2] != 1 {
			continue
		}
		if avc.GetNaluType(b[i+3]) != avc.NALU_AUD {
			continue
		}
		start := i
		if start > 0 && b[start-1] == 0 {
			start--
		}
		if start > 0 {
			return start
		}
	}
	return -1
}

// unitInfo summarizes the NAL units of one access unit.
type unitInfo struct {
	sps      [][]byte
	pps      [][]byte
	keyframe bool
	hasVideo bool
}

func inspect(au []byte) unitInfo {
	var info unitInfo
	for _, nalu := range avc.ExtractNalusFromByteStream(au) {
		if len(nalu) == 0 {
			continue
		}
		switch avc.GetNaluType(nalu[0]) {
		case avc.NALU_SPS:
			info.sps = append(info.sps, bytes.Clone(nalu))
		case avc.NALU_PPS:
			info.pps = append(info.pps, bytes.Clone(nalu))
		case avc.NALU_IDR:
			info.keyframe = true
			info.hasVideo = true
		case avc.NALU_NON_IDR:
			info.hasVideo = true
		}
	}
	return info
}
