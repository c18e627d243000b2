// Package mp4probe reads back the video track of a recorded MP4 file.
package mp4probe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/timelapse/pkg/ports"
)

// ErrNoVideoTrack is returned when the file carries no video track.
var ErrNoVideoTrack = errors.New("mp4probe: no video track found")

// Info describes the video track of a file.
type Info struct {
	Codec      string // sample entry type, e.g. "avc1"
	Width      int
	Height     int
	Timescale  uint32
	Fragmented bool
	Fragments  int
	Samples    int
	Keyframes  int
	Duration   time.Duration
	Size       int64
}

// FrameRate returns the average sample rate over the track duration.
func (i Info) FrameRate() float64 {
	if i.Duration <= 0 {
		return 0
	}
	return float64(i.Samples) / i.Duration.Seconds()
}

// ProbeFile reads path through fs and probes it.
func ProbeFile(fs ports.FileSystem, path string) (Info, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Probe(bytes.NewReader(data))
}

// Probe decodes an MP4 file and summarizes its first video track.
func Probe(r io.ReadSeeker) (Info, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return Info{}, fmt.Errorf("seek: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Info{}, fmt.Errorf("seek: %w", err)
	}

	f, err := mp4.DecodeFile(r)
	if err != nil {
		return Info{}, fmt.Errorf("decode mp4: %w", err)
	}

	moov := f.Moov
	if f.IsFragmented() && f.Init != nil {
		moov = f.Init.Moov
	}
	if moov == nil {
		return Info{}, ErrNoVideoTrack
	}

	trak := videoTrack(moov)
	if trak == nil {
		return Info{}, ErrNoVideoTrack
	}

	info := Info{
		Size:       size,
		Timescale:  trak.Mdia.Mdhd.Timescale,
		Fragmented: f.IsFragmented(),
	}
	describeSampleEntry(trak, &info)

	if info.Fragmented {
		if err := countFragments(f, moov, trak.Tkhd.TrackID, &info); err != nil {
			return Info{}, err
		}
	} else {
		countProgressive(trak, &info)
	}
	return info, nil
}

func videoTrack(moov *mp4.MoovBox) *mp4.TrakBox {
	for _, trak := range moov.Traks {
		if trak.Mdia != nil && trak.Mdia.Hdlr != nil && trak.Mdia.Hdlr.HandlerType == "vide" && trak.Mdia.Mdhd != nil {
			return trak
		}
	}
	return nil
}

func describeSampleEntry(trak *mp4.TrakBox, info *Info) {
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return
	}
	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		info.Codec = child.Type()
		if entry, ok := child.(*mp4.VisualSampleEntryBox); ok {
			info.Width = int(entry.Width)
			info.Height = int(entry.Height)
		}
		return
	}
}

func countFragments(f *mp4.File, moov *mp4.MoovBox, trackID uint32, info *Info) error {
	var trex *mp4.TrexBox
	if moov.Mvex != nil {
		for _, t := range moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
			}
		}
	}

	var total uint64
	for _, seg := range f.Segments {
		for _, frag := range seg.Fragments {
			info.Fragments++
			samples, err := frag.GetFullSamples(trex)
			if err != nil {
				return fmt.Errorf("get samples: %w", err)
			}
			for _, s := range samples {
				info.Samples++
				total += uint64(s.Dur)
				if s.Flags == mp4.SyncSampleFlags {
					info.Keyframes++
				}
			}
		}
	}
	info.Duration = ticks(total, info.Timescale)
	return nil
}

func countProgressive(trak *mp4.TrakBox, info *Info) {
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
		return
	}
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz != nil {
		info.Samples = int(stbl.Stsz.SampleNumber)
	}
	if stbl.Stss != nil {
		info.Keyframes = len(stbl.Stss.SampleNumber)
	} else {
		info.Keyframes = info.Samples
	}
	info.Duration = ticks(trak.Mdia.Mdhd.Duration, info.Timescale)
}

func ticks(n uint64, timescale uint32) time.Duration {
	if timescale == 0 {
		return 0
	}
	ts := uint64(timescale)
	return time.Duration(n/ts)*time.Second + time.Duration(n%ts*uint64(time.Second)/ts)
}
