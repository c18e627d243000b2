// Package smartencoder picks the ffmpeg H.264 encoder to use, preferring a
// working hardware encoder and falling back to libx264.
package smartencoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/user/timelapse/pkg/adapters/h264encoder"
	"github.com/user/timelapse/pkg/adapters/logger"
	"github.com/user/timelapse/pkg/ports"
)

// Auto asks Select to choose the encoder.
const Auto = "auto"

// Software is the encoder used when no hardware encoder works.
const Software = "libx264"

// Backend classifies the selected encoder.
type Backend string

const (
	// BackendHardware is a platform or GPU encoder driven through ffmpeg.
	BackendHardware Backend = "hardware"
	// BackendSoftware is libx264.
	BackendSoftware Backend = "software"
)

// Info describes the selected encoder.
type Info struct {
	// Codec is the ffmpeg encoder name that will be used.
	Codec string
	// Backend is hardware or software.
	Backend Backend
	// Requested is the encoder name that was asked for.
	Requested string
	// FallbackUsed is true when Requested could not be used.
	FallbackUsed bool
}

// Options configures selection and the encoders it builds.
type Options struct {
	// FFmpegPath overrides ffmpeg discovery.
	FFmpegPath string
	// NoFallback makes Select fail instead of falling back to libx264.
	NoFallback bool
	// Encoder carries the remaining h264encoder options. Codec is ignored.
	Encoder h264encoder.Options
	// Logger receives fallback warnings.
	Logger ports.Logger
}

// ErrNoEncoderAvailable is returned when no usable H.264 encoder exists.
var ErrNoEncoderAvailable = errors.New("smartencoder: no encoder available")

// Prober runs a one-frame test encode with the named encoder.
type Prober func(codec string) error

// hardwareCandidates lists hardware encoders in order of preference.
func hardwareCandidates(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"h264_videotoolbox"}
	case "windows":
		return []string{"h264_nvenc", "h264_qsv", "h264_amf", "h264_mf"}
	default:
		return []string{"h264_v4l2m2m", "h264_nvenc", "h264_qsv"}
	}
}

// New selects an encoder and returns a factory for it.
func New(requested string, opts Options) (func() ports.HardwareEncoder, Info, error) {
	if opts.FFmpegPath != "" {
		h264encoder.SetFFmpegPath(opts.FFmpegPath)
	}

	info, err := Select(requested, opts, ffmpegProber)
	if err != nil {
		return nil, info, err
	}

	encOpts := opts.Encoder
	encOpts.Codec = info.Codec
	log := opts.Logger
	if log == nil {
		log = logger.NewNoop()
	}
	return func() ports.HardwareEncoder {
		return h264encoder.New(encOpts, log)
	}, info, nil
}

// Select resolves requested ("auto", "" or an ffmpeg encoder name) to an
// encoder that passes probe.
func Select(requested string, opts Options, probe Prober) (Info, error) {
	if requested == "" {
		requested = Auto
	}
	info := Info{Requested: requested}

	if requested != Auto {
		err := probe(requested)
		if err == nil {
			info.Codec = requested
			info.Backend = backendOf(requested)
			return info, nil
		}
		if opts.NoFallback {
			return info, fmt.Errorf("%w: %s: %v", ErrNoEncoderAvailable, requested, err)
		}
		if opts.Logger != nil {
			opts.Logger.Warn("Encoder %s not usable, falling back: %s", requested, err)
		}
		info.FallbackUsed = true
	} else {
		for _, codec := range hardwareCandidates(runtime.GOOS) {
			if probe(codec) == nil {
				info.Codec = codec
				info.Backend = BackendHardware
				return info, nil
			}
		}
	}

	if err := probe(Software); err != nil {
		return info, fmt.Errorf("%w: %v", ErrNoEncoderAvailable, err)
	}
	info.Codec = Software
	info.Backend = BackendSoftware
	return info, nil
}

func backendOf(codec string) Backend {
	if codec == Software {
		return BackendSoftware
	}
	return BackendHardware
}

// ListEncoders returns the names of the H.264 video encoders ffmpeg was built with.
func ListEncoders() ([]string, error) {
	path, err := h264encoder.FindFFmpeg()
	if err != nil {
		return nil, err
	}
	out, err := exec.Command(path, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, fmt.Errorf("list encoders: %w", err)
	}
	return parseEncoders(out), nil
}

// parseEncoders extracts H.264 video encoder names from `ffmpeg -encoders`.
func parseEncoders(out []byte) []string {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || len(fields[0]) != 6 || fields[0][0] != 'V' {
			continue
		}
		name := fields[1]
		if name == Software || strings.HasPrefix(name, "h264_") {
			names = append(names, name)
		}
	}
	return names
}

// ffmpegProber encodes one small synthetic frame with codec.
func ffmpegProber(codec string) error {
	path, err := h264encoder.FindFFmpeg()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, path,
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=size=256x256:rate=30",
		"-frames:v", "1",
		"-pix_fmt", "nv12",
		"-c:v", codec,
		"-f", "null", "-",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, bytes.TrimSpace(out))
	}
	return nil
}
