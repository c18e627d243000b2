package h264encoder

import "errors"

var (
	// ErrNotConfigured is returned when the encoder is started before Configure.
	ErrNotConfigured = errors.New("h264encoder: encoder not configured")

	// ErrNotRunning is returned when input is queued to an encoder that is not running.
	ErrNotRunning = errors.New("h264encoder: encoder not running")

	// ErrInvalidSlot is returned for an input slot that was not handed out.
	ErrInvalidSlot = errors.New("h264encoder: invalid input slot")

	// ErrUnsupportedConfig is returned for configurations ffmpeg cannot be asked for.
	ErrUnsupportedConfig = errors.New("h264encoder: unsupported configuration")

	// ErrFFmpegNotFound is returned when ffmpeg cannot be located.
	ErrFFmpegNotFound = errors.New("h264encoder: ffmpeg not found in PATH")

	// ErrProcessExited is reported when ffmpeg exits before end of stream was signalled.
	ErrProcessExited = errors.New("h264encoder: ffmpeg exited unexpectedly")
)
