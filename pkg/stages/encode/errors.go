package encode

import "errors"

var (
	// ErrConfiguration is returned when the encoder rejects or cannot honor a configuration.
	ErrConfiguration = errors.New("encode: configuration failed")

	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("encode: invalid state")

	// ErrFrameSize is returned when a submitted frame does not match the configured geometry.
	ErrFrameSize = errors.New("encode: frame does not match configured size")
)
