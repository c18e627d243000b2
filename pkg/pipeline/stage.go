// Package pipeline holds the frame types passed between capture, convert,
// encode and mux, and the Stage contract the synchronous steps satisfy.
package pipeline

import "context"

// Stage turns one In into one Out. Converter is the only synchronous stage;
// encode and mux are driven by callbacks instead.
type Stage[In, Out any] interface {
	Execute(ctx context.Context, input In) (Out, error)
}
