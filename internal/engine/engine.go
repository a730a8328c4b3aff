// Package engine defines the boundary to the external transliteration engine.
package engine

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured is returned when no engine endpoint is configured.
	ErrNotConfigured = errors.New("engine: transliterator not configured")
	// ErrMalformed is returned when the engine's output cannot be decoded.
	ErrMalformed = errors.New("engine: malformed response")
)

// Candidate is one engine output in engine order. Tamil is empty when the
// engine returns a single script form.
type Candidate struct {
	Word  string
	Tamil string
	Score float64
}

// Engine transliterates text. Implementations must honour ctx cancellation.
type Engine interface {
	Transliterate(ctx context.Context, text, mode string, limit int) ([]Candidate, error)
}

// Func adapts a function to Engine.
type Func func(ctx context.Context, text, mode string, limit int) ([]Candidate, error)

func (f Func) Transliterate(ctx context.Context, text, mode string, limit int) ([]Candidate, error) {
	return f(ctx, text, mode, limit)
}

// Unconfigured fails every call with ErrNotConfigured.
var Unconfigured Engine = Func(func(context.Context, string, string, int) ([]Candidate, error) {
	return nil, ErrNotConfigured
})
