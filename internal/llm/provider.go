package llm

import (
	"context"
	"errors"
	"fmt"
)

// Request is one single-turn generation: a system prompt, a user turn and optional images
// (https URLs or data: URLs).
type Request struct {
	Model     string
	System    string
	User      string
	ImageURLs []string
	MaxTokens int
}

// Completer is implemented by every text/vision provider.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	// Stream forwards each text delta to onDelta as it arrives and returns the full text.
	// An error from onDelta aborts the stream.
	Stream(ctx context.Context, req Request, onDelta func(delta string) error) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, mimeType string, audio []byte) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

var ErrMissingAPIKey = errors.New("provider API key is not set")

// MissingKeyError names the environment variable that should have held the key.
type MissingKeyError struct {
	Var string
}

func (e *MissingKeyError) Error() string { return e.Var + " is not set." }

func (e *MissingKeyError) Is(target error) bool { return target == ErrMissingAPIKey }

// HTTPError is a non-2xx answer from a provider.
type HTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s API error: %d", e.Provider, e.StatusCode)
}
