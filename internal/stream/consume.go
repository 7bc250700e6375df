// Package stream reads a streamed text body and reports the growing message.
package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

const readSize = 4096

// Consume reads r until EOF, decoding UTF-8 across read boundaries. After every
// chunk onChunk receives the new text and the full text so far. An incomplete
// trailing rune is held back until the next read completes it.
func Consume(ctx context.Context, r io.Reader, onChunk func(chunk, full string)) (string, error) {
	var (
		full    strings.Builder
		pending []byte
		buf     = make([]byte, readSize)
	)

	emit := func(b []byte) {
		if len(b) == 0 {
			return
		}
		chunk := string(b)
		full.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk, full.String())
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return full.String(), err
		}
		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			cut := completePrefix(pending)
			emit(pending[:cut])
			pending = append(pending[:0], pending[cut:]...)
		}
		if errors.Is(err, io.EOF) {
			// Whatever is left can never be completed; decode it as-is.
			emit(pending)
			return full.String(), nil
		}
		if err != nil {
			return full.String(), err
		}
	}
}

// completePrefix returns the length of b without a trailing partial rune.
func completePrefix(b []byte) int {
	// A rune is at most 4 bytes, so only the last 3 can start an unfinished one.
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax+1; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return i
		}
		break
	}
	return len(b)
}
