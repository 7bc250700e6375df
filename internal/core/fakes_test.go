package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kerala-agrisage/agrisage/internal/llm"
	"github.com/kerala-agrisage/agrisage/internal/store"
)

// fakeCompleter returns a canned answer and remembers every request.
type fakeCompleter struct {
	mu       sync.Mutex
	answer   string
	deltas   []string
	err      error
	requests []llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeCompleter) Stream(_ context.Context, req llm.Request, onDelta func(string) error) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	deltas, err := f.deltas, f.err
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	full := ""
	for _, d := range deltas {
		full += d
		if err := onDelta(d); err != nil {
			return full, err
		}
	}
	return full, nil
}

func (f *fakeCompleter) last() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeEmbedder map[string][]float32

func (f fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := f[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

type fakeTranscriber struct {
	mimeType string
	audio    []byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, mimeType string, audio []byte) (string, error) {
	f.mimeType = mimeType
	f.audio = audio
	return "when should I spray pepper?", nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(context.Background(), store.DriverSQLite, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestUser(t *testing.T, s *store.Store, email string) *store.User {
	t.Helper()
	u, _, err := s.CreateUser(context.Background(), email, "hash", store.Profile{FullName: "Test Farmer"})
	require.NoError(t, err)
	return u
}
