package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerala-agrisage/agrisage/internal/logger"
	"github.com/kerala-agrisage/agrisage/internal/metrics"
)

func TestReadSSE(t *testing.T) {
	in := ": keep-alive\n" +
		"event: message\n" +
		"data: one\n" +
		"data: two\n" +
		"\n" +
		"data: three\r\n" +
		"\r\n" +
		"data: tail"

	type ev struct{ name, data string }
	var got []ev
	err := readSSE(strings.NewReader(in), func(name, data string) error {
		got = append(got, ev{name, data})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []ev{{"message", "one\ntwo"}, {"", "three"}, {"", "tail"}}, got)
}

func TestReadSSEStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := readSSE(strings.NewReader("data: a\n\ndata: b\n\n"), func(string, string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestOpenAIComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"Plant paddy after the first rains."}}]}`)
	}))
	defer srv.Close()

	c := NewOpenAI(srv.URL, "sk-test", srv.Client())
	out, err := c.Complete(context.Background(), Request{Model: "gpt-test", System: "sys", User: "when to plant?", MaxTokens: 300})
	require.NoError(t, err)
	assert.Equal(t, "Plant paddy after the first rains.", out)

	assert.Equal(t, "gpt-test", body["model"])
	assert.EqualValues(t, 300, body["max_completion_tokens"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "when to plant?", msgs[1].(map[string]any)["content"])
}

func TestOpenAICompleteWithImage(t *testing.T) {
	var body struct {
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{}"}}]}`)
	}))
	defer srv.Close()

	c := NewOpenAI(srv.URL, "sk-test", srv.Client())
	_, err := c.Complete(context.Background(), Request{User: "look", ImageURLs: []string{"data:image/png;base64,AAAA"}})
	require.NoError(t, err)

	require.Len(t, body.Messages, 1)
	var parts []map[string]any
	require.NoError(t, json.Unmarshal(body.Messages[0].Content, &parts))
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0]["type"])
	assert.Equal(t, "image_url", parts[1]["type"])
	assert.Equal(t, "data:image/png;base64,AAAA", parts[1]["image_url"].(map[string]any)["url"])
}

func TestOpenAIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL, "sk-test", srv.Client()).Complete(context.Background(), Request{User: "hi"})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.Equal(t, "OpenAI API error: 429", err.Error())

	_, err = NewOpenAI(srv.URL, "", srv.Client()).Complete(context.Background(), Request{User: "hi"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Equal(t, "OPENAI_API_KEY is not set.", err.Error())
}

func TestOpenAIStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range []string{"Water ", "the ", "coconut."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", d)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	var deltas []string
	full, err := NewOpenAI(srv.URL, "sk-test", srv.Client()).Stream(context.Background(), Request{User: "hi"}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Water the coconut.", full)
	assert.Equal(t, []string{"Water ", "the ", "coconut."}, deltas)
}

func TestGeminiWithoutKey(t *testing.T) {
	g, err := NewGemini(context.Background(), "", "gemini-1.5-flash", "text-embedding-004")
	require.NoError(t, err)
	defer g.Close()

	_, err = g.Transcribe(context.Background(), "audio/webm", []byte{1})
	assert.Equal(t, "GEMINI_API_KEY is not set.", err.Error())
	_, err = g.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	_, err = g.Complete(context.Background(), Request{User: "x"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestRequestPartsRejectsRemoteImages(t *testing.T) {
	_, err := requestParts(Request{User: "x", ImageURLs: []string{"https://example.com/leaf.jpg"}})
	assert.Error(t, err)

	parts, err := requestParts(Request{User: "x", ImageURLs: []string{"data:image/jpeg;base64,AAAA"}})
	require.NoError(t, err)
	assert.Len(t, parts, 2)
}

type stubCompleter struct{ err error }

func (s stubCompleter) Complete(context.Context, Request) (string, error) { return "ok", s.err }
func (s stubCompleter) Stream(_ context.Context, _ Request, onDelta func(string) error) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "ok", onDelta("ok")
}

func TestInstrumentedRecordsCalls(t *testing.T) {
	m := metrics.New()
	p := NewInstrumented("openai", stubCompleter{}, m, logger.NewNop())
	_, err := p.Complete(context.Background(), Request{})
	require.NoError(t, err)
	_, err = p.Stream(context.Background(), Request{}, func(string) error { return nil })
	require.NoError(t, err)

	failing := NewInstrumented("openai", stubCompleter{err: errors.New("down")}, m, logger.NewNop())
	_, err = failing.Complete(context.Background(), Request{})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCallsTotal.WithLabelValues("openai", "complete", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCallsTotal.WithLabelValues("openai", "stream", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCallsTotal.WithLabelValues("openai", "complete", "error")))
}

