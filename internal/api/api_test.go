package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerala-agrisage/agrisage/internal/auth"
	"github.com/kerala-agrisage/agrisage/internal/cache"
	"github.com/kerala-agrisage/agrisage/internal/core"
	"github.com/kerala-agrisage/agrisage/internal/llm"
	"github.com/kerala-agrisage/agrisage/internal/market"
	"github.com/kerala-agrisage/agrisage/internal/metrics"
	"github.com/kerala-agrisage/agrisage/internal/store"
	"github.com/kerala-agrisage/agrisage/internal/weather"
)

type scriptedCompleter struct {
	answer string
	deltas []string
	err    error
}

func (c *scriptedCompleter) Complete(context.Context, llm.Request) (string, error) {
	return c.answer, c.err
}

func (c *scriptedCompleter) Stream(_ context.Context, _ llm.Request, onDelta func(string) error) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	var full strings.Builder
	for _, d := range c.deltas {
		full.WriteString(d)
		if err := onDelta(d); err != nil {
			return full.String(), err
		}
	}
	return full.String(), nil
}

type echoTranscriber struct{}

func (echoTranscriber) Transcribe(_ context.Context, mimeType string, _ []byte) (string, error) {
	return "heard " + mimeType, nil
}

type staticWeather struct{}

func (staticWeather) Lookup(_ context.Context, location string) (*weather.Report, error) {
	if location == "Nowhere" {
		return nil, weather.ErrLocationNotFound
	}
	return &weather.Report{Location: location, Current: weather.Current{Temperature: 30, Condition: "Rain"}}, nil
}

type testEnv struct {
	server    *httptest.Server
	store     *store.Store
	completer *scriptedCompleter
	metrics   *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := store.New(ctx, store.DriverSQLite, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := metrics.New()
	c := &scriptedCompleter{}
	catalogue, err := market.Load()
	require.NoError(t, err)

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	badges := core.NewBadgeService(db, 10, m, nil)
	h := NewAPIHandler(Services{
		Accounts:  core.NewAccountService(db, issuer, auth.NewSessions(cache.NewMemoryCache()), nil),
		Chat:      core.NewChatService(db, c, nil, badges, "gpt-test", m, nil),
		Diagnosis: core.NewDiagnosisService(db, c, badges, "gpt-vision", m, nil),
		Risk:      core.NewRiskService(db, c, badges, "gpt-risk", m, nil),
		Speech:    core.NewSpeechService(echoTranscriber{}),
		Dashboard: core.NewDashboardService(db, 10),
		Weather:   staticWeather{},
		Market:    catalogue,
		Ping:      db.Ping,
	}, nil)

	srv := httptest.NewServer(NewRouter(h, m, nil))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, store: db, completer: c, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, header ...string) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) signUp(t *testing.T, email string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": email, "password": "coconut1", "full_name": "Test Farmer", "location": "Alappuzha",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[core.Session](t, resp).AccessToken
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodOptions, "/functions/v1/agricultural-chat", "", nil,
		"Origin", "https://agrisage.example",
		"Access-Control-Request-Method", "POST",
		"Access-Control-Request-Headers", "authorization, x-client-info, apikey, content-type",
	)
	assert.Less(t, resp.StatusCode, 300)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(resp.Header.Get("Access-Control-Allow-Headers")), "authorization")
	assert.Contains(t, strings.ToLower(resp.Header.Get("Access-Control-Allow-Headers")), "x-client-info")
}

func TestFunctionsRequireBearerToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/functions/v1/agricultural-chat", "", map[string]string{"query": "hi"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, decode[errorResponse](t, resp).Error)

	resp = env.do(t, http.MethodPost, "/functions/v1/agricultural-chat", "not-a-jwt", map[string]string{"query": "hi"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChatFunctionJSONAndHistory(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "farmer@example.com")
	env.completer.answer = "Spray 1% Bordeaux mixture before the monsoon."

	resp := env.do(t, http.MethodPost, "/functions/v1/agricultural-chat", token, map[string]string{"query": "Coconut bud rot?", "language": "ml"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ans := decode[core.ChatAnswer](t, resp)
	assert.Equal(t, "Spray 1% Bordeaux mixture before the monsoon.", ans.Response)
	assert.GreaterOrEqual(t, ans.Confidence, 0.7)

	resp = env.do(t, http.MethodGet, "/api/chats", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	chats := decode[[]store.ChatHistory](t, resp)
	require.Len(t, chats, 1)
	assert.Equal(t, ans.ChatID, chats[0].ID)

	resp = env.do(t, http.MethodGet, "/api/chats/"+ans.ChatID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[store.ChatHistory](t, resp).Messages, 2)

	resp = env.do(t, http.MethodGet, "/api/chats/does-not-exist", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChatFunctionStreams(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "farmer@example.com")
	env.completer.deltas = []string{"നെല്ലിന് ", "വെള്ളം"}

	resp := env.do(t, http.MethodPost, "/functions/v1/agricultural-chat", token, map[string]any{"query": "paddy water?", "language": "ml", "stream": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Chat-Id"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "നെല്ലിന് വെള്ളം", string(body))

	// Accept: text/plain selects the stream too.
	resp = env.do(t, http.MethodPost, "/functions/v1/agricultural-chat", token, map[string]any{"query": "again"}, "Accept", "text/plain")
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestChatStreamSendsChatIDWithoutDeltas(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "farmer@example.com")

	resp := env.do(t, http.MethodPost, "/functions/v1/agricultural-chat", token, map[string]any{"query": "anyone there?", "stream": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	chatID := resp.Header.Get("X-Chat-Id")
	require.NotEmpty(t, chatID)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, body)

	resp = env.do(t, http.MethodGet, "/api/chats/"+chatID, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFunctionFailuresAre500(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "farmer@example.com")

	resp := env.do(t, http.MethodPost, "/functions/v1/agricultural-chat", token, map[string]string{"language": "en"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, decode[errorResponse](t, resp).Error, "query")

	env.completer.err = &llm.MissingKeyError{Var: "OPENAI_API_KEY"}
	resp = env.do(t, http.MethodPost, "/functions/v1/agricultural-chat", token, map[string]any{"query": "hi", "stream": true})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "OPENAI_API_KEY is not set.", decode[errorResponse](t, resp).Error)

	resp = env.do(t, http.MethodPost, "/functions/v1/predict-crop-risk", token, map[string]any{"crop": "Rice", "temperature": "30"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/functions/v1/speech-to-text", token, map[string]string{"audioDataUrl": "not a data url"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "invalid audio data URL format", decode[errorResponse](t, resp).Error)
}

func TestAnalyzeFunctionFallsBackOnProse(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "farmer@example.com")
	env.completer.answer = "The banana leaf shows Sigatoka streaks."

	resp := env.do(t, http.MethodPost, "/functions/v1/analyze-plant-disease", token, map[string]string{"imageUrl": "https://cdn.example.com/banana.jpg"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decode[core.Diagnosis](t, resp)
	assert.Equal(t, "Analysis Complete", d.Disease)
	assert.Equal(t, 85.0, d.Confidence)

	resp = env.do(t, http.MethodGet, "/api/analyses", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]store.DiseaseAnalysis](t, resp), 1)
}

func TestRiskAndSpeechFunctions(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "farmer@example.com")
	env.completer.answer = `{"overallRisk":"low","weatherRisk":"low","diseaseRisk":"low","soilRisk":"medium","recommendations":["Add lime"],"confidence":70}`

	resp := env.do(t, http.MethodPost, "/functions/v1/predict-crop-risk", token, map[string]any{
		"crop": "Banana", "temperature": 28, "humidity": "75", "pH": "6.5", "season": "summer", "location": "Wayanad", "language": "en",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	r := decode[core.RiskAssessment](t, resp)
	assert.Equal(t, "medium", r.SoilRisk)
	assert.Equal(t, []string{"Add lime"}, r.Recommendations)

	resp = env.do(t, http.MethodGet, "/api/risk-predictions", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]store.RiskPrediction](t, resp), 1)

	resp = env.do(t, http.MethodPost, "/functions/v1/speech-to-text", token, map[string]string{"audioDataUrl": "data:audio/wav;base64,UklGRg=="})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "heard audio/wav", decode[core.Transcript](t, resp).Transcript)
}

func TestProfileDashboardAndLogout(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "farmer@example.com")

	resp := env.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Alappuzha", decode[store.Profile](t, resp).Location)

	resp = env.do(t, http.MethodPut, "/api/profile", token, map[string]string{"full_name": "Test Farmer", "primary_crop": "Rubber"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Rubber", decode[store.Profile](t, resp).PrimaryCrop)

	resp = env.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dash := decode[core.Dashboard](t, resp)
	assert.Equal(t, 10, dash.Stats.QueriesLimit)
	assert.Len(t, dash.Badges, 6)

	resp = env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthErrors(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "farmer@example.com")

	resp := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "farmer@example.com", "password": "coconut1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "farmer@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "farmer@example.com", "password": "coconut1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decode[core.Session](t, resp).AccessToken)
}

func TestWidgetsHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "farmer@example.com")

	resp := env.do(t, http.MethodGet, "/api/weather?location=Kochi", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Kochi", decode[weather.Report](t, resp).Location)

	resp = env.do(t, http.MethodGet, "/api/weather?location=Nowhere", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/api/weather", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/market-prices?category=Spice", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	prices := decode[marketResponse](t, resp)
	require.Len(t, prices.Items, 1)
	assert.Equal(t, "Pepper", prices.Items[0].Name)

	resp = env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `route="/api/health"`)
}
