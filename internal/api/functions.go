package api

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/kerala-agrisage/agrisage/internal/core"
)

// Function endpoints answer every failure with 500 {"error": ...}, whatever the cause.

type chatFunctionRequest struct {
	core.ChatRequest
	Stream bool `json:"stream"`
}

type diagnosisFunctionRequest struct {
	core.DiagnosisRequest
	Stream bool `json:"stream"`
}

// wantsStream reports whether the caller asked for a text/plain body.
func wantsStream(r *http.Request, flag bool) bool {
	if flag {
		return true
	}
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		if mt, _, err := mime.ParseMediaType(strings.TrimSpace(part)); err == nil && mt == "text/plain" {
			return true
		}
	}
	return false
}

// textStream writes provider deltas through as they arrive. Headers go out with the first
// delta, so a failure before that can still be reported as a JSON error.
type textStream struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newTextStream(w http.ResponseWriter) *textStream {
	return &textStream{w: w, rc: http.NewResponseController(w)}
}

func (s *textStream) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	s.w.WriteHeader(http.StatusOK)
}

func (s *textStream) write(delta string) error {
	s.start()
	if _, err := s.w.Write([]byte(delta)); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

func (h *APIHandler) functionError(w http.ResponseWriter, r *http.Request, fn string, err error) {
	h.log.Error("Error in function", "function", fn, "user_id", principal(r).UserID, "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (h *APIHandler) AgriculturalChatHandler(w http.ResponseWriter, r *http.Request) {
	const fn = "agricultural-chat"
	var req chatFunctionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.functionError(w, r, fn, err)
		return
	}
	userID := principal(r).UserID

	if !wantsStream(r, req.Stream) {
		ans, err := h.svc.Chat.Ask(r.Context(), userID, req.ChatRequest)
		if err != nil {
			h.functionError(w, r, fn, err)
			return
		}
		h.log.Info("Agricultural chat response generated", "user_id", userID, "chat_id", ans.ChatID)
		writeJSON(w, http.StatusOK, ans)
		return
	}

	ts := newTextStream(w)
	_, err := h.svc.Chat.Stream(r.Context(), userID, req.ChatRequest, func(chatID string) {
		w.Header().Set("X-Chat-Id", chatID)
	}, ts.write)
	h.finishStream(w, r, fn, ts, err)
}

func (h *APIHandler) AnalyzePlantDiseaseHandler(w http.ResponseWriter, r *http.Request) {
	const fn = "analyze-plant-disease"
	var req diagnosisFunctionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.functionError(w, r, fn, err)
		return
	}
	userID := principal(r).UserID

	if !wantsStream(r, req.Stream) {
		d, err := h.svc.Diagnosis.Analyze(r.Context(), userID, req.DiagnosisRequest)
		if err != nil {
			h.functionError(w, r, fn, err)
			return
		}
		h.log.Info("Plant disease analysis completed", "user_id", userID)
		writeJSON(w, http.StatusOK, d)
		return
	}

	ts := newTextStream(w)
	_, err := h.svc.Diagnosis.StreamReport(r.Context(), userID, req.DiagnosisRequest, ts.write)
	h.finishStream(w, r, fn, ts, err)
}

func (h *APIHandler) PredictCropRiskHandler(w http.ResponseWriter, r *http.Request) {
	const fn = "predict-crop-risk"
	var req core.RiskInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.functionError(w, r, fn, err)
		return
	}
	risk, err := h.svc.Risk.Predict(r.Context(), principal(r).UserID, req)
	if err != nil {
		h.functionError(w, r, fn, err)
		return
	}
	h.log.Info("Crop risk prediction completed", "user_id", principal(r).UserID)
	writeJSON(w, http.StatusOK, risk)
}

func (h *APIHandler) SpeechToTextHandler(w http.ResponseWriter, r *http.Request) {
	const fn = "speech-to-text"
	var req core.SpeechRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.functionError(w, r, fn, err)
		return
	}
	out, err := h.svc.Speech.Transcribe(r.Context(), req)
	if err != nil {
		h.functionError(w, r, fn, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *APIHandler) finishStream(w http.ResponseWriter, r *http.Request, fn string, ts *textStream, err error) {
	if err == nil {
		// An empty answer still needs a 200 with the text/plain headers.
		ts.start()
		return
	}
	if !ts.started {
		h.functionError(w, r, fn, err)
		return
	}
	// Headers are gone; the client sees a truncated body.
	h.log.Warn("Stream ended early", "function", fn, "user_id", principal(r).UserID, "error", err)
}
