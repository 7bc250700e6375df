package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kerala-agrisage/agrisage/internal/auth"
	"github.com/kerala-agrisage/agrisage/internal/core"
	"github.com/kerala-agrisage/agrisage/internal/logger"
	"github.com/kerala-agrisage/agrisage/internal/market"
	"github.com/kerala-agrisage/agrisage/internal/store"
	"github.com/kerala-agrisage/agrisage/internal/weather"
)

const maxBodyBytes = 16 << 20 // inline images and audio arrive base64-encoded

type WeatherSource interface {
	Lookup(ctx context.Context, location string) (*weather.Report, error)
}

// Services is everything the handlers call into.
type Services struct {
	Accounts  *core.AccountService
	Chat      *core.ChatService
	Diagnosis *core.DiagnosisService
	Risk      *core.RiskService
	Speech    *core.SpeechService
	Dashboard *core.DashboardService
	Weather   WeatherSource
	Market    *market.Catalogue
	Ping      func(ctx context.Context) error
}

type APIHandler struct {
	svc Services
	log *logger.Logger
}

func NewAPIHandler(svc Services, log *logger.Logger) *APIHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &APIHandler{svc: svc, log: log.With("component", "api")}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

// --- auth ---

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req core.SignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	sess, err := h.svc.Accounts.SignUp(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, sess)
	case errors.Is(err, core.ErrMissingField), errors.Is(err, core.ErrWeakPassword),
		errors.Is(err, core.ErrInvalidEmail), errors.Is(err, store.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("Error signing up", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create user")
	}
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req core.Credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	sess, err := h.svc.Accounts.SignIn(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, sess)
	case errors.Is(err, core.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid login credentials")
	default:
		h.log.Error("Error signing in", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to sign in")
	}
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	if err := h.svc.Accounts.SignOut(r.Context(), claims); err != nil {
		h.log.Error("Error signing out", "user_id", claims.Subject, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to sign out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- profile ---

func (h *APIHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	profile, err := h.svc.Accounts.Profile(r.Context(), p.UserID)
	if err != nil {
		h.log.Error("Error loading profile", "user_id", p.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *APIHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	var req core.ProfileUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	profile, err := h.svc.Accounts.UpdateProfile(r.Context(), p.UserID, req)
	if err != nil {
		h.log.Error("Error updating profile", "user_id", p.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// --- history ---

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	chats, err := h.svc.Chat.History(r.Context(), p.UserID)
	if err != nil {
		h.log.Error("Error listing chats", "user_id", p.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list chats")
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (h *APIHandler) GetChatHandler(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	chatID := chi.URLParam(r, "chatID")

	chat, err := h.svc.Chat.Conversation(r.Context(), p.UserID, chatID)
	if err != nil {
		h.log.Error("Error getting chat", "user_id", p.UserID, "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get chat")
		return
	}
	if chat == nil {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

func (h *APIHandler) ListAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	rows, err := h.svc.Diagnosis.History(r.Context(), p.UserID)
	if err != nil {
		h.log.Error("Error listing analyses", "user_id", p.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list analyses")
		return
	}
	if rows == nil {
		rows = []store.DiseaseAnalysis{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *APIHandler) ListRiskPredictionsHandler(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	rows, err := h.svc.Risk.History(r.Context(), p.UserID)
	if err != nil {
		h.log.Error("Error listing risk predictions", "user_id", p.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list risk predictions")
		return
	}
	if rows == nil {
		rows = []store.RiskPrediction{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *APIHandler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	dash, err := h.svc.Dashboard.Load(r.Context(), p.UserID)
	if err != nil {
		h.log.Error("Error loading dashboard", "user_id", p.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// --- widgets ---

func (h *APIHandler) WeatherHandler(w http.ResponseWriter, r *http.Request) {
	location := strings.TrimSpace(r.URL.Query().Get("location"))
	if location == "" {
		writeError(w, http.StatusBadRequest, "location is required")
		return
	}
	report, err := h.svc.Weather.Lookup(r.Context(), location)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, report)
	case errors.Is(err, weather.ErrLocationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error("Error fetching weather", "location", location, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch weather")
	}
}

type marketResponse struct {
	Updated string         `json:"updated"`
	Items   []market.Price `json:"items"`
}

func (h *APIHandler) MarketPricesHandler(w http.ResponseWriter, r *http.Request) {
	items := h.svc.Market.Filter(r.URL.Query().Get("category"))
	writeJSON(w, http.StatusOK, marketResponse{Updated: h.svc.Market.Updated, Items: items})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.svc.Ping != nil {
		if err := h.svc.Ping(r.Context()); err != nil {
			h.log.Error("Health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
