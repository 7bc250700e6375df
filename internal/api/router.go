package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kerala-agrisage/agrisage/internal/logger"
	"github.com/kerala-agrisage/agrisage/internal/metrics"
)

func NewRouter(apiHandler *APIHandler, m *metrics.Metrics, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewNop()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	if m != nil {
		r.Use(instrument(m))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
		ExposedHeaders: []string{"X-Chat-Id"},
		MaxAge:         300,
	}))

	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	// The four AI functions, at the paths the web client already calls.
	r.Route("/functions/v1", func(r chi.Router) {
		r.Use(apiHandler.JWTAuthMiddleware)
		r.Post("/agricultural-chat", apiHandler.AgriculturalChatHandler)
		r.Post("/analyze-plant-disease", apiHandler.AnalyzePlantDiseaseHandler)
		r.Post("/predict-crop-risk", apiHandler.PredictCropRiskHandler)
		r.Post("/speech-to-text", apiHandler.SpeechToTextHandler)
	})

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/signup", apiHandler.SignupHandler)
		r.Post("/auth/login", apiHandler.LoginHandler)
		r.Get("/health", apiHandler.HealthHandler)
		r.Get("/market-prices", apiHandler.MarketPricesHandler)

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Post("/auth/logout", apiHandler.LogoutHandler)
			r.Get("/profile", apiHandler.GetProfileHandler)
			r.Put("/profile", apiHandler.UpdateProfileHandler)

			r.Get("/chats", apiHandler.ListChatsHandler)
			r.Get("/chats/{chatID}", apiHandler.GetChatHandler)
			r.Get("/analyses", apiHandler.ListAnalysesHandler)
			r.Get("/risk-predictions", apiHandler.ListRiskPredictionsHandler)
			r.Get("/dashboard", apiHandler.DashboardHandler)
			r.Get("/weather", apiHandler.WeatherHandler)
		})
	})

	return r
}
