package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kerala-agrisage/agrisage/internal/api"
	"github.com/kerala-agrisage/agrisage/internal/auth"
	"github.com/kerala-agrisage/agrisage/internal/cache"
	"github.com/kerala-agrisage/agrisage/internal/config"
	"github.com/kerala-agrisage/agrisage/internal/core"
	"github.com/kerala-agrisage/agrisage/internal/llm"
	"github.com/kerala-agrisage/agrisage/internal/logger"
	"github.com/kerala-agrisage/agrisage/internal/market"
	"github.com/kerala-agrisage/agrisage/internal/metrics"
	"github.com/kerala-agrisage/agrisage/internal/store"
	"github.com/kerala-agrisage/agrisage/internal/weather"
)

// Pause between embedding calls while ingesting, to stay under the provider rate limit.
const ingestInterval = 200 * time.Millisecond

func main() {
	// Command line flag for advisory ingestion
	ingestFlag := flag.Bool("ingest", false, "Embed the advisory table (ADVISORY_FILE) into the store and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLog.Sync()
	if cfg.LogLevel == "DEBUG" {
		appLog.Debug("Service starting in DEBUG mode")
	}

	ctx := context.Background()

	dbStore, err := store.New(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, appLog)
	if err != nil {
		appLog.Fatal("Failed to initialize database", "driver", cfg.DatabaseDriver, "error", err)
	}
	defer dbStore.Close()

	// Gemini serves transcription and embeddings whichever provider answers chat.
	gemini, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.EmbeddingModel)
	if err != nil {
		appLog.Fatal("Failed to initialize Gemini client", "error", err)
	}
	defer gemini.Close()

	if *ingestFlag {
		appLog.Info("Starting advisory ingestion", "file", cfg.AdvisoryFile)
		n, err := dbStore.IngestAdvisoriesFromFile(ctx, cfg.AdvisoryFile, gemini.Embed, ingestInterval)
		if err != nil {
			appLog.Fatal("Advisory ingestion failed", "error", err)
		}
		appLog.Info("Advisory ingestion complete. Exiting.", "chunks", n)
		return
	}

	m := metrics.New()

	sharedCache, err := newCache(cfg)
	if err != nil {
		appLog.Fatal("Failed to connect to cache", "addr", cfg.RedisAddr, "error", err)
	}
	defer sharedCache.Close()

	var completer llm.Completer
	switch cfg.ChatProvider {
	case "gemini":
		completer = llm.NewInstrumented("gemini", gemini, m, appLog)
	default:
		completer = llm.NewInstrumented("openai", llm.NewOpenAI(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, nil), m, appLog)
	}

	var rag *core.RAGService
	if cfg.GeminiAPIKey != "" {
		rag, err = core.NewRAGService(ctx, dbStore, gemini, appLog)
		if err != nil {
			appLog.Fatal("Failed to initialize RAG service", "error", err)
		}
	} else {
		appLog.Warn("GEMINI_API_KEY is not set; chat runs without advisory context")
	}

	catalogue, err := market.Load()
	if err != nil {
		appLog.Fatal("Failed to load market prices", "error", err)
	}

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	badges := core.NewBadgeService(dbStore, cfg.DailyQueryLimit, m, appLog)

	apiHandler := api.NewAPIHandler(api.Services{
		Accounts:  core.NewAccountService(dbStore, issuer, auth.NewSessions(sharedCache), appLog),
		Chat:      core.NewChatService(dbStore, completer, rag, badges, cfg.ChatModel, m, appLog),
		Diagnosis: core.NewDiagnosisService(dbStore, completer, badges, cfg.VisionModel, m, appLog),
		Risk:      core.NewRiskService(dbStore, completer, badges, cfg.RiskModel, m, appLog),
		Speech:    core.NewSpeechService(llm.NewInstrumentedTranscriber("gemini", gemini, m)),
		Dashboard: core.NewDashboardService(dbStore, cfg.DailyQueryLimit),
		Weather:   weather.NewClient(cfg.WeatherBaseURL, cfg.GeocodingBaseURL, sharedCache, cfg.WeatherCacheTTL, appLog),
		Market:    catalogue,
		Ping:      dbStore.Ping,
	}, appLog)
	router := api.NewRouter(apiHandler, m, appLog)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Streamed answers can run for minutes; the request context bounds them instead.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		appLog.Info("Starting server. Press Ctrl+C to quit.", "addr", serverAddr, "chat_provider", cfg.ChatProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("Could not listen", "addr", serverAddr, "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown", "error", err)
		return
	}
	appLog.Info("Server exiting gracefully")
}

func newCache(cfg *config.Config) (cache.Cache, error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(cfg.RedisAddr, "agrisage:")
	if err != nil {
		return nil, err
	}
	return rc, nil
}
