package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort string
	LogMode  string
	LogLevel string

	JWTSecret string
	TokenTTL  time.Duration

	DatabaseDriver string
	DatabaseURL    string
	RedisAddr      string

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	GeminiAPIKey   string
	ChatProvider   string
	ChatModel      string
	VisionModel    string
	RiskModel      string
	GeminiModel    string
	EmbeddingModel string

	WeatherBaseURL   string
	GeocodingBaseURL string
	WeatherCacheTTL  time.Duration

	DailyQueryLimit int
	AdvisoryFile    string
}

// LoadConfig reads the environment (and a .env file when present).
// Provider keys are optional here; a call that needs a missing key fails on its own.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		LogMode:  getEnv("LOG_MODE", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  getEnvAsDuration("TOKEN_TTL", 24*time.Hour),

		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite")),
		DatabaseURL:    getEnv("DATABASE_URL", "agrisage.db"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  strings.TrimRight(getEnv("OPENAI_BASE_URL", "https://api.openai.com"), "/"),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		ChatProvider:   strings.ToLower(getEnv("CHAT_PROVIDER", "openai")),
		ChatModel:      getEnv("CHAT_MODEL", "gpt-5-mini-2025-08-07"),
		VisionModel:    getEnv("VISION_MODEL", "gpt-4.1-2025-04-14"),
		RiskModel:      getEnv("RISK_MODEL", "gpt-5-mini-2025-08-07"),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-004"),

		WeatherBaseURL:   strings.TrimRight(getEnv("WEATHER_BASE_URL", "https://api.open-meteo.com"), "/"),
		GeocodingBaseURL: strings.TrimRight(getEnv("GEOCODING_BASE_URL", "https://geocoding-api.open-meteo.com"), "/"),
		WeatherCacheTTL:  getEnvAsDuration("WEATHER_CACHE_TTL", 10*time.Minute),

		DailyQueryLimit: getEnvAsInt("DAILY_QUERY_LIMIT", 10),
		AdvisoryFile:    getEnv("ADVISORY_FILE", "advisories.md"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}
	switch cfg.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return nil, errors.New("DATABASE_DRIVER must be sqlite or postgres")
	}
	switch cfg.ChatProvider {
	case "openai", "gemini":
	default:
		return nil, errors.New("CHAT_PROVIDER must be openai or gemini")
	}
	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
