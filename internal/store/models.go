package store

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is one row per user, created on sign-up and edited from settings.
type Profile struct {
	UserID      string    `json:"user_id"`
	FullName    string    `json:"full_name"`
	Phone       string    `json:"phone"`
	Location    string    `json:"location"`
	PrimaryCrop string    `json:"primary_crop"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

type ChatHistory struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Topic     string        `json:"topic"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type FarmerQuery struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}

// DiseaseAnalysis is written once per completed analysis and never updated.
type DiseaseAnalysis struct {
	ID                       string    `json:"id"`
	UserID                   string    `json:"user_id"`
	ImageURL                 string    `json:"image_url"`
	DetectedDisease          string    `json:"detected_disease"`
	Confidence               float64   `json:"confidence"` // 0..1
	Severity                 string    `json:"severity"`
	TreatmentRecommendations string    `json:"treatment_recommendations"`
	Prevention               string    `json:"prevention"`
	CreatedAt                time.Time `json:"created_at"`
}

// RiskPrediction is written once per completed calculation and never updated.
type RiskPrediction struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Crop            string    `json:"crop"`
	Location        string    `json:"location"`
	Season          string    `json:"season"`
	Temperature     float64   `json:"temperature"`
	Humidity        float64   `json:"humidity"`
	PHLevel         float64   `json:"ph_level"`
	OverallRisk     string    `json:"overall_risk"`
	WeatherRisk     string    `json:"weather_risk"`
	DiseaseRisk     string    `json:"disease_risk"`
	SoilRisk        string    `json:"soil_risk"`
	Recommendations string    `json:"recommendations"`
	Confidence      float64   `json:"confidence"` // 0..1
	CreatedAt       time.Time `json:"created_at"`
}

type UserBadge struct {
	UserID   string    `json:"user_id"`
	BadgeKey string    `json:"badge_key"`
	EarnedAt time.Time `json:"earned_at"`
}

type AdvisoryChunk struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	Embedding     []float32 `json:"-"`
	EmbeddingJSON string    `json:"-"` // Stored as JSON text of []float32
}
