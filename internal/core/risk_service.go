package core

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kerala-agrisage/agrisage/internal/llm"
	"github.com/kerala-agrisage/agrisage/internal/logger"
	"github.com/kerala-agrisage/agrisage/internal/metrics"
	"github.com/kerala-agrisage/agrisage/internal/store"
)

const (
	riskMaxTokens = 400
	riskListLimit = 50
)

type RiskInput struct {
	Crop        string `json:"crop"`
	Temperature Number `json:"temperature"`
	Humidity    Number `json:"humidity"`
	PH          Number `json:"pH"`
	Season      string `json:"season"`
	Location    string `json:"location"`
	Language    string `json:"language"`
}

// Validate reports the first missing required field.
func (in RiskInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Crop) == "":
		return missingField("crop")
	case !in.Temperature.Valid:
		return missingField("temperature")
	case !in.Humidity.Valid:
		return missingField("humidity")
	case !in.PH.Valid:
		return missingField("pH")
	}
	return nil
}

type RiskAssessment struct {
	OverallRisk     string   `json:"overallRisk"`
	WeatherRisk     string   `json:"weatherRisk"`
	DiseaseRisk     string   `json:"diseaseRisk"`
	SoilRisk        string   `json:"soilRisk"`
	Recommendations []string `json:"recommendations"`
	Confidence      float64  `json:"confidence"`
}

// DefaultRiskAssessment is returned when the model did not answer in JSON.
func DefaultRiskAssessment(content string) RiskAssessment {
	return RiskAssessment{
		OverallRisk:     "medium",
		WeatherRisk:     "medium",
		DiseaseRisk:     "medium",
		SoilRisk:        "medium",
		Recommendations: []string{excerpt(content, 100)},
		Confidence:      75,
	}
}

type RiskService struct {
	store  *store.Store
	llm    llm.Completer
	badges *BadgeService
	model  string
	rec    recorder
}

// NewRiskService wires the risk function. badges may be nil.
func NewRiskService(db *store.Store, completer llm.Completer, badges *BadgeService, model string, m *metrics.Metrics, log *logger.Logger) *RiskService {
	return &RiskService{store: db, llm: completer, badges: badges, model: model, rec: newRecorder(m, log)}
}

func (s *RiskService) Predict(ctx context.Context, userID string, in RiskInput) (*RiskAssessment, error) {
	in.Crop = strings.TrimSpace(in.Crop)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	content, err := s.llm.Complete(ctx, llm.Request{
		Model:     s.model,
		System:    riskSystemPrompt(in),
		User:      riskUserPrompt(in.Crop),
		MaxTokens: riskMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	r := ParseRiskAssessment(content)
	persistCtx := context.WithoutCancel(ctx)
	err = s.store.CreateRiskPrediction(persistCtx, &store.RiskPrediction{
		UserID:          userID,
		Crop:            in.Crop,
		Location:        in.Location,
		Season:          in.Season,
		Temperature:     in.Temperature.Value,
		Humidity:        in.Humidity.Value,
		PHLevel:         in.PH.Value,
		OverallRisk:     r.OverallRisk,
		WeatherRisk:     r.WeatherRisk,
		DiseaseRisk:     r.DiseaseRisk,
		SoilRisk:        r.SoilRisk,
		Recommendations: strings.Join(r.Recommendations, ", "),
		Confidence:      fraction(r.Confidence),
	})
	s.rec.persisted("risk_predictions", userID, err)
	if err == nil && s.badges != nil {
		s.badges.Evaluate(persistCtx, userID)
	}
	return &r, nil
}

func (s *RiskService) History(ctx context.Context, userID string) ([]store.RiskPrediction, error) {
	return s.store.ListRiskPredictions(ctx, userID, riskListLimit)
}

type modelRisk struct {
	OverallRisk     flexText `json:"overallRisk"`
	WeatherRisk     flexText `json:"weatherRisk"`
	DiseaseRisk     flexText `json:"diseaseRisk"`
	SoilRisk        flexText `json:"soilRisk"`
	Recommendations flexList `json:"recommendations"`
	Confidence      score    `json:"confidence"`
}

// ParseRiskAssessment reads the model's JSON answer, falling back to DefaultRiskAssessment.
func ParseRiskAssessment(content string) RiskAssessment {
	var m modelRisk
	if err := json.Unmarshal([]byte(extractJSON(content)), &m); err != nil {
		return DefaultRiskAssessment(content)
	}
	recs := []string(m.Recommendations)
	if recs == nil {
		recs = []string{}
	}
	return RiskAssessment{
		OverallRisk:     string(m.OverallRisk),
		WeatherRisk:     string(m.WeatherRisk),
		DiseaseRisk:     string(m.DiseaseRisk),
		SoilRisk:        string(m.SoilRisk),
		Recommendations: recs,
		Confidence:      float64(m.Confidence),
	}
}
