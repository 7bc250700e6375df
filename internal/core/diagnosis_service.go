package core

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kerala-agrisage/agrisage/internal/llm"
	"github.com/kerala-agrisage/agrisage/internal/logger"
	"github.com/kerala-agrisage/agrisage/internal/metrics"
	"github.com/kerala-agrisage/agrisage/internal/store"
	"github.com/kerala-agrisage/agrisage/internal/utils"
)

const (
	diagnosisMaxTokens = 500
	reportMaxTokens    = 800
	analysisListLimit  = 50

	fallbackDisease    = "Analysis Complete"
	fallbackPrevention = "Regular monitoring and proper plant care recommended."
	streamedDisease    = "Report"
)

type DiagnosisRequest struct {
	ImageDataURL string `json:"imageDataUrl,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
	Language     string `json:"language"`
}

func (r DiagnosisRequest) image() string {
	if s := strings.TrimSpace(r.ImageDataURL); s != "" {
		return s
	}
	return strings.TrimSpace(r.ImageURL)
}

type Diagnosis struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
	Severity   string  `json:"severity"`
	Treatment  string  `json:"treatment"`
	Prevention string  `json:"prevention"`
}

// DefaultDiagnosis is shown when the model answered in something other than JSON.
func DefaultDiagnosis(content string) Diagnosis {
	return Diagnosis{
		Disease:    fallbackDisease,
		Confidence: 85,
		Severity:   "medium",
		Treatment:  excerpt(content, 200),
		Prevention: fallbackPrevention,
	}
}

type DiagnosisService struct {
	store  *store.Store
	llm    llm.Completer
	badges *BadgeService
	model  string
	rec    recorder
	log    *logger.Logger
}

// NewDiagnosisService wires the disease function. badges may be nil.
func NewDiagnosisService(db *store.Store, completer llm.Completer, badges *BadgeService, model string, m *metrics.Metrics, log *logger.Logger) *DiagnosisService {
	if log == nil {
		log = logger.NewNop()
	}
	return &DiagnosisService{store: db, llm: completer, badges: badges, model: model, rec: newRecorder(m, log), log: log.With("service", "diagnosis")}
}

func (s *DiagnosisService) record(ctx context.Context, userID string, a *store.DiseaseAnalysis) {
	ctx = context.WithoutCancel(ctx)
	err := s.store.CreateDiseaseAnalysis(ctx, a)
	s.rec.persisted("disease_analysis", userID, err)
	if err == nil && s.badges != nil {
		s.badges.Evaluate(ctx, userID)
	}
}

// Analyze asks the vision model for a JSON diagnosis of one image.
func (s *DiagnosisService) Analyze(ctx context.Context, userID string, req DiagnosisRequest) (*Diagnosis, error) {
	image, err := validateImage(req)
	if err != nil {
		return nil, err
	}

	content, err := s.llm.Complete(ctx, llm.Request{
		Model:     s.model,
		System:    diseaseSystemPrompt(req.Language),
		User:      diseaseUserPrompt,
		ImageURLs: []string{image},
		MaxTokens: diagnosisMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	d := ParseDiagnosis(content)
	s.record(ctx, userID, &store.DiseaseAnalysis{
		UserID:                   userID,
		ImageURL:                 utils.ImageReference(image),
		DetectedDisease:          d.Disease,
		Confidence:               fraction(d.Confidence),
		Severity:                 d.Severity,
		TreatmentRecommendations: d.Treatment,
		Prevention:               d.Prevention,
	})
	return &d, nil
}

// StreamReport streams a Markdown report instead of JSON. The stored record keeps the
// whole report as its treatment text.
func (s *DiagnosisService) StreamReport(ctx context.Context, userID string, req DiagnosisRequest, onDelta func(string) error) (string, error) {
	image, err := validateImage(req)
	if err != nil {
		return "", err
	}

	report, err := s.llm.Stream(ctx, llm.Request{
		Model:     s.model,
		System:    diseaseReportPrompt(req.Language),
		User:      diseaseUserPrompt,
		ImageURLs: []string{image},
		MaxTokens: reportMaxTokens,
	}, onDelta)
	if err != nil {
		return report, err
	}

	s.record(ctx, userID, &store.DiseaseAnalysis{
		UserID:                   userID,
		ImageURL:                 utils.ImageReference(image),
		DetectedDisease:          streamedDisease,
		TreatmentRecommendations: report,
	})
	return report, nil
}

func (s *DiagnosisService) History(ctx context.Context, userID string) ([]store.DiseaseAnalysis, error) {
	return s.store.ListDiseaseAnalyses(ctx, userID, analysisListLimit)
}

func validateImage(req DiagnosisRequest) (string, error) {
	image := req.image()
	if image == "" {
		return "", missingField("imageDataUrl or imageUrl")
	}
	if utils.IsDataURL(image) {
		if _, err := utils.ParseDataURL(image, "image/"); err != nil {
			return "", err
		}
	}
	return image, nil
}

type modelDiagnosis struct {
	Disease    flexText `json:"disease"`
	Confidence score    `json:"confidence"`
	Severity   flexText `json:"severity"`
	Treatment  flexText `json:"treatment"`
	Prevention flexText `json:"prevention"`
}

// ParseDiagnosis reads the model's JSON answer, falling back to DefaultDiagnosis.
func ParseDiagnosis(content string) Diagnosis {
	var m modelDiagnosis
	if err := json.Unmarshal([]byte(extractJSON(content)), &m); err != nil {
		return DefaultDiagnosis(content)
	}
	return Diagnosis{
		Disease:    string(m.Disease),
		Confidence: float64(m.Confidence),
		Severity:   strings.ToLower(string(m.Severity)),
		Treatment:  string(m.Treatment),
		Prevention: string(m.Prevention),
	}
}
