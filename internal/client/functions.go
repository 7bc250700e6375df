package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/kerala-agrisage/agrisage/internal/core"
	"github.com/kerala-agrisage/agrisage/internal/market"
	"github.com/kerala-agrisage/agrisage/internal/store"
	"github.com/kerala-agrisage/agrisage/internal/stream"
	"github.com/kerala-agrisage/agrisage/internal/utils"
	"github.com/kerala-agrisage/agrisage/internal/weather"
)

const (
	chatFunction      = "/functions/v1/agricultural-chat"
	diagnosisFunction = "/functions/v1/analyze-plant-disease"
	riskFunction      = "/functions/v1/predict-crop-risk"
	speechFunction    = "/functions/v1/speech-to-text"
)

func (c *Client) Chat(ctx context.Context, req core.ChatRequest) (*core.ChatAnswer, error) {
	var ans core.ChatAnswer
	if err := c.doJSON(ctx, http.MethodPost, chatFunction, true, req, &ans); err != nil {
		return nil, err
	}
	return &ans, nil
}

// StreamChat calls onChunk with every decoded piece of the answer and the text so far.
// It returns the full answer and the chat the exchange was stored under.
func (c *Client) StreamChat(ctx context.Context, req core.ChatRequest, onChunk func(chunk, full string)) (string, string, error) {
	resp, err := c.openStream(ctx, chatFunction, req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	chatID := resp.Header.Get("X-Chat-Id")
	full, err := stream.Consume(ctx, resp.Body, onChunk)
	return full, chatID, err
}

// AnalyzeImage never fails on an unparseable body: the default analysis is returned instead.
func (c *Client) AnalyzeImage(ctx context.Context, req core.DiagnosisRequest) (*core.Diagnosis, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, diagnosisFunction, true, req)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var d core.Diagnosis
	if err := json.Unmarshal(raw, &d); err != nil {
		d = core.DefaultDiagnosis(string(raw))
	}
	return &d, nil
}

func (c *Client) StreamImageReport(ctx context.Context, req core.DiagnosisRequest, onChunk func(chunk, full string)) (string, error) {
	resp, err := c.openStream(ctx, diagnosisFunction, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return stream.Consume(ctx, resp.Body, onChunk)
}

// PredictRisk validates the form locally first; an incomplete form never reaches the network.
func (c *Client) PredictRisk(ctx context.Context, form RiskForm) (*core.RiskAssessment, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	var out core.RiskAssessment
	if err := c.doJSON(ctx, http.MethodPost, riskFunction, true, form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Transcribe(ctx context.Context, mimeType string, audio []byte) (string, error) {
	var out core.Transcript
	req := core.SpeechRequest{AudioDataURL: utils.EncodeDataURL(mimeType, audio)}
	if err := c.doJSON(ctx, http.MethodPost, speechFunction, true, req, &out); err != nil {
		return "", err
	}
	return out.Transcript, nil
}

func (c *Client) Analyses(ctx context.Context) ([]store.DiseaseAnalysis, error) {
	var out []store.DiseaseAnalysis
	if err := c.doJSON(ctx, http.MethodGet, "/api/analyses", true, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Weather(ctx context.Context, location string) (*weather.Report, error) {
	var out weather.Report
	path := "/api/weather?" + url.Values{"location": {location}}.Encode()
	if err := c.doJSON(ctx, http.MethodGet, path, true, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type MarketPrices struct {
	Updated string         `json:"updated"`
	Items   []market.Price `json:"items"`
}

func (c *Client) MarketPrices(ctx context.Context, category string) (*MarketPrices, error) {
	path := "/api/market-prices"
	if category != "" {
		path += "?" + url.Values{"category": {category}}.Encode()
	}
	var out MarketPrices
	if err := c.doJSON(ctx, http.MethodGet, path, false, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) openStream(ctx context.Context, path string, body any) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, true, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/plain")
	return c.send(req)
}
