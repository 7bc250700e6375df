package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/kerala-agrisage/agrisage/internal/utils"
)

const transcribePrompt = "Transcribe the following audio recording accurately."

// Gemini covers speech-to-text, advisory embeddings and, optionally, chat.
type Gemini struct {
	client         *genai.Client
	model          string
	embeddingModel string
}

// NewGemini builds the client. With an empty key every call fails with a MissingKeyError.
func NewGemini(ctx context.Context, apiKey, model, embeddingModel string) (*Gemini, error) {
	g := &Gemini{model: model, embeddingModel: embeddingModel}
	if apiKey == "" {
		return g, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *Gemini) ready() error {
	if g.client == nil {
		return &MissingKeyError{Var: "GEMINI_API_KEY"}
	}
	return nil
}

func (g *Gemini) generativeModel(req Request) *genai.GenerativeModel {
	name := req.Model
	if name == "" || !strings.HasPrefix(name, "gemini") {
		name = g.model
	}
	model := g.client.GenerativeModel(name)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	return model
}

func requestParts(req Request) ([]genai.Part, error) {
	parts := []genai.Part{genai.Text(req.User)}
	for _, u := range req.ImageURLs {
		if !utils.IsDataURL(u) {
			return nil, errors.New("gemini accepts inline data: image URLs only")
		}
		img, err := utils.ParseDataURL(u, "image/")
		if err != nil {
			return nil, err
		}
		parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}
	return parts, nil
}

func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	if err := g.ready(); err != nil {
		return "", err
	}
	parts, err := requestParts(req)
	if err != nil {
		return "", err
	}
	resp, err := g.generativeModel(req).GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", errors.New("gemini returned an empty response")
	}
	return text, nil
}

func (g *Gemini) Stream(ctx context.Context, req Request, onDelta func(string) error) (string, error) {
	if err := g.ready(); err != nil {
		return "", err
	}
	parts, err := requestParts(req)
	if err != nil {
		return "", err
	}

	var full strings.Builder
	iter := g.generativeModel(req).GenerateContentStream(ctx, parts...)
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return full.String(), fmt.Errorf("gemini stream failed: %w", err)
		}
		delta := responseText(resp)
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return full.String(), err
			}
		}
	}
	return full.String(), nil
}

func (g *Gemini) Transcribe(ctx context.Context, mimeType string, audio []byte) (string, error) {
	if err := g.ready(); err != nil {
		return "", err
	}
	model := g.client.GenerativeModel(g.model)
	resp, err := model.GenerateContent(ctx, genai.Text(transcribePrompt), genai.Blob{MIMEType: mimeType, Data: audio})
	if err != nil {
		return "", fmt.Errorf("gemini transcription failed: %w", err)
	}
	return strings.TrimSpace(responseText(resp)), nil
}

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	res, err := g.client.EmbeddingModel(g.embeddingModel).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, errors.New("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
