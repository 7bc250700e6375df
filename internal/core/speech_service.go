package core

import (
	"context"
	"strings"

	"github.com/kerala-agrisage/agrisage/internal/llm"
	"github.com/kerala-agrisage/agrisage/internal/utils"
)

type SpeechRequest struct {
	AudioDataURL string `json:"audioDataUrl"`
}

type Transcript struct {
	Transcript string `json:"transcript"`
}

type SpeechService struct {
	transcriber llm.Transcriber
}

func NewSpeechService(t llm.Transcriber) *SpeechService {
	return &SpeechService{transcriber: t}
}

// Transcribe decodes a data:audio/...;base64 URL and returns its text.
func (s *SpeechService) Transcribe(ctx context.Context, req SpeechRequest) (*Transcript, error) {
	if strings.TrimSpace(req.AudioDataURL) == "" {
		return nil, missingField("audioDataUrl")
	}
	audio, err := utils.ParseDataURL(req.AudioDataURL, "audio/")
	if err != nil {
		return nil, err
	}
	// Recorders report e.g. "audio/webm;codecs=opus"; the provider wants the bare type.
	mimeType, _, _ := strings.Cut(audio.MIMEType, ";")

	text, err := s.transcriber.Transcribe(ctx, mimeType, audio.Data)
	if err != nil {
		return nil, err
	}
	return &Transcript{Transcript: text}, nil
}
