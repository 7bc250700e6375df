package core

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kerala-agrisage/agrisage/internal/llm"
	"github.com/kerala-agrisage/agrisage/internal/logger"
	"github.com/kerala-agrisage/agrisage/internal/metrics"
	"github.com/kerala-agrisage/agrisage/internal/store"
)

const (
	chatMaxTokens = 300
	topicMaxRunes = 60
	chatListLimit = 50
)

type ChatRequest struct {
	Query    string `json:"query"`
	Language string `json:"language"`
	ChatID   string `json:"chatId,omitempty"`
}

type ChatAnswer struct {
	Response   string  `json:"response"`
	Confidence float64 `json:"confidence"`
	ChatID     string  `json:"chatId"`
}

type ChatService struct {
	store      *store.Store
	llm        llm.Completer
	rag        *RAGService
	badges     *BadgeService
	model      string
	rec        recorder
	log        *logger.Logger
	confidence func() float64
}

// NewChatService wires the chat function. rag and badges may be nil.
func NewChatService(db *store.Store, completer llm.Completer, rag *RAGService, badges *BadgeService, model string, m *metrics.Metrics, log *logger.Logger) *ChatService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ChatService{
		store:  db,
		llm:    completer,
		rag:    rag,
		badges: badges,
		model:  model,
		rec:    newRecorder(m, log),
		log:    log.With("service", "chat"),
		// Mock confidence in [0.7, 1.0); the provider gives no such signal.
		confidence: func() float64 { return rand.Float64()*0.3 + 0.7 },
	}
}

// Ask answers one question and returns the whole answer.
func (s *ChatService) Ask(ctx context.Context, userID string, req ChatRequest) (*ChatAnswer, error) {
	chatID, existing, err := s.prepare(ctx, userID, &req)
	if err != nil {
		return nil, err
	}

	answer, err := s.llm.Complete(ctx, s.request(ctx, req))
	if err != nil {
		return nil, err
	}

	s.record(ctx, userID, req, chatID, existing, answer)
	return &ChatAnswer{Response: answer, Confidence: s.confidence(), ChatID: chatID}, nil
}

// Stream forwards the answer as it is generated. onStart runs once, before the provider is
// called, with the chat id the exchange will be stored under.
func (s *ChatService) Stream(ctx context.Context, userID string, req ChatRequest, onStart func(chatID string), onDelta func(string) error) (*ChatAnswer, error) {
	chatID, existing, err := s.prepare(ctx, userID, &req)
	if err != nil {
		return nil, err
	}
	if onStart != nil {
		onStart(chatID)
	}

	answer, err := s.llm.Stream(ctx, s.request(ctx, req), onDelta)
	if err != nil {
		return nil, err
	}

	s.record(ctx, userID, req, chatID, existing, answer)
	return &ChatAnswer{Response: answer, Confidence: s.confidence(), ChatID: chatID}, nil
}

// prepare validates the request and decides which chat the exchange belongs to. An unknown
// or foreign chatId starts a new chat.
func (s *ChatService) prepare(ctx context.Context, userID string, req *ChatRequest) (string, bool, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return "", false, missingField("query")
	}
	if req.ChatID != "" {
		chat, err := s.store.GetChatHistory(ctx, req.ChatID, userID)
		if err != nil {
			return "", false, fmt.Errorf("failed to load chat: %w", err)
		}
		if chat != nil {
			return chat.ID, true, nil
		}
		s.log.Warn("Unknown chat id, starting a new chat", "user_id", userID, "chat_id", req.ChatID)
	}
	return uuid.NewString(), false, nil
}

func (s *ChatService) request(ctx context.Context, req ChatRequest) llm.Request {
	user := req.Query
	if s.rag != nil {
		advice, err := s.rag.RelevantContext(ctx, req.Query)
		if err != nil {
			// The question is still answerable without advisories.
			s.log.Warn("Failed to get advisory context, proceeding without it", "error", err)
		}
		user = withAdvisoryContext(advice, req.Query)
	}
	return llm.Request{
		Model:     s.model,
		System:    chatSystemPrompt(req.Language),
		User:      user,
		MaxTokens: chatMaxTokens,
	}
}

func (s *ChatService) record(ctx context.Context, userID string, req ChatRequest, chatID string, existing bool, answer string) {
	ctx = context.WithoutCancel(ctx)

	err := s.store.CreateFarmerQuery(ctx, &store.FarmerQuery{
		UserID: userID, Query: req.Query, Response: answer, Language: languageCode(req.Language),
	})
	s.rec.persisted("farmer_queries", userID, err)

	msgs := []store.ChatMessage{
		{Role: store.RoleUser, Content: req.Query},
		{Role: store.RoleAssistant, Content: answer},
	}
	if existing {
		_, err = s.store.AppendChatMessages(ctx, chatID, userID, msgs...)
	} else {
		_, err = s.store.CreateChatHistoryWithID(ctx, chatID, userID, topicFor(req.Query), msgs)
	}
	s.rec.persisted("chat_history", userID, err)

	if s.badges != nil {
		s.badges.Evaluate(ctx, userID)
	}
}

// History lists the user's saved conversations.
func (s *ChatService) History(ctx context.Context, userID string) ([]store.ChatHistory, error) {
	return s.store.ListChatHistory(ctx, userID, chatListLimit)
}

// Conversation returns one saved conversation, or nil when it is not the user's.
func (s *ChatService) Conversation(ctx context.Context, userID, chatID string) (*store.ChatHistory, error) {
	return s.store.GetChatHistory(ctx, chatID, userID)
}

func topicFor(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	if utf8.RuneCountInString(query) <= topicMaxRunes {
		return query
	}
	return string([]rune(query)[:topicMaxRunes])
}

func languageCode(language string) string {
	switch language {
	case "ml", "hi":
		return language
	default:
		return "en"
	}
}
