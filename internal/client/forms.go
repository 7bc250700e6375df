package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kerala-agrisage/agrisage/internal/core"
)

var (
	ErrMissingFields = errors.New("please fill in all required fields")
	ErrEmptyQuery    = errors.New("query is empty")
)

// RiskForm holds the risk assessment inputs as typed by the farmer.
type RiskForm struct {
	Crop        string `json:"crop"`
	Temperature string `json:"temperature"`
	Humidity    string `json:"humidity"`
	PH          string `json:"pH"`
	Season      string `json:"season,omitempty"`
	Location    string `json:"location,omitempty"`
	Language    string `json:"language,omitempty"`
}

func (f RiskForm) Validate() error {
	var missing []string
	for _, field := range []struct{ name, value string }{
		{"crop", f.Crop},
		{"temperature", f.Temperature},
		{"humidity", f.Humidity},
		{"pH", f.PH},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	return nil
}

const chatFailureText = "Sorry, I encountered an error. Please try again."

type Message struct {
	Role string    `json:"role"` // "user" or "bot"
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Conversation is the chat transcript of one session with the assistant.
type Conversation struct {
	client   *Client
	Language string
	ChatID   string
	Messages []Message
}

func (c *Client) NewConversation(language string) *Conversation {
	return &Conversation{client: c, Language: language}
}

// Send appends the farmer's message and one bot message, which grows as the answer
// streams in. On failure the bot message carries the apology text and the error is returned.
// A blank query is rejected without touching the transcript.
func (cv *Conversation) Send(ctx context.Context, query string, onUpdate func(Message)) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrEmptyQuery
	}
	cv.Messages = append(cv.Messages,
		Message{Role: "user", Text: query, At: time.Now()},
		Message{Role: "bot", At: time.Now()},
	)
	bot := &cv.Messages[len(cv.Messages)-1]

	req := core.ChatRequest{Query: query, Language: cv.Language, ChatID: cv.ChatID}
	_, chatID, err := cv.client.StreamChat(ctx, req, func(_, full string) {
		bot.Text = full
		if onUpdate != nil {
			onUpdate(*bot)
		}
	})
	if err != nil {
		bot.Text = chatFailureText
		if onUpdate != nil {
			onUpdate(*bot)
		}
		return err
	}
	if chatID != "" {
		cv.ChatID = chatID
	}
	return nil
}
