package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

func (s *Store) CreateChatHistory(ctx context.Context, userID, topic string, messages []ChatMessage) (*ChatHistory, error) {
	return s.CreateChatHistoryWithID(ctx, uuid.NewString(), userID, topic, messages)
}

// CreateChatHistoryWithID is used when the id was handed to the caller before the first answer finished.
func (s *Store) CreateChatHistoryWithID(ctx context.Context, chatID, userID, topic string, messages []ChatMessage) (*ChatHistory, error) {
	if messages == nil {
		messages = []ChatMessage{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat messages: %w", err)
	}

	now := s.now()
	chat := &ChatHistory{ID: chatID, UserID: userID, Topic: topic, Messages: messages, CreatedAt: now, UpdatedAt: now}
	_, err = s.db.ExecContext(ctx, s.rebind("INSERT INTO chat_history (id, user_id, topic, messages, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)"),
		chat.ID, chat.UserID, chat.Topic, string(raw), chat.CreatedAt, chat.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat history: %w", err)
	}
	return chat, nil
}

// AppendChatMessages adds msgs to the end of an owned chat. Returns nil, nil when the chat
// does not exist or belongs to someone else.
func (s *Store) AppendChatMessages(ctx context.Context, chatID, userID string, msgs ...ChatMessage) (*ChatHistory, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	chat, err := scanChat(tx.QueryRowContext(ctx, s.rebind(selectChat+" WHERE id = ? AND user_id = ?"), chatID, userID))
	if err != nil || chat == nil {
		return nil, err
	}

	chat.Messages = append(chat.Messages, msgs...)
	raw, err := json.Marshal(chat.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat messages: %w", err)
	}
	chat.UpdatedAt = s.now()
	if _, err := tx.ExecContext(ctx, s.rebind("UPDATE chat_history SET messages = ?, updated_at = ? WHERE id = ?"),
		string(raw), chat.UpdatedAt, chat.ID); err != nil {
		return nil, fmt.Errorf("failed to update chat history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit chat history: %w", err)
	}
	return chat, nil
}

func (s *Store) GetChatHistory(ctx context.Context, chatID, userID string) (*ChatHistory, error) {
	return scanChat(s.db.QueryRowContext(ctx, s.rebind(selectChat+" WHERE id = ? AND user_id = ?"), chatID, userID))
}

// ListChatHistory returns the user's chats, most recently active first.
func (s *Store) ListChatHistory(ctx context.Context, userID string, limit int) ([]ChatHistory, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(selectChat+" WHERE user_id = ? ORDER BY updated_at DESC LIMIT ?"), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	chats := []ChatHistory{}
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *chat)
	}
	return chats, rows.Err()
}

const selectChat = "SELECT id, user_id, topic, messages, created_at, updated_at FROM chat_history"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (*ChatHistory, error) {
	var chat ChatHistory
	var raw string
	if err := row.Scan(&chat.ID, &chat.UserID, &chat.Topic, &raw, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan chat history: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &chat.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages of chat %s: %w", chat.ID, err)
	}
	return &chat, nil
}
