package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	conversationFile = "conversation.json"
)

// Conversation is the persisted history of the chat command, replayed as
// context when a chat is continued.
type Conversation struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`

	// Messages is the conversation history in chronological order.
	Messages []ConversationMessage `json:"messages"`

	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationMessage is a single persisted message.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Append adds a message to the conversation.
func (c *Conversation) Append(role, content string) {
	c.Messages = append(c.Messages, ConversationMessage{Role: role, Content: content})
	c.UpdatedAt = time.Now()
}

// LoadConversation loads .llmux/conversation.json.
// Returns nil, nil if no conversation exists.
func (m *Manager) LoadConversation(overrideDir string) (*Conversation, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, conversationFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading conversation: %w", err)
	}

	conv := &Conversation{}
	if err := json.Unmarshal(data, conv); err != nil {
		return nil, fmt.Errorf("parsing conversation: %w", err)
	}
	return conv, nil
}

// SaveConversation persists conv to .llmux/conversation.json, creating
// ~/.llmux/ if needed.
func (m *Manager) SaveConversation(conv *Conversation, overrideDir string) error {
	if conv == nil {
		return errors.New("cannot save nil conversation")
	}

	dir, err := m.Ensure(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling conversation: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, conversationFile), data, 0o600); err != nil {
		return fmt.Errorf("writing conversation: %w", err)
	}
	return nil
}

// ClearConversation removes the conversation file. It returns nil if there
// is nothing to remove.
func (m *Manager) ClearConversation(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return err
	}

	if err := os.Remove(filepath.Join(dir, conversationFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing conversation: %w", err)
	}
	return nil
}
