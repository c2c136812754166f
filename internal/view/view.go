// Package view holds the client-side conversation display state: the
// ordered message list and the per-turn streaming state machine.
package view

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatconnect/internal/models"
)

var (
	ErrTurnInFlight   = errors.New("a turn is already in flight")
	ErrNoTurnInFlight = errors.New("no turn in flight")
	ErrEmptyMessage   = errors.New("message cannot be empty")
)

// Message is one rendered entry in the conversation, including the
// client-only streaming flag. While a turn is in flight the assistant
// placeholder is always the last message and the only one streaming.
type Message struct {
	ID          string
	Role        models.Role
	Content     string
	Timestamp   time.Time
	IsStreaming bool
}

// Conversation is the view-side state machine for chat turns. A turn moves
// idle -> streaming -> idle. Failures roll the assistant placeholder back so
// a broken stream leaves no partial assistant bubble behind.
type Conversation struct {
	mu        sync.Mutex
	messages  []Message
	streaming bool
	lastError string
}

// BeginTurn appends the user message optimistically together with a
// streaming assistant placeholder. Only one turn may be in flight.
func (c *Conversation) BeginTurn(userText string) error {
	text := strings.TrimSpace(userText)
	if text == "" {
		return ErrEmptyMessage
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streaming {
		return ErrTurnInFlight
	}
	now := time.Now()
	c.messages = append(c.messages,
		Message{ID: uuid.NewString(), Role: models.RoleUser, Content: text, Timestamp: now},
		Message{ID: uuid.NewString(), Role: models.RoleAssistant, Timestamp: now, IsStreaming: true},
	)
	c.streaming = true
	c.lastError = ""
	return nil
}

// AppendChunk grows the streaming placeholder with one fragment.
func (c *Conversation) AppendChunk(fragment string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.streaming {
		return ErrNoTurnInFlight
	}
	c.messages[len(c.messages)-1].Content += fragment
	return nil
}

// CompleteTurn finalizes the placeholder with the full response text.
func (c *Conversation) CompleteTurn(fullResponse string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.streaming {
		return ErrNoTurnInFlight
	}
	last := &c.messages[len(c.messages)-1]
	last.Content = fullResponse
	last.IsStreaming = false
	c.streaming = false
	return nil
}

// FailTurn drops the assistant placeholder and records the error notice.
// The user message stays visible.
func (c *Conversation) FailTurn(detail string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.streaming {
		return ErrNoTurnInFlight
	}
	c.messages = c.messages[:len(c.messages)-1]
	c.streaming = false
	c.lastError = detail
	return nil
}

// Clear empties the visible conversation. It is rejected while a turn is in
// flight.
func (c *Conversation) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streaming {
		return ErrTurnInFlight
	}
	c.messages = nil
	c.lastError = ""
	return nil
}

// Messages returns a copy of the visible message list.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Streaming reports whether a turn is in flight.
func (c *Conversation) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// LastError returns the error notice from the most recent failed turn, or
// the empty string.
func (c *Conversation) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}
