package ai

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single chat message
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Conversation is one assistant session.
type Conversation struct {
	SessionID    string    `json:"session_id"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// NewConversation creates a new conversation state
func NewConversation(sessionID string) *Conversation {
	now := time.Now()
	return &Conversation{
		SessionID:    sessionID,
		Messages:     []Message{},
		CreatedAt:    now,
		LastActivity: now,
	}
}

// AddMessage appends a message and touches the session.
func (c *Conversation) AddMessage(role, content string) {
	now := time.Now()
	c.Messages = append(c.Messages, Message{Role: role, Content: content, Timestamp: now})
	c.LastActivity = now
}

// Recent returns at most the last n messages.
func (c *Conversation) Recent(n int) []Message {
	return lastN(c.Messages, n)
}

func lastN(msgs []Message, n int) []Message {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
