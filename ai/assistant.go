package ai

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyMessage is returned for blank chat input.
var ErrEmptyMessage = errors.New("message is required")

// ============================================================================
// REQUEST/RESPONSE TYPES
// ============================================================================

type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	// ConversationHistory lets stateless clients send their own context.
	ConversationHistory []Message `json:"conversationHistory,omitempty"`
}

type ChatResponse struct {
	SessionID   string    `json:"session_id"`
	Reply       string    `json:"reply"`
	GeneratedBy string    `json:"generated_by"`
	Timestamp   time.Time `json:"timestamp"`
}

// ============================================================================
// ASSISTANT
// ============================================================================

// Assistant answers security questions. Sessions live in memory and expire
// after SessionTTL of inactivity.
type Assistant struct {
	Provider   Provider
	HistoryLen int
	SessionTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*Conversation
}

func NewAssistant(p Provider) *Assistant {
	return &Assistant{
		Provider:   p,
		HistoryLen: 6,
		SessionTTL: time.Hour,
		sessions:   make(map[string]*Conversation),
	}
}

// Start opens a new session and returns the greeting.
func (a *Assistant) Start() ChatResponse {
	conv := a.session("")
	a.mu.Lock()
	conv.AddMessage(RoleAssistant, AssistantGreeting)
	a.mu.Unlock()
	return ChatResponse{
		SessionID:   conv.SessionID,
		Reply:       AssistantGreeting,
		GeneratedBy: "Assistant",
		Timestamp:   time.Now(),
	}
}

// Chat answers one message. Model failures fall back to canned answers, so
// the only error is blank input.
func (a *Assistant) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return ChatResponse{}, ErrEmptyMessage
	}
	conv := a.session(req.SessionID)

	a.mu.Lock()
	history := req.ConversationHistory
	if len(history) == 0 {
		history = append([]Message(nil), conv.Messages...)
	}
	conv.AddMessage(RoleUser, msg)
	a.mu.Unlock()

	reply, by := a.reply(ctx, lastN(history, a.HistoryLen), msg)

	a.mu.Lock()
	conv.AddMessage(RoleAssistant, reply)
	a.mu.Unlock()

	return ChatResponse{
		SessionID:   conv.SessionID,
		Reply:       reply,
		GeneratedBy: by,
		Timestamp:   time.Now(),
	}, nil
}

func (a *Assistant) reply(ctx context.Context, history []Message, msg string) (string, string) {
	if a.Provider == nil {
		return FallbackResponse(msg), "Fallback"
	}
	messages := make([]Message, 0, len(history)+1)
	for _, m := range history {
		if m.Role == RoleUser || m.Role == RoleAssistant {
			messages = append(messages, Message{Role: m.Role, Content: m.Content})
		}
	}
	messages = append(messages, Message{Role: RoleUser, Content: msg})

	log.Printf("[AI] calling %s with %d messages", a.Provider.Name(), len(messages))
	out, err := a.Provider.Chat(ctx, messages, AssistantPrompt, Options{Temperature: 0.7, MaxTokens: 500})
	if err != nil {
		log.Printf("[AI] chat failed, using fallback: %v", err)
		return FallbackResponse(msg), "Fallback"
	}
	return out, a.Provider.Name()
}

// session returns the conversation for id, creating it when unknown. An
// empty id gets a fresh uuid.
func (a *Assistant) session(id string) *Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sessions == nil {
		a.sessions = make(map[string]*Conversation)
	}
	a.pruneLocked(time.Now())

	if id != "" {
		if conv, ok := a.sessions[id]; ok {
			conv.LastActivity = time.Now()
			return conv
		}
	} else {
		id = uuid.NewString()
	}
	conv := NewConversation(id)
	a.sessions[id] = conv
	return conv
}

func (a *Assistant) pruneLocked(now time.Time) {
	if a.SessionTTL <= 0 {
		return
	}
	for id, conv := range a.sessions {
		if now.Sub(conv.LastActivity) > a.SessionTTL {
			delete(a.sessions, id)
		}
	}
}

// History returns a copy of a session's messages.
func (a *Assistant) History(id string) ([]Message, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	conv, ok := a.sessions[id]
	if !ok {
		return nil, false
	}
	return append([]Message(nil), conv.Messages...), true
}

// FallbackResponse picks a canned answer by topic.
func FallbackResponse(msg string) string {
	lower := strings.ToLower(msg)
	for _, t := range fallbackTopics {
		if matchesAll(lower, t.match) {
			return t.reply
		}
	}
	return fallbackDefault
}

func matchesAll(s string, groups [][]string) bool {
	for _, words := range groups {
		hit := false
		for _, w := range words {
			if strings.Contains(s, w) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}
