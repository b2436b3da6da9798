package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"phishguard/vetting"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	mistralBaseURL    = "https://api.mistral.ai/v1"
)

// ChatClient talks to OpenAI-compatible /chat/completions endpoints
// (OpenRouter, Mistral).
type ChatClient struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	// Headers are added to every request, e.g. OpenRouter's attribution headers.
	Headers map[string]string

	name  string
	model string
}

// NewOpenRouterClient returns a client for the OpenRouter gateway.
func NewOpenRouterClient(apiKey, model string) *ChatClient {
	return &ChatClient{
		APIKey:     apiKey,
		BaseURL:    openRouterBaseURL,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Headers: map[string]string{
			"HTTP-Referer": "http://localhost:3000",
			"X-Title":      "Phishing Detection Platform",
		},
		name:  "OpenRouter",
		model: model,
	}
}

// NewMistralClient returns a client for the Mistral platform API.
func NewMistralClient(apiKey, model string) *ChatClient {
	return &ChatClient{
		APIKey:     apiKey,
		BaseURL:    mistralBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		name:       "Mistral AI",
		model:      model,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []chatPart
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *ChatClient) Name() string  { return c.name }
func (c *ChatClient) Model() string { return c.model }

func (c *ChatClient) Chat(ctx context.Context, messages []Message, systemPrompt string, opts Options) (string, error) {
	msgs := make([]chatMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range messages {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	return c.complete(ctx, msgs, opts)
}

// ChatImage sends the image as a data URL next to the prompt.
func (c *ChatClient) ChatImage(ctx context.Context, prompt string, image []byte, mimeType string, opts Options) (string, error) {
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	msgs := []chatMessage{{
		Role: RoleUser,
		Content: []chatPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}},
		},
	}}
	return c.complete(ctx, msgs, opts)
}

func (c *ChatClient) complete(ctx context.Context, msgs []chatMessage, opts Options) (string, error) {
	raw, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   opts.maxTokens(),
		Temperature: opts.temperature(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", strings.ToLower(c.name), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &vetting.StatusError{Service: strings.ToLower(c.name), Code: resp.StatusCode}
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("%s API error: %s", c.name, out.Error.Message)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyReply
	}
	return out.Choices[0].Message.Content, nil
}
