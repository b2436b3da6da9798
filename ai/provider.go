package ai

import (
	"context"
	"errors"
	"log"

	"phishguard/config"
)

// ErrEmptyReply is returned when a model answers with no text.
var ErrEmptyReply = errors.New("empty reply from model")

// Provider is a chat completion backend.
type Provider interface {
	Name() string
	Model() string
	Chat(ctx context.Context, messages []Message, systemPrompt string, opts Options) (string, error)
}

// ImageProvider is a Provider that can also look at images.
type ImageProvider interface {
	Provider
	ChatImage(ctx context.Context, prompt string, image []byte, mimeType string, opts Options) (string, error)
}

// Options tunes a single completion. Zero values pick the defaults.
type Options struct {
	Temperature float64
	MaxTokens   int
}

func (o Options) temperature() float64 {
	if o.Temperature <= 0 {
		return 0.7
	}
	return o.Temperature
}

func (o Options) maxTokens() int {
	if o.MaxTokens <= 0 {
		return 1024
	}
	return o.MaxTokens
}

// NewProviders picks the text and vision backends from cfg. Either may be
// nil, in which case callers use their local fallbacks.
func NewProviders(cfg config.Config) (Provider, ImageProvider) {
	var text Provider
	var vision ImageProvider

	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GeminiKey != "" {
			model := cfg.GeminiModel
			if cfg.LLMModel != "" {
				model = cfg.LLMModel
			}
			text = NewGeminiClient(cfg.GeminiKey, model)
		}
	case "openrouter":
		if cfg.OpenRouterKey != "" {
			text = NewOpenRouterClient(cfg.OpenRouterKey, firstNonEmpty(cfg.LLMModel, "openai/gpt-4o-mini"))
		}
	case "mistral":
		if cfg.MistralKey != "" {
			text = NewMistralClient(cfg.MistralKey, firstNonEmpty(cfg.LLMModel, "mistral-small-latest"))
		}
	}

	// Vision needs a multimodal endpoint. Gemini and OpenRouter have one.
	switch {
	case cfg.LLMProvider == "gemini" && cfg.GeminiKey != "":
		vision = NewGeminiClient(cfg.GeminiKey, firstNonEmpty(cfg.VisionModel, cfg.GeminiModel))
	case cfg.OpenRouterKey != "":
		vision = NewOpenRouterClient(cfg.OpenRouterKey, firstNonEmpty(cfg.VisionModel, "openai/gpt-4o"))
	}

	if text == nil {
		log.Printf("[AI] no LLM configured, explanations and chat use built-in text")
	} else {
		log.Printf("[AI] text model: %s %s", text.Name(), text.Model())
	}
	if vision != nil {
		log.Printf("[AI] vision model: %s %s", vision.Name(), vision.Model())
	}
	return text, vision
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
