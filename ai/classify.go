package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"phishguard/vetting"
)

// ErrUnparseable is returned when a model reply holds no usable JSON.
var ErrUnparseable = errors.New("model reply is not valid JSON")

var jsonFence = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")

// decodeReply reads a JSON object from a model reply, with or without a
// markdown code fence around it.
func decodeReply(content string, out any) error {
	body := strings.TrimSpace(content)
	if m := jsonFence.FindStringSubmatch(body); m != nil {
		body = m[1]
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return nil
}

// EmailClassifier scores emails with a text model.
type EmailClassifier struct {
	Provider Provider
}

func (c *EmailClassifier) ClassifyEmail(ctx context.Context, e vetting.Email) (*vetting.EmailAIReport, error) {
	if c.Provider == nil {
		return nil, vetting.ErrNotConfigured
	}
	sender := e.SenderEmail
	if sender == "" {
		sender = "Unknown"
	}
	subject := e.Subject
	if subject == "" {
		subject = "No subject"
	}
	prompt := fmt.Sprintf(EmailPromptTemplate, sender, subject, e.Content)

	content, err := c.Provider.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, "", Options{Temperature: 0.3, MaxTokens: 800})
	if err != nil {
		return nil, err
	}
	var report vetting.EmailAIReport
	if err := decodeReply(content, &report); err != nil {
		log.Printf("[AI] email reply from %s unparseable", c.Provider.Name())
		return nil, err
	}
	report.RiskScore = clampScore(report.RiskScore)
	return &report, nil
}

// VisionClassifier reads screenshots with a multimodal model.
type VisionClassifier struct {
	Provider ImageProvider
}

func (c *VisionClassifier) AnalyzeScreenshot(ctx context.Context, image []byte, mimeType string) (*vetting.VisionReport, error) {
	if c.Provider == nil {
		return nil, vetting.ErrNotConfigured
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	log.Printf("[AI] analyzing screenshot with %s", c.Provider.Model())

	content, err := c.Provider.ChatImage(ctx, VisionPrompt, image, mimeType, Options{Temperature: 0.3, MaxTokens: 1500})
	if err != nil {
		return nil, err
	}

	var report vetting.VisionReport
	if err := decodeReply(content, &report); err != nil {
		// Prose replies score 50.
		lower := strings.ToLower(content)
		report = vetting.VisionReport{
			ExtractedText:      content,
			HasLoginForm:       strings.Contains(lower, "login") || strings.Contains(lower, "form"),
			DetectedBrands:     []string{},
			InputFields:        []string{},
			SuspiciousElements: []string{},
			RiskScore:          50,
			Reasoning:          "Unable to parse structured response",
		}
	}
	report.RiskScore = clampScore(report.RiskScore)
	log.Printf("[AI] vision analysis complete - risk %d/100", report.RiskScore)
	return &report, nil
}

func clampScore(n int) int {
	return max(0, min(n, 100))
}
