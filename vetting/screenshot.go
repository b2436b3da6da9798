package vetting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"regexp"
	"strings"

	"phishguard/scoring"
)

var (
	emailFieldPattern    = regexp.MustCompile(`(?i)email|e-?mail|username|user\s*id|login`)
	passwordFieldPattern = regexp.MustCompile(`(?i)password|passwd|pwd|pin|otp|pass\s*word`)
	submitPattern        = regexp.MustCompile(`(?i)sign\s*in|log\s*in|login|submit|continue|verify|confirm|restore|next`)
	ssnPattern           = regexp.MustCompile(`(?i)social\s*security|ssn|security\s*number`)
	cardPattern          = regexp.MustCompile(`(?i)card\s*number|cvv|credit\s*card|debit\s*card`)
	bankPattern          = regexp.MustCompile(`(?i)account\s*number|routing\s*number|bank\s*account`)
)

// VisionReport is what a vision model says about a screenshot.
type VisionReport struct {
	ExtractedText      string   `json:"extractedText"`
	HasLoginForm       bool     `json:"hasLoginForm"`
	DetectedBrands     []string `json:"detectedBrands"`
	InputFields        []string `json:"inputFields"`
	SuspiciousElements []string `json:"suspiciousElements"`
	RiskScore          int      `json:"riskScore"`
	Reasoning          string   `json:"reasoning"`
}

// VisionModel classifies screenshots with a multimodal LLM.
type VisionModel interface {
	AnalyzeScreenshot(ctx context.Context, image []byte, mimeType string) (*VisionReport, error)
}

// TextAnalysis holds the phishing cues found in page text.
type TextAnalysis struct {
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
	UrgencyIndicators  []string `json:"urgencyIndicators"`
	BrandMentions      []string `json:"brandMentions"`
	HasEmailField      bool     `json:"hasEmailField"`
	HasPasswordField   bool     `json:"hasPasswordField"`
	HasSubmitButton    bool     `json:"hasSubmitButton"`
	HasSSN             bool     `json:"hasSSN"`
	HasCreditCard      bool     `json:"hasCreditCard"`
	HasBankInfo        bool     `json:"hasBankInfo"`
}

func (t TextAnalysis) asksForSensitiveData() bool {
	return t.HasSSN || t.HasCreditCard || t.HasBankInfo
}

// BrandImpersonation is set when brand names appear on the page.
type BrandImpersonation struct {
	Detected bool     `json:"detected"`
	Brands   []string `json:"brands"`
	Reason   string   `json:"reason"`
}

// ScreenshotDetails is attached to screenshot scans.
type ScreenshotDetails struct {
	Method             string              `json:"method"`
	ExtractedText      string              `json:"extractedText"`
	HasLoginForm       bool                `json:"hasLoginForm"`
	Text               TextAnalysis        `json:"textAnalysis"`
	Visual             VisualAnalysis      `json:"visualAnalysis"`
	Brand              *BrandImpersonation `json:"brandImpersonation,omitempty"`
	VisionReasoning    string              `json:"visionReasoning,omitempty"`
	RiskScore          int                 `json:"riskScore"`
	Confidence         float64             `json:"confidence"`
	SuspiciousElements []string            `json:"suspiciousElements"`
	Recommendations    []string            `json:"recommendations"`
}

// VisionAI judges a screenshot. The vision model is asked first; without
// it the image goes through OCR and local layout heuristics.
type VisionAI struct {
	Rules  *Rules
	Vision VisionModel // optional
	OCR    TextRecognizer
}

func (s *VisionAI) Name() string { return scoring.SourceVisionAI }

func (s *VisionAI) Analyze(ctx context.Context, a Artifact) (scoring.Signal, error) {
	if a.Image == nil && len(a.ImageBytes) == 0 {
		return scoring.Signal{}, ErrNotApplicable
	}
	img := a.Image
	if img == nil {
		if decoded, _, err := image.Decode(bytes.NewReader(a.ImageBytes)); err == nil {
			img = decoded
		}
	}

	var det ScreenshotDetails
	if s.Vision != nil && len(a.ImageBytes) > 0 {
		report, err := s.Vision.AnalyzeScreenshot(ctx, a.ImageBytes, a.MimeType)
		if err == nil {
			det = s.fromVision(report, img)
			return s.signal(det), nil
		}
		log.Printf("[Screenshot] vision analysis failed, falling back to OCR: %v", err)
	}

	var text string
	var ocrErr error
	if s.OCR != nil && img != nil {
		text, ocrErr = s.OCR.Recognize(ctx, img)
		if ocrErr != nil {
			log.Printf("[Screenshot] OCR failed: %v", ocrErr)
		}
	} else {
		ocrErr = ErrOCRUnavailable
	}
	if img == nil {
		return scoring.Signal{}, fmt.Errorf("screenshot: image could not be decoded: %w", errors.Join(ErrInvalidInput, ocrErr))
	}

	det = s.fromLocal(text, img)
	return s.signal(det), nil
}

func (s *VisionAI) fromVision(r *VisionReport, img image.Image) ScreenshotDetails {
	det := ScreenshotDetails{
		Method:          "vision",
		ExtractedText:   r.ExtractedText,
		Text:            AnalyzeScreenshotText(s.Rules, r.ExtractedText),
		VisionReasoning: r.Reasoning,
	}
	if len(r.DetectedBrands) > 0 {
		det.Text.BrandMentions = r.DetectedBrands
	}
	for _, f := range r.InputFields {
		if ssnPattern.MatchString(f) {
			det.Text.HasSSN = true
		}
		if cardPattern.MatchString(f) {
			det.Text.HasCreditCard = true
		}
	}
	det.Text.SuspiciousKeywords = append(det.Text.SuspiciousKeywords, r.SuspiciousElements...)
	if img != nil {
		det.Visual = AnalyzeVisual(img)
	}
	det.HasLoginForm = r.HasLoginForm || detectLoginForm(det.Text, det.Visual)
	det.Brand = detectBrandImpersonation(det.Text.BrandMentions)
	det.RiskScore = clampPoints(r.RiskScore)
	det.Confidence = 0.9
	s.finish(&det)
	return det
}

func (s *VisionAI) fromLocal(text string, img image.Image) ScreenshotDetails {
	det := ScreenshotDetails{
		Method:        "ocr",
		ExtractedText: text,
		Text:          AnalyzeScreenshotText(s.Rules, text),
		Visual:        AnalyzeVisual(img),
	}
	det.HasLoginForm = detectLoginForm(det.Text, det.Visual)
	det.Brand = detectBrandImpersonation(det.Text.BrandMentions)
	det.RiskScore, det.Confidence = s.localScore(det)
	if len(text) < s.Rules.Screenshot.MinTextLength && det.Visual.VisualScore > 0 {
		det.Method = "visual"
	}
	s.finish(&det)
	return det
}

// localScore is the point scoring used when no vision model answered.
func (s *VisionAI) localScore(det ScreenshotDetails) (int, float64) {
	textLen := len(det.ExtractedText)
	if textLen < s.Rules.Screenshot.MinTextLength && det.Visual.VisualScore > 0 {
		score := det.Visual.VisualScore
		if det.Visual.HasSuspiciousColors {
			score += 10
		}
		return clampPoints(score), 0.6
	}

	score, conf := 0, 0.5
	t := det.Text
	if det.HasLoginForm {
		score += 20
		conf += 0.1
	}
	if n := len(t.SuspiciousKeywords); n > 0 {
		score += min(n*5, 30)
		conf += 0.15
	}
	if n := len(t.UrgencyIndicators); n > 0 {
		score += min(n*10, 30)
		conf += 0.15
	}
	if t.asksForSensitiveData() {
		score += 35
		conf += 0.2
	}
	switch {
	case det.Brand != nil && det.Brand.Detected:
		score += 40
		conf += 0.2
	case det.Brand != nil:
		score += 20
		conf += 0.1
	}
	if det.Visual.HasSuspiciousColors {
		score += 20
		conf += 0.1
	}
	if det.Visual.HasFormLayout && textLen < s.Rules.Screenshot.ShortTextLength {
		score += 25
		conf += 0.1
	}
	return clampPoints(score), min(conf, 1)
}

func (s *VisionAI) finish(det *ScreenshotDetails) {
	det.SuspiciousElements = collectSuspiciousElements(*det)
	det.Recommendations = screenshotRecommendations(*det)
}

func (s *VisionAI) signal(det ScreenshotDetails) scoring.Signal {
	sig := scoring.Signal{
		Source:     s.Name(),
		Score:      float64(det.RiskScore) / 100,
		Confidence: det.Confidence,
		Factors:    append([]string{}, det.SuspiciousElements...),
		Details:    det,
	}
	if det.VisionReasoning != "" {
		sig.Factors = append(sig.Factors, det.VisionReasoning)
	}
	if det.HasLoginForm {
		sig.ThreatTypes = append(sig.ThreatTypes, "CREDENTIAL_HARVESTING")
	}
	if det.Brand != nil && det.Brand.Detected {
		sig.ThreatTypes = append(sig.ThreatTypes, "BRAND_IMPERSONATION")
	}
	return sig
}

// AnalyzeScreenshotText looks for login keywords, urgency, brands and form labels.
func AnalyzeScreenshotText(rules *Rules, text string) TextAnalysis {
	lower := strings.ToLower(text)
	t := TextAnalysis{
		SuspiciousKeywords: []string{},
		UrgencyIndicators:  []string{},
		BrandMentions:      []string{},
	}
	for _, kw := range rules.Screenshot.LoginKeywords {
		if !strings.Contains(lower, kw) {
			continue
		}
		t.SuspiciousKeywords = append(t.SuspiciousKeywords, kw)
		for _, u := range rules.Screenshot.UrgencyMarkers {
			if strings.Contains(kw, u) {
				t.UrgencyIndicators = append(t.UrgencyIndicators, kw)
				break
			}
		}
	}
	for _, b := range rules.Screenshot.Brands {
		if strings.Contains(lower, b) {
			t.BrandMentions = append(t.BrandMentions, b)
		}
	}
	t.HasEmailField = emailFieldPattern.MatchString(text)
	t.HasPasswordField = passwordFieldPattern.MatchString(text)
	t.HasSubmitButton = submitPattern.MatchString(text)
	t.HasSSN = ssnPattern.MatchString(text)
	t.HasCreditCard = cardPattern.MatchString(text)
	t.HasBankInfo = bankPattern.MatchString(text)
	return t
}

// detectLoginForm needs two of: email label, password label, submit label, input-like layout.
func detectLoginForm(t TextAnalysis, v VisualAnalysis) bool {
	n := 0
	for _, ok := range []bool{t.HasEmailField, t.HasPasswordField, t.HasSubmitButton, v.HasInputFields} {
		if ok {
			n++
		}
	}
	return n >= 2
}

func detectBrandImpersonation(brands []string) *BrandImpersonation {
	switch len(brands) {
	case 0:
		return nil
	case 1:
		return &BrandImpersonation{Brands: brands, Reason: "Single brand detected - verify domain matches brand"}
	}
	return &BrandImpersonation{Detected: true, Brands: brands, Reason: "Multiple brand names detected - potential impersonation"}
}

func collectSuspiciousElements(det ScreenshotDetails) []string {
	out := []string{}
	if det.HasLoginForm {
		out = append(out, "Login form detected")
	}
	if n := len(det.Text.SuspiciousKeywords); n > 0 {
		out = append(out, fmt.Sprintf("%d suspicious keywords found", n))
	}
	if n := len(det.Text.UrgencyIndicators); n > 0 {
		out = append(out, fmt.Sprintf("%d urgency indicators detected", n))
	}
	if det.Text.asksForSensitiveData() {
		out = append(out, "Requests sensitive personal or financial data")
	}
	if det.Brand != nil && det.Brand.Detected {
		out = append(out, fmt.Sprintf("Possible %s impersonation", strings.Join(det.Brand.Brands, ", ")))
	}
	if det.Visual.HasSuspiciousColors {
		out = append(out, "Suspicious color scheme detected")
	}
	return out
}

func screenshotRecommendations(det ScreenshotDetails) []string {
	recs := []string{}
	if det.HasLoginForm {
		recs = append(recs,
			"Verify the domain URL matches the official website",
			"Check for HTTPS and valid SSL certificate",
			"Never enter credentials if the URL looks suspicious",
		)
	}
	if len(det.Text.UrgencyIndicators) > 0 {
		recs = append(recs,
			"Ignore urgency tactics - legitimate services rarely use urgent language",
			"Contact the company directly through official channels",
		)
	}
	if det.Brand != nil && det.Brand.Detected {
		recs = append(recs,
			fmt.Sprintf("Verify this is an official %s page", det.Brand.Brands[0]),
			"Check the URL domain carefully for typos",
		)
	}
	if b := scoring.BandFor(det.RiskScore); b == scoring.BandElevated || b == scoring.BandSevere {
		recs = append(recs,
			"Do not enter any personal information",
			"Report this page to your security team",
			"Close the page immediately",
		)
	}
	return recs
}

func clampPoints(p int) int {
	return max(0, min(p, 100))
}
