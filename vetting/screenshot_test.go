package vetting

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"reflect"
	"testing"
)

type stubOCR struct {
	text string
	err  error
}

func (s stubOCR) Recognize(context.Context, image.Image) (string, error) { return s.text, s.err }

type stubVision struct {
	report *VisionReport
	err    error
}

func (s stubVision) AnalyzeScreenshot(context.Context, []byte, string) (*VisionReport, error) {
	return s.report, s.err
}

func whiteImage(t *testing.T) (image.Image, []byte) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 60, 60))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return img, buf.Bytes()
}

const loginPageText = "PayPal and Amazon: URGENT - verify account now. Email / Password / Sign in"

func TestAnalyzeScreenshotText(t *testing.T) {
	got := AnalyzeScreenshotText(DefaultRules(), loginPageText)

	if want := []string{"verify", "urgent", "verify account"}; !reflect.DeepEqual(got.SuspiciousKeywords, want) {
		t.Errorf("keywords = %q, want %q", got.SuspiciousKeywords, want)
	}
	if want := []string{"urgent"}; !reflect.DeepEqual(got.UrgencyIndicators, want) {
		t.Errorf("urgency = %q, want %q", got.UrgencyIndicators, want)
	}
	if want := []string{"amazon", "paypal"}; !reflect.DeepEqual(got.BrandMentions, want) {
		t.Errorf("brands = %q, want %q", got.BrandMentions, want)
	}
	if !got.HasEmailField || !got.HasPasswordField || !got.HasSubmitButton {
		t.Errorf("form labels = %+v", got)
	}
	if got.asksForSensitiveData() {
		t.Error("asksForSensitiveData = true, want false")
	}

	card := AnalyzeScreenshotText(DefaultRules(), "Enter your card number and CVV")
	if !card.HasCreditCard || !card.asksForSensitiveData() {
		t.Errorf("card text = %+v, want credit card flag", card)
	}
}

func TestDetectLoginForm(t *testing.T) {
	tests := []struct {
		name string
		text TextAnalysis
		vis  VisualAnalysis
		want bool
	}{
		{"nothing", TextAnalysis{}, VisualAnalysis{}, false},
		{"password only", TextAnalysis{HasPasswordField: true}, VisualAnalysis{}, false},
		{"email and password", TextAnalysis{HasEmailField: true, HasPasswordField: true}, VisualAnalysis{}, true},
		{"submit and inputs", TextAnalysis{HasSubmitButton: true}, VisualAnalysis{HasInputFields: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectLoginForm(tt.text, tt.vis); got != tt.want {
				t.Errorf("detectLoginForm = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectBrandImpersonation(t *testing.T) {
	if got := detectBrandImpersonation(nil); got != nil {
		t.Errorf("no brands = %+v, want nil", got)
	}
	one := detectBrandImpersonation([]string{"paypal"})
	if one == nil || one.Detected {
		t.Errorf("one brand = %+v, want mention without detection", one)
	}
	two := detectBrandImpersonation([]string{"paypal", "amazon"})
	if two == nil || !two.Detected {
		t.Errorf("two brands = %+v, want detection", two)
	}
}

func TestAnalyzeVisualBlankImage(t *testing.T) {
	img, _ := whiteImage(t)
	v := AnalyzeVisual(img)
	if v.Width != 60 || v.Height != 60 {
		t.Errorf("size = %dx%d", v.Width, v.Height)
	}
	if v.VisualScore != 0 || v.HasInputFields || v.HasSuspiciousColors {
		t.Errorf("blank image = %+v, want no visual cues", v)
	}
}

func TestVisionAILocalScoring(t *testing.T) {
	img, _ := whiteImage(t)
	s := &VisionAI{Rules: DefaultRules(), OCR: stubOCR{text: loginPageText}}

	sig, err := s.Analyze(context.Background(), Artifact{Image: img})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	det := sig.Details.(ScreenshotDetails)
	if det.Method != "ocr" {
		t.Errorf("method = %q, want ocr", det.Method)
	}
	// login form 20 + keywords 3*5 + urgency 10 + two brands 40
	if det.RiskScore != 85 {
		t.Errorf("risk score = %d, want 85", det.RiskScore)
	}
	if sig.Score != 0.85 {
		t.Errorf("signal score = %v, want 0.85", sig.Score)
	}
	if det.Confidence != 1 {
		t.Errorf("confidence = %v, want 1", det.Confidence)
	}
	if want := []string{"CREDENTIAL_HARVESTING", "BRAND_IMPERSONATION"}; !reflect.DeepEqual(sig.ThreatTypes, want) {
		t.Errorf("threat types = %v, want %v", sig.ThreatTypes, want)
	}
	if len(det.Recommendations) == 0 {
		t.Error("recommendations are empty")
	}
}

func TestVisionAIEmptyText(t *testing.T) {
	img, _ := whiteImage(t)
	s := &VisionAI{Rules: DefaultRules(), OCR: stubOCR{}}

	sig, err := s.Analyze(context.Background(), Artifact{Image: img})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if sig.Score != 0 || len(sig.Factors) != 0 {
		t.Errorf("blank screenshot signal = %+v", sig)
	}
}

func TestVisionAIUsesVisionModel(t *testing.T) {
	img, raw := whiteImage(t)
	s := &VisionAI{
		Rules: DefaultRules(),
		Vision: stubVision{report: &VisionReport{
			ExtractedText:  "Sign in",
			HasLoginForm:   true,
			DetectedBrands: []string{"paypal"},
			InputFields:    []string{"Email", "Card number"},
			RiskScore:      120,
			Reasoning:      "Fake PayPal login",
		}},
		OCR: stubOCR{err: errors.New("must not be called")},
	}

	sig, err := s.Analyze(context.Background(), Artifact{Image: img, ImageBytes: raw, MimeType: "image/png"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	det := sig.Details.(ScreenshotDetails)
	if det.Method != "vision" {
		t.Errorf("method = %q, want vision", det.Method)
	}
	if det.RiskScore != 100 || sig.Score != 1 {
		t.Errorf("risk = %d score = %v, want clamped to 100", det.RiskScore, sig.Score)
	}
	if !det.Text.HasCreditCard {
		t.Error("card input field not flagged")
	}
	if det.Brand == nil || det.Brand.Detected {
		t.Errorf("brand = %+v, want single mention", det.Brand)
	}
	if last := sig.Factors[len(sig.Factors)-1]; last != "Fake PayPal login" {
		t.Errorf("last factor = %q, want vision reasoning", last)
	}
}

func TestVisionAIFallsBackToOCR(t *testing.T) {
	img, raw := whiteImage(t)
	s := &VisionAI{
		Rules:  DefaultRules(),
		Vision: stubVision{err: errors.New("quota exceeded")},
		OCR:    stubOCR{text: loginPageText},
	}
	sig, err := s.Analyze(context.Background(), Artifact{Image: img, ImageBytes: raw})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if m := sig.Details.(ScreenshotDetails).Method; m != "ocr" {
		t.Errorf("method = %q, want ocr", m)
	}
}

func TestVisionAIInputErrors(t *testing.T) {
	s := &VisionAI{Rules: DefaultRules()}
	if _, err := s.Analyze(context.Background(), Artifact{}); !errors.Is(err, ErrNotApplicable) {
		t.Errorf("no image err = %v, want ErrNotApplicable", err)
	}
	if _, err := s.Analyze(context.Background(), Artifact{ImageBytes: []byte("not an image")}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("garbage err = %v, want ErrInvalidInput", err)
	}
}
