package vetting

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"phishguard/config"
	"phishguard/qrcode"
	"phishguard/scoring"
)

func urlPipeline(r *Rules) *Pipeline {
	return NewPipeline(time.Second, &URLStructure{Rules: r}, &KeywordMatch{Rules: r})
}

func TestScanURL(t *testing.T) {
	r := DefaultRules()
	s := NewScannerWith(r, nil, map[scoring.Flow]*Pipeline{scoring.FlowURL: urlPipeline(r)})

	res, err := s.ScanURL(context.Background(), "  http://192.168.1.1/login ")
	if err != nil {
		t.Fatalf("ScanURL: %v", err)
	}
	if res.Input != "http://192.168.1.1/login" {
		t.Errorf("input = %q", res.Input)
	}
	// structure 45 + one keyword 5
	if res.Verdict.Score != 50 || res.Verdict.Label != scoring.LabelSuspicious {
		t.Errorf("verdict = %d %s, want 50 Suspicious", res.Verdict.Score, res.Verdict.Label)
	}
	det := res.Details.(*URLScanDetails)
	if det.Structure == nil || !det.Structure.IsIP {
		t.Errorf("structure = %+v", det.Structure)
	}
	if !reflect.DeepEqual(det.Keywords, []string{"login"}) {
		t.Errorf("keywords = %q", det.Keywords)
	}
	if res.Duration <= 0 {
		t.Error("duration not measured")
	}

	clean, err := s.ScanURL(context.Background(), "https://www.example.com")
	if err != nil {
		t.Fatalf("ScanURL: %v", err)
	}
	if clean.Verdict.Label != scoring.LabelLegit {
		t.Errorf("clean label = %s, want Legit", clean.Verdict.Label)
	}
}

func TestScanURLKeepsFinishedURLScan(t *testing.T) {
	r := DefaultRules()
	finished := &URLScanResult{ScanID: "abc-123", ReportURL: "https://urlscan.io/result/abc-123/"}
	finished.Verdict.Malicious = true
	urlscan := SourceFunc{SourceName: scoring.SourceURLScan, Fn: func(context.Context, Artifact) (scoring.Signal, error) {
		return URLScanSignal(finished), nil
	}}
	pipe := NewPipeline(time.Second, &URLStructure{Rules: r}, urlscan)
	s := NewScannerWith(r, nil, map[scoring.Flow]*Pipeline{scoring.FlowURL: pipe})

	res, err := s.ScanURL(context.Background(), "https://login-paypal.example/verify")
	if err != nil {
		t.Fatalf("ScanURL: %v", err)
	}
	det := res.Details.(*URLScanDetails)
	if det.URLScanResult != finished {
		t.Errorf("urlscan result = %+v, want %+v", det.URLScanResult, finished)
	}
	want := &URLScanSubmission{UUID: "abc-123", Result: "https://urlscan.io/result/abc-123/"}
	if !reflect.DeepEqual(det.URLScan, want) {
		t.Errorf("urlscan = %+v, want %+v", det.URLScan, want)
	}
}

func TestValidateURL(t *testing.T) {
	for _, in := range []string{"", "   ", "example.com", "ftp://example.com"} {
		if _, err := ValidateURL(in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ValidateURL(%q) err = %v, want ErrInvalidInput", in, err)
		}
	}
	if got, err := ValidateURL(" HTTPS://Example.com "); err != nil || got != "HTTPS://Example.com" {
		t.Errorf("ValidateURL = %q, %v", got, err)
	}
}

func TestScanDegradesWithoutDetectors(t *testing.T) {
	tests := []struct {
		name  string
		pipes map[scoring.Flow]*Pipeline
		want  []string
	}{
		{"no pipeline", map[scoring.Flow]*Pipeline{}, []string{scoring.FactorNoDetector}},
		{"all unavailable", map[scoring.Flow]*Pipeline{
			scoring.FlowURL: NewPipeline(time.Second, failing(scoring.SourceSafeBrowsing, ErrNotConfigured)),
		}, []string{"safe-browsing unavailable: not configured", scoring.FactorNoDetector}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScannerWith(nil, nil, tt.pipes)
			res, err := s.ScanURL(context.Background(), "https://example.com")
			if err != nil {
				t.Fatalf("ScanURL: %v", err)
			}
			v := res.Verdict
			if !v.Degraded || v.Score != scoring.DegradedFloor || v.Label != scoring.LabelSuspicious {
				t.Errorf("verdict = %+v, want degraded Suspicious", v)
			}
			if !reflect.DeepEqual(v.Factors, tt.want) {
				t.Errorf("factors = %q, want %q", v.Factors, tt.want)
			}
		})
	}
}

func TestScanQR(t *testing.T) {
	r := DefaultRules()
	pipe := NewPipeline(time.Second, &QRPayload{Rules: r}, &URLStructure{Rules: r})
	s := NewScannerWith(r, nil, map[scoring.Flow]*Pipeline{scoring.FlowQR: pipe})

	decoded := &qrcode.Decoded{Data: "http://192.168.0.10/pay", Type: qrcode.TypeURL}
	res, err := s.ScanQR(context.Background(), decoded)
	if err != nil {
		t.Fatalf("ScanQR: %v", err)
	}
	// payload 35 + structure 45 at the QR share of 0.6
	if res.Verdict.Score != 62 || res.Verdict.Label != scoring.LabelMedium {
		t.Errorf("verdict = %d %s, want 62 MEDIUM", res.Verdict.Score, res.Verdict.Label)
	}
	det := res.Details.(QRScanDetails)
	if det.QR.RiskScore != 35 || det.Decoded != decoded {
		t.Errorf("qr details = %+v", det)
	}
	if det.URLCheck == nil || det.URLCheck.URL != decoded.Data {
		t.Errorf("url check = %+v", det.URLCheck)
	}
	if want := "MEDIUM RISK - Verify before proceeding"; det.QR.Recommendation != want {
		t.Errorf("recommendation = %q, want %q", det.QR.Recommendation, want)
	}

	text, err := s.ScanQR(context.Background(), &qrcode.Decoded{Data: "Hello", Type: qrcode.TypeText})
	if err != nil {
		t.Fatalf("ScanQR: %v", err)
	}
	if td := text.Details.(QRScanDetails); td.URLCheck != nil {
		t.Errorf("text payload url check = %+v, want nil", td.URLCheck)
	}

	if _, err := s.ScanQR(context.Background(), nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("nil payload err = %v, want ErrInvalidInput", err)
	}
}

func TestScanQRRecommendationFollowsVerdict(t *testing.T) {
	r := DefaultRules()
	pipe := NewPipeline(time.Second, &QRPayload{Rules: r})
	s := NewScannerWith(r, nil, map[scoring.Flow]*Pipeline{scoring.FlowQR: pipe})

	tests := []struct {
		data      string
		wantLabel string
		wantRec   string
	}{
		{"Call support at 10.0.0.1", scoring.LabelLowMedium, "LOW-MEDIUM RISK - Exercise caution"},
		{"Hello world", scoring.LabelLow, "LOW RISK - Appears safe"},
		{"upi://pay?pa=scam@upi&pn=Prize&am=25000&tn=Claim%20your%20reward", scoring.LabelHigh, "HIGH RISK - Do not proceed"},
	}
	for _, tt := range tests {
		res, err := s.ScanQR(context.Background(), &qrcode.Decoded{Data: tt.data, Type: qrcode.DetectType(tt.data)})
		if err != nil {
			t.Fatalf("ScanQR(%q): %v", tt.data, err)
		}
		if res.Verdict.Label != tt.wantLabel {
			t.Errorf("ScanQR(%q) label = %s, want %s", tt.data, res.Verdict.Label, tt.wantLabel)
		}
		if got := res.Details.(QRScanDetails).QR.Recommendation; got != tt.wantRec {
			t.Errorf("ScanQR(%q) recommendation = %q, want %q", tt.data, got, tt.wantRec)
		}
	}
}

func TestScanEmail(t *testing.T) {
	r := DefaultRules()
	pipe := NewPipeline(time.Second,
		&EmailContent{Rules: r},
		&EmailLinks{Rules: r},
		&LinkStructure{Rules: r},
		&EmailSender{Rules: r},
	)
	s := NewScannerWith(r, nil, map[scoring.Flow]*Pipeline{scoring.FlowEmail: pipe})

	res, err := s.ScanEmail(context.Background(), Email{
		Content:     "URGENT: verify your account at http://192.168.1.1/login now. Click here.",
		SenderEmail: "paypal-noreply12345@gmail.com",
	})
	if err != nil {
		t.Fatalf("ScanEmail: %v", err)
	}
	if res.Input != "paypal-noreply12345@gmail.com" {
		t.Errorf("input = %q", res.Input)
	}
	if v := res.Verdict; v.Label != scoring.LabelMedium || v.Score < 50 || v.Score > 60 {
		t.Errorf("verdict = %d %s, want MEDIUM in 50..60", v.Score, v.Label)
	}
	det := res.Details.(EmailScanDetails)
	if !reflect.DeepEqual(det.LinksFound, []string{"http://192.168.1.1/login"}) {
		t.Errorf("links = %q", det.LinksFound)
	}
	if !det.SenderAnalysis.IsSuspicious {
		t.Error("sender not flagged")
	}
	if det.Recommendations[0] != "Verify sender identity through official channels" {
		t.Errorf("recommendations = %q", det.Recommendations)
	}

	withSubject, _ := s.ScanEmail(context.Background(), Email{Content: "hi", SenderEmail: "a@b.example", Subject: "Lunch"})
	if withSubject.Input != "a@b.example Lunch" {
		t.Errorf("input = %q", withSubject.Input)
	}
	if _, err := s.ScanEmail(context.Background(), Email{Content: " "}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty content err = %v, want ErrInvalidInput", err)
	}
}

func TestScanScreenshot(t *testing.T) {
	_, raw := whiteImage(t)
	r := DefaultRules()
	pipe := NewPipeline(time.Second, &VisionAI{Rules: r, OCR: stubOCR{text: loginPageText}})
	s := NewScannerWith(r, nil, map[scoring.Flow]*Pipeline{scoring.FlowScreenshot: pipe})

	res, err := s.ScanScreenshot(context.Background(), raw, "image/png", "login.png")
	if err != nil {
		t.Fatalf("ScanScreenshot: %v", err)
	}
	if res.Input != "login.png" {
		t.Errorf("input = %q", res.Input)
	}
	if res.Verdict.Score != 85 || res.Verdict.Label != scoring.LabelHigh {
		t.Errorf("verdict = %d %s, want 85 HIGH", res.Verdict.Score, res.Verdict.Label)
	}
	if _, ok := res.Details.(ScreenshotDetails); !ok {
		t.Errorf("details = %T, want ScreenshotDetails", res.Details)
	}
	if _, err := s.ScanScreenshot(context.Background(), nil, "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty image err = %v, want ErrInvalidInput", err)
	}
	if _, err := s.ScanScreenshot(context.Background(), []byte("not an image at all"), "image/png", "x.png"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("garbage image err = %v, want ErrInvalidInput", err)
	}
}

func TestNewScannerSources(t *testing.T) {
	s := NewScanner(config.Config{SourceTimeout: time.Second}, Deps{OCR: stubOCR{}})
	got := s.Sources()

	if want := []string{scoring.SourceURLStructure, scoring.SourceKeywordMatch}; !reflect.DeepEqual(got[scoring.FlowURL], want) {
		t.Errorf("url sources = %v, want %v", got[scoring.FlowURL], want)
	}
	if q := got[scoring.FlowQR]; len(q) != 3 || q[0] != scoring.SourceQRPayload {
		t.Errorf("qr sources = %v", q)
	}
	wantEmail := []string{
		scoring.SourceEmailContent,
		scoring.SourceEmailLinks,
		scoring.SourceLinkStructure,
		scoring.SourceEmailSender,
	}
	if !reflect.DeepEqual(got[scoring.FlowEmail], wantEmail) {
		t.Errorf("email sources = %v, want %v", got[scoring.FlowEmail], wantEmail)
	}
	if s.URLScan() == nil || s.URLScan().Configured() {
		t.Error("urlscan should be present but unconfigured")
	}
	if s.Rules() == nil {
		t.Error("rules are nil")
	}
}
