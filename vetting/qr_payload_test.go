package vetting

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"phishguard/qrcode"
)

func TestAnalyzeQRPayload(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		name       string
		data       string
		wantType   string
		wantScore  int
		wantRec    string
		wantIndics []string
	}{
		{
			name:      "upi scam",
			data:      "upi://pay?pa=scam@upi&pn=Prize&am=25000&tn=Claim%20your%20reward&url=https://bit.ly/x",
			wantType:  qrcode.TypeUPI,
			wantScore: 100,
			wantRec:   "HIGH RISK - Do not proceed",
			wantIndics: []string{
				"High amount in UPI payment",
				"Contains redirect URL in UPI payment",
				`Suspicious keyword in note: "reward"`,
				`Suspicious keyword in note: "claim"`,
				"URL shortener detected: bit.ly",
			},
		},
		{
			name:       "ip link",
			data:       "http://192.168.0.10/pay",
			wantType:   qrcode.TypeURL,
			wantScore:  35,
			wantRec:    "LOW-MEDIUM RISK - Exercise caution",
			wantIndics: []string{"Contains IP address instead of domain name"},
		},
		{
			name:       "suspicious tld",
			data:       "https://paypal-login.tk/verify",
			wantType:   qrcode.TypeURL,
			wantScore:  30,
			wantRec:    "LOW-MEDIUM RISK - Exercise caution",
			wantIndics: []string{"Suspicious domain extension: .tk"},
		},
		{
			name:       "small upi payment",
			data:       "upi://pay?pa=shop@okaxis&pn=Shop&am=250",
			wantType:   qrcode.TypeUPI,
			wantRec:    "LOW RISK - Appears safe",
			wantIndics: []string{},
		},
		{
			name:       "plain text",
			data:       "Hello world",
			wantType:   qrcode.TypeText,
			wantRec:    "LOW RISK - Appears safe",
			wantIndics: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeQRPayload(rules, tt.data)
			if got.Type != tt.wantType {
				t.Errorf("type = %q, want %q", got.Type, tt.wantType)
			}
			if got.RiskScore != tt.wantScore {
				t.Errorf("risk score = %d, want %d", got.RiskScore, tt.wantScore)
			}
			if got.Recommendation != tt.wantRec {
				t.Errorf("recommendation = %q, want %q", got.Recommendation, tt.wantRec)
			}
			if !reflect.DeepEqual(got.Indicators, tt.wantIndics) {
				t.Errorf("indicators = %q, want %q", got.Indicators, tt.wantIndics)
			}
		})
	}
}

func TestQRPayloadSource(t *testing.T) {
	s := &QRPayload{Rules: DefaultRules()}

	sig, err := s.Analyze(context.Background(), Artifact{Text: "upi://pay?pa=x@upi&am=50000&url=http://evil.tk"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if want := []string{"PAYMENT_FRAUD"}; !reflect.DeepEqual(sig.ThreatTypes, want) {
		t.Errorf("threat types = %v, want %v", sig.ThreatTypes, want)
	}
	det := sig.Details.(QRDetails)
	if det.UPI == nil || det.UPI.Payee != "x@upi" {
		t.Errorf("upi = %+v", det.UPI)
	}
	if det.EmbeddedURL != "http://evil.tk" {
		t.Errorf("embedded url = %q", det.EmbeddedURL)
	}

	if _, err := s.Analyze(context.Background(), Artifact{Text: "  "}); !errors.Is(err, ErrNotApplicable) {
		t.Errorf("blank payload err = %v, want ErrNotApplicable", err)
	}
}
