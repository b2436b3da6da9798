package report

import (
	"bytes"
	"testing"
	"time"

	"phishguard/scoring"
	"phishguard/store"
)

func TestRender(t *testing.T) {
	rec := &store.Record{
		ID:    "4b8c2f0e-6a51-4c3e-9d0b-2f4f3f1e9a11",
		Kind:  scoring.FlowURL,
		Input: "http://paypa1-login.tk/verify",
		Verdict: scoring.Verdict{
			Score:       82,
			Band:        scoring.BandSevere,
			Label:       scoring.LabelPhishing,
			Action:      "Do not visit",
			Factors:     []string{"No HTTPS/SSL encryption", "Suspicious top-level domain"},
			ThreatTypes: []string{"SOCIAL_ENGINEERING"},
			Breakdown:   []scoring.Contribution{{Source: "url-structure", Score: 0.8, Weight: 0.4, Points: 32}},
		},
		Explanation: &store.Explanation{
			Text:        "This link imitates PayPal; don’t sign in.",
			GeneratedBy: "Rule-based",
			SafetyTips:  []string{"Never enter credentials on unfamiliar pages"},
		},
		ScanDurationMs: 120,
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	var buf bytes.Buffer
	if err := Render(&buf, rec); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Errorf("output starts with %q, want %%PDF", buf.Bytes()[:8])
	}
}

func TestRenderWithoutExplanation(t *testing.T) {
	rec := &store.Record{ID: "x", Kind: scoring.FlowQR, Verdict: scoring.Verdict{Label: scoring.LabelLow}}
	var buf bytes.Buffer
	if err := Render(&buf, rec); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Render wrote nothing")
	}
}

func TestLabelColor(t *testing.T) {
	r, g, _ := labelColor("Phishing")
	if r <= g {
		t.Errorf("Phishing color = (%d,%d), want red dominant", r, g)
	}
	_, g, _ = labelColor("Legit")
	if g < 100 {
		t.Errorf("Legit green = %d, want >= 100", g)
	}
}
