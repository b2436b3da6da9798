package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"phishguard/scoring"
	"phishguard/vetting"
)

// Explanation is the plain-language summary stored with a scan.
type Explanation struct {
	Text        string   `json:"explanation"`
	GeneratedBy string   `json:"generated_by"`
	Model       string   `json:"model,omitempty"`
	Error       string   `json:"error,omitempty"`
	SafetyTips  []string `json:"safety_tips"`
}

var safetyTips = map[string][]string{
	scoring.LabelPhishing: {
		"❌ Do NOT click on this link",
		"❌ Do NOT enter any credentials",
		"❌ Do NOT download any files",
		"✅ Report this URL to authorities",
		"✅ Delete any emails containing this link",
		"✅ Warn others who may have received it",
	},
	scoring.LabelSuspicious: {
		"⚠️ Verify the URL carefully before visiting",
		"⚠️ Check if it matches the official website",
		"⚠️ Look for HTTPS and padlock icon",
		"✅ Type URLs directly instead of clicking links",
		"✅ Use a password manager to detect fake sites",
		"✅ Contact the company directly if unsure",
	},
	scoring.LabelLegit: {
		"✅ URL appears safe, but stay vigilant",
		"✅ Verify the padlock icon (HTTPS)",
		"✅ Check the full URL matches expectations",
		"✅ Use strong, unique passwords",
		"✅ Enable two-factor authentication",
		"✅ Keep your browser updated",
	},
}

// SafetyTips returns the tips for a verdict band.
func SafetyTips(b scoring.Band) []string {
	return safetyTips[simpleLabel(b)]
}

// simpleLabel folds the canonical band into the three-way vocabulary.
func simpleLabel(b scoring.Band) string {
	return scoring.LabelFor(b, scoring.ThreeBand)
}

// Explainer writes explanations with an LLM, falling back to templates.
type Explainer struct {
	Provider Provider
}

// explainInput is the part of a scan the explanation is built from.
type explainInput struct {
	target   string
	label    string
	verdict  scoring.Verdict
	keywords []string
	hasSSL   bool
}

func inputFor(res *vetting.ScanResult) explainInput {
	in := explainInput{
		target:  res.Input,
		label:   simpleLabel(res.Verdict.Band),
		verdict: res.Verdict,
	}
	var url *vetting.URLScanDetails
	switch d := res.Details.(type) {
	case *vetting.URLScanDetails:
		url = d
	case vetting.QRScanDetails:
		url = d.URLCheck
	case vetting.EmailScanDetails:
		in.keywords = d.SuspiciousKeywords
	}
	if url != nil {
		in.keywords = url.Keywords
		if url.Structure != nil {
			in.hasSSL = url.Structure.HasSSL
		}
	}
	return in
}

// Explain never fails; errors are reported on the returned value.
func (e *Explainer) Explain(ctx context.Context, res *vetting.ScanResult) *Explanation {
	in := inputFor(res)
	exp := &Explanation{SafetyTips: safetyTips[in.label]}

	if e == nil || e.Provider == nil {
		exp.Text = basicExplanation(in)
		exp.GeneratedBy = "Rule-based"
		return exp
	}

	msgs := []Message{{Role: RoleUser, Content: buildExplainPrompt(res.Kind, in)}}
	text, err := e.Provider.Chat(ctx, msgs, ExplanationPrompt, Options{Temperature: 0.3, MaxTokens: 250})
	if err != nil {
		log.Printf("[AI] explanation failed: %v", err)
		exp.Text = basicExplanation(in)
		exp.GeneratedBy = "Fallback"
		exp.Error = "AI explanation temporarily unavailable"
		return exp
	}
	exp.Text = strings.TrimSpace(text)
	exp.GeneratedBy = e.Provider.Name()
	exp.Model = e.Provider.Model()
	return exp
}

func buildExplainPrompt(kind scoring.Flow, in explainInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze this %s for phishing:\n\n", subject(kind))
	fmt.Fprintf(&sb, "Input: %s\n", in.target)
	fmt.Fprintf(&sb, "Detection Result: %s\n", in.verdict.Label)
	fmt.Fprintf(&sb, "Risk Score: %d/100\n\n", in.verdict.Score)

	if len(in.verdict.Factors) > 0 {
		sb.WriteString("Risk Factors Detected:\n")
		for _, f := range in.verdict.Factors {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
		sb.WriteString("\n")
	}
	if len(in.keywords) > 0 {
		fmt.Fprintf(&sb, "Phishing Keywords Found: %s\n\n", strings.Join(in.keywords, ", "))
	}
	if len(in.verdict.ThreatTypes) > 0 {
		fmt.Fprintf(&sb, "Threat Types: %s\n\n", strings.Join(in.verdict.ThreatTypes, ", "))
	}

	sb.WriteString("Explain in simple terms:\n")
	fmt.Fprintf(&sb, "1. Why this %s is classified as %q\n", subject(kind), in.verdict.Label)
	sb.WriteString("2. What tactics the attackers might be using\n")
	sb.WriteString("3. What users should do to stay safe\n")
	return sb.String()
}

func subject(kind scoring.Flow) string {
	switch kind {
	case scoring.FlowQR:
		return "QR code"
	case scoring.FlowEmail:
		return "email"
	case scoring.FlowScreenshot:
		return "screenshot"
	}
	return "URL"
}

func basicExplanation(in explainInput) string {
	var sb strings.Builder
	switch in.label {
	case scoring.LabelPhishing:
		sb.WriteString("🚨 This is highly likely to be a phishing attempt. ")
		if len(in.verdict.ThreatTypes) > 0 {
			fmt.Fprintf(&sb, "It has been identified as containing %s threats. ", strings.Join(in.verdict.ThreatTypes, " and "))
		}
		if len(in.keywords) > 0 {
			kw := in.keywords[:min(3, len(in.keywords))]
			fmt.Fprintf(&sb, "It contains suspicious keywords like \"%s\" which are commonly used in phishing attacks. ", strings.Join(kw, "\", \""))
		}
		sb.WriteString("DO NOT visit this site or enter any personal information. ")
		sb.WriteString("Legitimate companies never ask you to verify account details through suspicious links.")

	case scoring.LabelSuspicious:
		sb.WriteString("⚠️ This shows several suspicious characteristics. ")
		if !in.hasSSL && hasFactor(in.verdict.Factors, "No HTTPS") {
			sb.WriteString("It lacks HTTPS encryption, meaning your data would be transmitted insecurely. ")
		}
		if len(in.verdict.Factors) > 0 {
			fmt.Fprintf(&sb, "Key concern: %s. ", in.verdict.Factors[0])
		}
		sb.WriteString("Exercise caution before proceeding. ")
		sb.WriteString("Verify the address matches the official website of the service you're trying to access. ")
		sb.WriteString("When in doubt, navigate to the site directly rather than clicking links.")

	default:
		sb.WriteString("✅ This appears to be legitimate and safe. ")
		if in.hasSSL {
			sb.WriteString("It uses HTTPS encryption to protect your data. ")
		}
		sb.WriteString("However, always practice safe browsing: verify you typed the URL correctly, ")
		sb.WriteString("look for the padlock icon in your browser, and never share sensitive information ")
		sb.WriteString("unless you're absolutely certain of the website's authenticity.")
	}
	return sb.String()
}

func hasFactor(factors []string, prefix string) bool {
	for _, f := range factors {
		if strings.HasPrefix(f, prefix) {
			return true
		}
	}
	return false
}
