package vetting

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"phishguard/qrcode"
	"phishguard/scoring"
)

var ipv4Pattern = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)

// QRDetails is attached to QR scans.
type QRDetails struct {
	Data           string      `json:"data"`
	Type           string      `json:"type"`
	UPI            *qrcode.UPI `json:"upiDetails,omitempty"`
	EmbeddedURL    string      `json:"embeddedUrl,omitempty"`
	RiskScore      int         `json:"riskScore"`
	Indicators     []string    `json:"indicators"`
	Recommendation string      `json:"recommendation"`
}

// QRPayload scores the decoded text of a QR code.
type QRPayload struct {
	Rules *Rules
}

func (s *QRPayload) Name() string { return scoring.SourceQRPayload }

func (s *QRPayload) Analyze(_ context.Context, a Artifact) (scoring.Signal, error) {
	if strings.TrimSpace(a.Text) == "" {
		return scoring.Signal{}, ErrNotApplicable
	}
	det := AnalyzeQRPayload(s.Rules, a.Text)
	sig := scoring.Signal{
		Source:     s.Name(),
		Score:      float64(det.RiskScore) / 100,
		Confidence: 0.8,
		Factors:    det.Indicators,
		Details:    det,
	}
	if det.UPI != nil && det.RiskScore > 30 {
		sig.ThreatTypes = []string{"PAYMENT_FRAUD"}
	}
	return sig, nil
}

// AnalyzeQRPayload applies the payment and link rules to a QR payload.
func AnalyzeQRPayload(rules *Rules, data string) QRDetails {
	q := rules.QR
	det := QRDetails{
		Data:        data,
		Type:        qrcode.DetectType(data),
		EmbeddedURL: qrcode.ExtractURL(data),
		Indicators:  []string{},
	}
	points := 0
	add := func(p int, indicator string) {
		points += p
		det.Indicators = append(det.Indicators, indicator)
	}

	if upi := qrcode.ParseUPI(data); upi != nil {
		det.UPI = upi
		if upi.AmountValue() > q.HighAmount {
			add(q.Points.HighAmount, "High amount in UPI payment")
		}
		if upi.URL != "" {
			add(q.Points.RedirectURL, "Contains redirect URL in UPI payment")
		}
		note := strings.ToLower(upi.Note)
		for _, kw := range q.NoteKeywords {
			if note != "" && strings.Contains(note, kw) {
				add(q.Points.NoteKeyword, fmt.Sprintf("Suspicious keyword in note: %q", kw))
			}
		}
	}

	hosts := payloadHosts(data, det.UPI)
	for _, sh := range q.Shorteners {
		for _, h := range hosts {
			if h == sh || strings.HasSuffix(h, "."+sh) || strings.HasPrefix(h, sh+".") {
				add(q.Points.Shortener, "URL shortener detected: "+sh)
				break
			}
		}
	}
	for _, tld := range q.SuspiciousTLDs {
		for _, h := range hosts {
			if strings.HasSuffix(h, tld) {
				add(q.Points.SuspiciousTLD, "Suspicious domain extension: "+tld)
				break
			}
		}
	}
	if ipv4Pattern.MatchString(data) {
		add(q.Points.IPHost, "Contains IP address instead of domain name")
	}

	if points > 100 {
		points = 100
	}
	det.RiskScore = points
	det.Recommendation = QRRecommendation(points)
	return det
}

var qrRecommendations = map[string]string{
	scoring.LabelHigh:      "HIGH RISK - Do not proceed",
	scoring.LabelMedium:    "MEDIUM RISK - Verify before proceeding",
	scoring.LabelLowMedium: "LOW-MEDIUM RISK - Exercise caution",
	scoring.LabelLow:       "LOW RISK - Appears safe",
}

// QRRecommendation returns the advice for a QR score. It follows the
// four-band label of the same score.
func QRRecommendation(score int) string {
	return qrRecommendations[scoring.MapToLabel(score, scoring.FourBand).Label]
}

// payloadHosts lists the hostnames of every link in a payload.
func payloadHosts(data string, upi *qrcode.UPI) []string {
	var raw []string
	raw = append(raw, linkPattern.FindAllString(data, -1)...)
	if upi != nil && upi.URL != "" {
		raw = append(raw, upi.URL)
	}
	hosts := []string{}
	for _, r := range raw {
		if u, ok := ParseHTTPURL(r); ok {
			hosts = append(hosts, strings.ToLower(u.Hostname()))
		}
	}
	return hosts
}
