package vetting

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"phishguard/scoring"
)

var (
	linkPattern     = regexp.MustCompile(`https?://\S+`)
	digitRunPattern = regexp.MustCompile(`\d{4,}`)
)

// ExtractLinks returns the distinct http(s) links of a text in order of appearance.
func ExtractLinks(text string) []string {
	seen := map[string]bool{}
	links := []string{}
	for _, m := range linkPattern.FindAllString(text, -1) {
		if !seen[m] {
			seen[m] = true
			links = append(links, m)
		}
	}
	return links
}

// SuspiciousPhrases lists the rule phrases found in subject and body.
func SuspiciousPhrases(rules *Rules, e Email) []string {
	full := strings.ToLower(e.Subject + " " + e.Content)
	found := []string{}
	for _, p := range rules.Email.Phrases {
		if strings.Contains(full, p) {
			found = append(found, p)
		}
	}
	return found
}

// EmailContent scores pressure and bait phrases.
type EmailContent struct {
	Rules *Rules
}

func (s *EmailContent) Name() string { return scoring.SourceEmailContent }

func (s *EmailContent) Analyze(_ context.Context, a Artifact) (scoring.Signal, error) {
	if strings.TrimSpace(a.Email.Content) == "" {
		return scoring.Signal{}, ErrNotApplicable
	}
	found := SuspiciousPhrases(s.Rules, a.Email)
	points := len(found) * s.Rules.Email.PhrasePoints
	if points > 100 {
		points = 100
	}
	sig := scoring.Signal{
		Source:     s.Name(),
		Score:      float64(points) / 100,
		Confidence: 0.7,
		Details:    found,
	}
	for _, p := range found {
		sig.Factors = append(sig.Factors, fmt.Sprintf("Suspicious phrase: %q", p))
	}
	if len(found) > 0 {
		sig.ThreatTypes = []string{"SOCIAL_ENGINEERING"}
	}
	return sig, nil
}

// EmailLinks flags emails that carry many links.
type EmailLinks struct {
	Rules *Rules
}

func (s *EmailLinks) Name() string { return scoring.SourceEmailLinks }

func (s *EmailLinks) Analyze(_ context.Context, a Artifact) (scoring.Signal, error) {
	if strings.TrimSpace(a.Email.Content) == "" {
		return scoring.Signal{}, ErrNotApplicable
	}
	links := ExtractLinks(a.Email.Content)
	sig := scoring.Signal{Source: s.Name(), Confidence: 1, Details: links}
	if len(links) > s.Rules.Email.LinkThreshold {
		sig.Score = 1
		sig.Factors = []string{fmt.Sprintf("Contains %d links", len(links))}
	}
	return sig, nil
}

// LinkStructure runs the URL heuristic over the links of an email and
// keeps the worst one.
type LinkStructure struct {
	Rules *Rules
}

func (s *LinkStructure) Name() string { return scoring.SourceLinkStructure }

func (s *LinkStructure) Analyze(_ context.Context, a Artifact) (scoring.Signal, error) {
	links := ExtractLinks(a.Email.Content)
	if len(links) == 0 {
		return scoring.Signal{}, ErrNotApplicable
	}
	if n := s.Rules.Email.MaxLinkChecks; len(links) > n {
		links = links[:n]
	}

	sig := scoring.Signal{Source: s.Name(), Confidence: 1}
	for _, link := range links {
		res := AnalyzeURLStructure(s.Rules, link)
		if res.Score > sig.Score {
			sig.Score = res.Score
		}
		label := link
		if u, ok := ParseHTTPURL(link); ok {
			label = u.Hostname()
		}
		for _, f := range res.Factors {
			sig.Factors = append(sig.Factors, label+": "+f)
		}
	}
	return sig, nil
}

// SenderAnalysis is the verdict on the From address alone.
type SenderAnalysis struct {
	Email        string   `json:"email"`
	IsSuspicious bool     `json:"isSuspicious"`
	Reasons      []string `json:"reasons"`
}

// AnalyzeSender applies the address-only sender rules.
func AnalyzeSender(rules *Rules, sender string) SenderAnalysis {
	res := SenderAnalysis{Email: sender, Reasons: []string{}}
	email := strings.ToLower(strings.TrimSpace(sender))
	if email == "" {
		return res
	}
	local, domain, _ := strings.Cut(email, "@")

	flag := func(reason string) {
		res.IsSuspicious = true
		res.Reasons = append(res.Reasons, reason)
	}
	if strings.Contains(email, "noreply") && strings.Contains(email, "paypal") {
		flag("Suspicious sender: Mimics PayPal noreply address")
	}
	if digitRunPattern.MatchString(email) {
		flag("Sender email contains excessive numbers")
	}
	if len(local) > rules.Email.MaxLocalLength {
		flag("Unusually long email address")
	}
	if isFreeProvider(rules, domain) {
		for _, term := range rules.Email.BusinessTerms {
			if strings.Contains(local, term) {
				flag("Business-looking address using free email provider")
				break
			}
		}
	}
	return res
}

func isFreeProvider(rules *Rules, domain string) bool {
	for _, d := range rules.Email.FreeProviders {
		if domain == d {
			return true
		}
	}
	return false
}

// EmailSender scores the From address.
type EmailSender struct {
	Rules *Rules
}

func (s *EmailSender) Name() string { return scoring.SourceEmailSender }

func (s *EmailSender) Analyze(_ context.Context, a Artifact) (scoring.Signal, error) {
	if strings.TrimSpace(a.Email.SenderEmail) == "" {
		return scoring.Signal{}, ErrNotApplicable
	}
	res := AnalyzeSender(s.Rules, a.Email.SenderEmail)
	sig := scoring.Signal{Source: s.Name(), Confidence: 0.8, Details: res, Factors: res.Reasons}
	if res.IsSuspicious {
		sig.Score = 1
		sig.ThreatTypes = []string{"SPOOFED_SENDER"}
	}
	return sig, nil
}

// EmailRecommendations returns user guidance for an email verdict score.
func EmailRecommendations(score int, hasLinks bool) []string {
	var recs []string
	switch scoring.BandFor(score) {
	case scoring.BandSevere:
		recs = []string{
			"DO NOT click any links or download attachments",
			"DO NOT reply to this email",
			"Delete this email immediately",
			"Report as phishing to your email provider",
		}
	case scoring.BandElevated:
		recs = []string{
			"Verify sender identity through official channels",
			"Do not click links - visit website directly",
			"Look for grammar/spelling errors",
			"Check if email is personalized to you",
		}
	default:
		recs = []string{
			"Email appears relatively safe",
			"Still verify sender if requesting sensitive actions",
			"Be cautious with any links or attachments",
		}
	}
	if hasLinks {
		recs = append(recs, "Hover over links to preview URLs before clicking")
	}
	return recs
}

// EmailAIReport is an LLM's reading of an email.
type EmailAIReport struct {
	RiskScore int      `json:"riskScore"`
	Threats   []string `json:"threats"`
	Analysis  string   `json:"analysis"`
}

// EmailModel classifies emails with an LLM.
type EmailModel interface {
	ClassifyEmail(ctx context.Context, e Email) (*EmailAIReport, error)
}

// AIEmail asks an LLM for a phishing risk score.
type AIEmail struct {
	Model EmailModel
}

func (s *AIEmail) Name() string { return scoring.SourceAIEmail }

func (s *AIEmail) Analyze(ctx context.Context, a Artifact) (scoring.Signal, error) {
	if strings.TrimSpace(a.Email.Content) == "" {
		return scoring.Signal{}, ErrNotApplicable
	}
	if s.Model == nil {
		return scoring.Signal{}, ErrNotConfigured
	}
	report, err := s.Model.ClassifyEmail(ctx, a.Email)
	if err != nil {
		return scoring.Signal{}, err
	}
	return scoring.Signal{
		Source:     s.Name(),
		Score:      float64(report.RiskScore) / 100,
		Confidence: 0.85,
		Factors:    report.Threats,
		Details:    report,
	}, nil
}
