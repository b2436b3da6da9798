package vetting

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log"
	"net/http"
	"strings"
	"time"

	"phishguard/config"
	"phishguard/qrcode"
	"phishguard/scoring"
)

// ScanResult is one finished scan before it is stored.
type ScanResult struct {
	Kind     scoring.Flow    `json:"kind"`
	Input    string          `json:"input"`
	Verdict  scoring.Verdict `json:"verdict"`
	Details  any             `json:"details,omitempty"`
	Evidence map[string]any  `json:"evidence,omitempty"`
	Duration time.Duration   `json:"-"`
}

// URLScanDetails are the extras of a URL scan.
type URLScanDetails struct {
	URL       string             `json:"url"`
	Structure *URLDetails        `json:"structure,omitempty"`
	Keywords  []string           `json:"keywords"`
	URLScan   *URLScanSubmission `json:"urlscan,omitempty"`
	// set only when the scan finished within the source timeout
	URLScanResult *URLScanResult `json:"urlscanResult,omitempty"`
}

// QRScanDetails are the extras of a QR scan.
type QRScanDetails struct {
	QR       QRDetails       `json:"qr"`
	Decoded  *qrcode.Decoded `json:"decoded,omitempty"`
	URLCheck *URLScanDetails `json:"urlAnalysis,omitempty"`
}

// EmailScanDetails are the extras of an email scan.
type EmailScanDetails struct {
	LinksFound         []string       `json:"linksFound"`
	SuspiciousKeywords []string       `json:"suspiciousKeywords"`
	SenderAnalysis     SenderAnalysis `json:"senderAnalysis"`
	AIAnalysis         string         `json:"aiAnalysis,omitempty"`
	Recommendations    []string       `json:"recommendations"`
}

// Deps are the collaborators a Scanner cannot build from config alone.
type Deps struct {
	Rules    *Rules
	Vision   VisionModel
	EmailAI  EmailModel
	OCR      TextRecognizer
	Resolver Resolver
	Client   *http.Client
}

// Scanner runs the four scanning flows.
type Scanner struct {
	rules       *Rules
	urlscan     *URLScan
	pipelines   map[scoring.Flow]*Pipeline
	aggregators map[scoring.Flow]*scoring.Aggregator
}

// NewScanner wires every enabled source into its flow.
func NewScanner(cfg config.Config, d Deps) *Scanner {
	rules := d.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	resolver := d.Resolver
	if resolver == nil {
		resolver = PublicResolver("")
	}

	urlSources := []Source{
		&URLStructure{Rules: rules},
		&KeywordMatch{Rules: rules},
	}
	if cfg.SafeBrowsingKey != "" {
		urlSources = append(urlSources, &SafeBrowsing{APIKey: cfg.SafeBrowsingKey, Client: d.Client})
	}
	if cfg.VirusTotalKey != "" {
		urlSources = append(urlSources, &VirusTotal{APIKey: cfg.VirusTotalKey, Client: d.Client})
	}
	us := &URLScan{APIKey: cfg.URLScanKey, Client: d.Client, Wait: cfg.URLScanWait}
	if us.Configured() {
		urlSources = append(urlSources, us)
	}
	if cfg.WhoisEnabled {
		urlSources = append(urlSources, &DomainAge{})
	}
	if cfg.DNSBLEnabled {
		urlSources = append(urlSources, &DomainBlocklist{Lists: rules.Blocklists, Resolver: resolver})
	}
	if cfg.SpamhausKey != "" {
		urlSources = append(urlSources, &Spamhaus{APIKey: cfg.SpamhausKey, Client: d.Client})
	}
	if cfg.TLSProbeEnabled {
		urlSources = append(urlSources, &TLSCertificate{})
	}
	if cfg.PageRender {
		urlSources = append(urlSources, &PageRender{SkipBrowser: cfg.SkipChromedp, ChromePath: cfg.ChromePath})
	}

	urlPipe := NewPipeline(cfg.SourceTimeout, urlSources...)
	if us.Configured() && us.Wait {
		urlPipe.WithTimeout(scoring.SourceURLScan, cfg.AITimeout)
	}
	if cfg.PageRender {
		urlPipe.WithTimeout(scoring.SourcePageRender, cfg.AITimeout)
	}

	qrSources := append([]Source{&QRPayload{Rules: rules}}, urlSources...)
	qrPipe := NewPipeline(cfg.SourceTimeout, qrSources...)
	qrPipe.Timeouts = urlPipe.Timeouts

	emailSources := []Source{
		&EmailContent{Rules: rules},
		&EmailLinks{Rules: rules},
		&LinkStructure{Rules: rules},
		&EmailSender{Rules: rules},
	}
	if cfg.SenderDNSEnabled {
		emailSources = append(emailSources, &SenderDomain{Rules: rules, Resolver: resolver})
	}
	if d.EmailAI != nil {
		emailSources = append(emailSources, &AIEmail{Model: d.EmailAI})
	}
	emailPipe := NewPipeline(cfg.SourceTimeout, emailSources...).WithTimeout(scoring.SourceAIEmail, cfg.AITimeout)

	ocr := d.OCR
	if ocr == nil {
		ocr = &Tesseract{Path: cfg.TesseractPath, Timeout: cfg.OCRTimeout}
	}
	shotTimeout := cfg.AITimeout + cfg.OCRTimeout
	shotPipe := NewPipeline(shotTimeout, &VisionAI{Rules: rules, Vision: d.Vision, OCR: ocr})

	s := &Scanner{
		rules:   rules,
		urlscan: us,
		pipelines: map[scoring.Flow]*Pipeline{
			scoring.FlowURL:        urlPipe,
			scoring.FlowQR:         qrPipe,
			scoring.FlowEmail:      emailPipe,
			scoring.FlowScreenshot: shotPipe,
		},
		aggregators: map[scoring.Flow]*scoring.Aggregator{},
	}
	for flow := range s.pipelines {
		agg := scoring.NewAggregator(flow)
		agg.Weights = rules.FlowWeights(flow)
		s.aggregators[flow] = agg
	}
	for flow, p := range s.pipelines {
		log.Printf("[Scanner] %s flow: %s", flow, strings.Join(p.Names(), ", "))
	}
	return s
}

// NewScannerWith builds a scanner from explicit pipelines.
func NewScannerWith(rules *Rules, urlscan *URLScan, pipelines map[scoring.Flow]*Pipeline) *Scanner {
	if rules == nil {
		rules = DefaultRules()
	}
	s := &Scanner{rules: rules, urlscan: urlscan, pipelines: pipelines, aggregators: map[scoring.Flow]*scoring.Aggregator{}}
	for flow := range pipelines {
		agg := scoring.NewAggregator(flow)
		agg.Weights = rules.FlowWeights(flow)
		s.aggregators[flow] = agg
	}
	return s
}

// Rules returns the active rule set.
func (s *Scanner) Rules() *Rules { return s.rules }

// URLScan returns the urlscan.io client, configured or not.
func (s *Scanner) URLScan() *URLScan { return s.urlscan }

// Sources lists the source names per flow.
func (s *Scanner) Sources() map[scoring.Flow][]string {
	out := map[scoring.Flow][]string{}
	for flow, p := range s.pipelines {
		out[flow] = p.Names()
	}
	return out
}

// ValidateURL trims raw and checks it is an http(s) URL.
func ValidateURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", fmt.Errorf("%w: URL is required", ErrInvalidInput)
	}
	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "", fmt.Errorf("%w: URL must start with http:// or https://", ErrInvalidInput)
	}
	return u, nil
}

// ScanURL scores a web address.
func (s *Scanner) ScanURL(ctx context.Context, raw string) (*ScanResult, error) {
	target, err := ValidateURL(raw)
	if err != nil {
		return nil, err
	}
	res := s.run(ctx, scoring.FlowURL, Artifact{Kind: scoring.FlowURL, URL: target})
	res.Input = target
	res.Details = urlDetails(target, res.Evidence)
	return res, nil
}

// ScanQR scores a decoded QR payload and the address it leads to.
func (s *Scanner) ScanQR(ctx context.Context, decoded *qrcode.Decoded) (*ScanResult, error) {
	if decoded == nil || strings.TrimSpace(decoded.Data) == "" {
		return nil, fmt.Errorf("%w: empty QR payload", ErrInvalidInput)
	}
	a := Artifact{Kind: scoring.FlowQR, Text: decoded.Data, URL: qrcode.ExtractURL(decoded.Data)}
	res := s.run(ctx, scoring.FlowQR, a)
	res.Input = decoded.Data

	det := QRScanDetails{Decoded: decoded}
	if qd, ok := res.Evidence[scoring.SourceQRPayload].(QRDetails); ok {
		det.QR = qd
	} else {
		det.QR = AnalyzeQRPayload(s.rules, decoded.Data)
	}
	det.QR.Recommendation = QRRecommendation(res.Verdict.Score)
	if a.URL != "" {
		det.URLCheck = urlDetails(a.URL, res.Evidence)
	}
	res.Details = det
	return res, nil
}

// ScanEmail scores an email body with its optional sender and subject.
func (s *Scanner) ScanEmail(ctx context.Context, e Email) (*ScanResult, error) {
	if strings.TrimSpace(e.Content) == "" {
		return nil, fmt.Errorf("%w: email content is required", ErrInvalidInput)
	}
	res := s.run(ctx, scoring.FlowEmail, Artifact{Kind: scoring.FlowEmail, Email: e})
	res.Input = e.SenderEmail
	if e.Subject != "" {
		res.Input = strings.TrimSpace(e.SenderEmail + " " + e.Subject)
	}

	links := ExtractLinks(e.Content)
	det := EmailScanDetails{
		LinksFound:         links,
		SuspiciousKeywords: SuspiciousPhrases(s.rules, e),
		SenderAnalysis:     AnalyzeSender(s.rules, e.SenderEmail),
		Recommendations:    EmailRecommendations(res.Verdict.Score, len(links) > 0),
	}
	if r, ok := res.Evidence[scoring.SourceAIEmail].(*EmailAIReport); ok && r != nil {
		det.AIAnalysis = r.Analysis
	}
	res.Details = det
	return res, nil
}

// ScanScreenshot scores an uploaded screenshot.
func (s *Scanner) ScanScreenshot(ctx context.Context, raw []byte, mimeType, name string) (*ScanResult, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidInput)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: unreadable image: %v", ErrInvalidInput, err)
	}
	res := s.run(ctx, scoring.FlowScreenshot, Artifact{Kind: scoring.FlowScreenshot, ImageBytes: raw, MimeType: mimeType})
	res.Input = name
	if d, ok := res.Evidence[scoring.SourceVisionAI].(ScreenshotDetails); ok {
		res.Details = d
	}
	return res, nil
}

// run fans the artifact out and aggregates. A panic anywhere in the flow
// still produces a degraded verdict.
func (s *Scanner) run(ctx context.Context, flow scoring.Flow, a Artifact) (res *ScanResult) {
	start := time.Now()
	agg := s.aggregators[flow]
	if agg == nil {
		agg = scoring.NewAggregator(flow)
	}
	res = &ScanResult{Kind: flow, Evidence: map[string]any{}}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Scan] ⚠️ %s flow failed: %v", flow, r)
			res.Verdict = agg.Degrade(res.Verdict, "Unable to fully analyze: internal error")
		}
		res.Duration = time.Since(start)
	}()

	p := s.pipelines[flow]
	if p == nil {
		res.Verdict = agg.Degrade(scoring.Verdict{}, scoring.FactorNoDetector)
		return res
	}
	outcomes := p.Run(ctx, a)
	for _, o := range outcomes {
		if o.Signal != nil && o.Signal.Details != nil {
			res.Evidence[o.Signal.Source] = o.Signal.Details
		}
	}
	res.Verdict = agg.Aggregate(outcomes)
	log.Printf("[Scan] %s scored %d (%s) from %d sources in %s",
		flow, res.Verdict.Score, res.Verdict.Label, len(outcomes), time.Since(start).Round(time.Millisecond))
	return res
}

func urlDetails(target string, evidence map[string]any) *URLScanDetails {
	det := &URLScanDetails{URL: target, Keywords: []string{}}
	if d, ok := evidence[scoring.SourceURLStructure].(URLDetails); ok {
		det.Structure = &d
	}
	if k, ok := evidence[scoring.SourceKeywordMatch].(KeywordDetails); ok {
		det.Keywords = k.Keywords
	}
	switch v := evidence[scoring.SourceURLScan].(type) {
	case *URLScanSubmission:
		det.URLScan = v
	case *URLScanResult:
		det.URLScan = &URLScanSubmission{UUID: v.ScanID, Result: v.ReportURL}
		det.URLScanResult = v
	}
	return det
}
