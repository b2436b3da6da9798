package vetting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"phishguard/scoring"
)

// URLScanSubmission is the reply to a scan request.
type URLScanSubmission struct {
	UUID       string `json:"uuid"`
	Result     string `json:"result"`
	API        string `json:"api"`
	Visibility string `json:"visibility"`
	Message    string `json:"message,omitempty"`
}

// URLScanResult is the condensed view of a finished scan.
type URLScanResult struct {
	ScanID string `json:"scanId"`
	Page   struct {
		URL     string `json:"url"`
		Domain  string `json:"domain"`
		IP      string `json:"ip"`
		Country string `json:"country"`
	} `json:"page"`
	Verdict struct {
		Malicious  bool     `json:"malicious"`
		Score      int      `json:"score"`
		Categories []string `json:"categories"`
	} `json:"verdict"`
	Certificate struct {
		ValidDays int    `json:"validDays"`
		Issuer    string `json:"issuer,omitempty"`
		ValidFrom int64  `json:"validFrom,omitempty"`
		ValidTo   int64  `json:"validTo,omitempty"`
	} `json:"certificate"`
	Technologies []URLScanTechnology `json:"technologies"`
	Requests     struct {
		Total     int      `json:"total"`
		Domains   []string `json:"domains"`
		Countries []string `json:"countries"`
	} `json:"requests"`
	Screenshot struct {
		URL   string `json:"url"`
		Thumb string `json:"thumb"`
	} `json:"screenshot"`
	Indicators []string `json:"indicators"`
	ReportURL  string   `json:"reportUrl"`
	ScannedAt  string   `json:"scannedAt"`
}

// URLScanTechnology is one detected web technology.
type URLScanTechnology struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// rawURLScanResult mirrors the subset of /api/v1/result/{uuid}/ that we read.
type rawURLScanResult struct {
	Page struct {
		URL           string `json:"url"`
		Domain        string `json:"domain"`
		IP            string `json:"ip"`
		Country       string `json:"country"`
		TLSValidDays  int    `json:"tlsValidDays"`
		TLSIssuer     string `json:"tlsIssuer"`
		TLSValidFrom  int64  `json:"tlsValidFrom"`
		TLSValidUntil int64  `json:"tlsValidTo"`
	} `json:"page"`
	Verdicts struct {
		Overall struct {
			Malicious  bool     `json:"malicious"`
			Score      int      `json:"score"`
			Categories []string `json:"categories"`
		} `json:"overall"`
		URLScan struct {
			Malicious bool `json:"malicious"`
		} `json:"urlscan"`
	} `json:"verdicts"`
	Meta struct {
		Processors struct {
			Wappa struct {
				Data []struct {
					App        string `json:"app"`
					Categories []struct {
						Name string `json:"name"`
					} `json:"categories"`
				} `json:"data"`
			} `json:"wappa"`
		} `json:"processors"`
	} `json:"meta"`
	Lists struct {
		Domains   []string `json:"domains"`
		Countries []string `json:"countries"`
	} `json:"lists"`
	Data struct {
		Requests []struct {
			Response struct {
				Response struct {
					Status int `json:"status"`
				} `json:"response"`
			} `json:"response"`
		} `json:"requests"`
	} `json:"data"`
	Task struct {
		UUID          string `json:"uuid"`
		Time          string `json:"time"`
		ScreenshotURL string `json:"screenshotURL"`
		ReportURL     string `json:"reportURL"`
	} `json:"task"`
}

// URLScan submits URLs to urlscan.io. In wait mode it polls for the
// verdict inside the source timeout; otherwise it only records the
// submission.
type URLScan struct {
	APIKey  string
	BaseURL string // defaults to https://urlscan.io/api/v1
	Client  *http.Client

	Wait         bool
	PollInterval time.Duration // defaults to 2s
	MaxPolls     int           // defaults to 10
}

func (s *URLScan) Name() string { return scoring.SourceURLScan }

// Configured reports whether an API key is present.
func (s *URLScan) Configured() bool { return s != nil && s.APIKey != "" }

func (s *URLScan) base() string {
	if s.BaseURL != "" {
		return strings.TrimRight(s.BaseURL, "/")
	}
	return "https://urlscan.io/api/v1"
}

// Submit queues a scan of target.
func (s *URLScan) Submit(ctx context.Context, target string) (*URLScanSubmission, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	raw, _ := json.Marshal(map[string]any{
		"url":        target,
		"visibility": "unlisted",
		"tags":       []string{"phishing-detection", "automated-scan"},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base()+"/scan/", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("API-Key", s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	var sub URLScanSubmission
	if err := doJSON(s.Client, "urlscan", req, &sub); err != nil {
		return nil, err
	}
	log.Printf("[URLScan] submitted %s as %s", target, sub.UUID)
	return &sub, nil
}

// GetResults fetches a finished scan. ErrPending means it is still running.
func (s *URLScan) GetResults(ctx context.Context, scanID string) (*URLScanResult, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	endpoint := s.base() + "/result/" + url.PathEscape(scanID) + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("API-Key", s.APIKey)

	var raw rawURLScanResult
	err = doJSON(s.Client, "urlscan", req, &raw)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil, ErrPending
	}
	if err != nil {
		return nil, err
	}
	res := raw.condense(scanID)
	return &res, nil
}

func (r rawURLScanResult) condense(scanID string) URLScanResult {
	var out URLScanResult
	out.ScanID = scanID
	out.Page.URL = r.Page.URL
	out.Page.Domain = r.Page.Domain
	out.Page.IP = r.Page.IP
	out.Page.Country = r.Page.Country

	out.Verdict.Malicious = r.Verdicts.Overall.Malicious
	out.Verdict.Score = r.Verdicts.Overall.Score
	out.Verdict.Categories = r.Verdicts.Overall.Categories

	out.Certificate.ValidDays = r.Page.TLSValidDays
	out.Certificate.Issuer = r.Page.TLSIssuer
	out.Certificate.ValidFrom = r.Page.TLSValidFrom
	out.Certificate.ValidTo = r.Page.TLSValidUntil

	for _, app := range r.Meta.Processors.Wappa.Data {
		t := URLScanTechnology{Name: app.App}
		for _, c := range app.Categories {
			t.Categories = append(t.Categories, c.Name)
		}
		out.Technologies = append(out.Technologies, t)
	}

	out.Requests.Total = len(r.Data.Requests)
	out.Requests.Domains = r.Lists.Domains
	out.Requests.Countries = r.Lists.Countries

	out.Screenshot.URL = r.Task.ScreenshotURL
	if r.Task.UUID != "" {
		out.Screenshot.Thumb = "https://urlscan.io/thumbs/" + r.Task.UUID + ".png"
	}
	out.ReportURL = r.Task.ReportURL
	out.ScannedAt = r.Task.Time

	if r.Verdicts.URLScan.Malicious {
		out.Indicators = append(out.Indicators, "Flagged as malicious by URLScan.io")
	}
	for _, c := range r.Verdicts.Overall.Categories {
		switch strings.ToLower(c) {
		case "phishing":
			out.Indicators = append(out.Indicators, "Categorized as phishing")
		case "malware":
			out.Indicators = append(out.Indicators, "Categorized as malware")
		}
	}
	if r.Page.TLSValidDays <= 0 && strings.HasPrefix(r.Page.URL, "https") {
		out.Indicators = append(out.Indicators, "Invalid or expired SSL certificate")
	}
	redirects := 0
	for _, req := range r.Data.Requests {
		if st := req.Response.Response.Status; st >= 300 && st < 400 {
			redirects++
		}
	}
	if redirects > 3 {
		out.Indicators = append(out.Indicators, fmt.Sprintf("Multiple redirects detected (%d)", redirects))
	}
	return out
}

func (s *URLScan) Analyze(ctx context.Context, a Artifact) (scoring.Signal, error) {
	if a.URL == "" {
		return scoring.Signal{}, ErrNotApplicable
	}
	sub, err := s.Submit(ctx, a.URL)
	if err != nil {
		return scoring.Signal{}, err
	}

	sig := scoring.Signal{
		Source:  s.Name(),
		Factors: []string{"Submitted to URLScan.io for detailed analysis"},
		Details: sub,
	}
	if !s.Wait {
		return sig, nil
	}

	res, err := s.poll(ctx, sub.UUID)
	if err != nil {
		// The submission still stands; the result endpoint can be polled later.
		log.Printf("[URLScan] %s not finished in time: %v", sub.UUID, err)
		return sig, nil
	}
	return URLScanSignal(res), nil
}

func (s *URLScan) poll(ctx context.Context, id string) (*URLScanResult, error) {
	interval := s.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	polls := s.MaxPolls
	if polls <= 0 {
		polls = 10
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; i < polls; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		res, err := s.GetResults(ctx, id)
		if errors.Is(err, ErrPending) {
			continue
		}
		return res, err
	}
	return nil, ErrPending
}

// URLScanSignal turns a finished scan into a signal.
func URLScanSignal(res *URLScanResult) scoring.Signal {
	sig := scoring.Signal{
		Source:     scoring.SourceURLScan,
		Score:      float64(res.Verdict.Score) / 100,
		Confidence: 0.85,
		Details:    res,
	}
	if sig.Score < 0 {
		sig.Score = 0
	}
	if res.Verdict.Malicious {
		sig.Factors = append(sig.Factors, "Flagged as malicious by URLScan.io")
		if sig.Score < 0.8 {
			sig.Score = 0.8
		}
	}
	for _, ind := range res.Indicators {
		if ind != "Flagged as malicious by URLScan.io" {
			sig.Factors = append(sig.Factors, ind)
		}
	}
	for _, c := range res.Verdict.Categories {
		sig.ThreatTypes = append(sig.ThreatTypes, strings.ToUpper(c))
	}
	return sig
}
