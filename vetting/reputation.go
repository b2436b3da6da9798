package vetting

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"phishguard/scoring"
)

const userAgent = "phishguard/1.0"

var defaultHTTPClient = &http.Client{Timeout: 10 * time.Second}

// doJSON sends req and decodes a 2xx JSON body into out. Non-2xx replies
// come back as *StatusError.
func doJSON(client *http.Client, service string, req *http.Request, out any) error {
	if client == nil {
		client = defaultHTTPClient
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Service: service, Code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", service, err)
	}
	return nil
}

//
// GOOGLE SAFE BROWSING
//

var safeBrowsingThreats = map[string]string{
	"SOCIAL_ENGINEERING":              "PHISHING",
	"MALWARE":                         "MALWARE",
	"UNWANTED_SOFTWARE":               "UNWANTED_SOFTWARE",
	"POTENTIALLY_HARMFUL_APPLICATION": "HARMFUL_APPLICATION",
}

// SafeBrowsing queries the Google Safe Browsing v4 lookup API.
type SafeBrowsing struct {
	APIKey  string
	BaseURL string // defaults to https://safebrowsing.googleapis.com
	Client  *http.Client
}

func (s *SafeBrowsing) Name() string { return scoring.SourceSafeBrowsing }

func (s *SafeBrowsing) Analyze(ctx context.Context, a Artifact) (scoring.Signal, error) {
	if a.URL == "" {
		return scoring.Signal{}, ErrNotApplicable
	}
	if s.APIKey == "" {
		return scoring.Signal{}, ErrNotConfigured
	}

	base := s.BaseURL
	if base == "" {
		base = "https://safebrowsing.googleapis.com"
	}

	body := map[string]any{
		"client": map[string]string{
			"clientId":      "phishing-detection-system",
			"clientVersion": "1.0.0",
		},
		"threatInfo": map[string]any{
			"threatTypes":      []string{"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE", "POTENTIALLY_HARMFUL_APPLICATION"},
			"platformTypes":    []string{"ANY_PLATFORM"},
			"threatEntryTypes": []string{"URL"},
			"threatEntries":    []map[string]string{{"url": a.URL}},
		},
	}
	raw, _ := json.Marshal(body)

	endpoint := base + "/v4/threatMatches:find?key=" + url.QueryEscape(s.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return scoring.Signal{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		Matches []struct {
			ThreatType string `json:"threatType"`
		} `json:"matches"`
	}
	if err := doJSON(s.Client, "safe-browsing", req, &result); err != nil {
		return scoring.Signal{}, err
	}

	sig := scoring.Signal{Source: s.Name(), Confidence: 0.95}
	if len(result.Matches) == 0 {
		return sig, nil
	}

	log.Printf("[SafeBrowsing] ⚠️ %s flagged (%d matches)", a.URL, len(result.Matches))
	sig.Score = 0.9
	sig.Factors = []string{"Flagged by Google Safe Browsing"}
	for _, m := range result.Matches {
		t, ok := safeBrowsingThreats[m.ThreatType]
		if !ok {
			t = m.ThreatType
		}
		sig.ThreatTypes = append(sig.ThreatTypes, t)
	}
	return sig, nil
}

//
// VIRUSTOTAL
//

// VirusTotal looks up the last analysis of a URL. Unknown URLs are
// submitted for scanning and reported as pending.
type VirusTotal struct {
	APIKey  string
	BaseURL string // defaults to https://www.virustotal.com/api/v3
	Client  *http.Client
}

// VirusTotalStats is the engine tally of the last analysis.
type VirusTotalStats struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Harmless   int `json:"harmless"`
	Undetected int `json:"undetected"`
}

func (st VirusTotalStats) total() int {
	return st.Malicious + st.Suspicious + st.Harmless + st.Undetected
}

func (s *VirusTotal) Name() string { return scoring.SourceVirusTotal }

func (s *VirusTotal) base() string {
	if s.BaseURL != "" {
		return strings.TrimRight(s.BaseURL, "/")
	}
	return "https://www.virustotal.com/api/v3"
}

func (s *VirusTotal) Analyze(ctx context.Context, a Artifact) (scoring.Signal, error) {
	if a.URL == "" {
		return scoring.Signal{}, ErrNotApplicable
	}
	if s.APIKey == "" {
		return scoring.Signal{}, ErrNotConfigured
	}

	id := base64.RawURLEncoding.EncodeToString([]byte(a.URL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base()+"/urls/"+id, nil)
	if err != nil {
		return scoring.Signal{}, err
	}
	req.Header.Set("x-apikey", s.APIKey)

	var report struct {
		Data struct {
			Attributes struct {
				Stats VirusTotalStats `json:"last_analysis_stats"`
			} `json:"attributes"`
		} `json:"data"`
	}
	err = doJSON(s.Client, "virus-total", req, &report)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		if subErr := s.submit(ctx, a.URL); subErr != nil {
			log.Printf("[VirusTotal] submit %s failed: %v", a.URL, subErr)
			return scoring.Signal{}, subErr
		}
		log.Printf("[VirusTotal] %s not known yet, submitted for analysis", a.URL)
		return scoring.Signal{}, ErrPending
	}
	if err != nil {
		return scoring.Signal{}, err
	}

	stats := report.Data.Attributes.Stats
	sig := scoring.Signal{Source: s.Name(), Confidence: 0.9, Details: stats}
	total := stats.total()
	bad := stats.Malicious + stats.Suspicious
	if total == 0 || bad == 0 {
		return sig, nil
	}

	score := 2 * float64(bad) / float64(total)
	if score > 1 {
		score = 1
	}
	sig.Score = score
	sig.Factors = []string{fmt.Sprintf("Detected by %d/%d engines (VirusTotal)", bad, total)}
	sig.ThreatTypes = []string{"MALICIOUS"}
	return sig, nil
}

func (s *VirusTotal) submit(ctx context.Context, target string) error {
	form := url.Values{"url": {target}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base()+"/urls", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("x-apikey", s.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doJSON(s.Client, "virus-total", req, nil)
}

//
// SPAMHAUS INTELLIGENCE
//

// SpamhausResponse is the domain overview of the Spamhaus intel API.
type SpamhausResponse struct {
	Domain     string   `json:"domain"`
	Score      float64  `json:"score"`
	Abused     bool     `json:"abused"`
	Tags       []string `json:"tags"`
	Dimensions struct {
		Human    float64 `json:"human"`
		Identity float64 `json:"identity"`
		Infra    float64 `json:"infra"`
		Malware  float64 `json:"malware"`
		SMTP     float64 `json:"smtp"`
	} `json:"dimensions"`
}

// Spamhaus rates the registrable domain of a URL.
type Spamhaus struct {
	APIKey  string
	BaseURL string // defaults to https://www.spamhaus.org/api/v1/sia-proxy/api/intel/v2
	Client  *http.Client
}

func (s *Spamhaus) Name() string { return scoring.SourceSpamhaus }

// FetchReputation returns the overview of one domain.
func (s *Spamhaus) FetchReputation(ctx context.Context, domain string) (*SpamhausResponse, error) {
	if s.APIKey == "" {
		return nil, ErrNotConfigured
	}
	base := s.BaseURL
	if base == "" {
		base = "https://www.spamhaus.org/api/v1/sia-proxy/api/intel/v2"
	}

	endpoint := fmt.Sprintf("%s/byobject/domain/%s/overview", strings.TrimRight(base, "/"), url.PathEscape(domain))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	var data SpamhausResponse
	if err := doJSON(s.Client, "spamhaus", req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (s *Spamhaus) Analyze(ctx context.Context, a Artifact) (scoring.Signal, error) {
	u, ok := ParseHTTPURL(a.URL)
	if !ok {
		return scoring.Signal{}, ErrNotApplicable
	}
	domain := RegistrableDomain(u.Hostname())
	if domain == "" {
		return scoring.Signal{}, ErrNotApplicable
	}

	rep, err := s.FetchReputation(ctx, domain)
	if err != nil {
		return scoring.Signal{}, err
	}

	sig := scoring.Signal{Source: s.Name(), Score: rep.Score / 100, Confidence: 0.8, Details: rep}
	if rep.Score > 30 {
		sig.Factors = append(sig.Factors, fmt.Sprintf("High Spamhaus reputation risk (%.0f)", rep.Score))
	}
	if rep.Abused {
		sig.ThreatTypes = append(sig.ThreatTypes, "ABUSED_DOMAIN")
	}
	return sig, nil
}
