package vetting

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/publicsuffix"

	"phishguard/scoring"
)

const FactorInvalidURL = "Invalid URL format"

var separatorRun = regexp.MustCompile(`[-_]{2,}`)

// URLDetails are the structural facts recorded with a URL scan.
type URLDetails struct {
	Host               string `json:"host"`
	Domain             string `json:"domain"`
	TLD                string `json:"tld"`
	HasSSL             bool   `json:"has_ssl"`
	IsIP               bool   `json:"is_ip"`
	HasSuspiciousChars bool   `json:"has_suspicious_chars"`
}

// URLStructure inspects literal properties of a URL. It needs no network
// and never fails: malformed input yields a low-confidence signal.
type URLStructure struct {
	Rules *Rules
}

func (s *URLStructure) Name() string { return scoring.SourceURLStructure }

func (s *URLStructure) Analyze(_ context.Context, a Artifact) (scoring.Signal, error) {
	if a.URL == "" {
		return scoring.Signal{}, ErrNotApplicable
	}
	return AnalyzeURLStructure(s.Rules, a.URL), nil
}

// AnalyzeURLStructure scores one URL against the structural rules.
func AnalyzeURLStructure(rules *Rules, raw string) scoring.Signal {
	sig := scoring.Signal{Source: scoring.SourceURLStructure, Confidence: 1}

	u, ok := ParseHTTPURL(raw)
	if !ok {
		sig.Score = 0.5
		sig.Confidence = 0.5
		sig.Factors = []string{FactorInvalidURL}
		return sig
	}

	w := rules.URL.Weights
	host := strings.ToLower(u.Hostname())
	details := DescribeURL(u)
	details.HasSuspiciousChars = separatorRun.MatchString(host)

	var score float64
	add := func(weight float64, factor string) {
		score += weight
		sig.Factors = append(sig.Factors, factor)
	}

	if details.IsIP {
		add(w.IPHost, "Uses IP address instead of domain name")
	}
	if !details.IsIP && hasSuffixIn(host, rules.URL.SuspiciousTLDs) {
		add(w.SuspiciousTLD, "Suspicious top-level domain")
	}
	if strings.Contains(raw, "@") {
		add(w.AtSign, "Contains @ symbol in URL")
	}
	if !details.IsIP {
		if n := strings.Count(host, ".") - 1; n > rules.URL.MaxSubdomains {
			add(w.Subdomains, fmt.Sprintf("Excessive subdomains (%d)", n))
		}
	}
	if details.HasSuspiciousChars {
		add(w.SeparatorRun, "Contains suspicious character patterns")
	}
	if len(host) > rules.URL.MaxHostLength {
		add(w.LongHost, "Unusually long domain name")
	}
	if hasLookalikeChars(host) {
		add(w.Lookalike, "Contains look-alike characters (potential homograph attack)")
	}
	if !details.HasSSL {
		add(w.NoHTTPS, "No HTTPS/SSL encryption")
	}

	if score > 1 {
		score = 1
	}
	sig.Score = score
	sig.Details = details
	return sig
}

// ParseHTTPURL accepts only absolute http(s) URLs with a host.
func ParseHTTPURL(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if u.Hostname() == "" {
		return nil, false
	}
	return u, true
}

// DescribeURL extracts host, registrable domain and TLD.
func DescribeURL(u *url.URL) URLDetails {
	host := strings.ToLower(u.Hostname())
	d := URLDetails{
		Host:   host,
		Domain: host,
		HasSSL: u.Scheme == "https",
		IsIP:   net.ParseIP(host) != nil,
	}
	if d.IsIP {
		return d
	}
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		d.Domain = etld1
	}
	d.TLD, _ = publicsuffix.PublicSuffix(host)
	return d
}

// RegistrableDomain returns eTLD+1 for a hostname, or "" for IPs and bare suffixes.
func RegistrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return d
}

func hasSuffixIn(host string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	return false
}

// hasLookalikeChars flags Cyrillic or Greek letters and punycode labels.
func hasLookalikeChars(host string) bool {
	if strings.HasPrefix(host, "xn--") || strings.Contains(host, ".xn--") {
		return true
	}
	for _, r := range host {
		if unicode.In(r, unicode.Cyrillic, unicode.Greek) {
			return true
		}
	}
	return false
}
