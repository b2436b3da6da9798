package vetting

import (
	"math"
	"reflect"
	"testing"
)

func TestAnalyzeURLStructure(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		name        string
		url         string
		wantScore   float64
		wantFactors []string
	}{
		{"clean https", "https://www.google.com", 0, nil},
		{"ip host", "http://192.168.1.1/login", 0.45,
			[]string{"Uses IP address instead of domain name", "No HTTPS/SSL encryption"}},
		{"suspicious tld", "http://paypal.tk", 0.35,
			[]string{"Suspicious top-level domain", "No HTTPS/SSL encryption"}},
		{"at sign", "https://user@evil.com", 0.3, []string{"Contains @ symbol in URL"}},
		{"subdomains", "https://a.b.c.d.example.com", 0.15, []string{"Excessive subdomains (4)"}},
		{"separator run", "https://secure--login.com", 0.1, []string{"Contains suspicious character patterns"}},
		{"punycode", "https://xn--pypal-4ve.com", 0.5, []string{
			"Contains suspicious character patterns",
			"Contains look-alike characters (potential homograph attack)",
		}},
		{"cyrillic", "https://pаypal.com", 0.4,
			[]string{"Contains look-alike characters (potential homograph attack)"}},
		{"invalid", "not a url", 0.5, []string{FactorInvalidURL}},
		{"ftp", "ftp://files.example.com", 0.5, []string{FactorInvalidURL}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := AnalyzeURLStructure(rules, tt.url)
			if math.Abs(sig.Score-tt.wantScore) > 1e-9 {
				t.Errorf("score = %v, want %v", sig.Score, tt.wantScore)
			}
			if !reflect.DeepEqual(sig.Factors, tt.wantFactors) {
				t.Errorf("factors = %q, want %q", sig.Factors, tt.wantFactors)
			}
		})
	}
}

func TestAnalyzeURLStructureCapsAtOne(t *testing.T) {
	sig := AnalyzeURLStructure(DefaultRules(), "http://user@a.b.c.d.xn--secure--login-verification-account-update-portal.tk")
	if sig.Score != 1 {
		t.Errorf("score = %v, want 1", sig.Score)
	}
}

func TestDescribeURL(t *testing.T) {
	u, ok := ParseHTTPURL("https://login.accounts.example.co.uk/path")
	if !ok {
		t.Fatal("ParseHTTPURL failed")
	}
	d := DescribeURL(u)
	want := URLDetails{
		Host:   "login.accounts.example.co.uk",
		Domain: "example.co.uk",
		TLD:    "co.uk",
		HasSSL: true,
	}
	if d != want {
		t.Errorf("DescribeURL = %+v, want %+v", d, want)
	}
}

func TestRegistrableDomain(t *testing.T) {
	tests := map[string]string{
		"www.paypal.com":  "paypal.com",
		"WWW.PayPal.com.": "paypal.com",
		"10.0.0.1":        "",
		"":                "",
		"com":             "",
	}
	for in, want := range tests {
		if got := RegistrableDomain(in); got != want {
			t.Errorf("RegistrableDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMatchKeywords(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		name      string
		url       string
		wantScore float64
		wantWords []string
	}{
		{"none", "https://example.org/docs", 0, []string{}},
		{"two", "https://example.org/login?next=account", 0.1, []string{"login", "account"}},
		{"bonus", "http://secure-paypal-login.example/verify", 0.4, []string{"login", "verify", "secure", "paypal"}},
		{"capped", "http://secure-login-verify-account-update-password-banking.example/confirm", 0.5,
			[]string{"login", "verify", "account", "update", "secure", "banking", "confirm", "password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := MatchKeywords(rules, tt.url)
			if math.Abs(sig.Score-tt.wantScore) > 1e-9 {
				t.Errorf("score = %v, want %v", sig.Score, tt.wantScore)
			}
			got := sig.Details.(KeywordDetails).Keywords
			if !reflect.DeepEqual(got, tt.wantWords) {
				t.Errorf("keywords = %q, want %q", got, tt.wantWords)
			}
			if len(sig.Factors) != len(tt.wantWords) {
				t.Errorf("factors = %d, want %d", len(sig.Factors), len(tt.wantWords))
			}
		})
	}
}
