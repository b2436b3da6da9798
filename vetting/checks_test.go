package vetting

import (
	"context"
	"crypto/x509"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestDomainBlocklist(t *testing.T) {
	res := fakeResolver{hosts: map[string][]string{
		"evil.com.a.rbl": {"127.0.0.2"},
		"evil.com.b.rbl": {"10.1.1.1"},
	}}
	s := &DomainBlocklist{Lists: []string{"a.rbl", "b.rbl", "c.rbl"}, Resolver: res}

	sig, err := s.Analyze(context.Background(), Artifact{URL: "https://login.evil.com/x"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if sig.Score != 1 {
		t.Errorf("score = %v, want 1", sig.Score)
	}
	if want := []string{"Listed on a.rbl"}; !reflect.DeepEqual(sig.Factors, want) {
		t.Errorf("factors = %q, want %q", sig.Factors, want)
	}

	clean, err := s.Analyze(context.Background(), Artifact{URL: "https://good.example"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if clean.Score != 0 {
		t.Errorf("clean score = %v, want 0", clean.Score)
	}

	down := &DomainBlocklist{Lists: []string{"a.rbl"}, Resolver: fakeResolver{err: errors.New("refused")}}
	if _, err := down.Analyze(context.Background(), Artifact{URL: "https://good.example"}); err == nil {
		t.Error("all lookups failed err = nil")
	}
	if _, err := s.Analyze(context.Background(), Artifact{URL: "http://10.0.0.1"}); !errors.Is(err, ErrNotApplicable) {
		t.Errorf("ip host err = %v, want ErrNotApplicable", err)
	}
}

const whoisReply = `Domain Name: FRESH-LOGIN.COM
Registry Domain ID: 2800000000_DOMAIN_COM-VRSN
Registrar WHOIS Server: whois.example-registrar.com
Updated Date: 2025-06-01T10:00:00Z
Creation Date: 2025-06-01T10:00:00Z
Registry Expiry Date: 2026-06-01T10:00:00Z
Registrar: Example Registrar, LLC
Name Server: NS1.EXAMPLE-DNS.COM
Name Server: NS2.EXAMPLE-DNS.COM
`

func TestDomainAge(t *testing.T) {
	var asked string
	s := &DomainAge{
		Lookup: func(_ context.Context, domain string) (string, error) {
			asked = domain
			return whoisReply, nil
		},
		Now: func() time.Time { return time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC) },
	}

	sig, err := s.Analyze(context.Background(), Artifact{URL: "https://secure.fresh-login.com/"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if asked != "fresh-login.com" {
		t.Errorf("whois domain = %q", asked)
	}
	det := sig.Details.(DomainAgeDetails)
	if det.AgeDays != 10 || det.Created != "2025-06-01" || det.Expires != "2026-06-01" {
		t.Errorf("details = %+v", det)
	}
	if sig.Score != 1 || !reflect.DeepEqual(sig.ThreatTypes, []string{"NEW_DOMAIN"}) {
		t.Errorf("signal = %+v, want new domain", sig)
	}
}

func TestParseWhoisDate(t *testing.T) {
	tests := map[string]string{
		"2020-01-02T03:04:05Z": "2020-01-02",
		"2020-01-02 03:04:05":  "2020-01-02",
		"02-Jan-2020":          "2020-01-02",
		"2020.01.02":           "2020-01-02",
	}
	for in, want := range tests {
		if got := parseWhoisDate(in).Format("2006-01-02"); got != want {
			t.Errorf("parseWhoisDate(%q) = %s, want %s", in, got, want)
		}
	}
	if !parseWhoisDate("soon").IsZero() {
		t.Error("parseWhoisDate(soon) is not zero")
	}
}

func TestTLSCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	untrusted := &TLSCertificate{DialTimeout: time.Second}
	sig, err := untrusted.Analyze(context.Background(), Artifact{URL: srv.URL})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if sig.Score != 1 || len(sig.Factors) == 0 {
		t.Errorf("untrusted certificate signal = %+v", sig)
	}

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	trusted := &TLSCertificate{DialTimeout: time.Second, RootCAs: pool}
	sig, err = trusted.Analyze(context.Background(), Artifact{URL: srv.URL})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if sig.Score != 0 {
		t.Errorf("trusted certificate signal = %+v, want clean", sig)
	}
	if det := sig.Details.(*TLSDetails); det.Protocol != "TLS1.3" {
		t.Errorf("protocol = %q, want TLS1.3", det.Protocol)
	}

	if _, err := trusted.Analyze(context.Background(), Artifact{URL: "http://example.com"}); !errors.Is(err, ErrNotApplicable) {
		t.Errorf("plain http err = %v, want ErrNotApplicable", err)
	}
}
