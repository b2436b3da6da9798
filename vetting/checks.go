package vetting

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	whois "github.com/likexian/whois"
	parser "github.com/likexian/whois-parser"

	"phishguard/scoring"
)

//
// DNS
//

// Resolver is the subset of *net.Resolver the DNS checks use.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// PublicResolver queries a fixed upstream over UDP, which avoids
// cloud resolvers that refuse RBL queries.
func PublicResolver(server string) *net.Resolver {
	if server == "" {
		server = "8.8.8.8:53"
	}
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			d := net.Dialer{Timeout: 2 * time.Second}
			return d.DialContext(ctx, "udp", server)
		},
	}
}

func hostOf(a Artifact) (string, bool) {
	u, ok := ParseHTTPURL(a.URL)
	if !ok {
		return "", false
	}
	return strings.ToLower(u.Hostname()), true
}

//
// WHOIS LOOKUP
//

var whoisLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
}

// WhoisFunc returns the raw whois text of a domain.
type WhoisFunc func(ctx context.Context, domain string) (string, error)

// DomainAge scores recently registered domains.
type DomainAge struct {
	Lookup WhoisFunc // defaults to the likexian client
	Now    func() time.Time
}

// DomainAgeDetails is what the whois lookup found.
type DomainAgeDetails struct {
	Domain  string `json:"domain"`
	AgeDays int    `json:"age_days"`
	Created string `json:"created"`
	Expires string `json:"expires,omitempty"`
}

func (s *DomainAge) Name() string { return scoring.SourceDomainAge }

func (s *DomainAge) Analyze(ctx context.Context, a Artifact) (scoring.Signal, error) {
	host, ok := hostOf(a)
	if !ok {
		return scoring.Signal{}, ErrNotApplicable
	}
	domain := RegistrableDomain(host)
	if domain == "" {
		return scoring.Signal{}, ErrNotApplicable
	}

	det, err := s.whoisAge(ctx, domain)
	if err != nil {
		return scoring.Signal{}, err
	}

	sig := scoring.Signal{Source: s.Name(), Confidence: 0.8, Details: det}
	switch {
	case det.AgeDays < 30:
		sig.Score = 1
		sig.Factors = []string{fmt.Sprintf("Domain registered %d days ago", det.AgeDays)}
		sig.ThreatTypes = []string{"NEW_DOMAIN"}
	case det.AgeDays < 180:
		sig.Score = 0.5
		sig.Factors = []string{fmt.Sprintf("Domain is less than 6 months old (%d days)", det.AgeDays)}
	}
	return sig, nil
}

func (s *DomainAge) whoisAge(ctx context.Context, domain string) (DomainAgeDetails, error) {
	lookup := s.Lookup
	if lookup == nil {
		lookup = defaultWhois
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	raw, err := lookup(ctx, domain)
	if err != nil {
		return DomainAgeDetails{}, fmt.Errorf("whois %s: %w", domain, err)
	}
	p, err := parser.Parse(raw)
	if err != nil || p.Domain == nil {
		// Some registries only answer for the parent of a multi-label suffix.
		parts := strings.Split(domain, ".")
		if len(parts) > 2 {
			return s.whoisAge(ctx, strings.Join(parts[1:], "."))
		}
		return DomainAgeDetails{}, fmt.Errorf("whois %s: unparseable reply", domain)
	}

	created := parseWhoisDate(p.Domain.CreatedDate)
	if created.IsZero() {
		return DomainAgeDetails{}, fmt.Errorf("whois %s: no creation date", domain)
	}
	det := DomainAgeDetails{
		Domain:  domain,
		AgeDays: int(now().Sub(created).Hours() / 24),
		Created: created.Format("2006-01-02"),
	}
	if exp := parseWhoisDate(p.Domain.ExpirationDate); !exp.IsZero() {
		det.Expires = exp.Format("2006-01-02")
	}
	return det, nil
}

func parseWhoisDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, l := range whoisLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// defaultWhois runs the blocking whois client so that ctx still bounds the call.
func defaultWhois(ctx context.Context, domain string) (string, error) {
	type reply struct {
		raw string
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		raw, err := whois.Whois(domain)
		ch <- reply{raw, err}
	}()
	select {
	case r := <-ch:
		return r.raw, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

//
// DOMAIN BLOCKLISTS
//

// BlocklistHit is one RBL listing.
type BlocklistHit struct {
	List   string `json:"list"`
	Answer string `json:"answer"`
}

// DomainBlocklist queries URI blocklists over DNS.
type DomainBlocklist struct {
	Lists    []string
	Resolver Resolver
}

func (s *DomainBlocklist) Name() string { return scoring.SourceDomainBlocklist }

func (s *DomainBlocklist) Analyze(ctx context.Context, a Artifact) (scoring.Signal, error) {
	host, ok := hostOf(a)
	if !ok {
		return scoring.Signal{}, ErrNotApplicable
	}
	domain := RegistrableDomain(host)
	if domain == "" || len(s.Lists) == 0 {
		return scoring.Signal{}, ErrNotApplicable
	}
	resolver := s.Resolver
	if resolver == nil {
		resolver = PublicResolver("")
	}

	log.Printf("[RBL] Checking domain %s against %d domain RBLs", domain, len(s.Lists))

	hits := []BlocklistHit{}
	failures := 0
	for _, rbl := range s.Lists {
		query := domain + "." + rbl
		addrs, err := resolver.LookupHost(ctx, query)
		if err != nil {
			var dnsErr *net.DNSError
			if !errors.As(err, &dnsErr) || !dnsErr.IsNotFound {
				failures++
			}
			if ctx.Err() != nil {
				return scoring.Signal{}, ctx.Err()
			}
			continue
		}
		// Only 127.0.0.x is a listing; anything else is a resolver artefact.
		for _, addr := range addrs {
			if strings.HasPrefix(addr, "127.0.0.") {
				log.Printf("[RBL] ⚠️ Domain LISTED on %s: %s (response: %v)", rbl, query, addrs)
				hits = append(hits, BlocklistHit{List: rbl, Answer: addr})
				break
			}
		}
	}
	if failures == len(s.Lists) {
		return scoring.Signal{}, fmt.Errorf("rbl: all %d lookups failed", failures)
	}

	sig := scoring.Signal{Source: s.Name(), Confidence: 0.9, Details: hits}
	if len(hits) > 0 {
		sig.Score = 1
		sig.ThreatTypes = []string{"BLACKLISTED"}
		for _, h := range hits {
			sig.Factors = append(sig.Factors, "Listed on "+h.List)
		}
	}
	return sig, nil
}

//
// TLS CERTIFICATE
//

// TLSDetails describes the presented certificate.
type TLSDetails struct {
	Issuer     string `json:"issuer"`
	ValidUntil string `json:"valid_until"`
	DaysLeft   int    `json:"days_left"`
	SelfSigned bool   `json:"self_signed"`
	Protocol   string `json:"protocol"`
	Cipher     string `json:"cipher"`
}

// TLSCertificate dials https hosts and inspects the leaf certificate.
type TLSCertificate struct {
	DialTimeout time.Duration
	// RootCAs overrides the system pool; tests use it to trust httptest certificates.
	RootCAs *x509.CertPool
	Now     func() time.Time
}

func (s *TLSCertificate) Name() string { return scoring.SourceTLSCertificate }

func (s *TLSCertificate) Analyze(ctx context.Context, a Artifact) (scoring.Signal, error) {
	u, ok := ParseHTTPURL(a.URL)
	if !ok || u.Scheme != "https" {
		return scoring.Signal{}, ErrNotApplicable
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "443"
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	timeout := s.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	d := &net.Dialer{Timeout: timeout}
	raw, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return scoring.Signal{}, fmt.Errorf("tls dial %s: %w", host, err)
	}
	defer raw.Close()

	// Verification is done by hand so a bad certificate becomes a finding, not an error.
	conn := tls.Client(raw, &tls.Config{ServerName: host, InsecureSkipVerify: true})
	sig := scoring.Signal{Source: s.Name(), Confidence: 0.9}
	if err := conn.HandshakeContext(ctx); err != nil {
		if ctx.Err() != nil {
			return scoring.Signal{}, ctx.Err()
		}
		sig.Score = 1
		sig.Factors = []string{"TLS handshake failed"}
		return sig, nil
	}
	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		sig.Score = 1
		sig.Factors = []string{"TLS handshake failed"}
		return sig, nil
	}

	leaf := state.PeerCertificates[0]
	det := TLSDetails{
		Issuer:     leaf.Issuer.CommonName,
		ValidUntil: leaf.NotAfter.Format(time.RFC3339),
		DaysLeft:   int(leaf.NotAfter.Sub(now()).Hours() / 24),
		Protocol:   tlsVersionName(state.Version),
		Cipher:     tls.CipherSuiteName(state.CipherSuite),
	}
	sig.Details = &det

	inter := x509.NewCertPool()
	for _, c := range state.PeerCertificates[1:] {
		inter.AddCert(c)
	}
	_, verr := leaf.Verify(x509.VerifyOptions{
		DNSName:       host,
		Roots:         s.RootCAs,
		Intermediates: inter,
		CurrentTime:   now(),
	})

	var unknown x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var invalid x509.CertificateInvalidError
	switch {
	case now().After(leaf.NotAfter):
		sig.Score = 1
		sig.Factors = append(sig.Factors, "SSL certificate has expired")
	case errors.As(verr, &unknown):
		det.SelfSigned = leaf.Issuer.String() == leaf.Subject.String()
		sig.Score = 1
		if det.SelfSigned {
			sig.Factors = append(sig.Factors, "Self-signed SSL certificate")
		} else {
			sig.Factors = append(sig.Factors, "SSL certificate issued by an untrusted authority")
		}
	case errors.As(verr, &hostErr):
		sig.Score = 1
		sig.Factors = append(sig.Factors, "SSL certificate does not match the domain")
	case errors.As(verr, &invalid):
		sig.Score = 1
		sig.Factors = append(sig.Factors, "Invalid SSL certificate")
	case det.DaysLeft < 7:
		sig.Score = 1
		sig.Factors = append(sig.Factors, fmt.Sprintf("SSL certificate expires in %d days", det.DaysLeft))
	}
	if det.Protocol == "weak" {
		sig.Score = 1
		sig.Factors = append(sig.Factors, "Outdated TLS protocol")
	}
	return sig, nil
}

func tlsVersionName(v uint16) string {
	switch v {
	case tls.VersionTLS13:
		return "TLS1.3"
	case tls.VersionTLS12:
		return "TLS1.2"
	default:
		return "weak"
	}
}
