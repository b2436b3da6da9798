package vetting

import (
	"context"
	"errors"
	"net"
	"strings"

	"phishguard/scoring"
)

type EmailSecurity struct {
	Domain      string `json:"domain"`
	HasValidMX  bool   `json:"has_valid_mx"`
	HasSPF      bool   `json:"has_spf"`
	HasDMARC    bool   `json:"has_dmarc"`
	SPFRecord   string `json:"spf_record,omitempty"`
	DMARCRecord string `json:"dmarc_record,omitempty"`
}

// GetEmailSecurity reads the MX, SPF and DMARC records of a domain. It
// fails only when every lookup failed for a reason other than NXDOMAIN.
func GetEmailSecurity(ctx context.Context, r Resolver, domain string) (EmailSecurity, error) {
	sec := EmailSecurity{Domain: domain}
	var errs []error

	mx, err := r.LookupMX(ctx, domain)
	if err == nil && len(mx) > 0 {
		sec.HasValidMX = true
	}
	errs = append(errs, hardDNSError(err))

	txts, err := r.LookupTXT(ctx, domain)
	for _, t := range txts {
		if strings.HasPrefix(strings.ToLower(t), "v=spf1") {
			sec.HasSPF = true
			sec.SPFRecord = t
		}
	}
	errs = append(errs, hardDNSError(err))

	dmarc, err := r.LookupTXT(ctx, "_dmarc."+domain)
	for _, t := range dmarc {
		if strings.HasPrefix(strings.ToLower(t), "v=dmarc1") {
			sec.HasDMARC = true
			sec.DMARCRecord = t
		}
	}
	errs = append(errs, hardDNSError(err))

	for _, e := range errs {
		if e == nil {
			return sec, nil
		}
	}
	return sec, errors.Join(errs...)
}

// hardDNSError drops "no such record" answers, which are findings.
func hardDNSError(err error) error {
	if err == nil {
		return nil
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return nil
	}
	return err
}

// SenderDomain checks whether the sender's domain is set up to send mail.
type SenderDomain struct {
	Rules    *Rules
	Resolver Resolver
}

func (s *SenderDomain) Name() string { return scoring.SourceSenderDomain }

func (s *SenderDomain) Analyze(ctx context.Context, a Artifact) (scoring.Signal, error) {
	_, domain, ok := strings.Cut(strings.ToLower(strings.TrimSpace(a.Email.SenderEmail)), "@")
	if !ok || domain == "" || isFreeProvider(s.Rules, domain) {
		return scoring.Signal{}, ErrNotApplicable
	}
	r := s.Resolver
	if r == nil {
		r = net.DefaultResolver
	}

	sec, err := GetEmailSecurity(ctx, r, domain)
	if err != nil {
		return scoring.Signal{}, err
	}

	sig := scoring.Signal{Source: s.Name(), Confidence: 0.7, Details: sec}
	if !sec.HasValidMX {
		sig.Score += 0.5
		sig.Factors = append(sig.Factors, "Sender domain has no MX record")
	}
	if !sec.HasSPF {
		sig.Score += 0.25
		sig.Factors = append(sig.Factors, "Sender domain publishes no SPF policy")
	}
	if !sec.HasDMARC {
		sig.Score += 0.25
		sig.Factors = append(sig.Factors, "Sender domain publishes no DMARC policy")
	}
	return sig, nil
}
