package scoring

// Flow names one scanning surface.
type Flow string

const (
	FlowURL        Flow = "url"
	FlowQR         Flow = "qr"
	FlowEmail      Flow = "email"
	FlowScreenshot Flow = "screenshot"
)

// Vocabulary returns the label set presented for the flow.
func (f Flow) Vocabulary() Vocabulary {
	if f == FlowURL {
		return ThreeBand
	}
	return FourBand
}

// Valid reports whether f is a known flow.
func (f Flow) Valid() bool {
	switch f {
	case FlowURL, FlowQR, FlowEmail, FlowScreenshot:
		return true
	}
	return false
}

// Source names shared by detectors and weight tables.
const (
	SourceURLStructure    = "url-structure"
	SourceKeywordMatch    = "keyword-match"
	SourceSafeBrowsing    = "safe-browsing"
	SourceVirusTotal      = "virus-total"
	SourceURLScan         = "urlscan"
	SourceDomainAge       = "domain-age"
	SourceDomainBlocklist = "domain-blocklist"
	SourceSpamhaus        = "spamhaus"
	SourceTLSCertificate  = "tls-certificate"
	SourcePageRender      = "page-render"
	SourceQRPayload       = "qr-payload"
	SourceEmailContent    = "email-content"
	SourceEmailLinks      = "email-links"
	SourceLinkStructure   = "link-structure"
	SourceEmailSender     = "email-sender"
	SourceSenderDomain    = "sender-domain"
	SourceAIEmail         = "ai-email"
	SourceVisionAI        = "vision-ai"
)

// qrURLShare is the share of the embedded-URL analysis in a QR verdict.
const qrURLShare = 0.6

// WeightTable maps source names to fixed contribution weights.
type WeightTable map[string]float64

// For resolves the weight of a signal: table entry, then the signal's own
// default, then 1. Negative weights are treated as 0.
func (w WeightTable) For(sig Signal) float64 {
	weight := 1.0
	if v, ok := w[sig.Source]; ok {
		weight = v
	} else if sig.Weight > 0 {
		weight = sig.Weight
	}
	if weight < 0 {
		return 0
	}
	return weight
}

// Merge returns a copy of w with overrides applied.
func (w WeightTable) Merge(overrides WeightTable) WeightTable {
	out := make(WeightTable, len(w)+len(overrides))
	for k, v := range w {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

func urlWeights() WeightTable {
	return WeightTable{
		SourceURLStructure:    1.0,
		SourceKeywordMatch:    1.0,
		SourceSafeBrowsing:    1.0,
		SourceVirusTotal:      1.0,
		SourceURLScan:         1.0,
		SourceDomainAge:       0.15,
		SourceDomainBlocklist: 0.5,
		SourceSpamhaus:        0.3,
		SourceTLSCertificate:  0.1,
		SourcePageRender:      0.2,
	}
}

// DefaultWeights returns a fresh copy of the built-in table for a flow.
func DefaultWeights(flow Flow) WeightTable {
	switch flow {
	case FlowURL:
		return urlWeights()
	case FlowQR:
		w := WeightTable{}
		for k, v := range urlWeights() {
			w[k] = v * qrURLShare
		}
		w[SourceQRPayload] = 1.0
		return w
	case FlowEmail:
		return WeightTable{
			SourceEmailContent:  1.0,
			SourceEmailLinks:    0.15,
			SourceLinkStructure: 0.3,
			SourceEmailSender:   0.25,
			SourceSenderDomain:  0.2,
			SourceAIEmail:       0.6,
		}
	case FlowScreenshot:
		return WeightTable{
			SourceVisionAI: 1.0,
		}
	}
	return WeightTable{}
}
