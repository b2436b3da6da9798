package vetting

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"phishguard/scoring"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rules holds every list, threshold and point value the local heuristics use.
type Rules struct {
	Version string `yaml:"version"`

	URL struct {
		SuspiciousTLDs []string            `yaml:"suspicious_tlds"`
		MaxSubdomains  int                 `yaml:"max_subdomains"`
		MaxHostLength  int                 `yaml:"max_host_length"`
		Weights        URLStructureWeights `yaml:"weights"`
	} `yaml:"url"`

	Keywords struct {
		Terms      []string `yaml:"terms"`
		PerMatch   float64  `yaml:"per_match"`
		Bonus      float64  `yaml:"bonus"`
		BonusAfter int      `yaml:"bonus_after"`
		Cap        float64  `yaml:"cap"`
	} `yaml:"keywords"`

	QR struct {
		HighAmount     float64  `yaml:"high_amount"`
		NoteKeywords   []string `yaml:"note_keywords"`
		Shorteners     []string `yaml:"shorteners"`
		SuspiciousTLDs []string `yaml:"suspicious_tlds"`
		Points         struct {
			HighAmount    int `yaml:"high_amount"`
			RedirectURL   int `yaml:"redirect_url"`
			NoteKeyword   int `yaml:"note_keyword"`
			Shortener     int `yaml:"shortener"`
			SuspiciousTLD int `yaml:"suspicious_tld"`
			IPHost        int `yaml:"ip_host"`
		} `yaml:"points"`
	} `yaml:"qr"`

	Email struct {
		Phrases        []string `yaml:"phrases"`
		PhrasePoints   int      `yaml:"phrase_points"`
		LinkThreshold  int      `yaml:"link_threshold"`
		MaxLinkChecks  int      `yaml:"max_link_checks"`
		FreeProviders  []string `yaml:"free_providers"`
		BusinessTerms  []string `yaml:"business_terms"`
		MaxLocalLength int      `yaml:"max_local_length"`
	} `yaml:"email"`

	Screenshot struct {
		MinTextLength   int      `yaml:"min_text_length"`
		ShortTextLength int      `yaml:"short_text_length"`
		LoginKeywords   []string `yaml:"login_keywords"`
		UrgencyMarkers  []string `yaml:"urgency_markers"`
		Brands          []string `yaml:"brands"`
	} `yaml:"screenshot"`

	Blocklists []string `yaml:"blocklists"`

	Weights map[scoring.Flow]scoring.WeightTable `yaml:"weights"`

	SHA256 string `yaml:"-"`
}

// URLStructureWeights are the additive partial scores of the URL rules.
type URLStructureWeights struct {
	IPHost        float64 `yaml:"ip_host"`
	SuspiciousTLD float64 `yaml:"suspicious_tld"`
	AtSign        float64 `yaml:"at_sign"`
	Subdomains    float64 `yaml:"subdomains"`
	SeparatorRun  float64 `yaml:"separator_run"`
	LongHost      float64 `yaml:"long_host"`
	Lookalike     float64 `yaml:"lookalike"`
	NoHTTPS       float64 `yaml:"no_https"`
}

func (w URLStructureWeights) sum() float64 {
	return w.IPHost + w.SuspiciousTLD + w.AtSign + w.Subdomains + w.SeparatorRun + w.LongHost + w.Lookalike + w.NoHTTPS
}

// DefaultRules returns the embedded rule set.
func DefaultRules() *Rules {
	r, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded rules: %v", err))
	}
	return r
}

// LoadRules reads a rules file, falling back to the embedded set when path is empty.
func LoadRules(path string) (*Rules, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRules(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(raw)
}

// ParseRules decodes and validates a YAML rule set.
func ParseRules(raw []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	r.normalize()
	sum := sha256.Sum256(raw)
	r.SHA256 = hex.EncodeToString(sum[:])
	return &r, nil
}

// FlowWeights returns the built-in weight table of a flow with the file's overrides applied.
func (r *Rules) FlowWeights(flow scoring.Flow) scoring.WeightTable {
	return scoring.DefaultWeights(flow).Merge(r.Weights[flow])
}

func (r *Rules) validate() error {
	if strings.TrimSpace(r.Version) == "" {
		return errors.New("rules: version is required")
	}
	if len(r.Keywords.Terms) == 0 {
		return errors.New("rules: keywords.terms is empty")
	}
	if !positive(r.Keywords.PerMatch) || !positive(r.Keywords.Cap) || r.Keywords.Cap > 1 {
		return errors.New("rules: keyword per_match and cap must be in (0,1]")
	}
	if !positive(r.URL.Weights.sum()) {
		return errors.New("rules: url weights are all zero")
	}
	if !positive(r.QR.HighAmount) {
		return errors.New("rules: qr.high_amount must be positive")
	}
	if len(r.Email.Phrases) == 0 {
		return errors.New("rules: email.phrases is empty")
	}
	if len(r.Screenshot.LoginKeywords) == 0 || len(r.Screenshot.Brands) == 0 {
		return errors.New("rules: screenshot keywords and brands are required")
	}
	for flow, table := range r.Weights {
		if !flow.Valid() {
			return fmt.Errorf("rules: unknown flow %q in weights", flow)
		}
		for source, w := range table {
			if w != 0 && !positive(w) {
				return fmt.Errorf("rules: weight for %s/%s must be a finite non-negative number, got %v", flow, source, w)
			}
		}
	}
	return nil
}

// positive rejects NaN and infinities along with non-positive values.
func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 1)
}

func (r *Rules) normalize() {
	lower := func(list []string) []string {
		out := make([]string, 0, len(list))
		for _, s := range list {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	r.URL.SuspiciousTLDs = lower(r.URL.SuspiciousTLDs)
	r.Keywords.Terms = lower(r.Keywords.Terms)
	r.QR.NoteKeywords = lower(r.QR.NoteKeywords)
	r.QR.Shorteners = lower(r.QR.Shorteners)
	r.QR.SuspiciousTLDs = lower(r.QR.SuspiciousTLDs)
	r.Email.Phrases = lower(r.Email.Phrases)
	r.Email.FreeProviders = lower(r.Email.FreeProviders)
	r.Email.BusinessTerms = lower(r.Email.BusinessTerms)
	r.Screenshot.LoginKeywords = lower(r.Screenshot.LoginKeywords)
	r.Screenshot.UrgencyMarkers = lower(r.Screenshot.UrgencyMarkers)
	r.Screenshot.Brands = lower(r.Screenshot.Brands)
	r.Blocklists = lower(r.Blocklists)

	if r.URL.MaxSubdomains <= 0 {
		r.URL.MaxSubdomains = 2
	}
	if r.URL.MaxHostLength <= 0 {
		r.URL.MaxHostLength = 50
	}
	if r.Email.LinkThreshold <= 0 {
		r.Email.LinkThreshold = 3
	}
	if r.Email.MaxLinkChecks <= 0 {
		r.Email.MaxLinkChecks = 10
	}
	if r.Email.MaxLocalLength <= 0 {
		r.Email.MaxLocalLength = 25
	}
	if r.Screenshot.MinTextLength <= 0 {
		r.Screenshot.MinTextLength = 30
	}
	if r.Screenshot.ShortTextLength <= 0 {
		r.Screenshot.ShortTextLength = 100
	}
}
