package vetting

import (
	"context"
	"fmt"
	"strings"

	"phishguard/scoring"
)

// KeywordMatch looks for phishing terms anywhere in the URL.
type KeywordMatch struct {
	Rules *Rules
}

func (s *KeywordMatch) Name() string { return scoring.SourceKeywordMatch }

func (s *KeywordMatch) Analyze(_ context.Context, a Artifact) (scoring.Signal, error) {
	if a.URL == "" {
		return scoring.Signal{}, ErrNotApplicable
	}
	return MatchKeywords(s.Rules, a.URL), nil
}

// KeywordDetails lists the matched terms.
type KeywordDetails struct {
	Keywords []string `json:"keywords"`
}

// MatchKeywords runs a case-insensitive substring match against the keyword list.
func MatchKeywords(rules *Rules, text string) scoring.Signal {
	k := rules.Keywords
	lower := strings.ToLower(text)

	found := []string{}
	for _, term := range k.Terms {
		if strings.Contains(lower, term) {
			found = append(found, term)
		}
	}

	score := float64(len(found)) * k.PerMatch
	if len(found) > k.BonusAfter {
		score += k.Bonus
	}
	if score > k.Cap {
		score = k.Cap
	}

	sig := scoring.Signal{
		Source:     scoring.SourceKeywordMatch,
		Score:      score,
		Confidence: 1,
		Details:    KeywordDetails{Keywords: found},
	}
	for _, term := range found {
		sig.Factors = append(sig.Factors, fmt.Sprintf("Contains phishing keyword: %q", term))
	}
	return sig
}
