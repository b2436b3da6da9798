// Package store persists scan records.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"phishguard/scoring"
)

// ErrNotFound is returned for unknown record ids.
var ErrNotFound = errors.New("scan record not found")

// Explanation is the plain-language summary saved with a record.
type Explanation struct {
	Text        string   `json:"explanation"`
	GeneratedBy string   `json:"generated_by"`
	Model       string   `json:"model,omitempty"`
	Error       string   `json:"error,omitempty"`
	SafetyTips  []string `json:"safety_tips"`
}

// Record is one scan invocation. Records are never updated.
type Record struct {
	ID             string          `json:"id"`
	Kind           scoring.Flow    `json:"kind"`
	Input          string          `json:"input"`
	Verdict        scoring.Verdict `json:"verdict"`
	Explanation    *Explanation    `json:"explanation,omitempty"`
	Details        json.RawMessage `json:"details,omitempty"`
	ArtifactKey    string          `json:"artifact_key,omitempty"`
	ScanDurationMs int64           `json:"scan_duration_ms"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Filter narrows Find. Zero fields match everything.
type Filter struct {
	Kind  scoring.Flow
	Label string
	Since time.Time
}

// Page selects a slice of the newest-first listing. Page is 1-based.
type Page struct {
	Limit int
	Page  int
}

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Normalize fills defaults and clamps the limit and page.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Page <= 0 {
		p.Page = 1
	}
	// Offset must stay representable for huge page numbers.
	p.Page = min(p.Page, math.MaxInt/p.Limit)
	return p
}

// Offset is the number of records skipped.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// FactorCount is one entry of the top factors list.
type FactorCount struct {
	Factor string `json:"factor"`
	Count  int    `json:"count"`
}

// Stats summarises the history.
type Stats struct {
	Total         int                `json:"total"`
	ByLabel       map[string]int     `json:"by_label"`
	Percentages   map[string]float64 `json:"percentages"`
	LastWeek      int                `json:"last_7_days"`
	AvgDurationMs float64            `json:"avg_duration_ms"`
	TopFactors    []FactorCount      `json:"top_factors"`
}

const DefaultTopFactors = 5

// Store is implemented by the memory, SQLite and Postgres backends.
type Store interface {
	Save(ctx context.Context, r *Record) (string, error)
	Get(ctx context.Context, id string) (*Record, error)
	Find(ctx context.Context, f Filter, p Page) ([]Record, int, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	Stats(ctx context.Context, topN int) (Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

// Prepare assigns an id and timestamp to a record about to be saved.
func Prepare(r *Record, newID func() string) {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Verdict.Factors == nil {
		r.Verdict.Factors = []string{}
	}
	if r.Verdict.ThreatTypes == nil {
		r.Verdict.ThreatTypes = []string{}
	}
}

// CountsToStats fills the derived fields of s from its label counts.
func CountsToStats(s *Stats) {
	s.Percentages = make(map[string]float64, len(s.ByLabel))
	if s.Total == 0 {
		return
	}
	for label, n := range s.ByLabel {
		s.Percentages[label] = math.Round(float64(n)*10000/float64(s.Total)) / 100
	}
	s.AvgDurationMs = math.Round(s.AvgDurationMs*100) / 100
}

// IsRiskFactor reports whether a factor describes risk rather than a
// source that could not answer.
func IsRiskFactor(f string) bool {
	return !strings.Contains(f, " unavailable: ") && f != scoring.FactorNoDetector
}

// TopN normalises the top factors argument.
func TopN(n int) int {
	if n <= 0 {
		return DefaultTopFactors
	}
	return n
}
