package scoring

import (
	"fmt"
	"math"
)

const (
	MaxScore = 100

	// DegradedFloor is the lowest score reported when a scan could not be
	// fully assessed. It sits inside the Suspicious / MEDIUM band.
	DegradedFloor = 50

	FactorNoDetector = "Unable to fully analyze: no detector produced a result"
)

// Contribution shows how much one source added to the total.
type Contribution struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
	Points float64 `json:"points"`
}

// Verdict is the aggregated assessment of one scan.
type Verdict struct {
	TotalScore  float64        `json:"total_score"` // 0..100
	Score       int            `json:"score"`
	Band        Band           `json:"band"`
	Label       string         `json:"label"`
	Action      string         `json:"action"`
	Confidence  float64        `json:"confidence"`
	Factors     []string       `json:"factors"`
	ThreatTypes []string       `json:"threat_types"`
	Unavailable []string       `json:"unavailable,omitempty"`
	Degraded    bool           `json:"degraded,omitempty"`
	Breakdown   []Contribution `json:"breakdown,omitempty"`
}

// Aggregator combines source outcomes using a fixed weight table.
type Aggregator struct {
	Weights    WeightTable
	Vocabulary Vocabulary
}

// NewAggregator returns an aggregator with the built-in weights of a flow.
func NewAggregator(flow Flow) *Aggregator {
	return &Aggregator{Weights: DefaultWeights(flow), Vocabulary: flow.Vocabulary()}
}

// Aggregate sums weighted scores in input order, merges factors and threat
// types with first-seen dedup and clamps the total to [0,100]. Absent
// sources never change another source's weight.
func (a *Aggregator) Aggregate(outcomes []Outcome) Verdict {
	var (
		total     float64
		available int
		factors   = newOrderedSet()
		threats   = newOrderedSet()
		v         Verdict
	)

	for _, o := range outcomes {
		if o.Unavailable != nil {
			v.Unavailable = append(v.Unavailable, o.Unavailable.Source)
			factors.add(fmt.Sprintf("%s unavailable: %s", o.Unavailable.Source, o.Unavailable.Reason))
			continue
		}
		if o.Signal == nil {
			continue
		}
		available++

		sig := o.Signal
		weight := a.Weights.For(*sig)
		points := clampUnit(sig.Score) * weight * MaxScore
		total += points

		v.Breakdown = append(v.Breakdown, Contribution{
			Source: sig.Source,
			Score:  sig.Score,
			Weight: weight,
			Points: round2(points),
		})
		factors.add(sig.Factors...)
		threats.add(sig.ThreatTypes...)
	}

	v.TotalScore = clampScore(total)
	v.Factors = factors.items
	v.ThreatTypes = threats.items

	if available == 0 {
		v = a.Degrade(v, FactorNoDetector)
		return v
	}

	a.label(&v)
	return v
}

// Degrade lifts a verdict into the Suspicious band and records why. It is
// used when no detector ran and when a flow fails internally, so an
// incomplete assessment is never reported as safe.
func (a *Aggregator) Degrade(v Verdict, reason string) Verdict {
	if v.TotalScore < DegradedFloor {
		v.TotalScore = DegradedFloor
	}
	v.Degraded = true
	if reason != "" {
		set := newOrderedSet()
		set.add(v.Factors...)
		set.add(reason)
		v.Factors = set.items
	}
	if v.ThreatTypes == nil {
		v.ThreatTypes = []string{}
	}
	a.label(&v)
	return v
}

func (a *Aggregator) label(v *Verdict) {
	v.Score = int(math.Round(v.TotalScore))
	m := MapToLabel(v.Score, a.Vocabulary)
	v.Band = m.Band
	v.Label = m.Label
	v.Action = m.Action
	v.Confidence = confidence(v.Score, v.Label)
}

// confidence is the certainty of the label: how safe for a safe label,
// how risky otherwise.
func confidence(score int, label string) float64 {
	c := float64(score) / MaxScore
	if label == LabelLegit || label == LabelLow {
		c = 1 - c
	}
	return round2(c)
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > MaxScore {
		return MaxScore
	}
	return round2(v)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: map[string]struct{}{}, items: []string{}}
}

func (s *orderedSet) add(values ...string) {
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := s.seen[v]; ok {
			continue
		}
		s.seen[v] = struct{}{}
		s.items = append(s.items, v)
	}
}
