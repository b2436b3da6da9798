package scoring

import "math"

// Signal is one detector's opinion about a single artifact.
type Signal struct {
	Source      string   `json:"source"`
	Score       float64  `json:"score"`            // 0..1
	Weight      float64  `json:"weight,omitempty"` // default weight, the flow table wins
	Factors     []string `json:"factors,omitempty"`
	ThreatTypes []string `json:"threat_types,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
	Details     any      `json:"details,omitempty"`
}

// Unavailability records why a source produced nothing.
type Unavailability struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// Outcome holds exactly one of Signal or Unavailable.
type Outcome struct {
	Signal      *Signal
	Unavailable *Unavailability
}

// Available wraps a signal, clamping its score into [0,1].
func Available(sig Signal) Outcome {
	sig.Score = clampUnit(sig.Score)
	return Outcome{Signal: &sig}
}

// Unavailable marks a source that could not run or failed at call time.
func Unavailable(source, reason string) Outcome {
	if reason == "" {
		reason = "no result"
	}
	return Outcome{Unavailable: &Unavailability{Source: source, Reason: reason}}
}

// OK reports whether the outcome carries a signal.
func (o Outcome) OK() bool {
	return o.Signal != nil
}

// Source returns the name of the source behind the outcome.
func (o Outcome) Source() string {
	switch {
	case o.Signal != nil:
		return o.Signal.Source
	case o.Unavailable != nil:
		return o.Unavailable.Source
	}
	return ""
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
