package scoring

// Band is the canonical risk tier on the 0-100 scale. Every presentation
// vocabulary is derived from it through the tier table below.
type Band string

const (
	BandMinimal  Band = "minimal"
	BandWatch    Band = "watch"
	BandGuarded  Band = "guarded"
	BandElevated Band = "elevated"
	BandSevere   Band = "severe"
)

// Vocabulary selects the label set a flow presents.
type Vocabulary int

const (
	// ThreeBand is Legit / Suspicious / Phishing (URL scans).
	ThreeBand Vocabulary = iota
	// FourBand is LOW / LOW-MEDIUM / MEDIUM / HIGH (QR, email, screenshot).
	FourBand
)

func (v Vocabulary) String() string {
	if v == FourBand {
		return "four-band"
	}
	return "three-band"
}

const (
	LabelLegit      = "Legit"
	LabelSuspicious = "Suspicious"
	LabelPhishing   = "Phishing"

	LabelLow       = "LOW"
	LabelLowMedium = "LOW-MEDIUM"
	LabelMedium    = "MEDIUM"
	LabelHigh      = "HIGH"
)

const (
	ActionBlock   = "DO NOT PROCEED - This is likely a scam"
	ActionVerify  = "CAUTION - Verify before proceeding"
	ActionCaution = "Exercise caution"
	ActionProceed = "Safe to proceed"
)

type tier struct {
	Min    int
	Band   Band
	Labels [2]string // indexed by Vocabulary
}

// tiers is ordered from highest to lowest. Lower bounds are inclusive, so a
// score sitting on a breakpoint lands in the riskier band.
var tiers = []tier{
	{Min: 70, Band: BandSevere, Labels: [2]string{LabelPhishing, LabelHigh}},
	{Min: 40, Band: BandElevated, Labels: [2]string{LabelSuspicious, LabelMedium}},
	{Min: 30, Band: BandGuarded, Labels: [2]string{LabelSuspicious, LabelLowMedium}},
	{Min: 20, Band: BandWatch, Labels: [2]string{LabelLegit, LabelLowMedium}},
	{Min: 0, Band: BandMinimal, Labels: [2]string{LabelLegit, LabelLow}},
}

var actions = map[string]string{
	LabelPhishing:   ActionBlock,
	LabelHigh:       ActionBlock,
	LabelSuspicious: ActionVerify,
	LabelMedium:     ActionVerify,
	LabelLowMedium:  ActionCaution,
	LabelLegit:      ActionProceed,
	LabelLow:        ActionProceed,
}

// Mapping is the presentation of one score in one vocabulary.
type Mapping struct {
	Band   Band   `json:"band"`
	Label  string `json:"label"`
	Action string `json:"action"`
}

// MapToLabel converts a 0-100 score into its band, label and action.
func MapToLabel(score int, v Vocabulary) Mapping {
	if v != FourBand {
		v = ThreeBand
	}
	t := tierFor(score)
	label := t.Labels[v]
	return Mapping{Band: t.Band, Label: label, Action: actions[label]}
}

// BandFor returns the canonical band for a score.
func BandFor(score int) Band {
	return tierFor(score).Band
}

// LabelFor returns the label a band carries in a vocabulary. Unknown bands
// read as minimal.
func LabelFor(b Band, v Vocabulary) string {
	if v != FourBand {
		v = ThreeBand
	}
	for _, t := range tiers {
		if t.Band == b {
			return t.Labels[v]
		}
	}
	return tiers[len(tiers)-1].Labels[v]
}

func tierFor(score int) tier {
	for _, t := range tiers {
		if score >= t.Min {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

// Labels lists the closed label set of a vocabulary, safest first.
func Labels(v Vocabulary) []string {
	if v == FourBand {
		return []string{LabelLow, LabelLowMedium, LabelMedium, LabelHigh}
	}
	return []string{LabelLegit, LabelSuspicious, LabelPhishing}
}

// IsLabel reports whether s belongs to any vocabulary.
func IsLabel(s string) bool {
	_, ok := actions[s]
	return ok
}
