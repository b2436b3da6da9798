package scoring

import "testing"

func TestMapToLabel(t *testing.T) {
	tests := []struct {
		score int
		vocab Vocabulary
		label string
		band  Band
	}{
		{0, ThreeBand, LabelLegit, BandMinimal},
		{29, ThreeBand, LabelLegit, BandWatch},
		{30, ThreeBand, LabelSuspicious, BandGuarded},
		{69, ThreeBand, LabelSuspicious, BandElevated},
		{70, ThreeBand, LabelPhishing, BandSevere},
		{100, ThreeBand, LabelPhishing, BandSevere},

		{19, FourBand, LabelLow, BandMinimal},
		{20, FourBand, LabelLowMedium, BandWatch},
		{39, FourBand, LabelLowMedium, BandGuarded},
		{40, FourBand, LabelMedium, BandElevated},
		{60, FourBand, LabelMedium, BandElevated},
		{70, FourBand, LabelHigh, BandSevere},

		{-5, FourBand, LabelLow, BandMinimal},
	}

	for _, tt := range tests {
		t.Run(tt.vocab.String()+"/"+tt.label, func(t *testing.T) {
			m := MapToLabel(tt.score, tt.vocab)
			if m.Label != tt.label {
				t.Errorf("MapToLabel(%d).Label = %q, want %q", tt.score, m.Label, tt.label)
			}
			if m.Band != tt.band {
				t.Errorf("MapToLabel(%d).Band = %q, want %q", tt.score, m.Band, tt.band)
			}
			if m.Action == "" {
				t.Errorf("MapToLabel(%d).Action is empty", tt.score)
			}
			if again := MapToLabel(tt.score, tt.vocab); again != m {
				t.Errorf("MapToLabel(%d) not idempotent: %+v vs %+v", tt.score, m, again)
			}
		})
	}
}

func TestMapToLabel_VocabulariesShareBands(t *testing.T) {
	for score := 0; score <= MaxScore; score++ {
		three := MapToLabel(score, ThreeBand)
		four := MapToLabel(score, FourBand)
		if three.Band != four.Band {
			t.Fatalf("score %d: bands differ %q vs %q", score, three.Band, four.Band)
		}
	}
}

func TestLabels(t *testing.T) {
	for _, v := range []Vocabulary{ThreeBand, FourBand} {
		for _, l := range Labels(v) {
			if !IsLabel(l) {
				t.Errorf("IsLabel(%q) = false, want true", l)
			}
		}
	}
	if IsLabel("Unknown") {
		t.Error("IsLabel(Unknown) = true, want false")
	}
}

func TestLabelFor(t *testing.T) {
	for score := 0; score <= MaxScore; score++ {
		for _, v := range []Vocabulary{ThreeBand, FourBand} {
			m := MapToLabel(score, v)
			if got := LabelFor(m.Band, v); got != m.Label {
				t.Errorf("LabelFor(%s, %s) = %q, want %q", m.Band, v, got, m.Label)
			}
		}
	}
	if got := LabelFor("unknown", FourBand); got != LabelLow {
		t.Errorf("LabelFor(unknown) = %q, want %q", got, LabelLow)
	}
}
