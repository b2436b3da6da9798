package vetting

import (
	"image"
	"image/color"
)

// ColorCounts tallies sampled pixels by dominant colour.
type ColorCounts struct {
	Blue   int `json:"blue"`
	Red    int `json:"red"`
	Green  int `json:"green"`
	White  int `json:"white"`
	Black  int `json:"black"`
	Yellow int `json:"yellow"`
}

// VisualAnalysis is the OCR-independent layout estimate of a screenshot.
type VisualAnalysis struct {
	Width               int         `json:"width"`
	Height              int         `json:"height"`
	Colors              ColorCounts `json:"colorCounts"`
	HasInputFields      bool        `json:"hasInputFields"`
	HasSuspiciousColors bool        `json:"hasSuspiciousColors"`
	HasFormLayout       bool        `json:"hasFormLayout"`
	InputFieldCount     int         `json:"inputFieldCount"`
	ButtonLikeRegions   int         `json:"buttonLikeRegions"`
	HighContrast        int         `json:"highContrastRegions"`
	VisualScore         int         `json:"visualPhishingScore"`
}

const (
	colorSampleStep = 10
	lineSampleStep  = 5
	minLineLength   = 100
	maxVisualScore  = 85
)

// AnalyzeVisual samples the image for form-like structure and alarm colours.
func AnalyzeVisual(img image.Image) VisualAnalysis {
	b := img.Bounds()
	v := VisualAnalysis{Width: b.Dx(), Height: b.Dy()}
	if v.Width == 0 || v.Height == 0 {
		return v
	}

	for y := b.Min.Y; y < b.Max.Y; y += colorSampleStep {
		for x := b.Min.X; x < b.Max.X; x += colorSampleStep {
			r, g, bl := rgb8(img.At(x, y))
			switch {
			case r < 50 && g < 50 && bl > 150:
				v.Colors.Blue++
			case r > 150 && g < 50 && bl < 50:
				v.Colors.Red++
			case r < 50 && g > 150 && bl < 50:
				v.Colors.Green++
			}
			if r > 200 && g > 200 && bl > 200 {
				v.Colors.White++
			}
			if r < 50 && g < 50 && bl < 50 {
				v.Colors.Black++
			}
			if r > 200 && g > 200 && bl < 100 {
				v.Colors.Yellow++
			}
			brightness := float64(r+g+bl) / 3
			if brightness-128 > 100 || 128-brightness > 100 {
				v.HighContrast++
			}
		}
	}

	// Long runs of near-identical colour along a row look like input boxes or buttons.
	lines := 0
	for y := b.Min.Y; y < b.Max.Y; y += lineSampleStep {
		start := b.Min.X
		prev := packedRGBA(img.At(start, y))
		for x := b.Min.X + lineSampleStep; x < b.Max.X; x += lineSampleStep {
			cur := packedRGBA(img.At(x, y))
			if abs64(cur-prev) > 1000 {
				if x-start > minLineLength {
					lines++
				}
				start = x
				prev = cur
			}
		}
	}

	v.InputFieldCount = min(lines/3, 10)
	v.ButtonLikeRegions = v.HighContrast / 1000

	total := float64(v.Width*v.Height) / 100
	redRatio := float64(v.Colors.Red) / total
	yellowRatio := float64(v.Colors.Yellow) / total
	blueRatio := float64(v.Colors.Blue) / total

	v.HasInputFields = v.InputFieldCount >= 2 || v.ButtonLikeRegions >= 3
	v.HasSuspiciousColors = redRatio+yellowRatio > 0.02
	v.HasFormLayout = v.InputFieldCount >= 3 && v.ButtonLikeRegions >= 1

	score := 0
	if v.InputFieldCount >= 3 {
		score += 35
	}
	if v.ButtonLikeRegions >= 2 {
		score += 25
	}
	if v.HasFormLayout {
		score += 20
	}
	if redRatio > 0.03 || yellowRatio > 0.03 {
		score += 15
	}
	if blueRatio > 0.15 {
		score += 10
	}
	if v.HighContrast > 500 {
		score += 10
	}
	v.VisualScore = min(score, maxVisualScore)
	return v
}

func rgb8(c color.Color) (int, int, int) {
	r, g, b, _ := c.RGBA()
	return int(r >> 8), int(g >> 8), int(b >> 8)
}

// packedRGBA packs a colour as 0xRRGGBBAA.
func packedRGBA(c color.Color) int64 {
	r, g, b, a := c.RGBA()
	return int64(r>>8)<<24 | int64(g>>8)<<16 | int64(b>>8)<<8 | int64(a>>8)
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
