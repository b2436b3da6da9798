package vetting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/image/draw"
)

// TextRecognizer extracts text from an image.
type TextRecognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// ErrOCRUnavailable means no OCR engine is installed.
var ErrOCRUnavailable = errors.New("ocr engine not available")

// Tesseract shells out to the tesseract CLI.
type Tesseract struct {
	Path    string // defaults to "tesseract" on PATH
	Timeout time.Duration
}

func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	bin := t.Path
	if bin == "" {
		bin = "tesseract"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return "", ErrOCRUnavailable
	}
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	f, err := os.CreateTemp("", "phishguard-ocr-*.png")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	if err := png.Encode(f, PrepareForOCR(img)); err != nil {
		f.Close()
		return "", fmt.Errorf("ocr: encode: %w", err)
	}
	f.Close()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, f.Name(), "stdout", "-l", "eng", "--psm", "3", "-c", "preserve_interword_spaces=1")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ocr: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

const ocrTargetWidth = 2000

// PrepareForOCR scales the image to a fixed width, converts it to grey and
// stretches its contrast.
func PrepareForOCR(src image.Image) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return image.NewGray(image.Rect(0, 0, 0, 0))
	}
	tw := ocrTargetWidth
	th := h * tw / w
	if th == 0 {
		th = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, b, draw.Src, nil)

	gray := image.NewGray(scaled.Bounds())
	lo, hi := uint8(255), uint8(0)
	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			g := color.GrayModel.Convert(scaled.At(x, y)).(color.Gray).Y
			gray.SetGray(x, y, color.Gray{Y: g})
			lo = min(lo, g)
			hi = max(hi, g)
		}
	}
	if hi <= lo {
		return gray
	}
	span := float64(hi - lo)
	for i, p := range gray.Pix {
		gray.Pix[i] = uint8(float64(p-lo) * 255 / span)
	}
	return gray
}
