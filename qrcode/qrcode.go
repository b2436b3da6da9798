// Package qrcode decodes QR images and classifies their payloads.
package qrcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	_ "golang.org/x/image/webp"
)

// ErrNoCode means the image holds no readable QR code.
var ErrNoCode = errors.New("no QR code found in the image")

// Payload types.
const (
	TypeURL   = "URL"
	TypeUPI   = "UPI_PAYMENT"
	TypePhone = "PHONE"
	TypeEmail = "EMAIL"
	TypeWiFi  = "WIFI"
	TypeText  = "TEXT"
)

var urlInText = regexp.MustCompile(`https?://\S+`)

// Decoded is a successfully read code.
type Decoded struct {
	Data        string `json:"data"`
	Type        string `json:"type"`
	ImageWidth  int    `json:"imageWidth"`
	ImageHeight int    `json:"imageHeight"`
}

// DecodeBytes decodes a PNG, JPEG, GIF or WebP image and reads the QR code in it.
func DecodeBytes(raw []byte) (*Decoded, image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("decode image: %w", err)
	}
	d, err := Decode(img)
	return d, img, err
}

// Decode reads the QR code in img.
func Decode(img image.Image) (*Decoded, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	res, err := zxqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	text := res.GetText()
	if text == "" {
		return nil, ErrNoCode
	}
	b := img.Bounds()
	return &Decoded{
		Data:        text,
		Type:        DetectType(text),
		ImageWidth:  b.Dx(),
		ImageHeight: b.Dy(),
	}, nil
}

// IsURL reports whether s is an absolute http(s) URL.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// DetectType classifies a payload.
func DetectType(data string) string {
	switch {
	case IsURL(data):
		return TypeURL
	case strings.HasPrefix(data, "upi://"):
		return TypeUPI
	case strings.HasPrefix(data, "tel:"):
		return TypePhone
	case strings.HasPrefix(data, "mailto:"):
		return TypeEmail
	case strings.HasPrefix(data, "WIFI:"):
		return TypeWiFi
	}
	return TypeText
}

// ExtractURL returns the web address a payload leads to: the payload
// itself, the url parameter of a UPI intent, or the first link in text.
func ExtractURL(data string) string {
	if IsURL(data) {
		return data
	}
	if upi := ParseUPI(data); upi != nil {
		if IsURL(upi.URL) {
			return upi.URL
		}
		return ""
	}
	return urlInText.FindString(data)
}

// UPI is a parsed upi://pay intent.
type UPI struct {
	Payee         string            `json:"payee"`
	PayeeName     string            `json:"payeeName,omitempty"`
	Amount        string            `json:"amount"`
	Note          string            `json:"note"`
	Currency      string            `json:"currency"`
	MerchantCode  string            `json:"merchantCode"`
	TransactionID string            `json:"transactionId"`
	URL           string            `json:"url,omitempty"`
	RawParams     map[string]string `json:"rawParams"`
}

// AmountValue returns the numeric amount, or 0 when absent or malformed.
func (u *UPI) AmountValue() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(u.Amount), 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseUPI parses a UPI intent. It returns nil for anything else.
func ParseUPI(data string) *UPI {
	if !strings.HasPrefix(data, "upi://") {
		return nil
	}
	params := map[string]string{}
	if _, query, ok := strings.Cut(data, "?"); ok {
		for _, pair := range strings.Split(query, "&") {
			k, v, _ := strings.Cut(pair, "=")
			if k == "" {
				continue
			}
			if dec, err := url.QueryUnescape(v); err == nil {
				v = dec
			}
			params[k] = v
		}
	}

	u := &UPI{
		Payee:         first(params["pa"], params["pn"], "Unknown"),
		PayeeName:     params["pn"],
		Amount:        first(params["am"], "Not specified"),
		Note:          first(params["tn"], params["tr"]),
		Currency:      first(params["cu"], "INR"),
		MerchantCode:  params["mc"],
		TransactionID: params["tid"],
		URL:           params["url"],
		RawParams:     params,
	}
	return u
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
