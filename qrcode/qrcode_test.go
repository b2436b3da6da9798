package qrcode

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"reflect"
	"testing"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeBytes(t *testing.T) {
	const payload = "upi://pay?pa=shop@okaxis&pn=Shop&am=250"
	m, err := zxqr.NewQRCodeWriter().Encode(payload, gozxing.BarcodeFormat_QR_CODE, 240, 240, nil)
	if err != nil {
		t.Fatal(err)
	}

	d, img, err := DecodeBytes(encodePNG(t, m))
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if d.Data != payload || d.Type != TypeUPI {
		t.Errorf("decoded = %+v", d)
	}
	if d.ImageWidth != 240 || d.ImageHeight != 240 || img == nil {
		t.Errorf("size = %dx%d", d.ImageWidth, d.ImageHeight)
	}
}

func TestDecodeNoCode(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range blank.Pix {
		blank.Pix[i] = 0xff
	}
	if _, _, err := DecodeBytes(encodePNG(t, blank)); !errors.Is(err, ErrNoCode) {
		t.Errorf("blank image err = %v, want ErrNoCode", err)
	}
	_, _, err := DecodeBytes([]byte("not an image"))
	if err == nil || errors.Is(err, ErrNoCode) {
		t.Errorf("garbage err = %v, want a decode error", err)
	}
}

func TestDetectType(t *testing.T) {
	tests := map[string]string{
		"https://example.com":          TypeURL,
		"upi://pay?pa=a@b":             TypeUPI,
		"tel:+911234567890":            TypePhone,
		"mailto:a@example.com":         TypeEmail,
		"WIFI:S:home;T:WPA;P:secret;;": TypeWiFi,
		"just some text":               TypeText,
		"example.com":                  TypeText,
	}
	for in, want := range tests {
		if got := DetectType(in); got != want {
			t.Errorf("DetectType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractURL(t *testing.T) {
	tests := map[string]string{
		"https://example.com/a":                     "https://example.com/a",
		"upi://pay?pa=a@b&url=https://evil.example": "https://evil.example",
		"upi://pay?pa=a@b&url=not-a-url":            "",
		"Scan me: http://x.example/promo now":       "http://x.example/promo",
		"nothing":                                   "",
	}
	for in, want := range tests {
		if got := ExtractURL(in); got != want {
			t.Errorf("ExtractURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseUPI(t *testing.T) {
	if ParseUPI("https://example.com") != nil {
		t.Error("ParseUPI of a web URL is not nil")
	}

	u := ParseUPI("upi://pay?pa=merchant@upi&pn=Big%20Shop&am=1500.50&tn=Order%2042&mc=5411&tid=T1")
	want := &UPI{
		Payee:         "merchant@upi",
		PayeeName:     "Big Shop",
		Amount:        "1500.50",
		Note:          "Order 42",
		Currency:      "INR",
		MerchantCode:  "5411",
		TransactionID: "T1",
		RawParams: map[string]string{
			"pa": "merchant@upi", "pn": "Big Shop", "am": "1500.50",
			"tn": "Order 42", "mc": "5411", "tid": "T1",
		},
	}
	if !reflect.DeepEqual(u, want) {
		t.Errorf("ParseUPI = %+v, want %+v", u, want)
	}
	if u.AmountValue() != 1500.50 {
		t.Errorf("AmountValue = %v", u.AmountValue())
	}

	bare := ParseUPI("upi://pay")
	if bare.Payee != "Unknown" || bare.Amount != "Not specified" || bare.Currency != "INR" {
		t.Errorf("defaults = %+v", bare)
	}
	if bare.AmountValue() != 0 {
		t.Errorf("AmountValue = %v, want 0", bare.AmountValue())
	}
}
