package archive

import (
	"strings"
	"testing"
)

func TestKey(t *testing.T) {
	tests := []struct {
		kind, contentType, filename string
		wantExt                     string
	}{
		{"qr", "image/png", "code.jpg", ".png"},
		{"screenshot", "IMAGE/JPEG", "", ".jpg"},
		{"qr", "application/octet-stream", "scan.WEBP", ".webp"},
		{"qr", "", "", ".bin"},
	}
	for _, tt := range tests {
		t.Run(tt.kind+tt.contentType, func(t *testing.T) {
			key := Key(tt.kind, tt.contentType, tt.filename)
			if !strings.HasPrefix(key, tt.kind+"/") {
				t.Errorf("Key = %q, want prefix %q", key, tt.kind+"/")
			}
			if !strings.HasSuffix(key, tt.wantExt) {
				t.Errorf("Key = %q, want suffix %q", key, tt.wantExt)
			}
		})
	}
}

func TestKeyIsUnique(t *testing.T) {
	a := Key("qr", "image/png", "")
	b := Key("qr", "image/png", "")
	if a == b {
		t.Errorf("Key returned %q twice", a)
	}
}
