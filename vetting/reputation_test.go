package vetting

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestSafeBrowsing(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		var body struct {
			ThreatInfo struct {
				ThreatEntries []struct {
					URL string `json:"url"`
				} `json:"threatEntries"`
			} `json:"threatInfo"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.ThreatInfo.ThreatEntries[0].URL == "http://bad.example/" {
			w.Write([]byte(`{"matches":[{"threatType":"SOCIAL_ENGINEERING"},{"threatType":"MALWARE"}]}`))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	sb := &SafeBrowsing{APIKey: "k1", BaseURL: srv.URL}

	sig, err := sb.Analyze(context.Background(), Artifact{URL: "http://bad.example/"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if gotKey != "k1" {
		t.Errorf("key = %q, want k1", gotKey)
	}
	if sig.Score != 0.9 {
		t.Errorf("score = %v, want 0.9", sig.Score)
	}
	if want := []string{"PHISHING", "MALWARE"}; !reflect.DeepEqual(sig.ThreatTypes, want) {
		t.Errorf("threat types = %v, want %v", sig.ThreatTypes, want)
	}

	sig, err = sb.Analyze(context.Background(), Artifact{URL: "https://good.example/"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if sig.Score != 0 || len(sig.Factors) != 0 {
		t.Errorf("clean url signal = %+v", sig)
	}

	if _, err := (&SafeBrowsing{}).Analyze(context.Background(), Artifact{URL: "https://x.example"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("no key err = %v, want ErrNotConfigured", err)
	}
}

func TestSafeBrowsingStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := (&SafeBrowsing{APIKey: "k", BaseURL: srv.URL}).Analyze(context.Background(), Artifact{URL: "https://x.example"})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests {
		t.Fatalf("err = %v, want StatusError 429", err)
	}
	if got := describeFailure(context.Background(), err); got != "rate limited" {
		t.Errorf("describeFailure = %q, want rate limited", got)
	}
}

func TestVirusTotal(t *testing.T) {
	known := "https://known.example/"
	knownID := base64.RawURLEncoding.EncodeToString([]byte(known))
	var submitted string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-apikey") != "vt" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/urls/"+knownID:
			w.Write([]byte(`{"data":{"attributes":{"last_analysis_stats":{"malicious":3,"suspicious":1,"harmless":10,"undetected":6}}}}`))
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/urls":
			r.ParseForm()
			submitted = r.PostForm.Get("url")
			w.Write([]byte(`{"data":{"id":"u-1"}}`))
		}
	}))
	defer srv.Close()

	vt := &VirusTotal{APIKey: "vt", BaseURL: srv.URL}

	sig, err := vt.Analyze(context.Background(), Artifact{URL: known})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	// 4 of 20 engines flagged: 2 * 4/20.
	if sig.Score != 0.4 {
		t.Errorf("score = %v, want 0.4", sig.Score)
	}
	if want := []string{"Detected by 4/20 engines (VirusTotal)"}; !reflect.DeepEqual(sig.Factors, want) {
		t.Errorf("factors = %v, want %v", sig.Factors, want)
	}

	_, err = vt.Analyze(context.Background(), Artifact{URL: "https://new.example/"})
	if !errors.Is(err, ErrPending) {
		t.Errorf("unknown url err = %v, want ErrPending", err)
	}
	if submitted != "https://new.example/" {
		t.Errorf("submitted = %q", submitted)
	}
}

func TestSpamhaus(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"domain":"example.com","score":45,"abused":true}`))
	}))
	defer srv.Close()

	s := &Spamhaus{APIKey: "sh", BaseURL: srv.URL}
	sig, err := s.Analyze(context.Background(), Artifact{URL: "https://login.example.com/x"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if gotPath != "/byobject/domain/example.com/overview" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sh" {
		t.Errorf("auth = %q", gotAuth)
	}
	if sig.Score != 0.45 {
		t.Errorf("score = %v, want 0.45", sig.Score)
	}
	if want := []string{"High Spamhaus reputation risk (45)"}; !reflect.DeepEqual(sig.Factors, want) {
		t.Errorf("factors = %v, want %v", sig.Factors, want)
	}
	if want := []string{"ABUSED_DOMAIN"}; !reflect.DeepEqual(sig.ThreatTypes, want) {
		t.Errorf("threat types = %v, want %v", sig.ThreatTypes, want)
	}

	if _, err := s.Analyze(context.Background(), Artifact{URL: "http://10.0.0.1/"}); !errors.Is(err, ErrNotApplicable) {
		t.Errorf("ip host err = %v, want ErrNotApplicable", err)
	}
}
