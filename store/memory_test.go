package store_test

import (
	"context"
	"math"
	"testing"

	"phishguard/scoring"
	"phishguard/store"
	"phishguard/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, store.NewMemoryStore())
}

func TestPageNormalize(t *testing.T) {
	tests := []struct {
		in         store.Page
		want       store.Page
		wantOffset int
	}{
		{store.Page{}, store.Page{Limit: 50, Page: 1}, 0},
		{store.Page{Limit: 1000, Page: 3}, store.Page{Limit: 200, Page: 3}, 400},
		{store.Page{Limit: 10, Page: -2}, store.Page{Limit: 10, Page: 1}, 0},
		{store.Page{Limit: 50, Page: math.MaxInt}, store.Page{Limit: 50, Page: math.MaxInt / 50}, math.MaxInt/50*50 - 50},
	}
	for _, tt := range tests {
		got := tt.in.Normalize()
		if got != tt.want {
			t.Errorf("Normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
		if got.Offset() != tt.wantOffset {
			t.Errorf("Offset(%+v) = %d, want %d", got, got.Offset(), tt.wantOffset)
		}
	}
}

func TestSaveDefaultsEmptyLists(t *testing.T) {
	s := store.NewMemoryStore()
	id, err := s.Save(context.Background(), &store.Record{Kind: scoring.FlowEmail})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	r, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.Verdict.Factors == nil || r.Verdict.ThreatTypes == nil {
		t.Errorf("Verdict lists = %v / %v, want empty slices", r.Verdict.Factors, r.Verdict.ThreatTypes)
	}
	if r.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestIsRiskFactor(t *testing.T) {
	tests := []struct {
		factor string
		want   bool
	}{
		{"No HTTPS/SSL encryption", true},
		{"virus-total unavailable: timed out", false},
		{scoring.FactorNoDetector, false},
	}
	for _, tt := range tests {
		if got := store.IsRiskFactor(tt.factor); got != tt.want {
			t.Errorf("IsRiskFactor(%q) = %v, want %v", tt.factor, got, tt.want)
		}
	}
}
