// Package storetest checks that a store.Store implementation behaves like
// the reference memory store.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"phishguard/scoring"
	"phishguard/store"
)

func record(kind scoring.Flow, label string, score int, at time.Time, factors ...string) *store.Record {
	return &store.Record{
		Kind:  kind,
		Input: "input-" + label,
		Verdict: scoring.Verdict{
			Score:   score,
			Label:   label,
			Factors: factors,
		},
		Details:        json.RawMessage(`{"links":["http://a.example"]}`),
		ScanDurationMs: 100,
		CreatedAt:      at,
	}
}

// Run exercises s, which must start empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("save and get", func(t *testing.T) {
		r := record(scoring.FlowURL, scoring.LabelPhishing, 80, now, "Flagged by Google Safe Browsing")
		r.Explanation = &store.Explanation{Text: "bad", GeneratedBy: "Rule-based", SafetyTips: []string{"tip"}}
		r.ArtifactKey = "qr/abc.png"
		id, err := s.Save(ctx, r)
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		if id == "" || r.ID != id {
			t.Fatalf("Save id = %q, record id = %q", id, r.ID)
		}

		got, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Kind != r.Kind || got.Input != r.Input || got.Verdict.Score != 80 || got.Verdict.Label != scoring.LabelPhishing {
			t.Errorf("Get = %+v, want %+v", got, r)
		}
		if !got.CreatedAt.Equal(now) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
		}
		if got.Explanation == nil || got.Explanation.Text != "bad" {
			t.Errorf("Explanation = %+v", got.Explanation)
		}
		if got.ArtifactKey != "qr/abc.png" || got.ScanDurationMs != 100 {
			t.Errorf("ArtifactKey = %q, ScanDurationMs = %d", got.ArtifactKey, got.ScanDurationMs)
		}
		var want, have any
		_ = json.Unmarshal(r.Details, &want)
		_ = json.Unmarshal(got.Details, &have)
		if !reflect.DeepEqual(want, have) {
			t.Errorf("Details = %s, want %s", got.Details, r.Details)
		}
	})

	t.Run("get unknown", func(t *testing.T) {
		if _, err := s.Get(ctx, "00000000-0000-4000-8000-000000000000"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Get unknown err = %v, want ErrNotFound", err)
		}
		if _, err := s.Get(ctx, "not-a-uuid"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Get malformed err = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete all", func(t *testing.T) {
		n, err := s.DeleteAll(ctx)
		if err != nil {
			t.Fatalf("DeleteAll: %v", err)
		}
		if n != 1 {
			t.Errorf("DeleteAll = %d, want 1", n)
		}
	})

	// Fixture for the listing and stats cases, oldest first.
	fixtures := []*store.Record{
		record(scoring.FlowURL, scoring.LabelLegit, 5, now.Add(-10*24*time.Hour)),
		record(scoring.FlowURL, scoring.LabelSuspicious, 45, now.Add(-3*time.Hour), "No HTTPS/SSL encryption", "virus-total unavailable: timed out"),
		record(scoring.FlowQR, scoring.LabelHigh, 90, now.Add(-2*time.Hour), "No HTTPS/SSL encryption", "Suspicious top-level domain"),
		record(scoring.FlowURL, scoring.LabelPhishing, 75, now.Add(-1*time.Hour), "No HTTPS/SSL encryption", "Suspicious top-level domain", "Contains @ symbol in URL"),
	}
	var ids []string
	for _, r := range fixtures {
		id, err := s.Save(ctx, r)
		if err != nil {
			t.Fatalf("Save fixture: %v", err)
		}
		ids = append(ids, id)
	}

	t.Run("find newest first", func(t *testing.T) {
		got, total, err := s.Find(ctx, store.Filter{}, store.Page{Limit: 2, Page: 1})
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if total != 4 {
			t.Errorf("total = %d, want 4", total)
		}
		if len(got) != 2 || got[0].ID != ids[3] || got[1].ID != ids[2] {
			t.Errorf("page 1 = %v, want [%s %s]", recordIDs(got), ids[3], ids[2])
		}

		got, _, err = s.Find(ctx, store.Filter{}, store.Page{Limit: 2, Page: 2})
		if err != nil {
			t.Fatalf("Find page 2: %v", err)
		}
		if len(got) != 2 || got[0].ID != ids[1] || got[1].ID != ids[0] {
			t.Errorf("page 2 = %v, want [%s %s]", recordIDs(got), ids[1], ids[0])
		}
	})

	t.Run("find far page", func(t *testing.T) {
		got, total, err := s.Find(ctx, store.Filter{}, store.Page{Limit: 50, Page: math.MaxInt})
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if total != 4 || len(got) != 0 {
			t.Errorf("far page = %d records of %d, want 0 of 4", len(got), total)
		}
	})

	t.Run("find filtered", func(t *testing.T) {
		tests := []struct {
			name   string
			filter store.Filter
			want   int
		}{
			{"kind", store.Filter{Kind: scoring.FlowURL}, 3},
			{"label", store.Filter{Label: scoring.LabelPhishing}, 1},
			{"kind and label", store.Filter{Kind: scoring.FlowQR, Label: scoring.LabelHigh}, 1},
			{"since", store.Filter{Since: now.Add(-24 * time.Hour)}, 3},
			{"no match", store.Filter{Kind: scoring.FlowEmail}, 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, total, err := s.Find(ctx, tt.filter, store.Page{})
				if err != nil {
					t.Fatalf("Find: %v", err)
				}
				if total != tt.want || len(got) != tt.want {
					t.Errorf("Find = %d records (total %d), want %d", len(got), total, tt.want)
				}
			})
		}
	})

	t.Run("stats", func(t *testing.T) {
		st, err := s.Stats(ctx, 2)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if st.Total != 4 {
			t.Errorf("Total = %d, want 4", st.Total)
		}
		if st.ByLabel[scoring.LabelPhishing] != 1 || st.ByLabel[scoring.LabelLegit] != 1 {
			t.Errorf("ByLabel = %v", st.ByLabel)
		}
		if st.Percentages[scoring.LabelSuspicious] != 25 {
			t.Errorf("Percentages[Suspicious] = %v, want 25", st.Percentages[scoring.LabelSuspicious])
		}
		if st.LastWeek != 3 {
			t.Errorf("LastWeek = %d, want 3", st.LastWeek)
		}
		if st.AvgDurationMs != 100 {
			t.Errorf("AvgDurationMs = %v, want 100", st.AvgDurationMs)
		}
		want := []store.FactorCount{
			{Factor: "No HTTPS/SSL encryption", Count: 3},
			{Factor: "Suspicious top-level domain", Count: 2},
		}
		if !reflect.DeepEqual(st.TopFactors, want) {
			t.Errorf("TopFactors = %v, want %v", st.TopFactors, want)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.Delete(ctx, ids[0]); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := s.Delete(ctx, ids[0]); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("second Delete err = %v, want ErrNotFound", err)
		}
		n, err := s.DeleteAll(ctx)
		if err != nil {
			t.Fatalf("DeleteAll: %v", err)
		}
		if n != 3 {
			t.Errorf("DeleteAll = %d, want 3", n)
		}
		st, err := s.Stats(ctx, 0)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if st.Total != 0 || len(st.TopFactors) != 0 {
			t.Errorf("Stats after DeleteAll = %+v", st)
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}

func recordIDs(rs []store.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
