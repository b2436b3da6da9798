package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record), now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, r *Record) (string, error) {
	Prepare(r, uuid.NewString)
	m.mu.Lock()
	m.records[r.ID] = *r
	m.mu.Unlock()
	return r.ID, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryStore) Find(_ context.Context, f Filter, p Page) ([]Record, int, error) {
	p = p.Normalize()
	m.mu.RLock()
	matched := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		if f.Label != "" && r.Verdict.Label != f.Label {
			continue
		}
		if !f.Since.IsZero() && r.CreatedAt.Before(f.Since) {
			continue
		}
		matched = append(matched, r)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(p.Offset(), total)
	end := min(start+p.Limit, total)
	return matched[start:end], total, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *MemoryStore) DeleteAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.records))
	m.records = make(map[string]Record)
	return n, nil
}

func (m *MemoryStore) Stats(_ context.Context, topN int) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{ByLabel: map[string]int{}, TopFactors: []FactorCount{}}
	weekAgo := m.now().Add(-7 * 24 * time.Hour)
	factors := map[string]int{}
	var durations int64

	for _, r := range m.records {
		s.Total++
		s.ByLabel[r.Verdict.Label]++
		if !r.CreatedAt.Before(weekAgo) {
			s.LastWeek++
		}
		durations += r.ScanDurationMs
		for _, f := range r.Verdict.Factors {
			if IsRiskFactor(f) {
				factors[f]++
			}
		}
	}
	if s.Total > 0 {
		s.AvgDurationMs = float64(durations) / float64(s.Total)
	}

	for f, n := range factors {
		s.TopFactors = append(s.TopFactors, FactorCount{Factor: f, Count: n})
	}
	sort.Slice(s.TopFactors, func(i, j int) bool {
		if s.TopFactors[i].Count == s.TopFactors[j].Count {
			return s.TopFactors[i].Factor < s.TopFactors[j].Factor
		}
		return s.TopFactors[i].Count > s.TopFactors[j].Count
	})
	if n := TopN(topN); len(s.TopFactors) > n {
		s.TopFactors = s.TopFactors[:n]
	}

	CountsToStats(&s)
	return s, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
