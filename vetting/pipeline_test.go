package vetting

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"phishguard/scoring"
)

func fixed(name string, score float64) Source {
	return SourceFunc{SourceName: name, Fn: func(context.Context, Artifact) (scoring.Signal, error) {
		return scoring.Signal{Score: score, Factors: []string{name + " factor"}}, nil
	}}
}

func failing(name string, err error) Source {
	return SourceFunc{SourceName: name, Fn: func(context.Context, Artifact) (scoring.Signal, error) {
		return scoring.Signal{}, err
	}}
}

func TestPipelineRunKeepsSourceOrder(t *testing.T) {
	slow := SourceFunc{SourceName: "slow", Fn: func(ctx context.Context, _ Artifact) (scoring.Signal, error) {
		time.Sleep(30 * time.Millisecond)
		return scoring.Signal{Score: 0.2}, nil
	}}
	p := NewPipeline(time.Second, slow, fixed("fast", 0.5), failing("skipped", ErrNotApplicable), failing("down", errors.New("boom")))

	outs := p.Run(context.Background(), Artifact{URL: "https://example.com"})
	var names []string
	for _, o := range outs {
		names = append(names, o.Source())
	}
	if want := []string{"slow", "fast", "down"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("sources = %v, want %v", names, want)
	}
	if !outs[0].OK() || outs[0].Signal.Source != "slow" {
		t.Errorf("slow outcome = %+v", outs[0])
	}
	if outs[2].Unavailable == nil || outs[2].Unavailable.Reason != "request failed" {
		t.Errorf("down outcome = %+v, want unavailable", outs[2])
	}
}

func TestPipelineTimeout(t *testing.T) {
	hang := SourceFunc{SourceName: "hang", Fn: func(ctx context.Context, _ Artifact) (scoring.Signal, error) {
		<-ctx.Done()
		return scoring.Signal{}, ctx.Err()
	}}
	p := NewPipeline(20*time.Millisecond, hang, fixed("quick", 0.1))

	start := time.Now()
	outs := p.Run(context.Background(), Artifact{})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Run took %s", elapsed)
	}
	if len(outs) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outs))
	}
	if outs[0].Unavailable == nil || outs[0].Unavailable.Reason != "timed out" {
		t.Errorf("hang outcome = %+v, want timed out", outs[0])
	}
	if !outs[1].OK() {
		t.Errorf("quick outcome = %+v, want signal", outs[1])
	}
}

func TestPipelinePerSourceTimeout(t *testing.T) {
	slow := SourceFunc{SourceName: "llm", Fn: func(ctx context.Context, _ Artifact) (scoring.Signal, error) {
		select {
		case <-time.After(50 * time.Millisecond):
			return scoring.Signal{Score: 0.7}, nil
		case <-ctx.Done():
			return scoring.Signal{}, ctx.Err()
		}
	}}
	p := NewPipeline(10*time.Millisecond, slow).WithTimeout("llm", time.Second)
	outs := p.Run(context.Background(), Artifact{})
	if len(outs) != 1 || !outs[0].OK() {
		t.Fatalf("outcomes = %+v, want one signal", outs)
	}
}

func TestPipelineRecoversPanic(t *testing.T) {
	bad := SourceFunc{SourceName: "bad", Fn: func(context.Context, Artifact) (scoring.Signal, error) {
		var m map[string]int
		m["x"]++
		return scoring.Signal{}, nil
	}}
	outs := NewPipeline(time.Second, bad).Run(context.Background(), Artifact{})
	if len(outs) != 1 || outs[0].Unavailable == nil || outs[0].Unavailable.Reason != "internal error" {
		t.Errorf("outcomes = %+v, want internal error", outs)
	}
}

func TestDescribeFailure(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timed out"},
		{context.Canceled, "cancelled"},
		{ErrPending, "queued for analysis"},
		{ErrNotConfigured, "not configured"},
		{&StatusError{Service: "x", Code: 503}, "HTTP 503"},
		{&StatusError{Service: "x", Code: 429}, "rate limited"},
		{errors.New("dial tcp: refused"), "request failed"},
	}
	for _, tt := range tests {
		if got := describeFailure(ctx, tt.err); got != tt.want {
			t.Errorf("describeFailure(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
