package vetting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"phishguard/scoring"
)

// Pipeline fans an artifact out to a fixed set of sources.
type Pipeline struct {
	Sources []Source
	// Timeout bounds each source independently. Sources with their own
	// entry in Timeouts use that instead.
	Timeout  time.Duration
	Timeouts map[string]time.Duration
}

// NewPipeline returns a pipeline with a shared per-source timeout.
func NewPipeline(timeout time.Duration, sources ...Source) *Pipeline {
	return &Pipeline{Sources: sources, Timeout: timeout, Timeouts: map[string]time.Duration{}}
}

// WithTimeout overrides the timeout of one source.
func (p *Pipeline) WithTimeout(source string, d time.Duration) *Pipeline {
	if p.Timeouts == nil {
		p.Timeouts = map[string]time.Duration{}
	}
	p.Timeouts[source] = d
	return p
}

// Names lists the configured sources in run order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.Sources))
	for i, s := range p.Sources {
		names[i] = s.Name()
	}
	return names
}

// Run executes all sources concurrently and waits for each to finish or
// time out. A slow or failing source never cancels its siblings. The
// outcomes keep the order of p.Sources; skipped sources are left out.
func (p *Pipeline) Run(ctx context.Context, a Artifact) []scoring.Outcome {
	slots := make([]*scoring.Outcome, len(p.Sources))

	// errgroup without WithContext: one failure must not cancel the rest.
	var g errgroup.Group
	for i, src := range p.Sources {
		g.Go(func() error {
			slots[i] = p.runOne(ctx, src, a)
			return nil
		})
	}
	_ = g.Wait()

	outcomes := make([]scoring.Outcome, 0, len(slots))
	for _, o := range slots {
		if o != nil {
			outcomes = append(outcomes, *o)
		}
	}
	return outcomes
}

func (p *Pipeline) runOne(parent context.Context, src Source, a Artifact) (out *scoring.Outcome) {
	name := src.Name()
	timeout := p.Timeout
	if d, ok := p.Timeouts[name]; ok {
		timeout = d
	}
	ctx := parent
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Pipeline] ⚠️ %s panicked: %v", name, r)
			o := scoring.Unavailable(name, "internal error")
			out = &o
		}
	}()

	start := time.Now()
	sig, err := src.Analyze(ctx, a)
	switch {
	case errors.Is(err, ErrNotApplicable):
		return nil
	case err != nil:
		reason := describeFailure(ctx, err)
		log.Printf("[Pipeline] %s unavailable after %s: %v", name, time.Since(start).Round(time.Millisecond), err)
		o := scoring.Unavailable(name, reason)
		return &o
	}

	if sig.Source == "" {
		sig.Source = name
	}
	o := scoring.Available(sig)
	return &o
}

// describeFailure turns an error into a short reason for the factor list.
func describeFailure(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrPending):
		return "queued for analysis"
	case errors.Is(err, ErrNotConfigured):
		return "not configured"
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Code == 429 {
			return "rate limited"
		}
		return fmt.Sprintf("HTTP %d", se.Code)
	}
	return "request failed"
}

// StatusError is a non-2xx reply from a third-party API.
type StatusError struct {
	Service string
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Service, e.Code)
}
