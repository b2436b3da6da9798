package vetting

import (
	"context"
	"errors"
	"image"

	"phishguard/scoring"
)

var (
	// ErrInvalidInput rejects an artifact before any source runs.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotApplicable makes a source skip the artifact without being reported.
	ErrNotApplicable = errors.New("not applicable")
	// ErrPending means a remote analysis has not finished yet.
	ErrPending = errors.New("result pending")
	// ErrNotConfigured means the backing service has no credentials.
	ErrNotConfigured = errors.New("not configured")
)

// Email is the email artifact.
type Email struct {
	Content     string `json:"content"`
	SenderEmail string `json:"senderEmail,omitempty"`
	Subject     string `json:"subject,omitempty"`
}

// Artifact is the thing under test. Only the fields of its kind are set.
type Artifact struct {
	Kind  scoring.Flow
	URL   string
	Text  string // decoded QR payload
	Email Email

	Image      image.Image
	ImageBytes []byte
	MimeType   string
}

// Source is one independent detector.
type Source interface {
	Name() string
	Analyze(ctx context.Context, a Artifact) (scoring.Signal, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc struct {
	SourceName string
	Fn         func(ctx context.Context, a Artifact) (scoring.Signal, error)
}

func (f SourceFunc) Name() string { return f.SourceName }

func (f SourceFunc) Analyze(ctx context.Context, a Artifact) (scoring.Signal, error) {
	return f.Fn(ctx, a)
}
