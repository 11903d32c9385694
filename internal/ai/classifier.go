package ai

import (
	"context"
	"errors"

	"github.com/spigell/lead-scorer/internal/leads"
)

var (
	// ErrNotConfigured is returned by Disabled for every lead.
	ErrNotConfigured = errors.New("ai classifier is not configured")
	// ErrUnparsable marks a provider response without a recognisable intent.
	ErrUnparsable = errors.New("ai response has no recognisable intent")
)

// Classification is the buying intent a provider assigned to a lead.
type Classification struct {
	Intent    leads.Intent
	Reasoning string
	Raw       string
}

// Classifier is the external intent classification capability.
type Classifier interface {
	Classify(ctx context.Context, lead leads.Lead, offer leads.Offer) (*Classification, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, lead leads.Lead, offer leads.Offer) (*Classification, error)

func (f ClassifierFunc) Classify(ctx context.Context, lead leads.Lead, offer leads.Offer) (*Classification, error) {
	return f(ctx, lead, offer)
}

// Disabled is used when no provider is configured; every lead degrades.
type Disabled struct{}

func (Disabled) Classify(context.Context, leads.Lead, leads.Offer) (*Classification, error) {
	return nil, ErrNotConfigured
}
