package inference

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/kdimtricp/breedid/internal/imaging"
)

var DefaultMockFeatures = []string{
	"Black and white markings",
	"Large udder",
	"Distinctive facial structure",
}

// MockService answers with a fixed prediction after a random delay between
// MinLatency and MaxLatency. It stands in for the real model during
// development.
type MockService struct {
	Breed      string
	Confidence int
	Features   []string
	MinLatency time.Duration
	MaxLatency time.Duration
	Err        error
}

func (m *MockService) Identify(ctx context.Context, still *imaging.Still) (*Prediction, error) {
	if delay := m.latency(); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}
	return &Prediction{
		Breed:      m.Breed,
		Confidence: m.Confidence,
		Features:   append([]string(nil), m.Features...),
	}, nil
}

func (m *MockService) latency() time.Duration {
	if m.MaxLatency <= m.MinLatency {
		return m.MinLatency
	}
	return m.MinLatency + rand.N(m.MaxLatency-m.MinLatency)
}
