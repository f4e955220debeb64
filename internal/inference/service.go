// Package inference talks to the breed recognition service. The model
// itself is opaque; this package only moves an encoded still out and a
// prediction back.
package inference

import (
	"context"
	"log/slog"
	"time"

	"github.com/kdimtricp/breedid/internal/config"
	"github.com/kdimtricp/breedid/internal/imaging"
	"github.com/kdimtricp/breedid/internal/logging"
)

type Service interface {
	Identify(ctx context.Context, still *imaging.Still) (*Prediction, error)
}

// Prediction is the raw answer of the recognition service. Confidence is a
// percentage.
type Prediction struct {
	Breed      string   `json:"breed"`
	Confidence int      `json:"confidence"`
	Features   []string `json:"features"`
}

// New returns the HTTP client when an endpoint is configured and the mock
// otherwise.
func New(cfg *config.Config, logger *slog.Logger) Service {
	logger = logging.NewComponentLogger(logger, "inference")
	if cfg.UsesMockInference() {
		logger.Info("inference endpoint not configured; using mock service",
			slog.String("breed", cfg.Inference.MockBreed),
			slog.Int("confidence", cfg.Inference.MockConfidence),
		)
		return &MockService{
			Breed:      cfg.Inference.MockBreed,
			Confidence: cfg.Inference.MockConfidence,
			Features:   DefaultMockFeatures,
			MinLatency: time.Duration(cfg.Inference.MockMinLatencyMS) * time.Millisecond,
			MaxLatency: time.Duration(cfg.Inference.MockMaxLatencyMS) * time.Millisecond,
		}
	}

	logger.Info("inference endpoint configured", slog.String("endpoint", cfg.Inference.Endpoint))
	return NewHTTPClient(cfg.Inference.Endpoint, cfg.Inference.APIKey, cfg.InferenceTimeout())
}
