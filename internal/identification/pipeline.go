// Package identification submits captured stills for breed recognition,
// classifies the answer into confidence tiers and hands the result to the
// result surface exactly once.
package identification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kdimtricp/breedid/internal/capture"
	"github.com/kdimtricp/breedid/internal/inference"
	"github.com/kdimtricp/breedid/internal/logging"
	"github.com/kdimtricp/breedid/internal/metrics"
)

var (
	// ErrOffline is returned without contacting the inference service.
	ErrOffline         = errors.New("identification requires a network connection")
	ErrInferenceFailed = errors.New("identification failed")
	// ErrStaleResult means the session was retaken or cancelled while the
	// request was pending; the result was dropped.
	ErrStaleResult = errors.New("identification result no longer wanted")
)

// Connectivity is the read side of the connectivity monitor.
type Connectivity interface {
	Online() bool
}

type Pipeline struct {
	inference    inference.Service
	connectivity Connectivity
	mailbox      *Mailbox
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

func NewPipeline(svc inference.Service, conn Connectivity, mailbox *Mailbox, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		inference:    svc,
		connectivity: conn,
		mailbox:      mailbox,
		logger:       logging.NewComponentLogger(logger, "identification"),
		metrics:      m,
	}
}

// Submit sends the session's still for identification. Failures leave the
// session Captured so the user can try again; nothing is retried
// automatically. On success the hand-off is also posted to the mailbox.
func (p *Pipeline) Submit(ctx context.Context, s *capture.Session) (Handoff, error) {
	switch s.State() {
	case capture.StateCaptured:
	case capture.StateClosed:
		return Handoff{}, capture.ErrSessionClosed
	default:
		return Handoff{}, capture.ErrNotCaptured
	}

	if p.connectivity != nil && !p.connectivity.Online() {
		p.metrics.Submission(metrics.OutcomeOffline)
		return Handoff{}, ErrOffline
	}

	ticket, err := s.BeginSubmission()
	if err != nil {
		if errors.Is(err, capture.ErrSubmissionInProgress) {
			p.metrics.Submission(metrics.OutcomeInProgress)
		}
		return Handoff{}, err
	}

	req := Request{
		SessionID:   s.ID,
		Image:       ticket.Still,
		SubmittedAt: time.Now(),
	}
	logger := p.logger.With(slog.String(logging.FieldSession, s.ID))
	logger.Info("identification submitted",
		slog.String(logging.FieldEventType, "identification_submitted"),
		slog.Int("bytes", len(req.Image.Data)),
	)

	result, err := p.identify(ctx, req)
	if err != nil {
		if finishErr := s.FinishSubmission(ticket, false); finishErr != nil {
			p.metrics.Submission(metrics.OutcomeStale)
			return Handoff{}, fmt.Errorf("%w: %w", ErrStaleResult, finishErr)
		}
		p.metrics.Submission(metrics.OutcomeFailed)
		logger.Warn("identification failed",
			slog.String(logging.FieldEventType, "identification_failed"),
			logging.Error(err),
		)
		return Handoff{}, fmt.Errorf("%w: %w", ErrInferenceFailed, err)
	}

	if err := s.FinishSubmission(ticket, true); err != nil {
		p.metrics.Submission(metrics.OutcomeStale)
		logger.Info("discarding identification for superseded session",
			slog.String(logging.FieldEventType, "identification_discarded"),
		)
		return Handoff{}, fmt.Errorf("%w: %w", ErrStaleResult, err)
	}

	h := Handoff{
		ID:          uuid.New().String(),
		SessionID:   s.ID,
		Image:       req.Image,
		Result:      result,
		SubmittedAt: req.SubmittedAt,
		CompletedAt: time.Now(),
	}
	if p.mailbox != nil {
		p.mailbox.Put(h)
	}

	tier := result.Tier()
	p.metrics.Submission(metrics.OutcomeSuccess)
	p.metrics.Result(string(tier))
	logger.Info("identification complete",
		slog.String(logging.FieldEventType, "identification_complete"),
		slog.String("breed", result.Breed),
		slog.Int("confidence", result.Confidence),
		slog.String("tier", string(tier)),
		slog.String("handoff_id", h.ID),
	)
	return h, nil
}

func (p *Pipeline) identify(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	pred, err := p.inference.Identify(ctx, req.Image)
	if err == nil {
		err = validatePrediction(pred)
	}
	p.metrics.ObserveInference(time.Since(start), err)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Breed:      strings.TrimSpace(pred.Breed),
		Confidence: pred.Confidence,
		Features:   append([]string(nil), pred.Features...),
	}, nil
}

func validatePrediction(pred *inference.Prediction) error {
	if pred == nil {
		return errors.New("empty prediction")
	}
	if strings.TrimSpace(pred.Breed) == "" {
		return errors.New("prediction has no breed")
	}
	if pred.Confidence < 0 || pred.Confidence > 100 {
		return fmt.Errorf("confidence %d outside 0-100", pred.Confidence)
	}
	return nil
}
