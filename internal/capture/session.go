// Package capture owns the image acquisition state machine: a live camera
// session (Idle, Streaming, Captured) or a file import session (Idle,
// AwaitingSelection, Captured), both ending in a hand-off to identification.
//
// Every transition bumps the session epoch. Work started under an older
// epoch (camera acquisition, file reads, inference) is discarded when it
// completes, and a camera stream that arrives late is stopped at once.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kdimtricp/breedid/internal/camera"
	"github.com/kdimtricp/breedid/internal/imaging"
	"github.com/kdimtricp/breedid/internal/logging"
	"github.com/kdimtricp/breedid/internal/metrics"
	"github.com/kdimtricp/breedid/internal/picker"
)

type Mode string

const (
	ModeLive   Mode = "live"
	ModeImport Mode = "import"
)

type State string

const (
	StateIdle              State = "idle"
	StateStreaming         State = "streaming"
	StateAwaitingSelection State = "awaiting_selection"
	StateCaptured          State = "captured"
	StateError             State = "error"
	StateHandedOff         State = "handed_off"
	StateClosed            State = "closed"
)

var (
	ErrInvalidTransition    = errors.New("invalid capture transition")
	ErrNotCaptured          = errors.New("no captured image")
	ErrSubmissionInProgress = errors.New("submission already in progress")
	ErrSessionClosed        = errors.New("capture session closed")
	// ErrSuperseded is returned when the session moved on while an
	// operation was in flight; its result has been discarded.
	ErrSuperseded = errors.New("capture session changed during operation")
)

// Options configure new sessions.
type Options struct {
	Device             camera.Device
	Constraints        camera.Constraints
	JPEGQuality        int
	MaxImportDimension int
	MaxImportPixels    int
	MaxImportSize      int64
	Logger             *slog.Logger
	Metrics            *metrics.Metrics
}

type Session struct {
	ID        string
	CreatedAt time.Time

	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	mode       Mode
	state      State
	stream     camera.Stream
	still      *imaging.Still
	err        error
	epoch      uint64
	processing bool
	updatedAt  time.Time
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID         string    `json:"id"`
	Mode       Mode      `json:"mode"`
	State      State     `json:"state"`
	Streaming  bool      `json:"streaming"`
	HasStill   bool      `json:"has_still"`
	Processing bool      `json:"processing"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewSession(id string, mode Mode, opts Options) *Session {
	if opts.Constraints == (camera.Constraints{}) {
		opts.Constraints = camera.DefaultConstraints
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = imaging.DefaultQuality
	}
	if opts.MaxImportPixels == 0 {
		opts.MaxImportPixels = imaging.DefaultMaxPixels
	}
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		opts:      opts,
		logger:    logging.NewComponentLogger(opts.Logger, "capture").With(slog.String(logging.FieldSession, id)),
		mode:      mode,
		state:     StateIdle,
		updatedAt: now,
	}
}

// transition moves to next and invalidates in-flight work. Callers hold mu.
func (s *Session) transition(next State) {
	if s.state != next {
		s.logger.Debug("capture state changed",
			slog.String(logging.FieldEventType, "capture_transition"),
			slog.String("from", string(s.state)),
			slog.String("to", string(next)),
		)
	}
	s.state = next
	s.epoch++
	s.processing = false
	s.updatedAt = time.Now()
}

func (s *Session) guard(mode Mode) error {
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if s.mode != mode {
		return fmt.Errorf("%w: %s session", ErrInvalidTransition, s.mode)
	}
	return nil
}

// StartStream acquires the camera. On failure the session enters the Error
// state and the error wraps one of the camera sentinel errors; the caller may
// retry or switch to import.
func (s *Session) StartStream(ctx context.Context) error {
	s.mu.Lock()
	if err := s.guard(ModeLive); err != nil {
		s.mu.Unlock()
		return err
	}
	switch s.state {
	case StateStreaming:
		s.mu.Unlock()
		return nil
	case StateIdle, StateError:
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot start stream from %s", ErrInvalidTransition, state)
	}
	s.epoch++
	epoch := s.epoch
	device := s.opts.Device
	constraints := s.opts.Constraints
	s.mu.Unlock()

	if device == nil {
		return s.failAcquisition(epoch, fmt.Errorf("%w: no camera configured", camera.ErrDeviceUnavailable))
	}

	stream, err := device.Open(ctx, constraints)
	if err != nil {
		return s.failAcquisition(epoch, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		// The user navigated away or retried while the device was opening.
		_ = camera.StopAll(stream)
		s.logger.Debug("discarding late camera stream",
			slog.String(logging.FieldEventType, "camera_stream_discarded"),
		)
		if s.state == StateClosed {
			return ErrSessionClosed
		}
		return ErrSuperseded
	}

	s.stream = stream
	s.err = nil
	s.opts.Metrics.StreamOpened()
	s.transition(StateStreaming)
	s.logger.Info("camera stream started",
		slog.String(logging.FieldEventType, "camera_stream_started"),
	)
	return nil
}

func (s *Session) failAcquisition(epoch uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		if s.state == StateClosed {
			return ErrSessionClosed
		}
		return ErrSuperseded
	}
	s.err = err
	s.transition(StateError)
	s.logger.Warn("camera acquisition failed",
		slog.String(logging.FieldEventType, "camera_acquisition_failed"),
		logging.Error(err),
	)
	return fmt.Errorf("start stream: %w", err)
}

// StopStream stops every track of the held stream. It is a no-op when no
// stream is held.
func (s *Session) StopStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopStreamLocked() && s.state == StateStreaming {
		s.transition(StateIdle)
	}
}

func (s *Session) stopStreamLocked() bool {
	if s.stream == nil {
		return false
	}
	if err := camera.StopAll(s.stream); err != nil {
		s.logger.Warn("failed to stop camera stream", logging.Error(err))
	}
	s.stream = nil
	s.opts.Metrics.StreamClosed()
	return true
}

// CaptureStill samples the current frame at its native resolution, encodes
// it and releases the camera in the same transition.
func (s *Session) CaptureStill(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ModeLive); err != nil {
		return err
	}
	if s.state != StateStreaming || s.stream == nil {
		return fmt.Errorf("%w: cannot capture from %s", ErrInvalidTransition, s.state)
	}

	frame, err := s.stream.Frame(ctx)
	if err != nil {
		if errors.Is(err, camera.ErrDeviceUnavailable) {
			// The device went away mid-stream; release it and let the user
			// retry or switch to import.
			s.stopStreamLocked()
			s.err = err
			s.transition(StateError)
			s.logger.Warn("camera lost during capture",
				slog.String(logging.FieldEventType, "camera_lost"),
				logging.Error(err),
			)
		}
		return fmt.Errorf("capture frame: %w", err)
	}
	still, err := imaging.EncodeJPEG(frame, s.opts.JPEGQuality)
	if err != nil {
		return fmt.Errorf("capture frame: %w", err)
	}

	s.still = still
	s.stopStreamLocked()
	s.transition(StateCaptured)
	s.logger.Info("still captured",
		slog.String(logging.FieldEventType, "still_captured"),
		slog.Int("width", still.Width),
		slog.Int("height", still.Height),
		slog.Int("bytes", len(still.Data)),
	)
	return nil
}

// Preview encodes the current frame without changing state.
func (s *Session) Preview(ctx context.Context) (*imaging.Still, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ModeLive); err != nil {
		return nil, err
	}
	if s.state != StateStreaming || s.stream == nil {
		return nil, fmt.Errorf("%w: no live stream", ErrInvalidTransition)
	}
	frame, err := s.stream.Frame(ctx)
	if err != nil {
		return nil, fmt.Errorf("preview frame: %w", err)
	}
	return imaging.EncodeJPEG(frame, s.opts.JPEGQuality)
}

// AwaitSelection opens the picker for an import session.
func (s *Session) AwaitSelection() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ModeImport); err != nil {
		return err
	}
	switch s.state {
	case StateAwaitingSelection:
		return nil
	case StateIdle:
		s.transition(StateAwaitingSelection)
		return nil
	default:
		return fmt.Errorf("%w: cannot open picker from %s", ErrInvalidTransition, s.state)
	}
}

// ImportFile reads and decodes the selected file. A nil file means the picker
// was dismissed: picker.ErrNoSelection is returned and nothing changes.
// Decode failures also leave the state unchanged.
func (s *Session) ImportFile(ctx context.Context, file *picker.File) error {
	s.mu.Lock()
	if err := s.guard(ModeImport); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.state != StateAwaitingSelection {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot import from %s", ErrInvalidTransition, state)
	}
	if file == nil {
		s.mu.Unlock()
		return picker.ErrNoSelection
	}
	epoch := s.epoch
	opts := s.opts
	s.mu.Unlock()

	data, err := file.ReadAll(ctx, opts.MaxImportSize)
	var still *imaging.Still
	if err == nil {
		still, err = imaging.Decode(data, opts.JPEGQuality, opts.MaxImportDimension, opts.MaxImportPixels)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		if s.state == StateClosed {
			return ErrSessionClosed
		}
		return ErrSuperseded
	}
	if err != nil {
		s.logger.Warn("import failed",
			slog.String(logging.FieldEventType, "import_failed"),
			slog.String("file", file.Name),
			logging.Error(err),
		)
		return fmt.Errorf("import %s: %w", file.Name, err)
	}

	s.still = still
	s.transition(StateCaptured)
	s.logger.Info("file imported",
		slog.String(logging.FieldEventType, "file_imported"),
		slog.String("file", file.Name),
		slog.Int("width", still.Width),
		slog.Int("height", still.Height),
	)
	return nil
}

// Retake discards the captured still and reacquires the camera. Retaking
// while streaming without a still does nothing; from Error it retries
// acquisition.
func (s *Session) Retake(ctx context.Context) error {
	s.mu.Lock()
	if err := s.guard(ModeLive); err != nil {
		s.mu.Unlock()
		return err
	}
	switch s.state {
	case StateStreaming:
		s.mu.Unlock()
		return nil
	case StateCaptured:
		s.still = nil
		s.stopStreamLocked()
		s.transition(StateIdle)
	case StateError:
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot retake from %s", ErrInvalidTransition, state)
	}
	s.mu.Unlock()

	return s.StartStream(ctx)
}

// Reselect discards the imported still and reopens the picker.
func (s *Session) Reselect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(ModeImport); err != nil {
		return err
	}
	switch s.state {
	case StateAwaitingSelection:
		return nil
	case StateCaptured:
		s.still = nil
		s.transition(StateAwaitingSelection)
		return nil
	default:
		return fmt.Errorf("%w: cannot reselect from %s", ErrInvalidTransition, s.state)
	}
}

// SwitchToImport turns a live session that has nothing to submit into an
// import session awaiting selection. It is the recovery path when the camera
// cannot be used.
func (s *Session) SwitchToImport() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if s.mode == ModeImport {
		if s.state == StateIdle {
			s.transition(StateAwaitingSelection)
		}
		return nil
	}
	switch s.state {
	case StateIdle, StateStreaming, StateError:
	default:
		return fmt.Errorf("%w: cannot switch to import from %s", ErrInvalidTransition, s.state)
	}

	s.stopStreamLocked()
	s.still = nil
	s.err = nil
	s.mode = ModeImport
	s.transition(StateAwaitingSelection)
	return nil
}

// Cancel releases the camera and any buffered still. The session cannot be
// used afterwards.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.stopStreamLocked()
	s.still = nil
	s.transition(StateClosed)
	s.logger.Debug("capture session closed",
		slog.String(logging.FieldEventType, "capture_closed"),
	)
}

// Ticket identifies one submission attempt.
type Ticket struct {
	SessionID string
	Still     *imaging.Still
	epoch     uint64
}

// BeginSubmission marks the session as processing and hands out its still.
// Only one submission may be outstanding.
func (s *Session) BeginSubmission() (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return Ticket{}, ErrSessionClosed
	}
	if s.state != StateCaptured || s.still == nil {
		return Ticket{}, ErrNotCaptured
	}
	if s.processing {
		return Ticket{}, ErrSubmissionInProgress
	}
	s.processing = true
	s.updatedAt = time.Now()
	return Ticket{SessionID: s.ID, Still: s.still.Clone(), epoch: s.epoch}, nil
}

// FinishSubmission clears the processing flag. When handedOff is true the
// still is released and the session ends in HandedOff. ErrSuperseded means
// the session was retaken or cancelled while the submission was pending.
func (s *Session) FinishSubmission(t Ticket, handedOff bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != t.epoch {
		return ErrSuperseded
	}
	if !handedOff {
		s.processing = false
		s.updatedAt = time.Now()
		return nil
	}
	s.still = nil
	s.transition(StateHandedOff)
	return nil
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Still returns a copy of the captured still, or nil.
func (s *Session) Still() *imaging.Still {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.still.Clone()
}

// Err returns the last camera acquisition error.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// Streaming reports whether a camera stream is held.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:         s.ID,
		Mode:       s.mode,
		State:      s.state,
		Streaming:  s.stream != nil,
		HasStill:   s.still != nil,
		Processing: s.processing,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.updatedAt,
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}
