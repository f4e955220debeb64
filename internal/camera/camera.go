// Package camera abstracts the physical capture device behind a small
// Device/Stream contract so the capture controller never touches hardware
// directly.
package camera

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

type FacingMode string

const (
	FacingEnvironment FacingMode = "environment"
	FacingUser        FacingMode = "user"
)

// Constraints describe the stream the caller would like. Devices treat the
// resolution as a preference.
type Constraints struct {
	Facing FacingMode
	Width  int
	Height int
}

// DefaultConstraints asks for the rear camera at 720p.
var DefaultConstraints = Constraints{
	Facing: FacingEnvironment,
	Width:  1280,
	Height: 720,
}

var (
	ErrPermissionDenied  = errors.New("camera permission denied")
	ErrDeviceUnavailable = errors.New("camera device unavailable")
	ErrDeviceBusy        = errors.New("camera device busy")
	ErrStreamStopped     = errors.New("camera stream stopped")
)

// Device opens live streams.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live camera stream. Stop is idempotent and releases the
// underlying device; Frame fails with ErrStreamStopped afterwards.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Tracks() []Track
	Stop() error
}

// Track is one media track of a stream.
type Track interface {
	ID() string
	Kind() string
	Label() string
	Stop()
	Ended() bool
}

type videoTrack struct {
	id     string
	label  string
	once   sync.Once
	ended  atomic.Bool
	onStop func()
}

func newVideoTrack(label string, onStop func()) *videoTrack {
	return &videoTrack{
		id:     uuid.New().String(),
		label:  label,
		onStop: onStop,
	}
}

func (t *videoTrack) ID() string    { return t.id }
func (t *videoTrack) Kind() string  { return "video" }
func (t *videoTrack) Label() string { return t.label }
func (t *videoTrack) Ended() bool   { return t.ended.Load() }

func (t *videoTrack) Stop() {
	t.once.Do(func() {
		t.ended.Store(true)
		if t.onStop != nil {
			t.onStop()
		}
	})
}

// StopAll stops every track of s and then the stream itself.
func StopAll(s Stream) error {
	if s == nil {
		return nil
	}
	for _, track := range s.Tracks() {
		track.Stop()
	}
	return s.Stop()
}

// Live reports whether any track of s is still running.
func Live(s Stream) bool {
	if s == nil {
		return false
	}
	for _, track := range s.Tracks() {
		if !track.Ended() {
			return true
		}
	}
	return false
}
