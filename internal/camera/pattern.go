package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"
)

// PatternDevice produces synthetic frames. It stands in for real hardware in
// development and tests and can be told to fail or stall on Open.
type PatternDevice struct {
	// Err, when set, is returned by Open.
	Err error
	// OpenDelay simulates slow permission prompts or device warm-up.
	OpenDelay time.Duration

	mu           sync.Mutex
	opened       int
	active       int
	disconnected bool
}

func NewPatternDevice() *PatternDevice {
	return &PatternDevice{}
}

func (d *PatternDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if d.OpenDelay > 0 {
		timer := time.NewTimer(d.OpenDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	d.mu.Lock()
	err := d.Err
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	width, height := c.Width, c.Height
	if width <= 0 || height <= 0 {
		width, height = DefaultConstraints.Width, DefaultConstraints.Height
	}

	d.mu.Lock()
	d.opened++
	d.active++
	d.mu.Unlock()

	s := &patternStream{
		device: d,
		width:  width,
		height: height,
	}
	s.track = newVideoTrack(fmt.Sprintf("pattern (%s)", c.Facing), s.release)
	return s, nil
}

// SetErr changes the error returned by subsequent Open calls.
func (d *PatternDevice) SetErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Err = err
}

// Disconnect makes frames from every open stream fail with
// ErrDeviceUnavailable, as an unplugged camera would.
func (d *PatternDevice) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnected = true
}

func (d *PatternDevice) isDisconnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disconnected
}

// Active returns the number of streams that have not been stopped.
func (d *PatternDevice) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Opened returns the number of successful Open calls.
func (d *PatternDevice) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

type patternStream struct {
	device *PatternDevice
	width  int
	height int
	track  *videoTrack

	mu      sync.Mutex
	frames  int
	stopped bool
}

func (s *patternStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.device.isDisconnected() {
		return nil, fmt.Errorf("%w: pattern device disconnected", ErrDeviceUnavailable)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrStreamStopped
	}
	s.frames++

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	shift := s.frames % 256
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x + shift) % 256),
				G: uint8((y + shift) % 256),
				B: 96,
				A: 255,
			})
		}
	}
	return img, nil
}

func (s *patternStream) Tracks() []Track {
	return []Track{s.track}
}

func (s *patternStream) Stop() error {
	s.track.Stop()
	return nil
}

func (s *patternStream) release() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.device.mu.Lock()
	s.device.active--
	s.device.mu.Unlock()
}
