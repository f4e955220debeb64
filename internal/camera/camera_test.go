package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/kdimtricp/breedid/internal/config"
	"github.com/kdimtricp/breedid/internal/logging"
)

func TestPatternDeviceStreamLifecycle(t *testing.T) {
	dev := NewPatternDevice()

	stream, err := dev.Open(context.Background(), DefaultConstraints)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if dev.Active() != 1 {
		t.Fatalf("expected 1 active stream, got %d", dev.Active())
	}

	img, err := stream.Frame(context.Background())
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1280 || b.Dy() != 720 {
		t.Errorf("expected 1280x720 frame, got %dx%d", b.Dx(), b.Dy())
	}

	if err := StopAll(stream); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
	if err := StopAll(stream); err != nil {
		t.Fatalf("second StopAll: %v", err)
	}
	if dev.Active() != 0 {
		t.Errorf("expected no active streams, got %d", dev.Active())
	}
	if Live(stream) {
		t.Error("expected all tracks ended")
	}
	if _, err := stream.Frame(context.Background()); !errors.Is(err, ErrStreamStopped) {
		t.Errorf("expected ErrStreamStopped, got %v", err)
	}
}

func TestPatternDeviceInjectedError(t *testing.T) {
	dev := NewPatternDevice()
	dev.SetErr(ErrPermissionDenied)

	if _, err := dev.Open(context.Background(), DefaultConstraints); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if dev.Opened() != 0 {
		t.Errorf("expected no opened streams, got %d", dev.Opened())
	}
}

func TestPatternDeviceOpenHonoursContext(t *testing.T) {
	dev := &PatternDevice{OpenDelay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := dev.Open(ctx, DefaultConstraints); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if dev.Active() != 0 {
		t.Errorf("expected no active streams, got %d", dev.Active())
	}
}

func TestScanJPEG(t *testing.T) {
	frameA := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}
	frameB := []byte{0xFF, 0xD8, 0x03, 0xFF, 0xD9}

	var input bytes.Buffer
	input.Write([]byte{0x00, 0x11})
	input.Write(frameA)
	input.Write([]byte{0x22})
	input.Write(frameB)
	input.Write([]byte{0xFF, 0xD8, 0x04}) // truncated

	scanner := bufio.NewScanner(&input)
	scanner.Split(scanJPEG)

	var frames [][]byte
	for scanner.Scan() {
		frames = append(frames, append([]byte(nil), scanner.Bytes()...))
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanner: %v", err)
	}

	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], frameA) || !bytes.Equal(frames[1], frameB) {
		t.Errorf("unexpected frames %x", frames)
	}
}

func TestFFmpegDeviceOpenErrors(t *testing.T) {
	dir := t.TempDir()
	devPath := filepath.Join(dir, "video0")
	if err := os.WriteFile(devPath, nil, 0o644); err != nil {
		t.Fatalf("write fake device: %v", err)
	}

	dev := &FFmpegDevice{
		ffmpegPath: "ffmpeg",
		devices:    map[FacingMode]string{FacingEnvironment: devPath},
		lockDir:    dir,
		logger:     logging.NewNop(),
	}

	t.Run("missing device", func(t *testing.T) {
		missing := &FFmpegDevice{
			devices: map[FacingMode]string{FacingEnvironment: filepath.Join(dir, "nope")},
			lockDir: dir,
			logger:  logging.NewNop(),
		}
		_, err := missing.Open(context.Background(), DefaultConstraints)
		if !errors.Is(err, ErrDeviceUnavailable) {
			t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
		}
	})

	t.Run("no device configured", func(t *testing.T) {
		empty := &FFmpegDevice{devices: map[FacingMode]string{}, lockDir: dir, logger: logging.NewNop()}
		_, err := empty.Open(context.Background(), DefaultConstraints)
		if !errors.Is(err, ErrDeviceUnavailable) {
			t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
		}
	})

	t.Run("device locked", func(t *testing.T) {
		holder := flock.New(filepath.Join(dir, "breedid-video0.lock"))
		ok, err := holder.TryLock()
		if err != nil || !ok {
			t.Fatalf("failed to take lock: ok=%v err=%v", ok, err)
		}
		defer holder.Unlock()

		_, err = dev.Open(context.Background(), DefaultConstraints)
		if !errors.Is(err, ErrDeviceBusy) {
			t.Fatalf("expected ErrDeviceBusy, got %v", err)
		}
	})
}

func TestDevicePathFallsBack(t *testing.T) {
	dev := &FFmpegDevice{devices: map[FacingMode]string{FacingUser: "/dev/video2"}}

	path, err := dev.devicePath(FacingEnvironment)
	if err != nil {
		t.Fatalf("devicePath: %v", err)
	}
	if path != "/dev/video2" {
		t.Errorf("expected fallback to user camera, got %s", path)
	}
}

func TestNewDeviceSelectsDriver(t *testing.T) {
	dev, err := NewDevice(config.Camera{Driver: "pattern"}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	if _, ok := dev.(*PatternDevice); !ok {
		t.Errorf("expected *PatternDevice, got %T", dev)
	}

	if _, err := NewDevice(config.Camera{Driver: "gopro"}, logging.NewNop()); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestNewDeviceWithoutFFmpegIsUnavailable(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	dev, err := NewDevice(config.Default().Camera, logging.NewNop())
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	if _, ok := dev.(UnavailableDevice); !ok {
		t.Fatalf("expected UnavailableDevice, got %T", dev)
	}

	_, err = dev.Open(context.Background(), DefaultConstraints)
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "ffmpeg") {
		t.Errorf("expected the reason in the error, got %v", err)
	}
}

func TestFFmpegStreamFrameAfterProcessExit(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}

	s := &ffmpegStream{
		stderr: &bytes.Buffer{},
		done:   make(chan struct{}),
		latest: buf.Bytes(),
	}
	if _, err := s.Frame(context.Background()); err != nil {
		t.Fatalf("Frame while running: %v", err)
	}

	s.stderr.WriteString("/dev/video0: No such device")
	close(s.done)

	_, err := s.Frame(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "No such device") {
		t.Errorf("expected ffmpeg stderr in the error, got %v", err)
	}
}
