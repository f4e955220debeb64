package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/kdimtricp/breedid/internal/config"
	"github.com/kdimtricp/breedid/internal/logging"
)

const maxFrameSize = 16 << 20

// FFmpegDevice reads V4L2 devices through an ffmpeg MJPEG pipe. Each device
// path is guarded by an OS file lock so only one stream can hold it.
type FFmpegDevice struct {
	ffmpegPath string
	devices    map[FacingMode]string
	lockDir    string
	logger     *slog.Logger
}

func NewFFmpegDevice(cfg config.Camera, logger *slog.Logger) (*FFmpegDevice, error) {
	ffmpegPath := strings.TrimSpace(cfg.FFmpegPath)
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	resolved, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	lockDir := strings.TrimSpace(cfg.LockDir)
	if lockDir == "" {
		lockDir = os.TempDir()
	}

	devices := map[FacingMode]string{}
	if dev := strings.TrimSpace(cfg.EnvironmentDevice); dev != "" {
		devices[FacingEnvironment] = dev
	}
	if dev := strings.TrimSpace(cfg.UserDevice); dev != "" {
		devices[FacingUser] = dev
	}

	return &FFmpegDevice{
		ffmpegPath: resolved,
		devices:    devices,
		lockDir:    lockDir,
		logger:     logging.NewComponentLogger(logger, "camera"),
	}, nil
}

// devicePath maps a facing mode to a device, falling back to whichever
// camera exists.
func (d *FFmpegDevice) devicePath(facing FacingMode) (string, error) {
	if path, ok := d.devices[facing]; ok {
		return path, nil
	}
	for _, mode := range []FacingMode{FacingEnvironment, FacingUser} {
		if path, ok := d.devices[mode]; ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no device configured", ErrDeviceUnavailable)
}

func (d *FFmpegDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	path, err := d.devicePath(c.Facing)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(path); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(d.lockDir, "breedid-"+filepath.Base(path)+".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: lock %s: %v", ErrDeviceBusy, path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is held by another stream", ErrDeviceBusy, path)
	}

	width, height := c.Width, c.Height
	if width <= 0 || height <= 0 {
		width, height = DefaultConstraints.Width, DefaultConstraints.Height
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, d.ffmpegPath,
		"-loglevel", "error",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-i", path,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to create ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		_ = lock.Unlock()
		return nil, fmt.Errorf("%w: start ffmpeg: %v", ErrDeviceUnavailable, err)
	}

	s := &ffmpegStream{
		cmd:        cmd,
		cancel:     cancel,
		lock:       lock,
		stderr:     &stderr,
		firstFrame: make(chan struct{}),
		done:       make(chan struct{}),
		logger:     d.logger.With(slog.String("device", path)),
	}
	s.track = newVideoTrack(path, s.release)
	go s.readFrames(stdout)

	select {
	case <-s.firstFrame:
		s.logger.Info("camera stream opened",
			slog.String(logging.FieldEventType, "camera_opened"),
			slog.Int("width", width),
			slog.Int("height", height),
		)
		return s, nil
	case <-s.done:
		_ = s.Stop()
		return nil, fmt.Errorf("%w: %s", ErrDeviceUnavailable, s.failureReason())
	case <-ctx.Done():
		_ = s.Stop()
		return nil, ctx.Err()
	}
}

func checkAccess(path string) error {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	switch {
	case err == nil:
		return f.Close()
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s does not exist", ErrDeviceUnavailable, path)
	default:
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	lock   *flock.Flock
	stderr *bytes.Buffer
	track  *videoTrack
	logger *slog.Logger

	firstFrame chan struct{}
	firstOnce  sync.Once
	done       chan struct{}

	mu      sync.Mutex
	latest  []byte
	stopped bool
}

func (s *ffmpegStream) readFrames(r io.Reader) {
	defer close(s.done)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), maxFrameSize)
	scanner.Split(scanJPEG)
	for scanner.Scan() {
		frame := append([]byte(nil), scanner.Bytes()...)
		s.mu.Lock()
		s.latest = frame
		s.mu.Unlock()
		s.firstOnce.Do(func() { close(s.firstFrame) })
	}
}

func (s *ffmpegStream) failureReason() string {
	if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
		return msg
	}
	return "ffmpeg exited"
}

func (s *ffmpegStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	stopped := s.stopped
	data := s.latest
	s.mu.Unlock()

	if stopped {
		return nil, ErrStreamStopped
	}
	select {
	case <-s.done:
		// ffmpeg exited on its own, e.g. the camera was unplugged.
		return nil, fmt.Errorf("%w: %s", ErrDeviceUnavailable, s.failureReason())
	default:
	}
	if data == nil {
		return nil, errors.New("no frame available yet")
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode camera frame: %w", err)
	}
	return img, nil
}

func (s *ffmpegStream) Tracks() []Track {
	return []Track{s.track}
}

func (s *ffmpegStream) Stop() error {
	s.track.Stop()
	return nil
}

func (s *ffmpegStream) release() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.latest = nil
	s.mu.Unlock()

	s.cancel()
	<-s.done
	_ = s.cmd.Wait()
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release camera lock", logging.Error(err))
	}
	s.logger.Info("camera stream released",
		slog.String(logging.FieldEventType, "camera_released"),
	)
}

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// scanJPEG is a bufio.SplitFunc that yields complete JPEG images from a
// concatenated MJPEG byte stream.
func scanJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF in case it starts the next marker.
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}
	stop := start + len(jpegSOI) + end + len(jpegEOI)
	return stop, data[start:stop], nil
}
