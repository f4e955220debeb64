package camera

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kdimtricp/breedid/internal/config"
	"github.com/kdimtricp/breedid/internal/logging"
)

// NewDevice builds the device selected by cfg.Driver. A missing ffmpeg binary
// is not fatal: the returned device reports ErrDeviceUnavailable on every
// Open so live sessions can fall back to import.
func NewDevice(cfg config.Camera, logger *slog.Logger) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "ffmpeg":
		dev, err := NewFFmpegDevice(cfg, logger)
		if err != nil {
			logging.NewComponentLogger(logger, "camera").Warn("camera disabled",
				slog.String(logging.FieldEventType, "camera_disabled"),
				logging.Error(err),
			)
			return UnavailableDevice{Reason: err}, nil
		}
		return dev, nil
	case "pattern":
		return NewPatternDevice(), nil
	default:
		return nil, fmt.Errorf("unknown camera driver %q", cfg.Driver)
	}
}

// UnavailableDevice stands in for a camera that cannot be used at all.
type UnavailableDevice struct {
	Reason error
}

func (d UnavailableDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if d.Reason == nil {
		return nil, ErrDeviceUnavailable
	}
	return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, d.Reason)
}
