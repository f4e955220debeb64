package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateInference(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateImaging(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind must be set")
	}
	if c.Server.MaxUploadSize <= 0 {
		return errors.New("server.max_upload_size must be positive")
	}
	if c.Server.SessionTTLSeconds <= 0 {
		return errors.New("server.session_ttl_seconds must be positive")
	}
	return nil
}

func (c *Config) validateCamera() error {
	switch c.Camera.Driver {
	case "ffmpeg":
		if strings.TrimSpace(c.Camera.EnvironmentDevice) == "" {
			return errors.New("camera.environment_device must be set for the ffmpeg driver")
		}
	case "pattern":
	default:
		return fmt.Errorf("camera.driver %q is not supported (ffmpeg, pattern)", c.Camera.Driver)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return errors.New("camera.width and camera.height must be positive")
	}
	if c.Camera.JPEGQuality < 1 || c.Camera.JPEGQuality > 100 {
		return errors.New("camera.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateInference() error {
	if endpoint := strings.TrimSpace(c.Inference.Endpoint); endpoint != "" {
		u, err := url.Parse(endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("inference.endpoint %q is not an absolute URL", endpoint)
		}
	}
	if c.Inference.TimeoutSeconds <= 0 {
		return errors.New("inference.timeout_seconds must be positive")
	}
	if c.Inference.MockMinLatencyMS < 0 || c.Inference.MockMaxLatencyMS < c.Inference.MockMinLatencyMS {
		return errors.New("inference mock latency range is invalid")
	}
	if c.Inference.MockConfidence < 0 || c.Inference.MockConfidence > 100 {
		return errors.New("inference.mock_confidence must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	if strings.TrimSpace(c.Connectivity.ProbeAddress) == "" {
		return errors.New("connectivity.probe_address must be set")
	}
	if c.Connectivity.ProbeTimeoutSeconds <= 0 {
		return errors.New("connectivity.probe_timeout_seconds must be positive")
	}
	if c.Connectivity.PollIntervalSeconds <= 0 {
		return errors.New("connectivity.poll_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateImaging() error {
	if c.Imaging.MaxImportDimension < 0 {
		return errors.New("imaging.max_import_dimension must not be negative")
	}
	if c.Imaging.MaxImportPixels <= 0 {
		return errors.New("imaging.max_import_pixels must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level %q is invalid", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is invalid (auto, text, json)", c.Logging.Format)
	}
	return nil
}
