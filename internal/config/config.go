package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

type Server struct {
	Bind               string `toml:"bind"`
	MaxUploadSize      int64  `toml:"max_upload_size"`
	SessionTTLSeconds  int    `toml:"session_ttl_seconds"`
	ShutdownTimeoutSec int    `toml:"shutdown_timeout_seconds"`
}

// Camera maps facing modes onto V4L2 devices. Width and Height are the
// preferred capture resolution handed to the device.
type Camera struct {
	Driver            string `toml:"driver"`
	EnvironmentDevice string `toml:"environment_device"`
	UserDevice        string `toml:"user_device"`
	FFmpegPath        string `toml:"ffmpeg_path"`
	Width             int    `toml:"width"`
	Height            int    `toml:"height"`
	LockDir           string `toml:"lock_dir"`
	JPEGQuality       int    `toml:"jpeg_quality"`
}

// Inference points at the breed recognition service. An empty Endpoint
// selects the built-in mock.
type Inference struct {
	Endpoint         string `toml:"endpoint"`
	APIKey           string `toml:"api_key"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	MockMinLatencyMS int    `toml:"mock_min_latency_ms"`
	MockMaxLatencyMS int    `toml:"mock_max_latency_ms"`
	MockBreed        string `toml:"mock_breed"`
	MockConfidence   int    `toml:"mock_confidence"`
}

type Connectivity struct {
	ProbeAddress        string `toml:"probe_address"`
	ProbeTimeoutSeconds int    `toml:"probe_timeout_seconds"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	Netlink             bool   `toml:"netlink"`
}

// Imaging limits imported photos. MaxImportPixels is checked against the
// image header before decoding.
type Imaging struct {
	MaxImportDimension int `toml:"max_import_dimension"`
	MaxImportPixels    int `toml:"max_import_pixels"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Config struct {
	Server       Server       `toml:"server"`
	Camera       Camera       `toml:"camera"`
	Inference    Inference    `toml:"inference"`
	Connectivity Connectivity `toml:"connectivity"`
	Imaging      Imaging      `toml:"imaging"`
	Logging      Logging      `toml:"logging"`
}

func Default() Config {
	return Config{
		Server: Server{
			Bind:               ":8080",
			MaxUploadSize:      10 << 20,
			SessionTTLSeconds:  600,
			ShutdownTimeoutSec: 10,
		},
		Camera: Camera{
			Driver:            "ffmpeg",
			EnvironmentDevice: "/dev/video0",
			FFmpegPath:        "ffmpeg",
			Width:             1280,
			Height:            720,
			JPEGQuality:       80,
		},
		Inference: Inference{
			TimeoutSeconds:   30,
			MockMinLatencyMS: 1000,
			MockMaxLatencyMS: 3000,
			MockBreed:        "Holstein Friesian",
			MockConfidence:   92,
		},
		Connectivity: Connectivity{
			ProbeAddress:        "1.1.1.1:53",
			ProbeTimeoutSeconds: 3,
			PollIntervalSeconds: 15,
			Netlink:             true,
		},
		Imaging: Imaging{
			MaxImportDimension: 2048,
			MaxImportPixels:    40_000_000,
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads the TOML file at path (when it exists), applies environment
// overrides and validates the result. It returns the resolved path and whether
// a file was found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolvePath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolved, exists, nil
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Bind = ":" + port
	}
	if v := os.Getenv("MAX_UPLOAD_SIZE"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_SIZE: %w", err)
		}
		c.Server.MaxUploadSize = size
	}
	if v := os.Getenv("CAMERA_DEVICE"); v != "" {
		c.Camera.EnvironmentDevice = v
	}
	if v := os.Getenv("CAMERA_DRIVER"); v != "" {
		c.Camera.Driver = v
	}
	if v := os.Getenv("INFERENCE_ENDPOINT"); v != "" {
		c.Inference.Endpoint = v
	}
	if v := os.Getenv("INFERENCE_API_KEY"); v != "" {
		c.Inference.APIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

func resolvePath(path string) (string, bool, error) {
	if path == "" {
		path = os.Getenv("BREEDID_CONFIG")
	}
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return "", false, err
		}
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", false, fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return path, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", path)
	}
	return path, true, nil
}

// DefaultPath returns ~/.config/breedid/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(dir, "breedid", "config.toml"), nil
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Server.SessionTTLSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}

func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.Inference.TimeoutSeconds) * time.Second
}

func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Connectivity.ProbeTimeoutSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Connectivity.PollIntervalSeconds) * time.Second
}

// UsesMockInference reports whether no inference endpoint is configured.
func (c *Config) UsesMockInference() bool {
	return strings.TrimSpace(c.Inference.Endpoint) == ""
}
