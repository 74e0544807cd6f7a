// Package config loads the Hands Off YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding a config file path.
const EnvVar = "HANDSOFF_CONFIG"

// Config represents the complete Hands Off configuration.
type Config struct {
	Camera     CameraConfig     `yaml:"camera"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Training   TrainingConfig   `yaml:"training"`
	Alert      AlertConfig      `yaml:"alert"`
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Log        LogConfig        `yaml:"log"`
	Tray       TrayConfig       `yaml:"tray"`
}

// CameraConfig contains camera settings.
type CameraConfig struct {
	Device int `yaml:"device"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`
}

// EmbedderConfig points at the feature-extraction network.
type EmbedderConfig struct {
	Model       string  `yaml:"model"`
	Config      string  `yaml:"config"`       // optional network description (.prototxt, .pbtxt)
	OutputLayer string  `yaml:"output_layer"` // empty uses the network's default output
	InputSize   int     `yaml:"input_size"`
	Scale       float64 `yaml:"scale"`
	Mean        float64 `yaml:"mean"`
	SwapRB      bool    `yaml:"swap_rb"`
}

// ClassifierConfig contains the k-NN and run loop settings.
type ClassifierConfig struct {
	K                   int           `yaml:"k"`
	Metric              string        `yaml:"metric"` // cosine, euclidean
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	RunInterval         time.Duration `yaml:"run_interval"`
}

// TrainingConfig contains training burst settings.
type TrainingConfig struct {
	Repetitions int           `yaml:"repetitions"`
	Interval    time.Duration `yaml:"interval"`
}

// AlertConfig contains alert sink settings.
type AlertConfig struct {
	PluginDir      string        `yaml:"plugin_dir"`
	Plugin         string        `yaml:"plugin"`
	Sound          string        `yaml:"sound"`
	Title          string        `yaml:"title"`
	Body           string        `yaml:"body"`
	NotifyCooldown time.Duration `yaml:"notify_cooldown"`
	SilentCooldown time.Duration `yaml:"silent_cooldown"`
	Timeout        time.Duration `yaml:"timeout"`
}

// ServerConfig contains the local HTTP server settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	Stream    bool   `yaml:"stream"`
}

// StoreConfig contains journal settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
}

// TrayConfig contains system tray settings.
type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{Device: 0, Width: 640, Height: 480, FPS: 15},
		Embedder: EmbedderConfig{
			Model:     filepath.Join(homeDir(), "models", "mobilenet_v2.onnx"),
			InputSize: 224,
			Scale:     1.0 / 127.5,
			Mean:      127.5,
			SwapRB:    true,
		},
		Classifier: ClassifierConfig{
			K:                   3,
			Metric:              "cosine",
			ConfidenceThreshold: 0.8,
			RunInterval:         200 * time.Millisecond,
		},
		Training: TrainingConfig{
			Repetitions: 50,
			Interval:    100 * time.Millisecond,
		},
		Alert: AlertConfig{
			PluginDir:      filepath.Join(homeDir(), "plugins"),
			Plugin:         "desktop-alert",
			Sound:          filepath.Join(homeDir(), "sounds", "alert.wav"),
			Title:          "Hands off!",
			Body:           "You've just touched your face!",
			NotifyCooldown: 3 * time.Second,
			SilentCooldown: 2 * time.Second,
			Timeout:        10 * time.Second,
		},
		Server: ServerConfig{Addr: "127.0.0.1:8420", Stream: true},
		Store:  StoreConfig{Path: filepath.Join(homeDir(), "journal.db")},
		Log:    LogConfig{Level: "info", Format: "text"},
		Tray:   TrayConfig{Enabled: true},
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Resolve returns the config file to load: explicit, then $HANDSOFF_CONFIG,
// then ./handsoff.yaml, then ~/.handsoff/config.yaml. It returns "" when
// none exists.
func Resolve(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvVar); env != "" {
		return env
	}
	for _, p := range []string{"handsoff.yaml", filepath.Join(homeDir(), "config.yaml")} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadOrDefault loads the resolved config file, or the defaults when there is none.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path := Resolve(explicit)
	if path == "" {
		return Default(), "", nil
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.Classifier.K < 1 {
		errs = append(errs, fmt.Errorf("classifier.k must be at least 1, got %d", c.Classifier.K))
	}
	if c.Classifier.ConfidenceThreshold <= 0 || c.Classifier.ConfidenceThreshold >= 1 {
		errs = append(errs, fmt.Errorf("classifier.confidence_threshold must be in (0,1), got %v", c.Classifier.ConfidenceThreshold))
	}
	if c.Classifier.Metric != "cosine" && c.Classifier.Metric != "euclidean" {
		errs = append(errs, fmt.Errorf("classifier.metric must be cosine or euclidean, got %q", c.Classifier.Metric))
	}
	if c.Classifier.RunInterval <= 0 {
		errs = append(errs, errors.New("classifier.run_interval must be positive"))
	}
	if c.Training.Repetitions < 1 {
		errs = append(errs, fmt.Errorf("training.repetitions must be at least 1, got %d", c.Training.Repetitions))
	}
	if c.Training.Interval <= 0 {
		errs = append(errs, errors.New("training.interval must be positive"))
	}
	if c.Camera.FPS < 1 {
		errs = append(errs, fmt.Errorf("camera.fps must be at least 1, got %d", c.Camera.FPS))
	}
	if c.Alert.Timeout <= 0 {
		errs = append(errs, errors.New("alert.timeout must be positive"))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// YAML returns the configuration encoded as YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".handsoff"
	}
	return filepath.Join(home, ".handsoff")
}
