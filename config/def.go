package config

import (
	"fmt"
	"os"

	iface "VisionTracker/interface"

	"gopkg.in/yaml.v3"
)

type CameraConfig struct {
	Width       int `yaml:"width"`
	Height      int `yaml:"height"`
	FPS         int `yaml:"fps"`
	DeviceIndex int `yaml:"deviceIndex"`
}

type ModelConfig struct {
	Backend             string  `yaml:"backend"` // auto, yolo, remote, mock
	Name                string  `yaml:"name"`
	ConfidenceThreshold float32 `yaml:"confidenceThreshold"`
	IouThreshold        float32 `yaml:"iouThreshold"`
	Device              string  `yaml:"device"` // auto, cpu, cuda
	CacheDir            string  `yaml:"cacheDir"`
	RemoteEndpoint      string  `yaml:"remoteEndpoint"`
}

type DisplayConfig struct {
	WindowWidth    int     `yaml:"windowWidth"`
	WindowHeight   int     `yaml:"windowHeight"`
	Fullscreen     bool    `yaml:"fullscreen"`
	ShowFPS        bool    `yaml:"showFps"`
	ShowConfidence bool    `yaml:"showConfidence"`
	FontScale      float64 `yaml:"fontScale"`
	LineThickness  int     `yaml:"lineThickness"`
}

type ControlConfig struct {
	Enabled     bool `yaml:"enabled"`
	Port        int  `yaml:"port"`
	MetricsPort int  `yaml:"metricsPort"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"`
	Development bool   `yaml:"development"`
}

type Config struct {
	Camera  CameraConfig  `yaml:"camera"`
	Model   ModelConfig   `yaml:"model"`
	Display DisplayConfig `yaml:"display"`
	Control ControlConfig `yaml:"control"`
	Logging LoggingConfig `yaml:"logging"`
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{Width: 640, Height: 480, FPS: 30, DeviceIndex: 0},
		Model: ModelConfig{
			Backend:             "auto",
			Name:                "yolov8n.onnx",
			ConfidenceThreshold: 0.5,
			IouThreshold:        0.45,
			Device:              "auto",
		},
		Display: DisplayConfig{
			WindowWidth:    960,
			WindowHeight:   720,
			ShowFPS:        true,
			ShowConfidence: true,
			FontScale:      0.6,
			LineThickness:  2,
		},
		Control: ControlConfig{Enabled: true, Port: 8080, MetricsPort: 9091},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a yaml config file. A missing file is not an error: defaults
// are returned so the tracker can always come up.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, &iface.ConfigurationError{Field: path, Err: err}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &iface.ConfigurationError{Field: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges the rest of the pipeline relies on.
func (c *Config) Validate() error {
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return &iface.ConfigurationError{Field: "camera", Err: fmt.Errorf("dimensions must be positive, got %dx%d", c.Camera.Width, c.Camera.Height)}
	}
	if c.Camera.FPS <= 0 {
		return &iface.ConfigurationError{Field: "camera.fps", Err: fmt.Errorf("must be positive, got %d", c.Camera.FPS)}
	}
	if c.Model.ConfidenceThreshold < 0 || c.Model.ConfidenceThreshold > 1 {
		return &iface.ConfigurationError{Field: "model.confidenceThreshold", Err: fmt.Errorf("must be in [0,1], got %g", c.Model.ConfidenceThreshold)}
	}
	if c.Model.IouThreshold < 0 || c.Model.IouThreshold > 1 {
		return &iface.ConfigurationError{Field: "model.iouThreshold", Err: fmt.Errorf("must be in [0,1], got %g", c.Model.IouThreshold)}
	}
	if c.Display.WindowWidth <= 0 || c.Display.WindowHeight <= 0 {
		return &iface.ConfigurationError{Field: "display", Err: fmt.Errorf("window dimensions must be positive")}
	}
	if c.Display.FontScale <= 0 {
		return &iface.ConfigurationError{Field: "display.fontScale", Err: fmt.Errorf("must be positive, got %g", c.Display.FontScale)}
	}
	if c.Display.LineThickness <= 0 {
		return &iface.ConfigurationError{Field: "display.lineThickness", Err: fmt.Errorf("must be positive, got %d", c.Display.LineThickness)}
	}
	return nil
}

// Save writes the configuration back out as yaml.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
