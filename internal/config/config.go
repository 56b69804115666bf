// Package config holds the follower's startup configuration. Values are
// fixed once the control loop starts.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ayusman/tagfollower/internal/detector"
	"github.com/ayusman/tagfollower/internal/policy"
)

// Defaults for the reference robot.
const (
	DefaultSource      = "0"
	DefaultFrameWidth  = 160
	DefaultFrameHeight = 120
	DefaultTagSize     = 0.7   // meters
	DefaultFocalLength = 125.0 // pixels
	DefaultTopic       = "/tb3_1/cmd_vel"
	DefaultBaudRate    = 115200
	DefaultWindowTitle = "AprilTag Detection"
	DefaultLogLevel    = "info"
	DefaultStreamFPS   = 15
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// CameraConfig selects the video source and the processing frame size.
type CameraConfig struct {
	// Source is a device index ("0") or a video file path.
	Source string `json:"source"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// MarkerConfig describes the physical marker and the lens.
type MarkerConfig struct {
	Dictionary  string  `json:"dictionary"`
	SizeMeters  float64 `json:"size_m"`
	FocalLength float64 `json:"focal_length_px"`
}

// SerialConfig configures the serial motor link. An empty Port disables it.
type SerialConfig struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baud_rate"`
}

// BridgeConfig configures the bridge subprocess. An empty Command disables it.
type BridgeConfig struct {
	Command []string `json:"command"`
}

// PublishConfig controls where velocity commands go.
type PublishConfig struct {
	Topic      string       `json:"topic"`
	Serial     SerialConfig `json:"serial"`
	UDPAddr    string       `json:"udp_addr"`
	Bridge     BridgeConfig `json:"bridge"`
	StopOnExit bool         `json:"stop_on_exit"`
}

// ServerConfig controls the HTTP server. An empty Addr disables it.
type ServerConfig struct {
	Addr      string `json:"addr"`
	StreamFPS int    `json:"stream_fps"`
}

// StoreConfig controls telemetry persistence. An empty Path disables it.
type StoreConfig struct {
	Path string `json:"path"`
}

// RenderConfig controls the diagnostic window.
type RenderConfig struct {
	Window bool   `json:"window"`
	Title  string `json:"title"`
}

// LogConfig controls console logging.
type LogConfig struct {
	Level string `json:"level"`
}

// Config aggregates all configuration sections.
type Config struct {
	Camera  CameraConfig  `json:"camera"`
	Marker  MarkerConfig  `json:"marker"`
	Policy  policy.Config `json:"policy"`
	Publish PublishConfig `json:"publish"`
	Server  ServerConfig  `json:"server"`
	Store   StoreConfig   `json:"store"`
	Render  RenderConfig  `json:"render"`
	Log     LogConfig     `json:"log"`
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		Camera: CameraConfig{
			Source: DefaultSource,
			Width:  DefaultFrameWidth,
			Height: DefaultFrameHeight,
		},
		Marker: MarkerConfig{
			Dictionary:  detector.DefaultConfig().Dictionary,
			SizeMeters:  DefaultTagSize,
			FocalLength: DefaultFocalLength,
		},
		Policy: policy.DefaultConfig(),
		Publish: PublishConfig{
			Topic:      DefaultTopic,
			Serial:     SerialConfig{BaudRate: DefaultBaudRate},
			StopOnExit: true,
		},
		Server: ServerConfig{StreamFPS: DefaultStreamFPS},
		Render: RenderConfig{Window: true, Title: DefaultWindowTitle},
		Log:    LogConfig{Level: DefaultLogLevel},
	}
}

// Load reads a JSON config from disk on top of the defaults, so a file
// only needs the fields it changes.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration before any resource is opened.
func (c Config) Validate() error {
	if c.Camera.Source == "" {
		return fmt.Errorf("%w: camera.source must be set", ErrInvalid)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("%w: camera size must be positive, got %dx%d", ErrInvalid, c.Camera.Width, c.Camera.Height)
	}
	if c.Policy.FrameWidth != c.Camera.Width {
		return fmt.Errorf("%w: policy.frame_width (%d) must match camera.width (%d)",
			ErrInvalid, c.Policy.FrameWidth, c.Camera.Width)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Marker.SizeMeters <= 0 {
		return fmt.Errorf("%w: marker.size_m must be > 0", ErrInvalid)
	}
	if c.Marker.FocalLength <= 0 {
		return fmt.Errorf("%w: marker.focal_length_px must be > 0", ErrInvalid)
	}
	if c.Publish.Topic == "" {
		return fmt.Errorf("%w: publish.topic must be set", ErrInvalid)
	}
	if c.Publish.Serial.Port != "" && c.Publish.Serial.BaudRate <= 0 {
		return fmt.Errorf("%w: publish.serial.baud_rate must be > 0", ErrInvalid)
	}
	if c.Server.Addr != "" && c.Server.StreamFPS <= 0 {
		return fmt.Errorf("%w: server.stream_fps must be > 0", ErrInvalid)
	}
	return nil
}
