// Package config holds the viewer's startup settings: defaults, the TOML
// config file and color parsing. Command-line flags are applied on top by
// the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"

	"github.com/taigrr/glint/pkg/params"
	"github.com/taigrr/glint/pkg/render"
	"github.com/taigrr/glint/pkg/scene"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full startup configuration. The params table is also
// watched and reloaded while the viewer runs.
type Config struct {
	Env           string  `toml:"env"`            // Environment map path
	EnvBackground bool    `toml:"env_background"` // Show the environment behind the model
	FPS           int     `toml:"fps"`
	PixelRatio    float64 `toml:"pixel_ratio"`
	Background    string  `toml:"bg"` // "R,G,B"
	Smoothing     string  `toml:"smoothing"`
	LogLevel      string  `toml:"log_level"`
	LogFile       string  `toml:"log_file"`

	Params params.Values `toml:"params"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		FPS:        60,
		PixelRatio: 1,
		Background: "0,0,0",
		Smoothing:  scene.SmoothPerFrame.String(),
		LogLevel:   "info",
		LogFile:    filepath.Join(os.TempDir(), "glint.log"),
		Params:     params.Defaults(),
	}
}

// Load reads path over the defaults. Keys the file omits keep their
// default value; params are clamped.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.Params = cfg.Params.Clamped()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings that have no clamped fallback.
func (c Config) Validate() error {
	if c.FPS < 1 || c.FPS > 240 {
		return fmt.Errorf("%w: fps %d outside [1, 240]", ErrInvalid, c.FPS)
	}
	if _, err := ParseColor(c.Background); err != nil {
		return err
	}
	if _, err := scene.ParseSmoothingMode(c.Smoothing); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// BackgroundColor returns the parsed background color, black if invalid.
func (c Config) BackgroundColor() render.Color {
	col, err := ParseColor(c.Background)
	if err != nil {
		return render.ColorBlack
	}
	return col
}

// SmoothingMode returns the parsed idle motion smoothing mode.
func (c Config) SmoothingMode() scene.SmoothingMode {
	m, _ := scene.ParseSmoothingMode(c.Smoothing)
	return m
}

// Level returns the parsed log level, info if invalid.
func (c Config) Level() zapcore.Level {
	l, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// ParseColor parses "R,G,B" with components in 0-255.
func ParseColor(s string) (render.Color, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return render.Color{}, fmt.Errorf("%w: color %q: want R,G,B", ErrInvalid, s)
	}
	var rgb [3]uint8
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return render.Color{}, fmt.Errorf("%w: color %q: %w", ErrInvalid, s, err)
		}
		rgb[i] = uint8(v)
	}
	return render.RGB(rgb[0], rgb[1], rgb[2]), nil
}
