// Package config loads application settings from a TOML file and fills in
// defaults for everything left unset.
package config

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
)

// Config is the full application configuration.
type Config struct {
	App    App    `toml:"app"`
	Window Window `toml:"window"`
	Render Render `toml:"render"`
	Shader Shader `toml:"shader"`
}

type App struct {
	// Name is used for the window title and the instance application info.
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`
}

type Window struct {
	PosX   uint32 `toml:"pos_x"`
	PosY   uint32 `toml:"pos_y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type Render struct {
	// FramesInFlight bounds how many frames may be recording or executing
	// at once, 1 to 3.
	FramesInFlight int `toml:"frames_in_flight"`
	// VSync selects FIFO presentation; off prefers mailbox when available.
	VSync      bool       `toml:"vsync"`
	Validation bool       `toml:"validation"`
	ClearColor [4]float32 `toml:"clear_color"`
}

type Shader struct {
	// Dir is watched for recompiled SPIR-V when HotReload is on.
	VertexPath   string `toml:"vertex_path"`
	FragmentPath string `toml:"fragment_path"`
	HotReload    bool   `toml:"hot_reload"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		App: App{
			Name:     "prism",
			LogLevel: "info",
		},
		Window: Window{
			PosX:   100,
			PosY:   100,
			Width:  1280,
			Height: 720,
		},
		Render: Render{
			FramesInFlight: 2,
			VSync:          true,
			ClearColor:     [4]float32{0.0, 0.0, 0.2, 1.0},
		},
		Shader: Shader{
			VertexPath:   "shaders/shader.vert.spv",
			FragmentPath: "shaders/shader.frag.spv",
		},
	}
}

// Load reads path and overlays it on the defaults. An empty path returns the
// defaults untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name must not be empty")
	}
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("window size %dx%d is not drawable", c.Window.Width, c.Window.Height)
	}
	if c.Render.FramesInFlight < 1 || c.Render.FramesInFlight > 3 {
		return fmt.Errorf("render.frames_in_flight must be 1..3, got %d", c.Render.FramesInFlight)
	}
	if _, err := log.ParseLevel(c.App.LogLevel); err != nil {
		return fmt.Errorf("app.log_level: %w", err)
	}
	return nil
}

// LogLevel parses the configured level. Call after Load has validated it.
func (c Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.App.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
