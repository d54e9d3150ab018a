package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prism.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 2, cfg.Render.FramesInFlight)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := writeConfig(t, `
[app]
name = "demo"

[window]
width = 640
height = 480

[render]
frames_in_flight = 3
vsync = false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.App.Name)
	assert.Equal(t, uint32(640), cfg.Window.Width)
	assert.Equal(t, 3, cfg.Render.FramesInFlight)
	assert.False(t, cfg.Render.VSync)
	// Untouched sections keep their defaults.
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "shaders/shader.vert.spv", cfg.Shader.VertexPath)
}

func TestLoadRejectsBadValues(t *testing.T) {
	for name, body := range map[string]string{
		"zero window":     "[window]\nwidth = 0\n",
		"too many frames": "[render]\nframes_in_flight = 4\n",
		"no frames":       "[render]\nframes_in_flight = 0\n",
		"bad level":       "[app]\nlog_level = \"chatty\"\n",
		"empty name":      "[app]\nname = \"\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
