package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismengine/prism/engine/core"
)

func TestLoadSPIRV(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.spv")
	require.NoError(t, os.WriteFile(good, []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 0, 0}, 0o644))
	code, err := LoadSPIRV(good)
	require.NoError(t, err)
	assert.Len(t, code, 8)

	bad := filepath.Join(dir, "bad.spv")
	require.NoError(t, os.WriteFile(bad, []byte{1, 2, 3}, 0o644))
	_, err = LoadSPIRV(bad)
	assert.Error(t, err)

	_, err = LoadSPIRV(filepath.Join(dir, "missing.spv"))
	assert.Error(t, err)
}

func TestShaderWatcherReportsRewrites(t *testing.T) {
	dir := t.TempDir()
	watchedPath := filepath.Join(dir, "shader.vert.spv")
	ignoredPath := filepath.Join(dir, "other.spv")
	require.NoError(t, os.WriteFile(watchedPath, []byte{0, 0, 0, 0}, 0o644))
	require.NoError(t, os.WriteFile(ignoredPath, []byte{0, 0, 0, 0}, 0o644))

	sw, err := NewShaderWatcher(core.NopLogger(), watchedPath)
	require.NoError(t, err)
	defer sw.Close()

	require.NoError(t, os.WriteFile(ignoredPath, []byte{1, 1, 1, 1}, 0o644))
	require.NoError(t, os.WriteFile(watchedPath, []byte{1, 1, 1, 1}, 0o644))

	select {
	case changed := <-sw.Changes():
		abs, _ := filepath.Abs(watchedPath)
		assert.Equal(t, abs, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event for watched shader")
	}
}
