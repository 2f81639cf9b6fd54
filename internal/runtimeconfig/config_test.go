package runtimeconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgrove/ecsruntime/internal/runtimeconfig"
)

func TestDefaults(t *testing.T) {
	cfg := runtimeconfig.Defaults()
	assert.Equal(t, 4096, cfg.World.DefaultSize)
	assert.Equal(t, 0.01, cfg.World.RecycleFraction)
	assert.Equal(t, "binary", cfg.Serializer.DefaultMode)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	const doc = `
[world]
default_size = 1024
recycle_fraction = 0.05

[serializer]
default_mode = "json"

[logging]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := runtimeconfig.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.World.DefaultSize)
	assert.Equal(t, 0.05, cfg.World.RecycleFraction)
	assert.Equal(t, "json", cfg.Serializer.DefaultMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	const doc = `
world:
  default_size: 2048
  recycle_fraction: 0.1
serializer:
  default_mode: base64
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := runtimeconfig.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.World.DefaultSize)
	assert.Equal(t, 0.1, cfg.World.RecycleFraction)
	assert.Equal(t, "base64", cfg.Serializer.DefaultMode)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := runtimeconfig.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
