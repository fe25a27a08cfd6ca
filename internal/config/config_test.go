package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	bridge "github.com/flywave/go-anari-bridge"
)

func parse(t *testing.T, args ...string) *Flags {
	t.Helper()
	fs := flag.NewFlagSet("anari-bridge", flag.ContinueOnError)
	f := NewFlags(fs)
	require.NoError(t, fs.Parse(args))
	return f
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, bridge.DefaultIndexLimit, cfg.Bridge.MaxIndex)
	assert.False(t, cfg.Bridge.StrictClearcoat)
	assert.Empty(t, cfg.Export.MstPath)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Logging.File.Path)
	assert.Equal(t, 50, cfg.Logging.File.MaxSizeMB)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
bridge:
  max_index: 65535
  strict_clearcoat: true
export:
  mst_path: out.mst
logging:
  level: warn
  file:
    path: bridge.log
    max_backups: 9
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	cfg, err := Load(parse(t, "-config", path, "model.glb"))
	require.NoError(t, err)
	assert.Equal(t, uint64(65535), cfg.Bridge.MaxIndex)
	assert.True(t, cfg.Bridge.StrictClearcoat)
	assert.Equal(t, "out.mst", cfg.Export.MstPath)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "bridge.log", cfg.Logging.File.Path)
	assert.Equal(t, 9, cfg.Logging.File.MaxBackups)
	assert.Equal(t, 50, cfg.Logging.File.MaxSizeMB, "unset keys keep their defaults")
}

func TestFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bridge:\n  max_index: 100\nlogging:\n  level: error\n"), 0644))

	f := parse(t, "-config", path, "-debug", "-strict-clearcoat", "-max-index", "7", "-mst", "snap.mst", "-log-file", "run.log", "scene.obj")
	cfg, err := Load(f)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), cfg.Bridge.MaxIndex)
	assert.True(t, cfg.Bridge.StrictClearcoat)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "snap.mst", cfg.Export.MstPath)
	assert.Equal(t, "run.log", cfg.Logging.File.Path)
	assert.Equal(t, []string{"scene.obj"}, f.Args())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(parse(t, "-config", filepath.Join(t.TempDir(), "none.yaml")))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bridge: [unclosed"), 0644))
	_, err := Load(parse(t, "-config", path))
	assert.Error(t, err)
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Bridge.MaxIndex = 42
	cfg.Export.MstPath = "x.mst"
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := Load(parse(t, "-config", path))
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestBridgeOptions(t *testing.T) {
	cfg := Default()
	cfg.Bridge.StrictClearcoat = true
	log := zap.NewNop()
	opts := cfg.BridgeOptions(log)
	assert.Equal(t, bridge.DefaultIndexLimit, opts.DefaultIndexLimit)
	assert.True(t, opts.StrictClearcoat)
	assert.Same(t, log, opts.Logger)
}
