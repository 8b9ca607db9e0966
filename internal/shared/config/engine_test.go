package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadEngine_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadEngine("")
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Engine.Workers)
	require.Equal(t, int64(64<<20), cfg.Engine.MapBlockBytes)
	require.Equal(t, int64(10<<20), cfg.Engine.ReduceBufferBytes)
	require.Empty(t, cfg.Engine.TempRoot)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEngine_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	content := `
engine:
  workers: 8
  map_block_bytes: 1024
  temp_root: /scratch
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadEngine(path)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Engine.Workers)
	require.Equal(t, int64(1024), cfg.Engine.MapBlockBytes)
	require.Equal(t, int64(10<<20), cfg.Engine.MapBufferBytes)
	require.Equal(t, "/scratch", cfg.Engine.TempRoot)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadEngine_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  workers: 2\n"), 0o644))

	t.Setenv("DISKMR_ENGINE_WORKERS", "6")
	t.Setenv("DISKMR_LOGGING_LEVEL", "warn")

	cfg, err := LoadEngine(path)
	require.NoError(t, err)
	require.Equal(t, 6, cfg.Engine.Workers)
	require.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadEngine_Errors(t *testing.T) {
	_, err := LoadEngine(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  workers: -1\n"), 0o644))
	_, err = LoadEngine(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  format: xml\n"), 0o644))
	_, err = LoadEngine(path)
	require.Error(t, err)
}
