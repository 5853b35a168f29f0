package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novasql.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pool_size: 128\nreplacer_k: 3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 128, cfg.PoolSize)
	require.Equal(t, 3, cfg.ReplacerK)
	require.Equal(t, Defaults().LeafMaxSize, cfg.LeafMaxSize)
	require.Equal(t, Defaults().PageSize, cfg.PageSize)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
