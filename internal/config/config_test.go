package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 128, cfg.Limits.MaxDatasets)
	assert.Equal(t, 16, cfg.Limits.MaxRank)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h5cat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
limits:
  max_datasets: 8
output:
  preview: 3
s3:
  endpoint: http://ceph.local:7480
  path_style: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.Limits.MaxDatasets)
	assert.Equal(t, DefaultMaxRank, cfg.Limits.MaxRank)
	assert.Equal(t, DefaultMaxDepth, cfg.Limits.MaxDepth)
	assert.Equal(t, 3, cfg.Output.Preview)
	assert.True(t, cfg.S3.PathStyle)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvMaxDatasets, "4")
	t.Setenv(EnvS3AccessKey, "key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 4, cfg.Limits.MaxDatasets)
	assert.Equal(t, "key", cfg.S3.AccessKey)
}

func TestLoadErrors(t *testing.T) {
	t.Run("bad env", func(t *testing.T) {
		t.Setenv(EnvMaxRank, "many")
		_, err := Load("")
		assert.ErrorContains(t, err, EnvMaxRank)
	})
	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("limits: [1"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}
