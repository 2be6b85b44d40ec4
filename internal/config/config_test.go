package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("empty file keeps defaults", func(t *testing.T) {
		cfg, err := Parse([]byte(""))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("overrides", func(t *testing.T) {
		cfg, err := Parse([]byte(`
backend:
  type: minio
  location: drive
  timeout: 10s
  minio:
    endpoint: localhost:9000
    accessKey: ak
catalog:
  ttl: 30s
describe:
  provider: ollama
  model: llama3
archive:
  missing: abort
`))
		require.NoError(t, err)
		assert.Equal(t, "minio", cfg.Backend.Type)
		assert.Equal(t, "drive", cfg.Backend.Location)
		assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
		assert.Equal(t, "localhost:9000", cfg.Backend.MinIO.Endpoint)
		assert.Equal(t, 30*time.Second, cfg.Catalog.TTL)
		assert.Equal(t, "ollama", cfg.Describe.Provider)
		assert.Equal(t, "llama3", cfg.Describe.Model)
		assert.Equal(t, "abort", cfg.Archive.Missing)
		// untouched sections keep their defaults
		assert.Equal(t, 4, cfg.Upload.Workers)
		assert.Equal(t, "RedDrive_Archive.zip", cfg.Archive.Name)
	})

	t.Run("rejects unknown backend", func(t *testing.T) {
		_, err := Parse([]byte("backend:\n  type: ftp\n"))
		assert.Error(t, err)
	})

	t.Run("remote backend needs a bucket", func(t *testing.T) {
		_, err := Parse([]byte("backend:\n  type: gcs\n  location: \"\"\n"))
		assert.Error(t, err)
	})

	t.Run("rejects bad yaml", func(t *testing.T) {
		_, err := Parse([]byte("backend: [\n"))
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(p, []byte("server:\n  address: \":9999\"\n"), 0600))
		cfg, err := Load(p)
		require.NoError(t, err)
		assert.Equal(t, ":9999", cfg.Server.Address)
	})

	t.Run("explicit missing path fails", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
		assert.Error(t, err)
	})

	t.Run("environment path", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "env.yml")
		require.NoError(t, os.WriteFile(p, []byte("upload:\n  workers: 3\n"), 0600))
		t.Setenv("REDDRIVE_CONFIG", p)
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Upload.Workers)
	})

	t.Run("missing environment path fails", func(t *testing.T) {
		t.Setenv("REDDRIVE_CONFIG", filepath.Join(t.TempDir(), "typo.yml"))
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("missing default file yields defaults", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		t.Setenv("REDDRIVE_CONFIG", "")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})
}
