package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "/etc/levelset/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, Default().Server.Listen, cfg.Server.Listen)
	assert.Equal(t, "http://127.0.0.1:1234/v1", cfg.Upstream.BaseURL)
	assert.Equal(t, 15, cfg.Upstream.HeartbeatSeconds)
	assert.Equal(t, 500, cfg.Audit.Capacity)
	assert.Equal(t, Dir(), cfg.Printer.Dir)
}

func TestLoad_PrinterDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c.yaml", []byte("printer:\n  dir: ~/spool\n"), 0o600))

	cfg, err := Load(fs, "/c.yaml")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(cfg.Printer.Dir, "spool"))
	assert.False(t, strings.HasPrefix(cfg.Printer.Dir, "~"))

	require.NoError(t, afero.WriteFile(fs, "/off.yaml", []byte("printer:\n  dir: \"\"\n"), 0o600))
	cfg, err = Load(fs, "/off.yaml")
	require.NoError(t, err)
	assert.Empty(t, cfg.Printer.Dir, "an empty dir disables printing")
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg/config.yaml", []byte(`
server:
  listen: 127.0.0.1:9000
upstream:
  model: qwen2.5
  heartbeat_seconds: 5
log:
  level: debug
`), 0o600))

	t.Setenv("LEVELSET_UPSTREAM_MODEL", "llama3")
	t.Setenv("LEVELSET_DATABASE_PATH", "~/data/levelset.db")

	cfg, err := Load(fs, "/cfg/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
	assert.Equal(t, "llama3", cfg.Upstream.Model, "environment wins over the file")
	assert.Equal(t, 5, cfg.Upstream.HeartbeatSeconds)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, strings.HasPrefix(cfg.Database.Path, "~"), "home directory is expanded")
	assert.True(t, strings.HasSuffix(cfg.Database.Path, filepath.Join("data", "levelset.db")))
	assert.Equal(t, "text", cfg.Log.Format, "unset keys keep their defaults")
}

func TestLoad_ValidationFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c.yaml", []byte("log:\n  format: xml\n"), 0o600))

	_, err := Load(fs, "/c.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoad_MalformedFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c.yaml", []byte("server: [unclosed"), 0o600))

	_, err := Load(fs, "/c.yaml")
	assert.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/home/me/.levelset/config.yaml"

	require.NoError(t, WriteDefault(fs, path, false))

	err := WriteDefault(fs, path, false)
	assert.True(t, errors.Is(err, ErrConfigExists))
	assert.NoError(t, WriteDefault(fs, path, true))

	cfg, err := Load(fs, path)
	require.NoError(t, err)
	assert.Equal(t, Default().Upstream, cfg.Upstream)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LEVELSET_LOG_FORMAT=json\n"), 0o600))

	t.Setenv("LEVELSET_LOG_FORMAT", "")
	os.Unsetenv("LEVELSET_LOG_FORMAT")

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envFile))

	cfg, err := Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)
}
