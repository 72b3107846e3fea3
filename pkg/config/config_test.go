package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "http://localhost:8080", cfg.Scanner.BaseURL)
	assert.Equal(t, 4, cfg.Scan.Workers)
	assert.Equal(t, 5*time.Minute, cfg.Scan.SpiderTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
}

func TestFlagsOverrideDefaults(t *testing.T) {
	cfg, err := Load([]string{
		"-addr", ":9090",
		"-workers", "8",
		"-cors-origins", "https://app.example.com, https://staging.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Scan.Workers)
	assert.Equal(t,
		[]string{"https://app.example.com", "https://staging.example.com"},
		cfg.Server.CORSOrigins)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scanner:
  base_url: http://zap-from-file:8080
log:
  level: debug
`), 0o644))

	t.Setenv("ZAP_BASE_URL", "http://zap-from-env:8080")

	cfg, err := Load([]string{"-config", path})
	require.NoError(t, err)
	assert.Equal(t, "http://zap-from-env:8080", cfg.Scanner.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level, "file value survives when env is unset")
}

func TestFlagBeatsEnv(t *testing.T) {
	t.Setenv("CODECLINIC_ADDR", ":7777")
	cfg, err := Load([]string{"-addr", ":6666"})
	require.NoError(t, err)
	assert.Equal(t, ":6666", cfg.Server.Addr)
}

func TestValidation(t *testing.T) {
	_, err := Load([]string{"-workers", "0"})
	assert.ErrorContains(t, err, "workers must be positive")

	_, err = Load([]string{"-scanner-url", ""})
	assert.ErrorContains(t, err, "empty scanner URL")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := Load([]string{"-config", "/does/not/exist.yaml"})
	assert.Error(t, err)
}
