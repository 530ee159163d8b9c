package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REST_PORT", "9090")
	t.Setenv("SCRAPER_MAX_JITTER", "500ms")
	t.Setenv("SCRAPER_BROWSER_FALLBACK", "true")
	t.Setenv("CURRENT_SEASON", "2021")
	t.Setenv("EXPORT_FORMAT", "csv")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.RESTPort)
	assert.Equal(t, 500*time.Millisecond, cfg.Scraper.MaxJitter)
	assert.True(t, cfg.Scraper.BrowserFallback)
	assert.Equal(t, 2021, cfg.Scheduler.Season)
	assert.Equal(t, "csv", cfg.Export.Format)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("EXPORT_FORMAT", "xlsx")
	_, err := Load()
	assert.ErrorContains(t, err, "EXPORT_FORMAT")
	assert.Equal(t, Default(), LoadOrDefault())

	t.Setenv("EXPORT_FORMAT", "csv")
	t.Setenv("SCRAPER_RPS", "0")
	_, err = Load()
	assert.ErrorContains(t, err, "SCRAPER_RPS")

	t.Setenv("SCRAPER_RPS", "fast")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("REFERENCE_DIR=/srv/reference\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("REFERENCE_DIR") })

	require.NoError(t, LoadEnvFile(path))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/reference", cfg.Reference.Dir)

	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}
