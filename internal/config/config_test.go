package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franckalain/foodrescue/internal/impact"
	"github.com/franckalain/foodrescue/internal/models"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"server": {"port": "8080"},
		"ml": {"type": "local"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "./static", cfg.Server.StaticDir)
	assert.Equal(t, "foodrescue.db", cfg.Database.Path)
	assert.Equal(t, "local", cfg.ML.Type)
	assert.Equal(t, 30*time.Second, cfg.AnalyzerTimeout())
	assert.Equal(t, 70.01, cfg.Scoring.PublishThreshold)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  port: "9090"
  debug: true
database:
  path: /var/lib/foodrescue/inventory.db
analyzer:
  timeout_seconds: 45
  rate_per_minute: 30
  burst: 5
scoring:
  publish_threshold: 75
  categories:
    beef: {eis: 120, co2: 27.0, water: 1500, land: 2.0}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "google", cfg.ML.Type)
	assert.Equal(t, 45*time.Second, cfg.AnalyzerTimeout())
	assert.Equal(t, 30, cfg.Analyzer.RatePerMinute)
	assert.Equal(t, 75.0, cfg.Scoring.PublishThreshold)

	table, err := cfg.CategoryTable()
	require.NoError(t, err)
	assert.Equal(t, impact.Table{
		models.CategoryBeef: {EIS: 120, CO2: 27.0, Water: 1500, Land: 2.0},
	}, table)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("missing port", func(t *testing.T) {
		t.Setenv("PORT", "")
		_, err := LoadConfig(writeConfig(t, "c.json", `{}`))
		assert.ErrorContains(t, err, "port")
	})

	t.Run("port from env", func(t *testing.T) {
		t.Setenv("PORT", "7000")
		cfg, err := LoadConfig(writeConfig(t, "c.json", `{}`))
		require.NoError(t, err)
		assert.Equal(t, "7000", cfg.Server.Port)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "c.json", `{"server": {"port": "1"}, "scoring": {"categories": {"lamb": {"eis": 1}}}}`))
		assert.ErrorContains(t, err, "lamb")
	})

	t.Run("negative factor", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "c.json", `{"server": {"port": "1"}, "scoring": {"categories": {"Rice": {"eis": -1}}}}`))
		assert.ErrorContains(t, err, "negative")
	})

	t.Run("threshold out of range", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "c.json", `{"server": {"port": "1"}, "scoring": {"publish_threshold": 120}}`))
		assert.ErrorContains(t, err, "threshold")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "c.yml", "server: [port"))
		assert.Error(t, err)
	})
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("FOODRESCUE_CONFIG", "/etc/foodrescue/config.yaml")
	assert.Equal(t, "/etc/foodrescue/config.yaml", GetConfigPath())
}
