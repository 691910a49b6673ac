package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://portcitydaily.com/latest-news/", cfg.Source.IndexURL)
	assert.Equal(t, "food-truck-tracker", cfg.Source.Keyword)
	assert.Equal(t, "weekly schedule", cfg.Source.ScheduleMarker)
	assert.Equal(t, "find a location", cfg.Source.LocationMarker)
	assert.Equal(t, 30, cfg.Source.TimeoutSecs)
	assert.Equal(t, "https://nominatim.openstreetmap.org/search", cfg.Geocode.BaseURL)
	assert.Equal(t, 1100*time.Millisecond, cfg.Geocode.RequestInterval)
	assert.Equal(t, "us", cfg.Geocode.Country)
	assert.Equal(t, "NC", cfg.Geocode.State)
	assert.Equal(t, "Wilmington", cfg.Geocode.AnchorCity)
	assert.Contains(t, cfg.Geocode.LocalPlaces, "wrightsville beach")
	assert.InDelta(t, 33.75, cfg.Geocode.MinLat, 0.001)
	assert.InDelta(t, 34.65, cfg.Geocode.MaxLat, 0.001)
	assert.InDelta(t, -78.35, cfg.Geocode.MinLon, 0.001)
	assert.InDelta(t, -77.55, cfg.Geocode.MaxLon, 0.001)
	assert.Equal(t, "data/foodtrucks.json", cfg.Data.Path)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 6*time.Hour, cfg.Scrape.Interval)
	assert.True(t, cfg.Scrape.OnStart)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "America/New_York", cfg.Server.Timezone)
	assert.Equal(t, 900, cfg.Monitoring.CheckIntervalSecs)
	assert.InDelta(t, 0.5, cfg.Monitoring.FailureRateThreshold, 0.001)
	assert.Equal(t, 24, cfg.Monitoring.StaleAfterHours)
	assert.Empty(t, cfg.Monitoring.WebhookURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
source:
  index_url: https://example.com/news/
  keyword: taco-tuesday
geocode:
  request_interval: 2s
  max_lat: 35.0
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/news/", cfg.Source.IndexURL)
	assert.Equal(t, "taco-tuesday", cfg.Source.Keyword)
	assert.Equal(t, 2*time.Second, cfg.Geocode.RequestInterval)
	assert.InDelta(t, 35.0, cfg.Geocode.MaxLat, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.InDelta(t, 33.75, cfg.Geocode.MinLat, 0.001)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FOODTRUCK_STORE_DRIVER", "postgres")
	t.Setenv("FOODTRUCK_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("FOODTRUCK_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with enough populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Source.IndexURL = "https://portcitydaily.com/latest-news/"
	cfg.Source.Keyword = "food-truck-tracker"
	cfg.Geocode.MinLat = 33.75
	cfg.Geocode.MaxLat = 34.65
	cfg.Geocode.MinLon = -78.35
	cfg.Geocode.MaxLon = -77.55
	cfg.Data.Path = "data/foodtrucks.json"
	cfg.Scrape.Interval = 6 * time.Hour
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateScrape_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("scrape"))
}

func TestValidateScrape_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Source.IndexURL = ""
	cfg.Data.Path = ""

	err := cfg.Validate("scrape")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "source.index_url is required")
	assert.Contains(t, err.Error(), "data.path is required")
}

func TestValidateScrape_InvertedBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Geocode.MinLat = 35.0

	err := cfg.Validate("scrape")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "min_lat must be less than")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_ZeroInterval(t *testing.T) {
	cfg := validDefaults()
	cfg.Scrape.Interval = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "scrape.interval must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
