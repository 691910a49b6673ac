package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SourceConfig configures where the weekly tracker article comes from.
type SourceConfig struct {
	IndexURL        string `yaml:"index_url" mapstructure:"index_url"`
	Keyword         string `yaml:"keyword" mapstructure:"keyword"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries      int    `yaml:"max_retries" mapstructure:"max_retries"`
	ScheduleMarker  string `yaml:"schedule_marker" mapstructure:"schedule_marker"`
	LocationMarker  string `yaml:"location_marker" mapstructure:"location_marker"`
}

// GeocodeConfig configures the Nominatim resolver and its bounding box.
type GeocodeConfig struct {
	BaseURL         string        `yaml:"base_url" mapstructure:"base_url"`
	UserAgent       string        `yaml:"user_agent" mapstructure:"user_agent"`
	RequestInterval time.Duration `yaml:"request_interval" mapstructure:"request_interval"`
	MaxResults      int           `yaml:"max_results" mapstructure:"max_results"`
	Country         string        `yaml:"country" mapstructure:"country"`
	State           string        `yaml:"state" mapstructure:"state"`
	AnchorCity      string        `yaml:"anchor_city" mapstructure:"anchor_city"`
	LocalPlaces     []string      `yaml:"local_places" mapstructure:"local_places"`
	CachePath       string        `yaml:"cache_path" mapstructure:"cache_path"`
	MinLat          float64       `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLat          float64       `yaml:"max_lat" mapstructure:"max_lat"`
	MinLon          float64       `yaml:"min_lon" mapstructure:"min_lon"`
	MaxLon          float64       `yaml:"max_lon" mapstructure:"max_lon"`
}

// DataConfig configures the dataset artifact and the curated location overlay.
type DataConfig struct {
	Path          string `yaml:"path" mapstructure:"path"`
	LocationsFile string `yaml:"locations_file" mapstructure:"locations_file"`
}

// StoreConfig configures the run history backend. MaxConns and MinConns
// only apply to the postgres driver; zero keeps the store defaults.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ScrapeConfig configures the background refresh loop in serve mode.
type ScrapeConfig struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	OnStart  bool          `yaml:"on_start" mapstructure:"on_start"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	Timezone    string   `yaml:"timezone" mapstructure:"timezone"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures background health checks in serve mode.
// A zero threshold disables that check; an empty webhook URL keeps
// alerts in the logs only.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	GeocodeMissThreshold float64 `yaml:"geocode_miss_threshold" mapstructure:"geocode_miss_threshold"`
	StaleAfterHours      int     `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.ilmfoodnbrew")

	// Environment
	v.SetEnvPrefix("FOODTRUCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.index_url", "https://portcitydaily.com/latest-news/")
	v.SetDefault("source.keyword", "food-truck-tracker")
	v.SetDefault("source.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	v.SetDefault("source.timeout_secs", 30)
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.schedule_marker", "weekly schedule")
	v.SetDefault("source.location_marker", "find a location")
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.user_agent", "ILMFoodNBrew/1.0 (food truck tracker; contact jrklein8@gmail.com)")
	v.SetDefault("geocode.request_interval", 1100*time.Millisecond)
	v.SetDefault("geocode.max_results", 5)
	v.SetDefault("geocode.country", "us")
	v.SetDefault("geocode.state", "NC")
	v.SetDefault("geocode.anchor_city", "Wilmington")
	v.SetDefault("geocode.local_places", []string{
		"wilmington", "wrightsville beach", "carolina beach", "kure beach",
		"leland", "castle hayne", "hampstead", "ogden",
	})
	v.SetDefault("geocode.cache_path", "data/geocode-cache.json")
	v.SetDefault("geocode.min_lat", 33.75)
	v.SetDefault("geocode.max_lat", 34.65)
	v.SetDefault("geocode.min_lon", -78.35)
	v.SetDefault("geocode.max_lon", -77.55)
	v.SetDefault("data.path", "data/foodtrucks.json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("scrape.interval", 6*time.Hour)
	v.SetDefault("scrape.on_start", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timezone", "America/New_York")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.check_interval_secs", 900)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.geocode_miss_threshold", 0.5)
	v.SetDefault("monitoring.stale_after_hours", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given command mode. Modes
// share the scrape requirements; serve additionally needs a usable port.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "scrape":
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Scrape.Interval <= 0 {
			problems = append(problems, "scrape.interval must be > 0")
		}
	case "runs":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Source.IndexURL == "" {
		problems = append(problems, "source.index_url is required")
	}
	if c.Source.Keyword == "" {
		problems = append(problems, "source.keyword is required")
	}
	if c.Geocode.MinLat >= c.Geocode.MaxLat {
		problems = append(problems, "geocode.min_lat must be less than geocode.max_lat")
	}
	if c.Geocode.MinLon >= c.Geocode.MaxLon {
		problems = append(problems, "geocode.min_lon must be less than geocode.max_lon")
	}
	if c.Geocode.RequestInterval < 0 {
		problems = append(problems, "geocode.request_interval must be >= 0")
	}
	if c.Data.Path == "" {
		problems = append(problems, "data.path is required")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
