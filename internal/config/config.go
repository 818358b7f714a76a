package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config is the configuration of the feedhub service.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Logger    LoggerConfig    `json:"logger"`
	App       AppConfig       `json:"app"`
	Database  DatabaseConfig  `json:"database"`
	Analytics AnalyticsConfig `json:"analytics"`
}

type ServerConfig struct {
	Address         string `json:"address"`
	ReadTimeout     string `json:"read_timeout"`
	WriteTimeout    string `json:"write_timeout"`
	ShutdownTimeout string `json:"shutdown_timeout"`
	// PublicURL is the externally visible base URL, used as the channel link.
	PublicURL string `json:"public_url"`
}

// LoggerConfig selects level, format and destinations of the logs.
// Empty File and ErrorFile mean stdout and stderr.
type LoggerConfig struct {
	Level     string `json:"level"`
	Format    string `json:"format"`
	File      string `json:"file"`
	ErrorFile string `json:"error_file"`
}

type AppConfig struct {
	Environment          string   `json:"environment"`
	FeedsFile            string   `json:"feeds_file"`
	ExcludeFromAll       []string `json:"exclude_from_all"`
	DefaultGroup         string   `json:"default_group"`
	MaxConcurrentFetches int      `json:"max_concurrent_fetches"`
	FetchTimeout         string   `json:"fetch_timeout"`
	FreshnessWindow      string   `json:"freshness_window"`
	Timezone             string   `json:"timezone"`
	SortEntries          bool     `json:"sort_entries"`
	UserAgent            string   `json:"user_agent"`
	ChannelAuthor        string   `json:"channel_author"`
	ChannelDescription   string   `json:"channel_description"`
	SummaryFallback      string   `json:"summary_fallback"`
}

// DatabaseConfig holds the read counter storage settings. Path is used by
// the sqlite driver only.
type DatabaseConfig struct {
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
	Path     string `json:"path"`
}

type AnalyticsConfig struct {
	Enabled       bool    `json:"enabled"`
	TrackingID    string  `json:"tracking_id"`
	Endpoint      string  `json:"endpoint"`
	Timeout       string  `json:"timeout"`
	RatePerSecond float64 `json:"rate_per_second"`
	Burst         int     `json:"burst"`
}

// DSN returns the PostgreSQL connection URI.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
		c.SSLMode)
}

// Load reads a JSON config file over the defaults of New.
func Load(configPath string) (*Config, error) {
	cfg := New()
	fileData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	if err := json.Unmarshal(fileData, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON from file %s: %w", configPath, err)
	}
	return cfg, nil
}

func New() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     "10s",
			WriteTimeout:    "30s",
			ShutdownTimeout: "10s",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
		},
		App: AppConfig{
			Environment:          EnvDevelopment,
			FeedsFile:            "feeds.yml",
			ExcludeFromAll:       []string{"real_estate"},
			DefaultGroup:         "dev",
			MaxConcurrentFetches: 30,
			FetchTimeout:         "3s",
			FreshnessWindow:      "360h",
			Timezone:             "Asia/Seoul",
			ChannelAuthor:        "Awesome Blogs",
			SummaryFallback:      "Continue reading",
		},
		Database: DatabaseConfig{
			Driver:  DriverMemory,
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Path:    "feedhub.db",
		},
		Analytics: AnalyticsConfig{
			Timeout:       "2s",
			RatePerSecond: 10,
			Burst:         20,
		},
	}
}

// Validate returns the first problem found in the configuration.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case EnvProduction, EnvDevelopment:
	default:
		return fmt.Errorf("app.environment must be %q or %q, got %q", EnvProduction, EnvDevelopment, c.App.Environment)
	}
	if c.App.FeedsFile == "" {
		return fmt.Errorf("app.feeds_file is not set")
	}
	if c.App.DefaultGroup == "" {
		return fmt.Errorf("app.default_group is not set")
	}
	if c.App.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("app.max_concurrent_fetches must be a positive number")
	}
	for name, d := range map[string]string{
		"app.fetch_timeout":       c.App.FetchTimeout,
		"app.freshness_window":    c.App.FreshnessWindow,
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	} {
		if v, err := time.ParseDuration(d); err != nil || v <= 0 {
			return fmt.Errorf("invalid %s: %q", name, d)
		}
	}
	if _, err := c.App.Location(); err != nil {
		return err
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is not set")
		}
		if c.Database.Username == "" {
			return fmt.Errorf("database username is not set")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database password is not set")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is not set")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Analytics.Enabled {
		if c.Analytics.TrackingID == "" {
			return fmt.Errorf("analytics.tracking_id is not set")
		}
		if _, err := time.ParseDuration(c.Analytics.Timeout); err != nil {
			return fmt.Errorf("invalid analytics.timeout: %w", err)
		}
	}
	return nil
}

// Location loads the configured time zone. Empty means the local zone.
func (c AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid app.timezone: %w", err)
	}
	return loc, nil
}

func (c AppConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Duration parses d, which Validate has already checked.
func Duration(d string) time.Duration {
	v, _ := time.ParseDuration(d)
	return v
}
