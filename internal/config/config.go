package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Vendor     VendorConfig     `yaml:"vendor"`
	Worker     WorkerConfig     `yaml:"worker"`
	API        APIConfig        `yaml:"api"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// VendorConfig describes the external property-management platform.
// Paths can be overridden per deployment; the engine never hardcodes them.
type VendorConfig struct {
	BaseURL        string  `yaml:"base_url"`
	TokenURL       string  `yaml:"token_url"`
	ClientID       string  `yaml:"client_id"`
	ClientSecret   string  `yaml:"client_secret"`
	ListingsPath   string  `yaml:"listings_path"`
	CalendarPath   string  `yaml:"calendar_path"`
	RequestTimeout string  `yaml:"request_timeout"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	PageLimit      int     `yaml:"page_limit"`
	MaxPages       int     `yaml:"max_pages"`
	CacheTTL       string  `yaml:"cache_ttl"`
}

type WorkerConfig struct {
	PollInterval  string `yaml:"poll_interval"`
	BatchSize     int    `yaml:"batch_size"`
	MaxRetries    int    `yaml:"max_retries"`
	InitialDelay  string `yaml:"initial_delay"`
	MaxDelay      string `yaml:"max_delay"`
	BackoffFactor float64 `yaml:"backoff_factor"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; YAML values may reference its variables.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Vendor.BaseURL == "" {
		return errors.New("vendor base_url is required")
	}
	if c.Vendor.TokenURL == "" {
		return errors.New("vendor token_url is required")
	}
	if c.Vendor.ClientID == "" || c.Vendor.ClientSecret == "" {
		return errors.New("vendor client credentials are required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Vendor.ListingsPath == "" {
		c.Vendor.ListingsPath = "/v1/listings"
	}
	if c.Vendor.CalendarPath == "" {
		c.Vendor.CalendarPath = "/v1/listings/%s/calendar"
	}
	if c.Vendor.RequestTimeout == "" {
		c.Vendor.RequestTimeout = "30s"
	}
	if c.Vendor.PageLimit <= 0 {
		c.Vendor.PageLimit = 50
	}
	if c.Vendor.MaxPages <= 0 {
		c.Vendor.MaxPages = 200
	}
	if c.Worker.PollInterval == "" {
		c.Worker.PollInterval = "2s"
	}
	if c.Worker.BatchSize <= 0 {
		c.Worker.BatchSize = 20
	}
	if c.Worker.MaxRetries <= 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Worker.InitialDelay == "" {
		c.Worker.InitialDelay = "2s"
	}
	if c.Worker.MaxDelay == "" {
		c.Worker.MaxDelay = "1m"
	}
	if c.Worker.BackoffFactor == 0 {
		c.Worker.BackoffFactor = 2
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.Enabled && !c.API.HTTP.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}

// Duration parses a config duration string with a fallback.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
