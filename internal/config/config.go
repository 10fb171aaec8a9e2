package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the main structure mapping the entire application configuration.
// This struct uses mapstructure tags to map YAML/JSON keys to Go struct fields.
type Config struct {
	// Server configuration section containing HTTP server settings
	Server struct {
		Port    int    `mapstructure:"port"`     // HTTP server port (default: 8080)
		BaseURL string `mapstructure:"base_url"` // Base URL for generating short links
		// TrustProxyHeaders controls whether forwarded-for style headers are
		// used for client IP extraction. Those headers are trivially spoofed,
		// so this is off unless the server really sits behind a trusted proxy.
		TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
	} `mapstructure:"server"`

	// Database configuration section for SQLite settings
	Database struct {
		Name string `mapstructure:"name"` // SQLite database file name
	} `mapstructure:"database"`

	// Cache configuration for the in-memory resolution cache
	Cache struct {
		Capacity int `mapstructure:"capacity"` // Max number of cached link snapshots (LRU bound)
	} `mapstructure:"cache"`

	// ShortCode configuration for generated codes
	ShortCode struct {
		Length int `mapstructure:"length"` // Length of generated short codes
	} `mapstructure:"shortcode"`

	// Analytics configuration for asynchronous click tracking and reporting
	Analytics struct {
		BufferSize        int `mapstructure:"buffer_size"`         // Size of the click event channel buffer
		WorkerCount       int `mapstructure:"worker_count"`        // Number of worker goroutines for processing clicks
		DefaultWindowDays int `mapstructure:"default_window_days"` // Default trailing window for analytics summaries
	} `mapstructure:"analytics"`

	// GeoIP configuration for geographic click enrichment
	GeoIP struct {
		DatabasePath string `mapstructure:"database_path"` // Path to a MaxMind city database; empty disables geo lookup
	} `mapstructure:"geoip"`

	// QRCode configuration for generated QR images
	QRCode struct {
		Dir  string `mapstructure:"dir"`  // Directory where PNG files are written
		Size int    `mapstructure:"size"` // Image size in pixels
	} `mapstructure:"qrcode"`

	// Monitor configuration for URL health checking
	Monitor struct {
		IntervalMinutes int `mapstructure:"interval_minutes"` // Interval in minutes between URL health checks
	} `mapstructure:"monitor"`
}

// LoadConfig loads the application configuration using Viper.
// It supports environment variable overrides and YAML configuration files.
// Returns a populated Config struct or an error if configuration loading fails.
func LoadConfig() (*Config, error) {
	// Enable automatic environment variable binding so any config value can
	// be overridden via environment variables
	viper.AutomaticEnv()

	// Replace dots with underscores in environment variable names
	// e.g., "server.port" becomes "SERVER_PORT"
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Look for a "config.yaml" file in ./configs
	viper.AddConfigPath("./configs")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Set default values for all configuration options.
	// These are used if no config file is found or if specific keys are missing.
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("server.trust_proxy_headers", false)
	viper.SetDefault("database.name", "link_shortener.db")
	viper.SetDefault("cache.capacity", 1024)
	viper.SetDefault("shortcode.length", 8)
	viper.SetDefault("analytics.buffer_size", 1000)
	viper.SetDefault("analytics.worker_count", 5)
	viper.SetDefault("analytics.default_window_days", 30)
	viper.SetDefault("geoip.database_path", "")
	viper.SetDefault("qrcode.dir", "qr-codes")
	viper.SetDefault("qrcode.size", 300)
	viper.SetDefault("monitor.interval_minutes", 5)

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Not fatal - the defaults above cover everything
			log.Println("Config file not found, using default values")
		} else {
			// Any other error (permissions, malformed YAML, etc.) is fatal
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal the loaded configuration into our strongly-typed struct
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	log.Printf("Configuration loaded: Server Port=%d, DB Name=%s, Cache Capacity=%d, Analytics Buffer=%d",
		cfg.Server.Port, cfg.Database.Name, cfg.Cache.Capacity, cfg.Analytics.BufferSize)

	return &cfg, nil
}
