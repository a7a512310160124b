package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	GraphAppID      string `mapstructure:"graph_app_id"`
	GraphAppSecret  string `mapstructure:"graph_app_secret"`
	GraphAPIBaseURL string `mapstructure:"graph_api_base_url"`

	PagesFile      string `mapstructure:"pages_file"`
	PublishersFile string `mapstructure:"publishers_file"`

	// ThroughDate is the crawl cutoff (YYYY-MM-DD): posts older than this are
	// neither stored nor paged past.
	ThroughDateRaw string    `mapstructure:"through_date"`
	ThroughDate    time.Time `mapstructure:"-"`

	// ChunkSize bounds how many pending URLs are held in memory per article
	// batch. Zero materializes the whole pending set at once.
	ChunkSize int `mapstructure:"chunk_size"`

	StorageType string `mapstructure:"storage_type"`
	DatabaseURL string `mapstructure:"database_url"`
	BBoltPath   string `mapstructure:"bbolt_path"`

	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`
}

const throughDateLayout = "2006-01-02"

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "newsarchives")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	// Every key needs a default so AutomaticEnv overrides reach Unmarshal.
	v.SetDefault("graph_app_id", "")
	v.SetDefault("graph_app_secret", "")
	v.SetDefault("graph_api_base_url", "https://graph.facebook.com/v12.0")
	v.SetDefault("pages_file", "./configs/pages.yaml")
	v.SetDefault("publishers_file", "")
	v.SetDefault("through_date", "")
	v.SetDefault("chunk_size", 100)
	v.SetDefault("storage_type", "postgres")
	v.SetDefault("database_url", "")
	v.SetDefault("bbolt_path", "./data/archive.db")
	v.SetDefault("http_timeout_seconds", 30)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.GraphAppID) == "" || strings.TrimSpace(cfg.GraphAppSecret) == "" {
		return nil, fmt.Errorf("graph_app_id and graph_app_secret are required")
	}

	if raw := strings.TrimSpace(cfg.ThroughDateRaw); raw != "" {
		t, err := time.Parse(throughDateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid through_date %q (expected YYYY-MM-DD): %w", raw, err)
		}
		cfg.ThroughDate = t
	}

	if cfg.ChunkSize < 0 {
		return nil, fmt.Errorf("invalid chunk_size (must be zero or positive)")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.StorageType)) {
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("database_url is required for postgres storage")
		}
	case "bbolt":
		if strings.TrimSpace(cfg.BBoltPath) == "" {
			return nil, fmt.Errorf("bbolt_path is required for bbolt storage")
		}
	default:
		return nil, fmt.Errorf("unsupported storage_type %q", cfg.StorageType)
	}

	if cfg.HTTPTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid http_timeout_seconds (must be positive)")
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	return &cfg, nil
}

// AccessToken returns the app access token in the id|secret form the graph
// API accepts for server-side calls.
func (c *Config) AccessToken() string {
	return c.GraphAppID + "|" + c.GraphAppSecret
}
