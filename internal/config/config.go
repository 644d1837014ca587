package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	RootDir     string            `json:"root_dir"`
	Port        int               `json:"port"`
	CORSOrigins []string          `json:"cors_origins"`
	RateLimitMs int               `json:"rate_limit_ms"`
	LogConfig   logger.LogConfig  `json:"log_config"`
	Backend     BackendConfig     `json:"backend"`
	VectorCache VectorCacheConfig `json:"vector_cache"`
	Database    DatabaseConfig    `json:"database"`
	Batch       BatchConfig       `json:"batch"`
	Auth        AuthConfig        `json:"auth"`
}

// BackendConfig names the backend used for each modality. Data is handed to the
// backend factories as is.
type BackendConfig struct {
	Text  string      `json:"text"`
	Image string      `json:"image"`
	Data  interface{} `json:"data"`
}

type VectorCacheConfig struct {
	LRUSize       int    `json:"lru_size"`
	LRUTTLSeconds int    `json:"lru_ttl_seconds"`
	DB            bool   `json:"db"`
	MaxAgeDays    int    `json:"max_age_days"`
	CleanupCron   string `json:"cleanup_cron"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
	MaxConns int    `json:"max_conns"`
}

type BatchConfig struct {
	Strict bool `json:"strict"`
}

type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret"`
	TokenTTLHours int    `json:"token_ttl_hours"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	c.Backend.Text = strings.ToLower(strings.TrimSpace(c.Backend.Text))
	if c.Backend.Text == "" {
		c.Backend.Text = "local"
	}
	c.Backend.Image = strings.ToLower(strings.TrimSpace(c.Backend.Image))
	if c.Backend.Image == "" {
		c.Backend.Image = "local"
	}
	if c.VectorCache.LRUSize > 0 && c.VectorCache.LRUTTLSeconds <= 0 {
		c.VectorCache.LRUTTLSeconds = 3600
	}
	if c.VectorCache.MaxAgeDays <= 0 {
		c.VectorCache.MaxAgeDays = 30
	}
	if c.VectorCache.CleanupCron == "" {
		c.VectorCache.CleanupCron = "0 3 * * *"
	}
	if c.VectorCache.DB && c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("vector_cache.db requires database.dsn or database.host")
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Auth.TokenTTLHours <= 0 {
		c.Auth.TokenTTLHours = 720
	}
	return nil
}
