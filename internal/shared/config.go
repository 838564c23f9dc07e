package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Redis       RedisConfig       `toml:"redis"`
	Worker      WorkerConfig      `toml:"worker"`
	Status      StatusConfig      `toml:"status"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// SpotifyConfig contains Spotify API client settings.
//
// Tokens are never read from here; they come from the session store.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	BaseURL      string `toml:"base_url"`
}

// YouTubeConfig contains YouTube Music proxy settings.
type YouTubeConfig struct {
	ProxyURL string `toml:"proxy_url"`
}

// DatabaseConfig contains durable history store settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// RedisConfig contains connection and key settings for the queue, status and session stores.
type RedisConfig struct {
	Addr          string `toml:"addr"`
	Password      string `toml:"password"`
	DB            int    `toml:"db"`
	QueueKey      string `toml:"queue_key"`
	StatusPrefix  string `toml:"status_prefix"`
	SessionPrefix string `toml:"session_prefix"`
}

// WorkerConfig contains conversion pipeline settings.
type WorkerConfig struct {
	Concurrency      int           `toml:"concurrency"`
	LookupTimeout    time.Duration `toml:"lookup_timeout"`
	MatchThreshold   float64       `toml:"match_threshold"`
	LookupsPerSecond float64       `toml:"lookups_per_second"`
	BlockTimeout     time.Duration `toml:"block_timeout"`
}

// StatusConfig contains ephemeral status store settings.
type StatusConfig struct {
	TTL             time.Duration `toml:"ttl"`
	Retention       time.Duration `toml:"retention"`
	PublishAttempts int           `toml:"publish_attempts"`
}

// ServerConfig contains the ops HTTP server settings (health + metrics).
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the values the worker cannot run without.
func (c *Config) Validate() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("%w: worker.concurrency must be positive", ErrInvalidConfig)
	}
	if c.Worker.MatchThreshold <= 0 || c.Worker.MatchThreshold >= 1 {
		return fmt.Errorf("%w: worker.match_threshold must be in (0, 1)", ErrInvalidConfig)
	}
	if c.Worker.LookupTimeout <= 0 {
		return fmt.Errorf("%w: worker.lookup_timeout must be positive", ErrInvalidConfig)
	}
	if c.Redis.QueueKey == "" {
		return fmt.Errorf("%w: redis.queue_key is required", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
