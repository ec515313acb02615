// Package config provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the collabchat service.
package config

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	defaultPort           = ":4000"
	defaultMaxMessageSize = 1 << 20
	defaultBurst          = 20
	defaultRefill         = time.Second
	defaultSendBuffer     = 256
	defaultDataDir        = "./db"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings.
type Config struct {
	Port             string        `env:"SERVER_PORT,default=:4000"`
	Origins          string        `env:"ALLOWED_ORIGINS,default=*"`
	MaxMessageSize   int64         `env:"MAX_MESSAGE_SIZE,default=1048576"`
	RateLimitBurst   int           `env:"RATE_LIMIT_BURST,default=20"`
	RateLimitRefill  time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
	SendBufferSize   int           `env:"SEND_BUFFER_SIZE,default=256"`
	StoreBackend     string        `env:"STORE_BACKEND,default=file"`
	DataDir          string        `env:"DATA_DIR,default=./db"`
	BadgerPath       string        `env:"BADGER_PATH"`
	UsersFile        string        `env:"USERS_FILE"`
	NotifyDisconnect bool          `env:"NOTIFY_DISCONNECT,default=true"`
	LogLevel         string        `env:"LOG_LEVEL,default=info"`
	LogFormat        string        `env:"LOG_FORMAT,default=console"`

	// AllowedOrigins is Origins split on commas.
	AllowedOrigins []string
}

// Default returns a Config populated with default values for all settings.
func Default() *Config {
	cfg := &Config{
		Port:             defaultPort,
		Origins:          "*",
		MaxMessageSize:   defaultMaxMessageSize,
		RateLimitBurst:   defaultBurst,
		RateLimitRefill:  defaultRefill,
		SendBufferSize:   defaultSendBuffer,
		StoreBackend:     "file",
		DataDir:          defaultDataDir,
		NotifyDisconnect: true,
		LogLevel:         "info",
		LogFormat:        "console",
	}
	cfg.Sanitize()
	return cfg
}

// Load reads an optional .env file from the working directory and then the
// process environment. Unset variables fall back to defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, errors.Wrap(err, "read environment")
	}
	cfg.Sanitize()
	return &cfg, nil
}

// RateLimit returns the per-connection token bucket settings.
func (c *Config) RateLimit() RateLimitConfig {
	return RateLimitConfig{Burst: c.RateLimitBurst, RefillInterval: c.RateLimitRefill}
}

// UsersPath returns the login list location.
func (c *Config) UsersPath() string {
	if c.UsersFile != "" {
		return c.UsersFile
	}
	return filepath.Join(c.DataDir, "users.json")
}

// Sanitize replaces out-of-range values with defaults and derives
// AllowedOrigins and BadgerPath.
func (c *Config) Sanitize() {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}

	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}

	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = defaultBurst
	}

	if c.RateLimitRefill <= 0 {
		c.RateLimitRefill = defaultRefill
	}

	if c.SendBufferSize <= 0 {
		c.SendBufferSize = defaultSendBuffer
	}

	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}

	if c.BadgerPath == "" {
		c.BadgerPath = filepath.Join(c.DataDir, "badger")
	}

	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	if c.StoreBackend == "" {
		c.StoreBackend = "file"
	}

	c.AllowedOrigins = parseOrigins(c.Origins)
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
