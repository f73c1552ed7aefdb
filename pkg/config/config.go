// Package config loads mycase-client settings from defaults, an optional YAML
// file, a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/mycase-client/pkg/auth"
	"github.com/Sternrassler/mycase-client/pkg/client"
	"github.com/Sternrassler/mycase-client/pkg/logging"
	"github.com/Sternrassler/mycase-client/pkg/pagination"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Token store backends.
const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

type Config struct {
	API        APIConfig        `yaml:"api"`
	Retry      RetryConfig      `yaml:"retry"`
	Pagination PaginationConfig `yaml:"pagination"`
	Auth       AuthConfig       `yaml:"auth"`
	Redis      RedisConfig      `yaml:"redis"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
}

type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	RateLimit int           `yaml:"rate_limit"`
	Timeout   time.Duration `yaml:"timeout"`
}

type RetryConfig struct {
	MaxRetries         int           `yaml:"max_retries"`
	MaxThrottleRetries int           `yaml:"max_throttle_retries"`
	MaxAuthRetries     int           `yaml:"max_auth_retries"`
	BackoffBase        time.Duration `yaml:"backoff_base"`
	MaxBackoff         time.Duration `yaml:"max_backoff"`
}

type PaginationConfig struct {
	PerPage             int           `yaml:"per_page"`
	MaxPages            int           `yaml:"max_pages"`
	MaxConsecutiveEmpty int           `yaml:"max_consecutive_empty"`
	PageDelay           time.Duration `yaml:"page_delay"`
	ReturnPartial       bool          `yaml:"return_partial"`
}

type AuthConfig struct {
	URL          string        `yaml:"url"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	RedirectURI  string        `yaml:"redirect_uri"`
	AccessToken  string        `yaml:"access_token"` // static token, skips OAuth2
	Store        string        `yaml:"store"`
	TokenFile    string        `yaml:"token_file"`
	FirmID       string        `yaml:"firm_id"`
	RefreshEarly time.Duration `yaml:"refresh_early"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns the built-in configuration.
func Default() *Config {
	retry := client.DefaultRetryPolicy()
	pages := pagination.DefaultConfig()
	api := client.DefaultConfig()

	return &Config{
		API: APIConfig{
			BaseURL:   api.BaseURL,
			UserAgent: api.UserAgent,
			RateLimit: api.RateLimit,
			Timeout:   api.Timeout,
		},
		Retry: RetryConfig{
			MaxRetries:         retry.MaxRetries,
			MaxThrottleRetries: retry.MaxThrottleRetries,
			MaxAuthRetries:     retry.MaxAuthRetries,
			BackoffBase:        retry.BackoffBase,
			MaxBackoff:         retry.MaxBackoff,
		},
		Pagination: PaginationConfig{
			PerPage:             pages.PerPage,
			MaxPages:            pages.MaxPages,
			MaxConsecutiveEmpty: pages.MaxConsecutiveEmpty,
			PageDelay:           pages.PageDelay,
		},
		Auth: AuthConfig{
			URL:          auth.DefaultAuthURL,
			Store:        StoreFile,
			TokenFile:    "mycase_tokens.json",
			RefreshEarly: auth.DefaultRefreshBefore,
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// Load builds the configuration. path may be empty; a named file must exist.
// A .env file in the working directory is loaded when present; variables
// already set in the environment win over it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = d
		return nil
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	str("MYCASE_API_URL", &c.API.BaseURL)
	str("MYCASE_USER_AGENT", &c.API.UserAgent)
	str("MYCASE_AUTH_URL", &c.Auth.URL)
	str("MYCASE_CLIENT_ID", &c.Auth.ClientID)
	str("MYCASE_CLIENT_SECRET", &c.Auth.ClientSecret)
	str("MYCASE_REDIRECT_URI", &c.Auth.RedirectURI)
	str("MYCASE_ACCESS_TOKEN", &c.Auth.AccessToken)
	str("MYCASE_TOKEN_STORE", &c.Auth.Store)
	str("MYCASE_TOKEN_FILE", &c.Auth.TokenFile)
	str("MYCASE_FIRM_ID", &c.Auth.FirmID)
	str("REDIS_URL", &c.Redis.URL)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("LOG_LEVEL", &c.Log.Level)
	flag("LOG_PRETTY", &c.Log.Pretty)
	flag("MYCASE_RETURN_PARTIAL", &c.Pagination.ReturnPartial)

	for _, err := range []error{
		num("MYCASE_RATE_LIMIT", &c.API.RateLimit),
		num("MYCASE_MAX_PAGES", &c.Pagination.MaxPages),
		num("PORT", &c.Server.Port),
		dur("MYCASE_TIMEOUT", &c.API.Timeout),
		dur("MYCASE_PAGE_DELAY", &c.Pagination.PageDelay),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the configuration for values the client cannot work with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.RateLimit < 1 {
		return fmt.Errorf("api.rate_limit must be >= 1 (got %d)", c.API.RateLimit)
	}
	if c.Pagination.PerPage < 1 || c.Pagination.PerPage > pagination.MaxPerPage {
		return fmt.Errorf("pagination.per_page must be between 1 and %d (got %d)", pagination.MaxPerPage, c.Pagination.PerPage)
	}
	if c.Pagination.MaxPages < 1 {
		return fmt.Errorf("pagination.max_pages must be >= 1 (got %d)", c.Pagination.MaxPages)
	}

	switch c.Auth.Store {
	case StoreFile:
		if c.Auth.TokenFile == "" {
			return fmt.Errorf("auth.token_file is required for the file token store")
		}
	case StoreRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for the redis token store")
		}
	default:
		return fmt.Errorf("auth.store must be %q or %q (got %q)", StoreFile, StoreRedis, c.Auth.Store)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error (got %q)", c.Log.Level)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range (got %d)", c.Server.Port)
	}
	return nil
}

// ClientConfig returns the request executor configuration.
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		BaseURL:   c.API.BaseURL,
		UserAgent: c.API.UserAgent,
		RateLimit: c.API.RateLimit,
		Timeout:   c.API.Timeout,
		Retry: client.RetryPolicy{
			MaxRetries:         c.Retry.MaxRetries,
			MaxThrottleRetries: c.Retry.MaxThrottleRetries,
			MaxAuthRetries:     c.Retry.MaxAuthRetries,
			BackoffBase:        c.Retry.BackoffBase,
			MaxBackoff:         c.Retry.MaxBackoff,
		},
	}
}

// PaginationConfig returns the pagination driver configuration.
// An explicit zero page delay disables the delay.
func (c *Config) PaginationConfig() pagination.Config {
	delay := c.Pagination.PageDelay
	if delay == 0 {
		delay = -1
	}
	return pagination.Config{
		PerPage:             c.Pagination.PerPage,
		MaxPages:            c.Pagination.MaxPages,
		MaxConsecutiveEmpty: c.Pagination.MaxConsecutiveEmpty,
		PageDelay:           delay,
		ReturnPartial:       c.Pagination.ReturnPartial,
	}
}

// LoggingConfig returns the logger configuration writing to stderr.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(strings.ToLower(c.Log.Level))
	cfg.Pretty = c.Log.Pretty
	return cfg
}

// OAuth2Config returns the OAuth2 provider configuration.
func (c *Config) OAuth2Config() auth.OAuth2Config {
	return auth.OAuth2Config{
		AuthURL:       c.Auth.URL,
		ClientID:      c.Auth.ClientID,
		ClientSecret:  c.Auth.ClientSecret,
		RedirectURI:   c.Auth.RedirectURI,
		RefreshBefore: c.Auth.RefreshEarly,
	}
}

// RedisOptions parses the Redis URL and applies the password override.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if c.Redis.URL == "" {
		return nil, fmt.Errorf("redis.url is not set")
	}
	opts, err := redis.ParseURL(c.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if c.Redis.Password != "" {
		opts.Password = c.Redis.Password
	}
	return opts, nil
}
