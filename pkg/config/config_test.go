package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/mycase-client/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"MYCASE_API_URL", "MYCASE_USER_AGENT", "MYCASE_AUTH_URL", "MYCASE_CLIENT_ID",
	"MYCASE_CLIENT_SECRET", "MYCASE_REDIRECT_URI", "MYCASE_ACCESS_TOKEN",
	"MYCASE_TOKEN_STORE", "MYCASE_TOKEN_FILE", "MYCASE_FIRM_ID", "REDIS_URL",
	"REDIS_PASSWORD", "LOG_LEVEL", "LOG_PRETTY", "MYCASE_RETURN_PARTIAL",
	"MYCASE_RATE_LIMIT", "MYCASE_MAX_PAGES", "PORT", "MYCASE_TIMEOUT", "MYCASE_PAGE_DELAY",
}

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://external-integrations.mycase.com/v1", cfg.API.BaseURL)
	assert.Equal(t, 25, cfg.API.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 10, cfg.Retry.MaxThrottleRetries)
	assert.Equal(t, 100, cfg.Pagination.PerPage)
	assert.Equal(t, 1000, cfg.Pagination.MaxPages)
	assert.Equal(t, 500*time.Millisecond, cfg.Pagination.PageDelay)
	assert.Equal(t, "https://auth.mycase.com", cfg.Auth.URL)
	assert.Equal(t, StoreFile, cfg.Auth.Store)
	assert.Equal(t, 8080, cfg.Server.Port)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "mycase.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://sandbox.example.com/v1
  rate_limit: 10
  timeout: 45s
retry:
  max_retries: 5
  backoff_base: 250ms
pagination:
  per_page: 50
  page_delay: 1s
  return_partial: true
auth:
  store: redis
redis:
  url: redis://localhost:6379/2
log:
  level: debug
  pretty: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://sandbox.example.com/v1", cfg.API.BaseURL)
	assert.Equal(t, 10, cfg.API.RateLimit)
	assert.Equal(t, 45*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 10, cfg.Retry.MaxThrottleRetries, "unset fields keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BackoffBase)
	assert.Equal(t, 50, cfg.Pagination.PerPage)
	assert.Equal(t, time.Second, cfg.Pagination.PageDelay)
	assert.True(t, cfg.Pagination.ReturnPartial)
	assert.Equal(t, StoreRedis, cfg.Auth.Store)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "mycase.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  rate_limit: 10\n"), 0o600))

	t.Setenv("MYCASE_RATE_LIMIT", "5")
	t.Setenv("MYCASE_CLIENT_ID", "client-123")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.API.RateLimit)
	assert.Equal(t, "client-123", cfg.Auth.ClientID)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("api: [unclosed"), 0o600))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parse config file")

	t.Setenv("MYCASE_RATE_LIMIT", "fast")
	_, err = Load("")
	assert.ErrorContains(t, err, "invalid MYCASE_RATE_LIMIT")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(lookupMap(map[string]string{
		"MYCASE_API_URL":        "https://other.example.com/v1",
		"MYCASE_TOKEN_STORE":    "redis",
		"REDIS_URL":             "redis://cache:6379/0",
		"MYCASE_PAGE_DELAY":     "0s",
		"MYCASE_RETURN_PARTIAL": "1",
		"MYCASE_USER_AGENT":     "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://other.example.com/v1", cfg.API.BaseURL)
	assert.Equal(t, StoreRedis, cfg.Auth.Store)
	assert.Equal(t, time.Duration(0), cfg.Pagination.PageDelay)
	assert.True(t, cfg.Pagination.ReturnPartial)
	assert.NotEmpty(t, cfg.API.UserAgent, "empty values are ignored")

	err = cfg.ApplyEnv(lookupMap(map[string]string{"MYCASE_TIMEOUT": "soon"}))
	assert.ErrorContains(t, err, "invalid MYCASE_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"empty base url", func(c *Config) { c.API.BaseURL = "" }, "api.base_url is required"},
		{"zero rate limit", func(c *Config) { c.API.RateLimit = 0 }, "api.rate_limit must be >= 1"},
		{"per page too large", func(c *Config) { c.Pagination.PerPage = 250 }, "pagination.per_page must be between 1 and 100"},
		{"zero max pages", func(c *Config) { c.Pagination.MaxPages = 0 }, "pagination.max_pages"},
		{"redis store without url", func(c *Config) { c.Auth.Store = StoreRedis }, "redis.url is required"},
		{"file store without path", func(c *Config) { c.Auth.TokenFile = "" }, "auth.token_file is required"},
		{"unknown store", func(c *Config) { c.Auth.Store = "s3" }, "auth.store must be"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level must be"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errorMsg)
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.API.RateLimit = 7
	cfg.Retry.MaxAuthRetries = 2
	cfg.Pagination.ReturnPartial = true
	cfg.Log.Level = "WARN"
	cfg.Auth.ClientID = "id"
	cfg.Auth.ClientSecret = "secret"

	cc := cfg.ClientConfig()
	assert.Equal(t, 7, cc.RateLimit)
	assert.Equal(t, 2, cc.Retry.MaxAuthRetries)
	assert.Equal(t, cfg.API.BaseURL, cc.BaseURL)

	pc := cfg.PaginationConfig()
	assert.True(t, pc.ReturnPartial)
	assert.Equal(t, 100, pc.PerPage)
	assert.Equal(t, 500*time.Millisecond, pc.PageDelay)

	cfg.Pagination.PageDelay = 0
	assert.Negative(t, int64(cfg.PaginationConfig().PageDelay), "zero disables the delay")

	lc := cfg.LoggingConfig()
	assert.Equal(t, logging.LevelWarn, lc.Level)

	oc := cfg.OAuth2Config()
	assert.Equal(t, "https://auth.mycase.com", oc.AuthURL)
	assert.Equal(t, "id", oc.ClientID)
	assert.Equal(t, 5*time.Minute, oc.RefreshBefore)
}

func TestRedisOptions(t *testing.T) {
	cfg := Default()

	_, err := cfg.RedisOptions()
	assert.Error(t, err)

	cfg.Redis.URL = "redis://:urlpass@localhost:6380/3"
	opts, err := cfg.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, "urlpass", opts.Password)

	cfg.Redis.Password = "override"
	opts, err = cfg.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "override", opts.Password)

	cfg.Redis.URL = "http://not-redis"
	_, err = cfg.RedisOptions()
	assert.ErrorContains(t, err, "parse redis url")
}
