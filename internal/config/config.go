package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv        string `yaml:"app_env"`
	HTTPAddr      string `yaml:"http_addr"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`

	SupabaseURL           string `yaml:"supabase_url"`
	SupabaseServiceKey    string `yaml:"supabase_service_key"`
	SupabaseCacheTable    string `yaml:"supabase_cache_table"`
	SupabaseArchiveBucket string `yaml:"supabase_archive_bucket"`

	LLMProvider     string `yaml:"llm_provider"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	DefaultLLMModel string `yaml:"default_llm_model"`

	// CacheBackend selects the durable cache: redis, supabase or none.
	CacheBackend     string `yaml:"cache_backend"`
	CacheTTLSeconds  int    `yaml:"cache_ttl_seconds"`
	CacheWriteBehind bool   `yaml:"cache_write_behind"`

	// FetchBackend selects the page fetcher: http, colly or browser.
	// FetchHeaderProfile picks its header family: desktop, mobile or bot.
	FetchBackend       string `yaml:"fetch_backend"`
	FetchHeaderProfile string `yaml:"fetch_header_profile"`

	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	PageDelay     time.Duration `yaml:"page_delay"`
	HostSpacing   time.Duration `yaml:"host_spacing"`
	MaxRangePages int           `yaml:"max_range_pages"`

	SessionIdleTTL       time.Duration `yaml:"session_idle_ttl"`
	SessionSweepInterval time.Duration `yaml:"session_sweep_interval"`
	ChatHistoryWindow    int           `yaml:"chat_history_window"`

	TaskMaxRetries int `yaml:"task_max_retries"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		AppEnv:               "development",
		HTTPAddr:             ":8081",
		RedisAddr:            "127.0.0.1:6379",
		SupabaseCacheTable:   "scraped_data",
		LLMProvider:          "gemini",
		DefaultLLMModel:      "gemini-1.5-flash",
		CacheBackend:         "redis",
		FetchBackend:         "http",
		FetchHeaderProfile:   "desktop",
		FetchTimeout:         30 * time.Second,
		PageDelay:            500 * time.Millisecond,
		HostSpacing:          500 * time.Millisecond,
		MaxRangePages:        6,
		SessionIdleTTL:       2 * time.Hour,
		SessionSweepInterval: 5 * time.Minute,
		ChatHistoryWindow:    5,
		TaskMaxRetries:       3,
	}
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Load reads CONFIG_FILE (YAML) when set, then applies environment overrides.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.AppEnv = getenv("APP_ENV", c.AppEnv)
	c.HTTPAddr = getenv("HTTP_ADDR", c.HTTPAddr)
	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getenv("REDIS_PASSWORD", c.RedisPassword)

	c.SupabaseURL = getenv("NEXT_PUBLIC_SUPABASE_URL", c.SupabaseURL)
	c.SupabaseServiceKey = getenv("SUPABASE_SERVICE_ROLE_KEY", c.SupabaseServiceKey)
	c.SupabaseCacheTable = getenv("SUPABASE_CACHE_TABLE", c.SupabaseCacheTable)
	c.SupabaseArchiveBucket = getenv("SUPABASE_ARCHIVE_BUCKET", c.SupabaseArchiveBucket)

	c.LLMProvider = getenv("LLM_PROVIDER", c.LLMProvider)
	c.GeminiAPIKey = getenv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.DefaultLLMModel = getenv("DEFAULT_LLM_MODEL", c.DefaultLLMModel)

	c.CacheBackend = strings.ToLower(getenv("CACHE_BACKEND", c.CacheBackend))
	c.CacheTTLSeconds = getenvInt("CACHE_TTL_SECONDS", c.CacheTTLSeconds)
	c.CacheWriteBehind = getenvBool("CACHE_WRITE_BEHIND", c.CacheWriteBehind)

	c.FetchBackend = strings.ToLower(getenv("FETCH_BACKEND", c.FetchBackend))
	c.FetchHeaderProfile = strings.ToLower(getenv("FETCH_HEADER_PROFILE", c.FetchHeaderProfile))
	c.FetchTimeout = getenvDuration("FETCH_TIMEOUT", c.FetchTimeout)
	c.PageDelay = getenvDuration("PAGE_DELAY", c.PageDelay)
	c.HostSpacing = getenvDuration("HOST_SPACING", c.HostSpacing)
	c.MaxRangePages = getenvInt("MAX_RANGE_PAGES", c.MaxRangePages)

	c.SessionIdleTTL = getenvDuration("SESSION_IDLE_TTL", c.SessionIdleTTL)
	c.SessionSweepInterval = getenvDuration("SESSION_SWEEP_INTERVAL", c.SessionSweepInterval)
	c.ChatHistoryWindow = getenvInt("CHAT_HISTORY_WINDOW", c.ChatHistoryWindow)

	c.TaskMaxRetries = getenvInt("TASK_MAX_RETRIES", c.TaskMaxRetries)
}

// NeedsRedis reports whether any configured component talks to redis.
// Write-behind only queues when there is a durable cache to write to.
func (c Config) NeedsRedis() bool {
	return c.CacheBackend == "redis" || (c.CacheWriteBehind && c.CacheBackend != "none")
}

func (c Config) Validate() error {
	switch c.CacheBackend {
	case "redis", "supabase", "none":
	default:
		return fmt.Errorf("config: unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	switch c.FetchBackend {
	case "http", "colly", "browser":
	default:
		return fmt.Errorf("config: unknown FETCH_BACKEND %q", c.FetchBackend)
	}
	switch c.FetchHeaderProfile {
	case "desktop", "mobile", "bot":
	default:
		return fmt.Errorf("config: unknown FETCH_HEADER_PROFILE %q", c.FetchHeaderProfile)
	}
	if c.NeedsRedis() && c.RedisAddr == "" {
		return fmt.Errorf("config: REDIS_ADDR is required for cache backend %q", c.CacheBackend)
	}
	if c.CacheBackend == "supabase" && (c.SupabaseURL == "" || c.SupabaseServiceKey == "") {
		return fmt.Errorf("config: supabase cache requires NEXT_PUBLIC_SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
	}
	if c.MaxRangePages < 1 {
		return fmt.Errorf("config: MAX_RANGE_PAGES must be >= 1")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("config: FETCH_TIMEOUT must be positive")
	}
	return nil
}
