package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config mirrors the Python bot's settings: the same env variable names keep
// existing deployments working. Durations are expressed in seconds. An
// optional TOML file (-config) seeds values; environment variables win.
type Config struct {
	TelegramToken string `toml:"telegram_bot_token"`

	DOAPIKey       string `toml:"do_api_key"`
	DOAgentID      string `toml:"do_agent_id"`
	DOBaseURL      string `toml:"do_api_base_url"`
	AgentEndpoint  string `toml:"agent_endpoint"`
	AgentAccessKey string `toml:"agent_access_key"`

	RequestTimeout float64 `toml:"request_timeout"`
	MaxRetries     int     `toml:"api_max_retries"`
	BaseBackoff    float64 `toml:"api_base_backoff"`
	MaxBackoff     float64 `toml:"api_max_backoff"`

	// RateQPS 0 leaves outbound calls unthrottled.
	RateQPS      float64 `toml:"api_rate_limit_qps"`
	RateBurst    int     `toml:"api_rate_limit_burst"`
	RateCooldown float64 `toml:"api_rate_limit_cooldown"`

	ListenAddr string `toml:"listen_addr"`
	DBPath     string `toml:"db_path"`
}

func defaultConfig() Config {
	return Config{
		RequestTimeout: 30,
		MaxRetries:     3,
		BaseBackoff:    0.5,
		MaxBackoff:     60,
		RateQPS:        0,
		RateBurst:      1,
		RateCooldown:   5,
		ListenAddr:     defaultAddr(),
		DBPath:         "gradient-bot.db",
	}
}

func LoadConfig() (Config, error) {
	var configPath string
	cfg := defaultConfig()

	flag.StringVar(&configPath, "config", os.Getenv("GRADIENT_CONFIG"), "Optional TOML config file")
	flag.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "HTTP listen address (health + feed)")
	flag.StringVar(&cfg.DBPath, "db", envOrDefault("GRADIENT_DB", cfg.DBPath), "SQLite database path")
	flag.Parse()

	if configPath != "" {
		if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envStr(&cfg.TelegramToken, "TELEGRAM_BOT_TOKEN")
	envStr(&cfg.DOAPIKey, "DO_API_KEY")
	envStr(&cfg.DOAgentID, "DO_AGENT_ID")
	envStr(&cfg.DOBaseURL, "DO_API_BASE_URL")
	envStr(&cfg.AgentEndpoint, "AGENT_ENDPOINT")
	envStr(&cfg.AgentAccessKey, "AGENT_ACCESS_KEY")
	envFloat(&cfg.RequestTimeout, "REQUEST_TIMEOUT")
	envInt(&cfg.MaxRetries, "API_MAX_RETRIES")
	envFloat(&cfg.BaseBackoff, "API_BASE_BACKOFF")
	envFloat(&cfg.MaxBackoff, "API_MAX_BACKOFF")
	envFloat(&cfg.RateQPS, "API_RATE_LIMIT_QPS")
	envInt(&cfg.RateBurst, "API_RATE_LIMIT_BURST")
	envFloat(&cfg.RateCooldown, "API_RATE_LIMIT_COOLDOWN")
}

func (c Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	endpointMode := c.AgentEndpoint != "" && c.AgentAccessKey != ""
	if !endpointMode && (c.DOAPIKey == "" || c.DOAgentID == "") {
		return fmt.Errorf("either DO_API_KEY + DO_AGENT_ID or AGENT_ENDPOINT + AGENT_ACCESS_KEY must be set")
	}
	if c.RateQPS < 0 {
		return fmt.Errorf("API_RATE_LIMIT_QPS must not be negative")
	}
	if c.RateQPS > 0 && c.RateBurst < 1 {
		return fmt.Errorf("API_RATE_LIMIT_BURST must be at least 1")
	}
	if c.RateCooldown < 0 {
		return fmt.Errorf("API_RATE_LIMIT_COOLDOWN must not be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("API_MAX_RETRIES must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func envStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultAddr() string {
	if v := os.Getenv("GRADIENT_ADDR"); v != "" {
		return v
	}
	// Railway, Render, etc. set PORT
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8090"
}
