package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
)

func validConfig() Config {
	cfg := defaultConfig()
	cfg.TelegramToken = "tok"
	cfg.DOAPIKey = "key"
	cfg.DOAgentID = "agent"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid control-plane", func(c *Config) {}, false},
		{"valid endpoint mode", func(c *Config) {
			c.DOAPIKey, c.DOAgentID = "", ""
			c.AgentEndpoint = "https://agent.example.com"
			c.AgentAccessKey = "ak"
		}, false},
		{"missing token", func(c *Config) { c.TelegramToken = "" }, true},
		{"missing credentials", func(c *Config) { c.DOAPIKey, c.DOAgentID = "", "" }, true},
		{"endpoint without key", func(c *Config) {
			c.DOAPIKey, c.DOAgentID = "", ""
			c.AgentEndpoint = "https://agent.example.com"
		}, true},
		{"negative rate", func(c *Config) { c.RateQPS = -1 }, true},
		{"rate without burst", func(c *Config) { c.RateQPS = 2; c.RateBurst = 0 }, true},
		{"negative cooldown", func(c *Config) { c.RateCooldown = -5 }, true},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, true},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"rate zero is fine", func(c *Config) { c.RateQPS = 0; c.RateBurst = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("API_RATE_LIMIT_QPS", "0.2")
	t.Setenv("API_RATE_LIMIT_BURST", "2")
	t.Setenv("API_RATE_LIMIT_COOLDOWN", "10")
	t.Setenv("API_MAX_RETRIES", "bogus") // unparseable values keep defaults

	cfg := defaultConfig()
	applyEnv(&cfg)

	if cfg.TelegramToken != "env-token" {
		t.Fatalf("TelegramToken = %q, want env-token", cfg.TelegramToken)
	}
	if cfg.RateQPS != 0.2 || cfg.RateBurst != 2 || cfg.RateCooldown != 10 {
		t.Fatalf("rate settings = %v/%d/%v, want 0.2/2/10", cfg.RateQPS, cfg.RateBurst, cfg.RateCooldown)
	}
	if cfg.MaxRetries != 3 {
		t.Fatalf("MaxRetries = %d, want default 3 for unparseable env", cfg.MaxRetries)
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.toml")
	content := `
telegram_bot_token = "file-token"
agent_endpoint = "https://agent.example.com"
agent_access_key = "ak"
api_rate_limit_qps = 5.0
api_rate_limit_burst = 10
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}

	if cfg.TelegramToken != "file-token" {
		t.Fatalf("TelegramToken = %q, want file-token", cfg.TelegramToken)
	}
	if cfg.RateQPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate settings = %v/%d, want 5/10", cfg.RateQPS, cfg.RateBurst)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on file config: %v", err)
	}
	// Untouched fields keep their defaults.
	if cfg.RateCooldown != 5 {
		t.Fatalf("RateCooldown = %v, want default 5", cfg.RateCooldown)
	}
}
