package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, key := range []string{envConfigPath, envBotToken, envTelegramBotToken, envWebAppURL, envBroadcastChatID, envOperatorAllowFrom} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
	  "telegram": {"token": "123:file-token"},
	  "web_app": {"url": "https://shows.example.org"},
	  "relay": {"broadcast_chat_id": -100200, "dedup_ttl_seconds": 60, "send_timeout_seconds": 5},
	  "ring_log": {"capacity": 50},
	  "operators": {"allow_from": ["1", "2"]},
	  "gateway": {"host": "127.0.0.1", "port": 8080},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv(envConfigPath, path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Telegram.Token != "123:file-token" {
		t.Fatalf("telegram.token = %q", cfg.Telegram.Token)
	}
	if cfg.Relay.BroadcastChatID != -100200 {
		t.Fatalf("relay.broadcast_chat_id = %d", cfg.Relay.BroadcastChatID)
	}
	if cfg.Relay.DedupTTL() != time.Minute || cfg.Relay.SendTimeout() != 5*time.Second {
		t.Fatalf("relay durations = %v/%v", cfg.Relay.DedupTTL(), cfg.Relay.SendTimeout())
	}
	if cfg.Relay.DedupCapacity != DefaultDedupCapacity || cfg.Relay.MaxInFlight != DefaultMaxInFlight {
		t.Fatalf("relay defaults not applied: %+v", cfg.Relay)
	}
	if cfg.RingLog.Capacity != 50 {
		t.Fatalf("ring_log.capacity = %d, want 50", cfg.RingLog.Capacity)
	}
	if len(cfg.Operators.AllowFrom) != 2 {
		t.Fatalf("operators.allow_from = %v", cfg.Operators.AllowFrom)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" || !cfg.Logging.AddSource {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	isolateEnv(t)
	t.Setenv(envConfigPath, filepath.Join(t.TempDir(), "missing.json"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config path")
	}
}

func TestLoadConfigWithoutFileUsesEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv(envBotToken, "42:env-token")
	t.Setenv(envBroadcastChatID, "-1009")
	t.Setenv(envOperatorAllowFrom, " 7, ,8 ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Telegram.Token != "42:env-token" || cfg.Relay.BroadcastChatID != -1009 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if got := cfg.Operators.AllowFrom; len(got) != 2 || got[0] != "7" || got[1] != "8" {
		t.Fatalf("operators.allow_from = %v", got)
	}
	if cfg.WebApp.URL != DefaultWebAppURL || cfg.RingLog.Capacity != DefaultRingLogCapacity || cfg.Gateway.Port != DefaultGatewayPort {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	isolateEnv(t)
	os.Unsetenv(envBotToken)
	os.Unsetenv(envWebAppURL)

	if err := os.WriteFile(".env", []byte("BOT_TOKEN=99:dotenv-token\nWEBAPP_URL=https://dotenv.example.com\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv(envBotToken)
		os.Unsetenv(envWebAppURL)
	})

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Telegram.Token != "99:dotenv-token" || cfg.WebApp.URL != "https://dotenv.example.com" {
		t.Fatalf(".env values not applied: %+v", cfg)
	}
}

func TestLoadConfigRejectsBadBroadcastID(t *testing.T) {
	isolateEnv(t)
	t.Setenv(envBroadcastChatID, "channel")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected parse error for non-numeric broadcast chat id")
	}
}

func TestValidateReportsMissingToken(t *testing.T) {
	cfg := Default()
	cfg.Relay.BroadcastChatID = -1

	err := cfg.Validate()
	if !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("Validate error = %v, want ErrConfigMissing", err)
	}

	cfg.Telegram.Token = "1:abc"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	cfg.Relay.BroadcastChatID = 0
	if err := cfg.Validate(); !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("Validate error = %v, want ErrConfigMissing for broadcast chat", err)
	}
}
