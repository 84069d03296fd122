package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envConfigPath        = "SHOWBOT_CONFIG"
	envBotToken          = "BOT_TOKEN"
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envWebAppURL         = "WEBAPP_URL"
	envBroadcastChatID   = "BROADCAST_CHAT_ID"
	envOperatorAllowFrom = "OPERATOR_ALLOW_FROM"

	DefaultWebAppURL          = "https://science-show.example.com"
	DefaultRingLogCapacity    = 1000
	DefaultDedupTTLSeconds    = 24 * 60 * 60
	DefaultDedupCapacity      = 10000
	DefaultSendTimeoutSeconds = 15
	DefaultMaxInFlight        = 8
	DefaultGatewayHost        = "0.0.0.0"
	DefaultGatewayPort        = 18790
)

// ErrConfigMissing reports that a required setting is absent. It is fatal at startup.
var ErrConfigMissing = errors.New("required configuration missing")

// Config is the root runtime configuration loaded from config.json and the environment.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	WebApp    WebAppConfig    `json:"web_app"`
	Relay     RelayConfig     `json:"relay"`
	RingLog   RingLogConfig   `json:"ring_log"`
	Operators OperatorsConfig `json:"operators"`
	Gateway   GatewayConfig   `json:"gateway"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// TelegramConfig configures the Telegram transport.
type TelegramConfig struct {
	Token string `json:"token"`
}

// WebAppConfig points at the booking mini-app.
type WebAppConfig struct {
	URL string `json:"url"`
}

// RelayConfig configures order relaying and duplicate suppression.
type RelayConfig struct {
	BroadcastChatID    int64 `json:"broadcast_chat_id"`
	DedupTTLSeconds    int   `json:"dedup_ttl_seconds"`
	DedupCapacity      int   `json:"dedup_capacity"`
	SendTimeoutSeconds int   `json:"send_timeout_seconds"`
	MaxInFlight        int   `json:"max_in_flight"`
}

// RingLogConfig bounds the in-memory diagnostic log.
type RingLogConfig struct {
	Capacity int `json:"capacity"`
}

// OperatorsConfig restricts operator commands to listed sender ids.
type OperatorsConfig struct {
	AllowFrom []string `json:"allow_from"`
}

// GatewayConfig configures HTTP health endpoint bind settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DedupTTL returns the dedup retention window.
func (c RelayConfig) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLSeconds) * time.Second
}

// SendTimeout returns the per-send timeout.
func (c RelayConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

// Default returns a config with every optional setting filled in.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig loads .env, resolves and unmarshals config.json when present,
// applies environment overrides and defaults. It does not validate.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	var cfg Config

	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	return &cfg, nil
}

// Validate reports missing required settings. Failures match ErrConfigMissing.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: %w", ErrConfigMissing)
	}

	var missing []string
	if strings.TrimSpace(c.Telegram.Token) == "" {
		missing = append(missing, "telegram.token ("+envBotToken+")")
	}
	if c.Relay.BroadcastChatID == 0 {
		missing = append(missing, "relay.broadcast_chat_id ("+envBroadcastChatID+")")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigMissing, strings.Join(missing, ", "))
	}

	return nil
}

// loadDotEnv reads ./.env into the process environment without overriding
// variables that are already set.
func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("load .env: %w", err)
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	for _, key := range []string{envTelegramBotToken, envBotToken} {
		if token := strings.TrimSpace(os.Getenv(key)); token != "" {
			cfg.Telegram.Token = token
		}
	}

	if url := strings.TrimSpace(os.Getenv(envWebAppURL)); url != "" {
		cfg.WebApp.URL = url
	}

	if raw := strings.TrimSpace(os.Getenv(envBroadcastChatID)); raw != "" {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envBroadcastChatID, err)
		}
		cfg.Relay.BroadcastChatID = chatID
	}

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envOperatorAllowFrom)); rawAllowFrom != "" {
		cfg.Operators.AllowFrom = parseCSV(rawAllowFrom)
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.WebApp.URL) == "" {
		cfg.WebApp.URL = DefaultWebAppURL
	}
	if cfg.RingLog.Capacity <= 0 {
		cfg.RingLog.Capacity = DefaultRingLogCapacity
	}
	if cfg.Relay.DedupTTLSeconds <= 0 {
		cfg.Relay.DedupTTLSeconds = DefaultDedupTTLSeconds
	}
	if cfg.Relay.DedupCapacity <= 0 {
		cfg.Relay.DedupCapacity = DefaultDedupCapacity
	}
	if cfg.Relay.SendTimeoutSeconds <= 0 {
		cfg.Relay.SendTimeoutSeconds = DefaultSendTimeoutSeconds
	}
	if cfg.Relay.MaxInFlight <= 0 {
		cfg.Relay.MaxInFlight = DefaultMaxInFlight
	}
	if strings.TrimSpace(cfg.Gateway.Host) == "" {
		cfg.Gateway.Host = DefaultGatewayHost
	}
	if cfg.Gateway.Port <= 0 {
		cfg.Gateway.Port = DefaultGatewayPort
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is SHOWBOT_CONFIG first, then cwd-local fallback paths. An
// empty path means no file exists and the environment is the only source.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}
