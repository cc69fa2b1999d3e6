// Package config loads relay and crdtctl settings from flags and the environment.
// Environment variables replace flag defaults; explicit flags win over both.
package config

import (
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidConfig is returned for settings that fail validation.
var ErrInvalidConfig = errors.New("invalid config")

// Relay содержит настройки relay сервера
type Relay struct {
	Addr        string        // Addr адрес HTTP сервера
	DBPath      string        // DBPath путь к sqlite базе состояния сцен, пустой - только память
	RedisAddr   string        // RedisAddr адрес Redis для брокера, пустой - брокер в памяти
	TokenSecret string        // TokenSecret секрет, из которого выводится ключ подписи токенов
	TokenSalt   string        // TokenSalt соль Argon2id в Base64, пустая - случайная на каждый запуск
	LogLevel    string
	TokenTTL    time.Duration
	TokenWindow time.Duration
	TokenRate   int
	SendBuffer  int
	// DisableTokenEndpoint отключает выдачу токенов по HTTP
	DisableTokenEndpoint bool
	ShowVersion          bool
}

// CLI содержит глобальные настройки crdtctl
type CLI struct {
	Server      string
	DBPath      string
	Token       string
	LogLevel    string
	ShowVersion bool
}

// LoadRelay parses relay flags from args (without the program name).
func LoadRelay(args []string) (*Relay, error) {
	cfg := &Relay{}

	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.Addr, "addr", envString("SCENESYNC_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db", envString("SCENESYNC_DB", "scenesync-relay.db"), "Path to the sqlite scene database, empty to keep state in memory")
	fs.StringVar(&cfg.RedisAddr, "redis", envString("REDIS_ADDR", ""), "Redis address for multi-instance fan-out")
	fs.StringVar(&cfg.TokenSecret, "token-secret", envString("SCENESYNC_TOKEN_SECRET", ""), "Secret used to derive the token signing key")
	fs.StringVar(&cfg.TokenSalt, "token-salt", envString("SCENESYNC_TOKEN_SALT", ""), "Base64 salt for signing key derivation")
	fs.StringVar(&cfg.LogLevel, "log-level", envString("SCENESYNC_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", envDuration("SCENESYNC_TOKEN_TTL", 24*time.Hour), "Lifetime of issued tokens")
	fs.DurationVar(&cfg.TokenWindow, "token-window", envDuration("SCENESYNC_TOKEN_WINDOW", time.Minute), "Rate limit window of the token endpoint")
	fs.IntVar(&cfg.TokenRate, "token-rate", envInt("SCENESYNC_TOKEN_RATE", 10), "Token requests per window and client IP")
	fs.IntVar(&cfg.SendBuffer, "send-buffer", envInt("SCENESYNC_SEND_BUFFER", 256), "Per-peer delivery queue length")
	fs.BoolVar(&cfg.DisableTokenEndpoint, "disable-token-endpoint", envBool("SCENESYNC_DISABLE_TOKEN_ENDPOINT", false), "Do not serve POST /api/v1/token")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.ShowVersion {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the relay settings.
func (c *Relay) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: listen address is empty", ErrInvalidConfig)
	}
	if c.TokenSecret == "" {
		return fmt.Errorf("%w: token secret is required (-token-secret or SCENESYNC_TOKEN_SECRET)", ErrInvalidConfig)
	}
	if c.TokenSalt != "" {
		if _, err := base64.StdEncoding.DecodeString(c.TokenSalt); err != nil {
			return fmt.Errorf("%w: token salt is not valid base64: %w", ErrInvalidConfig, err)
		}
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%w: token ttl must be positive", ErrInvalidConfig)
	}
	if c.TokenRate <= 0 || c.TokenWindow <= 0 {
		return fmt.Errorf("%w: token rate limit must be positive", ErrInvalidConfig)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("%w: send buffer must be positive", ErrInvalidConfig)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Salt returns the decoded token salt.
func (c *Relay) Salt() ([]byte, error) {
	return base64.StdEncoding.DecodeString(c.TokenSalt)
}

// LoadCLI parses the global crdtctl flags and returns the remaining args.
func LoadCLI(args []string) (*CLI, []string, error) {
	cfg := &CLI{}

	fs := flag.NewFlagSet("crdtctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.Server, "server", envString("SCENESYNC_SERVER", "http://localhost:8080"), "Relay URL")
	fs.StringVar(&cfg.DBPath, "db", envString("SCENESYNC_CLI_DB", "crdtctl.db"), "Path to the local scene cache")
	fs.StringVar(&cfg.Token, "token", envString("SCENESYNC_TOKEN", ""), "Relay access token")
	fs.StringVar(&cfg.LogLevel, "log-level", envString("SCENESYNC_LOG_LEVEL", "warn"), "Log level: debug, info, warn, error")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return nil, nil, err
	}
	return cfg, fs.Args(), nil
}

// ParseLevel converts a level name into slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, level)
	}
	return l, nil
}

// NewLogger creates a text logger writing to w.
func NewLogger(level string, w io.Writer) (*slog.Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
