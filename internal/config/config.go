// Package config provides the runtime settings of the relay: listener
// addresses, connection limits, keepalive timings and logging. Values are
// layered defaults, then an optional YAML file, then CHAT_* environment
// variables; the CLI applies explicit flags last.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "CHAT_"

// RateLimitConfig defines per-connection inbound message rate limiting.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst" env:"BURST"`
	RefillInterval time.Duration `yaml:"refill_interval" env:"REFILL_INTERVAL"`
}

// Config holds the server configuration.
type Config struct {
	Host       string `yaml:"host" env:"HOST"`
	Port       int    `yaml:"port" env:"PORT"`
	StaticPort int    `yaml:"static_port" env:"STATIC_PORT"`
	// StaticDir is served by the asset server. Empty serves the embedded
	// frontend.
	StaticDir string `yaml:"static_dir" env:"STATIC_DIR"`

	AllowedOrigins []string        `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	MaxMessageSize int64           `yaml:"max_message_size" env:"MAX_MESSAGE_SIZE"`
	SendBuffer     int             `yaml:"send_buffer" env:"SEND_BUFFER"`
	FanOut         int             `yaml:"fan_out" env:"FAN_OUT"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`

	PingPeriod      time.Duration `yaml:"ping_period" env:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" env:"PONG_WAIT"`
	WriteWait       time.Duration `yaml:"write_wait" env:"WRITE_WAIT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8765,
		StaticPort:     8000,
		AllowedOrigins: []string{"*"},
		MaxMessageSize: 4096,
		SendBuffer:     256,
		FanOut:         32,
		RateLimit: RateLimitConfig{
			Burst:          10,
			RefillInterval: time.Second,
		},
		PingPeriod:      54 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if err := validPort("port", c.Port); err != nil {
		errs = append(errs, err)
	}
	if err := validPort("static_port", c.StaticPort); err != nil {
		errs = append(errs, err)
	}
	if c.Port == c.StaticPort {
		errs = append(errs, fmt.Errorf("port and static_port must differ (both %d)", c.Port))
	}
	if c.MaxMessageSize <= 0 {
		errs = append(errs, fmt.Errorf("max_message_size must be positive, got %d", c.MaxMessageSize))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer))
	}
	if c.FanOut <= 0 {
		errs = append(errs, fmt.Errorf("fan_out must be positive, got %d", c.FanOut))
	}
	if c.RateLimit.Burst <= 0 || c.RateLimit.RefillInterval <= 0 {
		errs = append(errs, errors.New("rate_limit burst and refill_interval must be positive"))
	}
	if c.PongWait <= 0 || c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		errs = append(errs, fmt.Errorf("ping_period (%s) must be positive and shorter than pong_wait (%s)", c.PingPeriod, c.PongWait))
	}
	if c.WriteWait <= 0 || c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("write_wait and shutdown_timeout must be positive"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log_format must be json or console, got %q", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func validPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

// ChatAddr is the bind address of the chat listener.
func (c Config) ChatAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// StaticAddr is the bind address of the asset server.
func (c Config) StaticAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.StaticPort))
}
