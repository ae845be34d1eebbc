package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerURL string        `yaml:"server_url"`
	Theme     string        `yaml:"theme"`
	LogLevel  string        `yaml:"log_level"`
	Stream    StreamConfig  `yaml:"stream"`
	Gateway   GatewayConfig `yaml:"gateway"`
}

// StreamConfig tunes the SSE event stream connection.
type StreamConfig struct {
	BackoffBaseMS  int  `yaml:"backoff_base_ms"`
	BackoffMaxMS   int  `yaml:"backoff_max_ms"`
	Dedup          bool `yaml:"dedup"`
	DedupCacheSize int  `yaml:"dedup_cache_size"`
}

// GatewayConfig points at the OpenClaw gateway used for the pairing probe.
type GatewayConfig struct {
	URL      string `yaml:"url"`
	TokenEnv string `yaml:"token_env"`
}

func DefaultConfig() Config {
	return Config{
		ServerURL: "http://127.0.0.1:8090",
		Theme:     "mocha",
		LogLevel:  "info",
		Stream: StreamConfig{
			BackoffBaseMS:  1000,
			BackoffMaxMS:   30000,
			DedupCacheSize: 256,
		},
		Gateway: GatewayConfig{
			URL: "ws://localhost:18789",
		},
	}
}

func Load() (Config, error) {
	return LoadFrom(filepath.Join(Dir(""), "config.yaml"))
}

// LoadFromDir loads config.yaml from an explicit directory.
func LoadFromDir(dir string) (Config, error) {
	return LoadFrom(filepath.Join(dir, "config.yaml"))
}

func LoadFrom(configPath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), err
	}

	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultConfig().ServerURL
	}
	if cfg.Theme == "" {
		cfg.Theme = "mocha"
	}
	if cfg.Stream.BackoffBaseMS <= 0 {
		cfg.Stream.BackoffBaseMS = 1000
	}
	if cfg.Stream.BackoffMaxMS <= 0 {
		cfg.Stream.BackoffMaxMS = 30000
	}
	if cfg.Stream.DedupCacheSize <= 0 {
		cfg.Stream.DedupCacheSize = 256
	}
	if cfg.Gateway.URL == "" {
		cfg.Gateway.URL = DefaultConfig().Gateway.URL
	}

	return cfg, nil
}

// BackoffBase returns the reconnect backoff base delay.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Stream.BackoffBaseMS) * time.Millisecond
}

// BackoffMax returns the reconnect backoff delay cap.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Stream.BackoffMaxMS) * time.Millisecond
}

// Dir returns the crewhub config directory. An explicit override wins,
// then $XDG_CONFIG_HOME, then ~/.config.
func Dir(override string) string {
	if override != "" {
		return override
	}
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "crewhub")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "crewhub")
	}
	return filepath.Join(home, ".config", "crewhub")
}
