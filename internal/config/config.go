// Package config loads and validates the daemon's TOML configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Name  string     `toml:"name"`
	Relay RelaySect  `toml:"relay"`
	Admin AdminSect  `toml:"admin"`
	Auth  AuthSect   `toml:"auth"`
	Limit LimitsSect `toml:"limits"`
	Demo  []DemoSeed `toml:"demo"`
}

// RelaySect configures the client-facing listeners.
type RelaySect struct {
	TCPAddr     string   `toml:"tcp_addr"`
	WSAddr      string   `toml:"ws_addr"`
	WSPath      string   `toml:"ws_path"`
	CorsOrigins []string `toml:"cors_origins"`
}

// AdminSect configures the operational HTTP surface.
type AdminSect struct {
	Addr string `toml:"addr"`
}

// AuthSect configures relay authentication.
type AuthSect struct {
	Password    string   `toml:"password"`
	Algos       []string `toml:"algos"`
	Iterations  int      `toml:"iterations"`
	Compression bool     `toml:"compression"`
}

// LimitsSect configures per-connection hardening limits. Zero values
// fall back to built-in defaults.
type LimitsSect struct {
	AuthTimeoutSeconds int    `toml:"auth_timeout_seconds"`
	MaxBufferBytes     int    `toml:"max_buffer_bytes"`
	PushQueueLen       int    `toml:"push_queue_len"`
	MaxFrameBytes      uint32 `toml:"max_frame_bytes"`
}

// DemoSeed declares one channel the demo backend creates at startup.
type DemoSeed struct {
	Network string   `toml:"network"`
	Channel string   `toml:"channel"`
	Title   string   `toml:"title"`
	Members []string `toml:"members"`
}

func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "nexus-relayd"
	}
	if c.Relay.TCPAddr == "" {
		c.Relay.TCPAddr = ":9001"
	}
	if c.Relay.WSAddr == "" {
		c.Relay.WSAddr = ":9002"
	}
	if c.Relay.WSPath == "" {
		c.Relay.WSPath = "/weechat"
	}
	if c.Admin.Addr == "" {
		c.Admin.Addr = ":9100"
	}
	if len(c.Auth.Algos) == 0 {
		c.Auth.Algos = []string{
			"plain", "sha256", "sha512", "pbkdf2+sha256", "pbkdf2+sha512",
		}
	}
	if c.Auth.Iterations == 0 {
		c.Auth.Iterations = 100_000
	}
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("config missing name")
	}
	if strings.TrimSpace(cfg.Auth.Password) == "" {
		return fmt.Errorf("config missing auth password")
	}
	if strings.TrimSpace(cfg.Relay.TCPAddr) == "" &&
		strings.TrimSpace(cfg.Relay.WSAddr) == "" {
		return fmt.Errorf("config needs at least one relay listener")
	}
	if !strings.HasPrefix(cfg.Relay.WSPath, "/") {
		return fmt.Errorf("ws_path must start with /")
	}
	if cfg.Auth.Iterations < 0 {
		return fmt.Errorf("auth iterations must be positive")
	}
	for i, seed := range cfg.Demo {
		if strings.TrimSpace(seed.Network) == "" {
			return fmt.Errorf("demo[%d] missing network", i)
		}
	}
	return nil
}
