package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/kofany/nexus-sub000/internal/config"
)

// overrideFile is the optional local override layer, usually a
// .local.toml kept out of version control. Only keys actually present
// in the file override the base configuration.
type overrideFile struct {
	Password  string `toml:"password"`
	TCPAddr   string `toml:"tcp_addr"`
	WSAddr    string `toml:"ws_addr"`
	AdminAddr string `toml:"admin_addr"`
}

func loadConfig(path, overridePath string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if overridePath != "" {
		if err := applyOverrides(&cfg, overridePath); err != nil {
			return config.Config{}, err
		}
	}
	if pw := os.Getenv("NEXUS_RELAY_PASSWORD"); pw != "" {
		cfg.Auth.Password = pw
	}

	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, path string) error {
	var raw overrideFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	if meta.IsDefined("password") {
		cfg.Auth.Password = raw.Password
	}
	if meta.IsDefined("tcp_addr") {
		cfg.Relay.TCPAddr = strings.TrimSpace(raw.TCPAddr)
	}
	if meta.IsDefined("ws_addr") {
		cfg.Relay.WSAddr = strings.TrimSpace(raw.WSAddr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.Admin.Addr = strings.TrimSpace(raw.AdminAddr)
	}
	return nil
}
