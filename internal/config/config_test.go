package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kofany/nexus-sub000/internal/auth"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nexus-relayd.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[auth]
password = "secret"
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "nexus-relayd" {
		t.Fatalf("name = %q", cfg.Name)
	}
	if cfg.Relay.TCPAddr != ":9001" || cfg.Relay.WSPath != "/weechat" {
		t.Fatalf("relay defaults = %+v", cfg.Relay)
	}
	if len(cfg.Auth.Algos) != 5 {
		t.Fatalf("algo defaults = %v", cfg.Auth.Algos)
	}
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing password", `name = "x"`},
		{"bad ws path", "[auth]\npassword = \"s\"\n[relay]\nws_path = \"weechat\""},
	}
	for _, tt := range tests {
		if _, err := Load(writeConfig(t, tt.content)); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
}

func TestWriteTemplateLoadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starter.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("template must load: %v", err)
	}
	if len(cfg.Demo) != 1 || cfg.Demo[0].Channel != "#lobby" {
		t.Fatalf("demo section = %+v", cfg.Demo)
	}
}

func TestRelayConfigConversion(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[auth]
password = "secret"
algos = ["sha256", "pbkdf2+sha512"]
iterations = 50000

[limits]
auth_timeout_seconds = 5
push_queue_len = 16
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rc, err := RelayConfig(cfg)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if rc.Password != "secret" || rc.Iterations != 50_000 {
		t.Fatalf("relay config = %+v", rc)
	}
	if len(rc.Algos) != 2 || rc.Algos[1] != auth.AlgoPBKDF2SHA512 {
		t.Fatalf("algos = %v", rc.Algos)
	}
	if rc.AuthTimeout != 5*time.Second || rc.PushQueueLen != 16 {
		t.Fatalf("limits = %+v", rc)
	}
}

func TestRelayConfigRejectsUnknownAlgo(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()
	cfg.Auth.Password = "secret"
	cfg.Auth.Algos = []string{"md5"}
	if _, err := RelayConfig(cfg); err == nil {
		t.Fatalf("expected unknown algorithm error")
	}
}
