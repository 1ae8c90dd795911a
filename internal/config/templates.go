package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes the annotated starter configuration.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const template = `name = "nexus-relayd"

[relay]
tcp_addr = ":9001"
ws_addr = ":9002"
ws_path = "/weechat"
cors_origins = ["http://localhost:3000"]

[admin]
addr = ":9100"

[auth]
password = "change-me"
algos = ["plain", "sha256", "sha512", "pbkdf2+sha256", "pbkdf2+sha512"]
iterations = 100000
compression = true

[limits]
auth_timeout_seconds = 30
max_buffer_bytes = 65536
push_queue_len = 256
max_frame_bytes = 16777216

[[demo]]
network = "demo"
channel = "#lobby"
title = "welcome"
members = ["alice", "bob"]
`
