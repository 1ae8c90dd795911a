package config

import (
	"fmt"
	"time"

	"github.com/kofany/nexus-sub000/internal/auth"
	"github.com/kofany/nexus-sub000/internal/relay"
)

// RelayConfig converts the loaded configuration into per-session relay
// parameters. Unknown algorithm names fail loudly rather than silently
// weakening the negotiated set.
func RelayConfig(cfg Config) (relay.Config, error) {
	rc := relay.DefaultConfig()
	rc.Password = cfg.Auth.Password
	rc.Iterations = cfg.Auth.Iterations
	rc.OfferCompression = cfg.Auth.Compression

	algos := make([]auth.Algo, 0, len(cfg.Auth.Algos))
	for _, name := range cfg.Auth.Algos {
		algo, ok := auth.ParseAlgo(name)
		if !ok {
			return relay.Config{}, fmt.Errorf("auth algos: unknown algorithm %q", name)
		}
		algos = append(algos, algo)
	}
	rc.Algos = algos

	if cfg.Limit.AuthTimeoutSeconds > 0 {
		rc.AuthTimeout = time.Duration(cfg.Limit.AuthTimeoutSeconds) * time.Second
	}
	if cfg.Limit.MaxBufferBytes > 0 {
		rc.MaxBufferBytes = cfg.Limit.MaxBufferBytes
	}
	if cfg.Limit.PushQueueLen > 0 {
		rc.PushQueueLen = cfg.Limit.PushQueueLen
	}
	if cfg.Limit.MaxFrameBytes > 0 {
		rc.FrameLimits.MaxFrameBytes = cfg.Limit.MaxFrameBytes
	}
	return rc, nil
}
