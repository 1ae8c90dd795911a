package relay

import (
	"time"

	"github.com/kofany/nexus-sub000/internal/auth"
	"github.com/kofany/nexus-sub000/internal/protocol/frame"
)

// Config defines per-session protocol and hardening parameters.
type Config struct {
	// Password is the relay password clients authenticate with.
	Password string

	// Algos is the accepted hash algorithm set offered in handshake
	// negotiation.
	Algos []auth.Algo

	// Iterations is the pbkdf2 iteration count advertised to clients.
	Iterations int

	// OfferCompression offers zlib during negotiation when true.
	OfferCompression bool

	// AuthTimeout closes connections that have not authenticated in
	// time.
	AuthTimeout time.Duration

	// MaxBufferBytes caps the per-connection line accumulation buffer.
	MaxBufferBytes int

	// PushQueueLen bounds the per-session push queue; a session that
	// cannot drain it is closed as a slow consumer.
	PushQueueLen int

	// FrameLimits constrains outbound frame sizes.
	FrameLimits frame.Limits
}

func DefaultConfig() Config {
	return Config{
		Algos: []auth.Algo{
			auth.AlgoPlain,
			auth.AlgoSHA256,
			auth.AlgoSHA512,
			auth.AlgoPBKDF2SHA256,
			auth.AlgoPBKDF2SHA512,
		},
		Iterations:       100_000,
		OfferCompression: true,
		AuthTimeout:      30 * time.Second,
		MaxBufferBytes:   64 * 1024,
		PushQueueLen:     256,
		FrameLimits:      frame.DefaultLimits(),
	}
}
