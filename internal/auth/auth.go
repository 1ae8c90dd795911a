// Package auth owns relay authentication: hash-algorithm negotiation,
// nonce issuance, and password proof verification.
//
// It intentionally avoids storage concerns; the relay password is
// supplied by the backend provider.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
)

var (
	ErrUnauthorized   = errors.New("auth: unauthorized")
	ErrUnknownAlgo    = errors.New("auth: unknown hash algorithm")
	ErrMalformedProof = errors.New("auth: malformed hash proof")
	ErrNonceMismatch  = errors.New("auth: salt does not carry server nonce")
	ErrBadIterations  = errors.New("auth: iteration count out of range")
)

// Algo is one supported password hash algorithm.
type Algo int

const (
	AlgoPlain Algo = iota
	AlgoSHA256
	AlgoSHA512
	AlgoPBKDF2SHA256
	AlgoPBKDF2SHA512
)

// strengthOrder ranks algorithms strongest first. Negotiation always
// picks the highest mutually supported entry.
var strengthOrder = []Algo{
	AlgoPBKDF2SHA512,
	AlgoPBKDF2SHA256,
	AlgoSHA512,
	AlgoSHA256,
	AlgoPlain,
}

func (a Algo) String() string {
	switch a {
	case AlgoPlain:
		return "plain"
	case AlgoSHA256:
		return "sha256"
	case AlgoSHA512:
		return "sha512"
	case AlgoPBKDF2SHA256:
		return "pbkdf2+sha256"
	case AlgoPBKDF2SHA512:
		return "pbkdf2+sha512"
	}
	return "unknown"
}

// ParseAlgo maps a wire algorithm name to its Algo.
func ParseAlgo(name string) (Algo, bool) {
	switch name {
	case "plain":
		return AlgoPlain, true
	case "sha256":
		return AlgoSHA256, true
	case "sha512":
		return AlgoSHA512, true
	case "pbkdf2+sha256":
		return AlgoPBKDF2SHA256, true
	case "pbkdf2+sha512":
		return AlgoPBKDF2SHA512, true
	}
	return 0, false
}

// Negotiate picks the strongest algorithm present in both the client's
// proposal and the server's accepted set. No overlap falls back to
// plain.
func Negotiate(client []string, server []Algo) Algo {
	proposed := make(map[Algo]bool, len(client))
	for _, name := range client {
		if a, ok := ParseAlgo(name); ok {
			proposed[a] = true
		}
	}
	accepted := make(map[Algo]bool, len(server))
	for _, a := range server {
		accepted[a] = true
	}
	for _, a := range strengthOrder {
		if proposed[a] && accepted[a] {
			return a
		}
	}
	return AlgoPlain
}

// NewNonce returns a fresh per-connection nonce as lowercase hex.
func NewNonce() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}
