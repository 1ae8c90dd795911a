package auth

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const maxIterations = 1_000_000

// VerifyPlain checks a cleartext password in constant time.
func VerifyPlain(password, supplied string) error {
	if password == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(supplied)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// VerifyProof checks a password_hash init proof against the configured
// password and the nonce issued during handshake. Proof formats:
//
//	sha256:salt_hex:hash_hex          hash = SHA256(salt+password)
//	sha512:salt_hex:hash_hex          hash = SHA512(salt+password)
//	pbkdf2+sha256:salt_hex:iter:hash  hash = PBKDF2-HMAC-SHA256
//	pbkdf2+sha512:salt_hex:iter:hash  hash = PBKDF2-HMAC-SHA512
//
// The salt must begin with the server nonce, so proofs cannot be
// replayed across connections.
func VerifyProof(password, nonceHex, proof string) error {
	parts := strings.Split(proof, ":")
	if len(parts) < 3 {
		return fmt.Errorf("%w: %d segments", ErrMalformedProof, len(parts))
	}
	algo, ok := ParseAlgo(parts[0])
	if !ok || algo == AlgoPlain {
		return fmt.Errorf("%w: %q", ErrUnknownAlgo, parts[0])
	}

	saltHex := parts[1]
	if !strings.HasPrefix(strings.ToLower(saltHex), strings.ToLower(nonceHex)) || nonceHex == "" {
		return ErrNonceMismatch
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return fmt.Errorf("%w: bad salt hex", ErrMalformedProof)
	}

	var supplied []byte
	var expected []byte
	switch algo {
	case AlgoSHA256, AlgoSHA512:
		if len(parts) != 3 {
			return fmt.Errorf("%w: %d segments", ErrMalformedProof, len(parts))
		}
		supplied, err = hex.DecodeString(parts[2])
		if err != nil {
			return fmt.Errorf("%w: bad hash hex", ErrMalformedProof)
		}
		expected = saltedDigest(algo, salt, password)
	case AlgoPBKDF2SHA256, AlgoPBKDF2SHA512:
		if len(parts) != 4 {
			return fmt.Errorf("%w: %d segments", ErrMalformedProof, len(parts))
		}
		iterations, err := strconv.Atoi(parts[2])
		if err != nil {
			return fmt.Errorf("%w: bad iteration count", ErrMalformedProof)
		}
		if iterations <= 0 || iterations > maxIterations {
			return fmt.Errorf("%w: %d", ErrBadIterations, iterations)
		}
		supplied, err = hex.DecodeString(parts[3])
		if err != nil {
			return fmt.Errorf("%w: bad hash hex", ErrMalformedProof)
		}
		expected = derivedKey(algo, salt, password, iterations)
	}

	if len(supplied) != len(expected) ||
		subtle.ConstantTimeCompare(supplied, expected) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// MakeProof builds a proof string for the given algorithm. It is the
// client half of VerifyProof and is used by tests and client tooling.
func MakeProof(algo Algo, password, nonceHex string, iterations int) (string, error) {
	clientSalt, err := NewNonce()
	if err != nil {
		return "", err
	}
	saltHex := nonceHex + clientSalt
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("%w: bad nonce hex", ErrMalformedProof)
	}
	switch algo {
	case AlgoSHA256, AlgoSHA512:
		sum := saltedDigest(algo, salt, password)
		return fmt.Sprintf("%s:%s:%s", algo, saltHex, hex.EncodeToString(sum)), nil
	case AlgoPBKDF2SHA256, AlgoPBKDF2SHA512:
		sum := derivedKey(algo, salt, password, iterations)
		return fmt.Sprintf("%s:%s:%d:%s", algo, saltHex, iterations, hex.EncodeToString(sum)), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownAlgo, algo)
}

func saltedDigest(algo Algo, salt []byte, password string) []byte {
	input := append(append([]byte{}, salt...), []byte(password)...)
	if algo == AlgoSHA256 {
		sum := sha256.Sum256(input)
		return sum[:]
	}
	sum := sha512.Sum512(input)
	return sum[:]
}

func derivedKey(algo Algo, salt []byte, password string, iterations int) []byte {
	if algo == AlgoPBKDF2SHA256 {
		return pbkdf2.Key([]byte(password), salt, iterations, sha256.Size, sha256.New)
	}
	return pbkdf2.Key([]byte(password), salt, iterations, sha512.Size, sha512.New)
}
