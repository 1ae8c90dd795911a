package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestNegotiatePicksStrongestMutual(t *testing.T) {
	all := []Algo{AlgoPlain, AlgoSHA256, AlgoSHA512, AlgoPBKDF2SHA256, AlgoPBKDF2SHA512}
	cases := []struct {
		client []string
		server []Algo
		want   Algo
	}{
		{[]string{"plain", "sha256", "sha512", "pbkdf2+sha256", "pbkdf2+sha512"}, all, AlgoPBKDF2SHA512},
		{[]string{"sha256", "sha512"}, all, AlgoSHA512},
		{[]string{"plain", "sha256"}, []Algo{AlgoSHA256, AlgoSHA512}, AlgoSHA256},
		{[]string{"pbkdf2+sha512"}, []Algo{AlgoSHA256}, AlgoPlain},
		{[]string{"argon2", "bogus"}, all, AlgoPlain},
		{nil, all, AlgoPlain},
	}
	for _, tc := range cases {
		if got := Negotiate(tc.client, tc.server); got != tc.want {
			t.Fatalf("Negotiate(%v) = %s, want %s", tc.client, got, tc.want)
		}
	}
}

func TestParseAlgoRoundTrip(t *testing.T) {
	for _, a := range []Algo{AlgoPlain, AlgoSHA256, AlgoSHA512, AlgoPBKDF2SHA256, AlgoPBKDF2SHA512} {
		got, ok := ParseAlgo(a.String())
		if !ok || got != a {
			t.Fatalf("ParseAlgo(%q) = %v,%v", a.String(), got, ok)
		}
	}
	if _, ok := ParseAlgo("md5"); ok {
		t.Fatalf("ParseAlgo accepted md5")
	}
}

func TestVerifyPlain(t *testing.T) {
	if err := VerifyPlain("hunter2", "hunter2"); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}
	if err := VerifyPlain("hunter2", "hunter3"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := VerifyPlain("", ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("empty configured password must reject, got %v", err)
	}
}

func TestVerifyProofAllSchemes(t *testing.T) {
	const password = "relay-secret"
	nonce, err := NewNonce()
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	for _, algo := range []Algo{AlgoSHA256, AlgoSHA512, AlgoPBKDF2SHA256, AlgoPBKDF2SHA512} {
		proof, err := MakeProof(algo, password, nonce, 100_000)
		if err != nil {
			t.Fatalf("%s: make proof: %v", algo, err)
		}
		if err := VerifyProof(password, nonce, proof); err != nil {
			t.Fatalf("%s: correct proof rejected: %v", algo, err)
		}

		// Any single hex character mutation must fail verification.
		mutated := mutateLastHexDigit(proof)
		if err := VerifyProof(password, nonce, mutated); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: mutated proof accepted: %v", algo, err)
		}

		if err := VerifyProof("wrong-password", nonce, proof); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: wrong password accepted: %v", algo, err)
		}
	}
}

func TestVerifyProofRejectsForeignNonce(t *testing.T) {
	const password = "relay-secret"
	nonce, _ := NewNonce()
	other, _ := NewNonce()
	proof, err := MakeProof(AlgoSHA256, password, other, 0)
	if err != nil {
		t.Fatalf("make proof: %v", err)
	}
	if err := VerifyProof(password, nonce, proof); !errors.Is(err, ErrNonceMismatch) {
		t.Fatalf("expected ErrNonceMismatch, got %v", err)
	}
}

func TestVerifyProofMalformed(t *testing.T) {
	nonce, _ := NewNonce()
	cases := []struct {
		proof string
		want  error
	}{
		{"sha256", ErrMalformedProof},
		{"md5:" + nonce + ":abcd", ErrUnknownAlgo},
		{"plain:" + nonce + ":abcd", ErrUnknownAlgo},
		{"sha256:" + nonce + "zz:abcd", ErrMalformedProof},
		{"sha256:" + nonce + ":zz", ErrMalformedProof},
		{"pbkdf2+sha256:" + nonce + ":notanumber:abcd", ErrMalformedProof},
		{"pbkdf2+sha256:" + nonce + ":0:abcd", ErrBadIterations},
		{"pbkdf2+sha256:" + nonce + ":99999999:abcd", ErrBadIterations},
		{"sha256:" + nonce + ":aa:bb", ErrMalformedProof},
	}
	for _, tc := range cases {
		if err := VerifyProof("pw", nonce, tc.proof); !errors.Is(err, tc.want) {
			t.Fatalf("proof %q: expected %v, got %v", tc.proof, tc.want, err)
		}
	}
}

func mutateLastHexDigit(proof string) string {
	last := proof[len(proof)-1]
	repl := byte('0')
	if last == '0' {
		repl = '1'
	}
	return proof[:len(proof)-1] + string(repl)
}

func TestNewNonceUnique(t *testing.T) {
	a, err := NewNonce()
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	b, err := NewNonce()
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	if a == b {
		t.Fatalf("nonces must be unique")
	}
	if len(a) != 32 || strings.ToLower(a) != a {
		t.Fatalf("nonce not lowercase hex: %q", a)
	}
}
