package security

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/argon2"
)

func newTestHasher(t *testing.T) *Argon2Hasher {
	t.Helper()
	hasher, err := NewArgon2Hasher(Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2Hasher returned error: %v", err)
	}
	return hasher
}

// matchesPHC recomputes the key from the parameters and salt stored in encoded.
func matchesPHC(t *testing.T, password, encoded string) bool {
	t.Helper()
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" || parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		t.Fatalf("unexpected hash format: %q", encoded)
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		t.Fatalf("parse parameters %q: %v", parts[3], err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		t.Fatalf("decode salt: %v", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}

	return bytes.Equal(argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(key))), key)
}

func TestArgon2HasherProducesVerifiablePHCString(t *testing.T) {
	hasher := newTestHasher(t)
	password := "correct horse battery staple"

	encoded, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("encoded hash does not reflect configured parameters: %q", encoded)
	}
	if !matchesPHC(t, password, encoded) {
		t.Fatal("stored key does not match the password")
	}
	if matchesPHC(t, "Tr0ub4dor&3", encoded) {
		t.Fatal("stored key matches a different password")
	}
	if hasher.Algorithm() != "argon2id" {
		t.Fatalf("unexpected algorithm %q", hasher.Algorithm())
	}
}

func TestArgon2HasherSaltsEachHash(t *testing.T) {
	hasher := newTestHasher(t)

	first, err := hasher.Hash("same password")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	second, err := hasher.Hash("same password")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct encodings for repeated hashes")
	}
}

func TestArgon2HasherKeyAndSaltLengths(t *testing.T) {
	hasher, err := NewArgon2Hasher(Argon2Config{Memory: 8 * 1024, Iterations: 1, Parallelism: 2, SaltLength: 8, KeyLength: 16})
	if err != nil {
		t.Fatalf("NewArgon2Hasher returned error: %v", err)
	}

	encoded, err := hasher.Hash("pw")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	parts := strings.Split(encoded, "$")
	if got := base64.RawStdEncoding.DecodedLen(len(parts[4])); got != 8 {
		t.Fatalf("unexpected salt length %d", got)
	}
	if got := base64.RawStdEncoding.DecodedLen(len(parts[5])); got != 16 {
		t.Fatalf("unexpected key length %d", got)
	}
}

func TestNewArgon2HasherRejectsWeakConfig(t *testing.T) {
	cfg := DefaultArgon2Config()
	cfg.Memory = 1024
	if _, err := NewArgon2Hasher(cfg); err == nil {
		t.Fatal("expected error for memory below the minimum")
	}

	cfg = DefaultArgon2Config()
	cfg.SaltLength = 4
	if _, err := NewArgon2Hasher(cfg); err == nil {
		t.Fatal("expected error for short salt")
	}
}
