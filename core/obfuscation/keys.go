package obfuscation

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// keyInfo is the HKDF info string binding derived keys to this tool.
const keyInfo = "obfsmeter payload encryption"

// DeriveKey stretches a shared passphrase into a key of size bytes using
// HKDF-SHA256. Both endpoints of an experiment derive the same key from
// the same passphrase and salt.
func DeriveKey(passphrase string, salt []byte, size int) ([]byte, error) {
	switch size {
	case 16, 24, 32:
	default:
		return nil, &ConfigError{
			Kind:   KindEncryption,
			Reason: fmt.Sprintf("derived key size must be 16, 24, or 32 bytes, got %d", size),
		}
	}
	if passphrase == "" {
		return nil, &ConfigError{Kind: KindEncryption, Reason: "passphrase must not be empty"}
	}

	key := make([]byte, size)
	r := hkdf.New(sha256.New, []byte(passphrase), salt, []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("HKDF failed: %w", err)
	}
	return key, nil
}
