package obfuscation

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	// NonceSize is the length of the per-call random nonce.
	NonceSize = 12
	// TagSize is the length of the authentication tag.
	TagSize = 16
	// Overhead is the number of bytes Apply adds to every payload.
	Overhead = NonceSize + TagSize
)

// DefaultKey returns the deterministic key used when none is configured.
// It only makes sense for controlled experiments: anyone can decrypt.
func DefaultKey() []byte {
	return bytes.Repeat([]byte{0x01}, 16)
}

// EncryptionTransform seals payloads with AES-GCM. The output layout is
// nonce || tag || ciphertext so a peer holding the key can open it.
type EncryptionTransform struct {
	aead   cipher.AEAD
	nonces io.Reader
}

// EncryptionOption customizes NewEncryption.
type EncryptionOption func(*EncryptionTransform)

// WithNonceReader replaces crypto/rand as the nonce source.
func WithNonceReader(r io.Reader) EncryptionOption {
	return func(e *EncryptionTransform) {
		e.nonces = r
	}
}

// NewEncryption builds an EncryptionTransform. A nil key selects
// DefaultKey; any other key must be 16, 24 or 32 bytes long.
func NewEncryption(key []byte, opts ...EncryptionOption) (*EncryptionTransform, error) {
	if key == nil {
		key = DefaultKey()
	}
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, &ConfigError{
			Kind:   KindEncryption,
			Reason: fmt.Sprintf("key must be 16, 24, or 32 bytes long, got %d", len(key)),
		}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &TransformError{Kind: KindEncryption, Err: fmt.Errorf("aes unavailable: %w", err)}
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &TransformError{Kind: KindEncryption, Err: fmt.Errorf("gcm unavailable: %w", err)}
	}

	e := &EncryptionTransform{aead: aead, nonces: rand.Reader}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Kind implements Transform.
func (e *EncryptionTransform) Kind() Kind {
	return KindEncryption
}

// Apply implements PayloadTransform.
func (e *EncryptionTransform) Apply(plaintext []byte) ([]byte, error) {
	n := len(plaintext)
	out := make([]byte, Overhead+n)
	nonce := out[:NonceSize]
	if _, err := io.ReadFull(e.nonces, nonce); err != nil {
		return nil, &TransformError{Kind: KindEncryption, Err: fmt.Errorf("reading nonce: %w", err)}
	}

	// Seal appends ciphertext || tag; rearrange into tag || ciphertext.
	sealed := e.aead.Seal(nil, nonce, plaintext, nil)
	copy(out[NonceSize:Overhead], sealed[n:])
	copy(out[Overhead:], sealed[:n])
	return out, nil
}

// Open reverses Apply.
func (e *EncryptionTransform) Open(data []byte) ([]byte, error) {
	if len(data) < Overhead {
		return nil, errors.New("sealed payload too short")
	}
	nonce := data[:NonceSize]
	tag := data[NonceSize:Overhead]
	ciphertext := data[Overhead:]

	joined := make([]byte, 0, len(ciphertext)+TagSize)
	joined = append(joined, ciphertext...)
	joined = append(joined, tag...)
	plaintext, err := e.aead.Open(nil, nonce, joined, nil)
	if err != nil {
		return nil, fmt.Errorf("opening sealed payload: %w", err)
	}
	return plaintext, nil
}
