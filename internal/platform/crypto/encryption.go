package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const keyLen = 32

// Cipher seals and opens attachment payloads with AES-256-GCM, nonce
// prefixed to the ciphertext. A nil Cipher (no key configured) passes
// data through unchanged so local setups work without key material.
type Cipher struct {
	aead cipher.AEAD
}

func New(key string) (*Cipher, error) {
	if key == "" {
		return nil, nil
	}
	raw := decodeKey(key)
	if len(raw) != keyLen {
		return nil, fmt.Errorf("DATA_ENCRYPTION_KEY must decode to %d bytes, got %d", keyLen, len(raw))
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Seal(plain []byte) ([]byte, error) {
	if c == nil || len(plain) == 0 {
		return plain, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plain, nil), nil
}

func (c *Cipher) Open(sealed []byte) ([]byte, error) {
	if c == nil || len(sealed) == 0 {
		return sealed, nil
	}
	n := c.aead.NonceSize()
	if len(sealed) < n {
		return nil, errors.New("sealed payload shorter than nonce")
	}
	return c.aead.Open(nil, sealed[:n], sealed[n:], nil)
}

// decodeKey accepts hex, standard or raw base64, or a literal 32-byte
// string, in that order of preference.
func decodeKey(raw string) []byte {
	if len(raw) == 2*keyLen {
		if decoded, err := hex.DecodeString(raw); err == nil {
			return decoded
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return decoded
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(raw); err == nil {
		return decoded
	}
	return []byte(raw)
}
