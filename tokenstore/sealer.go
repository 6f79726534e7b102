package tokenstore

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var hkdfInfo = []byte("tentacles token store v1")

// Sealer encrypts token blobs with NaCl secretbox under a key derived from a
// passphrase. Each blob is nonce || box.
type Sealer struct {
	key [32]byte
}

// NewSealer derives the secretbox key from passphrase with HKDF-SHA256.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, errors.New("tokenstore: empty encryption key")
	}
	s := &Sealer{}
	r := hkdf.New(sha256.New, []byte(passphrase), nil, hkdfInfo)
	if _, err := io.ReadFull(r, s.key[:]); err != nil {
		return nil, fmt.Errorf("tokenstore: derive key: %w", err)
	}
	return s, nil
}

func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("tokenstore: nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, errors.New("sealed token too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	out, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("decryption failed")
	}
	return out, nil
}
