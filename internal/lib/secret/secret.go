// Package secret seals device credentials before they reach the database.
// Router API passwords need to be recovered for each management session, so
// a one-way hash cannot serve here; secretbox gives authenticated symmetric
// encryption under a single process-wide key.
package secret

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// KeySize is the required length of the sealing key in bytes.
const KeySize = 32

const nonceSize = 24

// ErrBadKey reports a sealing key of the wrong length.
var ErrBadKey = errors.New("sealing key must be 32 bytes")

// ErrSealedBoxDamaged reports a box that failed authentication.
var ErrSealedBoxDamaged = errors.New("sealed value damaged or wrong key")

// Sealer encrypts and decrypts short credential strings.
type Sealer struct {
	key [KeySize]byte
}

// NewSealer builds a Sealer from a raw 32-byte key.
func NewSealer(key string) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, ErrBadKey
	}
	s := &Sealer{}
	copy(s.key[:], key)
	return s, nil
}

// Seal encrypts value with a fresh random nonce. The nonce is prepended to
// the returned box.
func (s *Sealer) Seal(value string) ([]byte, error) {
	const op = "secret.Seal"
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key), nil
}

// Open decrypts a box produced by Seal.
func (s *Sealer) Open(box []byte) (string, error) {
	const op = "secret.Open"
	if len(box) < nonceSize {
		return "", fmt.Errorf("%s: %w", op, ErrSealedBoxDamaged)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", fmt.Errorf("%s: %w", op, ErrSealedBoxDamaged)
	}
	return string(plain), nil
}
