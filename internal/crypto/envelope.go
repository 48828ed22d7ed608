// Copyright 2026 The Aegisfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package crypto implements the AEAD envelope every object body passes
// through before it reaches the store and after it leaves it. The
// wire layout is fixed: a 12-byte random nonce followed by the AEAD
// ciphertext (which itself carries a 16-byte authentication tag at its
// tail). AAD is always empty — the inode/path layer is not
// authenticated into the ciphertext, matching the contract the
// gateway and store already enforce around key placement.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required raw key length in bytes for either
// supported algorithm.
const KeySize = 32

// nonceSize is fixed at 96 bits for both AES-256-GCM and
// ChaCha20-Poly1305.
const nonceSize = 12

// tagSize is the AEAD authentication tag length appended by both
// supported ciphers.
const tagSize = 16

// Algorithm names accepted in the [encryption] config table.
const (
	AlgorithmAES256GCM        = "aes256-gcm"
	AlgorithmChaCha20Poly1305 = "chacha20-poly1305"
	defaultAlgorithm          = AlgorithmAES256GCM
)

// InvalidKey is returned when the configured key material cannot be
// loaded or is the wrong length. It always fails mount initialization;
// it is never returned from Seal or Open.
type InvalidKey struct {
	Reason string
}

func (e *InvalidKey) Error() string { return "crypto: invalid key: " + e.Reason }

// AuthenticationFailure is returned by Open when the ciphertext's
// authentication tag does not verify — either the wrong key or
// tampered/corrupted bytes.
type AuthenticationFailure struct{}

func (e *AuthenticationFailure) Error() string { return "crypto: authentication failure" }

// MalformedCiphertext is returned by Open when the input is too
// short to contain a nonce, independent of authentication. An input
// that holds a nonce but is too short for the tag fails authentication
// instead.
type MalformedCiphertext struct {
	Reason string
}

func (e *MalformedCiphertext) Error() string { return "crypto: malformed ciphertext: " + e.Reason }

// Envelope seals and opens object bodies with one AEAD algorithm and
// one fixed key. It is safe for concurrent use.
type Envelope struct {
	aead cipher.AEAD
}

// New constructs an Envelope for the named algorithm and key. An empty
// algorithm defaults to AES-256-GCM; any other unrecognized name is
// rejected rather than silently treated as the default, so a config
// typo fails the mount instead of silently picking a cipher the
// operator didn't ask for.
func New(algorithm string, key []byte) (*Envelope, error) {
	if len(key) != KeySize {
		return nil, &InvalidKey{Reason: fmt.Sprintf("key must be %d bytes, got %d", KeySize, len(key))}
	}

	if algorithm == "" {
		algorithm = defaultAlgorithm
	}

	var aead cipher.AEAD
	var err error
	switch algorithm {
	case AlgorithmAES256GCM:
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err != nil {
			return nil, &InvalidKey{Reason: err.Error()}
		}
		aead, err = cipher.NewGCM(block)
	case AlgorithmChaCha20Poly1305:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("crypto: unknown algorithm %q (want %q or %q)",
			algorithm, AlgorithmAES256GCM, AlgorithmChaCha20Poly1305)
	}
	if err != nil {
		return nil, &InvalidKey{Reason: err.Error()}
	}

	if aead.NonceSize() != nonceSize {
		return nil, &InvalidKey{Reason: fmt.Sprintf("unexpected nonce size %d", aead.NonceSize())}
	}

	return &Envelope{aead: aead}, nil
}

// Seal encrypts plaintext, drawing a fresh random nonce from
// crypto/rand for every call. The returned slice is
// len(plaintext) + nonceSize + tagSize bytes: nonce, then ciphertext,
// then tag.
func (e *Envelope) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	out := make([]byte, 0, nonceSize+len(plaintext)+tagSize)
	out = append(out, nonce...)
	out = e.aead.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// Open decrypts a buffer produced by Seal. It returns
// MalformedCiphertext if the input is too short to hold a nonce at
// all, and AuthenticationFailure if the tag does not verify.
func (e *Envelope) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize {
		return nil, &MalformedCiphertext{
			Reason: fmt.Sprintf("length %d is shorter than nonce (%d)", len(sealed), nonceSize),
		}
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &AuthenticationFailure{}
	}
	return plaintext, nil
}

// LoadKeyFile reads a key written by the generate-key command: a file
// containing exactly KeySize*2 hex characters, optionally followed by
// a trailing newline.
func LoadKeyFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &InvalidKey{Reason: err.Error()}
	}

	text := strings.TrimSpace(string(raw))
	if len(text) != KeySize*2 {
		return nil, &InvalidKey{
			Reason: fmt.Sprintf("key file must contain %d hex characters, got %d", KeySize*2, len(text)),
		}
	}

	key, err := hex.DecodeString(text)
	if err != nil {
		return nil, &InvalidKey{Reason: "key file is not valid hex: " + err.Error()}
	}
	return key, nil
}

// GenerateKey returns KeySize fresh random bytes suitable for writing
// to a key file, hex-encoded.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("crypto: generating key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// IsAuthFailure reports whether err is (or wraps) an
// AuthenticationFailure.
func IsAuthFailure(err error) bool {
	var af *AuthenticationFailure
	return errors.As(err, &af)
}

// IsMalformed reports whether err is (or wraps) a MalformedCiphertext.
func IsMalformed(err error) bool {
	var mc *MalformedCiphertext
	return errors.As(err, &mc)
}
