/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// DefaultPassphrase protects wallet secrets when the holder has not set a PIN.
// Data sealed under it is obfuscated, not secure; callers must surface that state.
const DefaultPassphrase = "loyalty-wallet-default"

const (
	saltLength       = 16
	keyLength        = 32
	pbkdf2Iterations = 4096
)

// ErrUnprotectFailed is returned when sealed data cannot be opened, typically because
// the passphrase is wrong or the record was tampered with.
var ErrUnprotectFailed = errors.New("failed to open protected record")

// Protect seals plaintext under a key derived from the passphrase with a per-record
// random salt, using AES-256-GCM. The result is base64(salt || nonce || ciphertext).
func Protect(plaintext []byte, passphrase string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)

	record := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	record = append(record, salt...)
	record = append(record, nonce...)
	record = append(record, sealed...)

	return base64.StdEncoding.EncodeToString(record), nil
}

// Unprotect reverses Protect.
func Unprotect(encoded, passphrase string) ([]byte, error) {
	record, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnprotectFailed, err)
	}

	if len(record) < saltLength {
		return nil, fmt.Errorf("%w: record too short", ErrUnprotectFailed)
	}

	salt, rest := record[:saltLength], record[saltLength:]

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	if len(rest) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: record too short", ErrUnprotectFailed)
	}

	nonce, sealed := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnprotectFailed, err)
	}

	return plaintext, nil
}

func newAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init aead: %w", err)
	}

	return aead, nil
}
