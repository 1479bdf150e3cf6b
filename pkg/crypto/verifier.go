/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package crypto provides payload authenticity and at-rest protection primitives.
package crypto

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	jose "gopkg.in/square/go-jose.v2"
)

// ErrBadSignature is returned when a payload signature fails verification.
var ErrBadSignature = errors.New("signature verification failed")

// Verifier checks the authenticity token carried on a transport payload.
// The reconciliation engine depends on this abstraction only, so the concrete scheme
// can change without touching the state machine.
type Verifier interface {
	// Verify checks signature over payload against the issuer's public key.
	Verify(signature string, payload []byte, publicKey string) error
}

// NullVerifier accepts every payload. Used when the holder has no pinned issuer key.
type NullVerifier struct{}

// Verify always succeeds.
func (NullVerifier) Verify(string, []byte, string) error {
	return nil
}

// JWSVerifier verifies compact Ed25519 JWS signatures produced by JWSSigner.
type JWSVerifier struct{}

// Verify parses signature as a compact JWS, verifies it against the hex-encoded
// Ed25519 public key and checks the signed content matches payload.
func (JWSVerifier) Verify(signature string, payload []byte, publicKey string) error {
	keyBytes, err := hex.DecodeString(publicKey)
	if err != nil {
		return fmt.Errorf("failed to decode public key: %w", err)
	}

	if len(keyBytes) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key must be %d bytes", ErrBadSignature, ed25519.PublicKeySize)
	}

	jws, err := jose.ParseSigned(signature)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadSignature, err)
	}

	signed, err := jws.Verify(ed25519.PublicKey(keyBytes))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadSignature, err)
	}

	if !bytes.Equal(signed, payload) {
		return fmt.Errorf("%w: signed content does not match payload", ErrBadSignature)
	}

	return nil
}

// JWSSigner produces compact Ed25519 JWS signatures over payload bytes.
type JWSSigner struct {
	signer jose.Signer
}

// NewJWSSigner returns a signer for the given hex-encoded Ed25519 private key.
func NewJWSSigner(privateKey string) (*JWSSigner, error) {
	keyBytes, err := hex.DecodeString(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}

	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes", ed25519.PrivateKeySize)
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.EdDSA, Key: ed25519.PrivateKey(keyBytes)}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init jose signer: %w", err)
	}

	return &JWSSigner{signer: signer}, nil
}

// Sign returns the compact JWS over payload.
func (s *JWSSigner) Sign(payload []byte) (string, error) {
	jws, err := s.signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}

	compact, err := jws.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize signature: %w", err)
	}

	return compact, nil
}
