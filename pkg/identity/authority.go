/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package identity generates and re-derives self-issued wallet identities.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	weakrand "math/rand"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/trustbloc/edge-core/pkg/log"
)

var logger = log.New("loyalty-adapter/identity")

const (
	// DIDPrefix is the namespace prefix of all holder and shop DIDs issued here.
	DIDPrefix = "did:loyal:"

	// DIDSuffixLength is the fixed length of the hex suffix following DIDPrefix.
	DIDSuffixLength = 32

	// PhraseWordCount is the required number of recovery phrase tokens.
	PhraseWordCount = 12

	schemaVersion  = 1
	seedLength     = 32
	hkdfProtocolID = "loyalty-wallet-seed-v1"
)

// ErrInvalidRecoveryPhrase is returned when a recovery phrase has the wrong word count
// or contains a token outside the accepted wordlist.
var ErrInvalidRecoveryPhrase = errors.New("invalid recovery phrase")

// Identity is a holder's (or shop's) self-issued identity.
// PrivateKeyMaterial and RecoveryPhrase are secrets: they must only be persisted through
// the wallet store, which encrypts them at rest.
type Identity struct {
	ID                 string    `json:"id"`
	PublicKey          string    `json:"publicKey"`
	PrivateKeyMaterial string    `json:"privateKeyMaterial"`
	RecoveryPhrase     string    `json:"recoveryPhrase"`
	CreatedAt          time.Time `json:"createdAt"`
	SchemaVersion      int       `json:"schemaVersion"`

	// WeakEntropy is set when the crypto-strong source was unavailable and the identity
	// was drawn from a time-seeded generator instead. Never treat such an identity as
	// secure silently.
	WeakEntropy bool `json:"weakEntropy,omitempty"`
}

// Generate produces a fresh identity. It draws a random recovery phrase and runs the
// same derivation as DeriveFromRecoveryPhrase, so every generated identity is
// restorable from its phrase by construction.
func Generate() (*Identity, error) {
	words, weak := randomPhrase()

	id, err := DeriveFromRecoveryPhrase(words)
	if err != nil {
		return nil, fmt.Errorf("failed to derive identity from generated phrase: %w", err)
	}

	if weak {
		logger.Warnf("crypto-strong entropy source unavailable, identity %s generated from weak entropy", id.ID)

		id.WeakEntropy = true
	}

	return id, nil
}

// DeriveFromRecoveryPhrase deterministically re-derives an identity from a 12-word
// recovery phrase. The same phrase always yields the same DID and key material.
func DeriveFromRecoveryPhrase(words []string) (*Identity, error) {
	if len(words) != PhraseWordCount {
		return nil, fmt.Errorf("%w: expected %d words, got %d", ErrInvalidRecoveryPhrase, PhraseWordCount, len(words))
	}

	normalized := make([]string, len(words))

	for i, w := range words {
		normalized[i] = strings.ToLower(strings.TrimSpace(w))

		if _, ok := wordIndex[normalized[i]]; !ok {
			return nil, fmt.Errorf("%w: word %d is not in the accepted wordlist", ErrInvalidRecoveryPhrase, i+1)
		}
	}

	phrase := strings.Join(normalized, " ")

	seed := make([]byte, seedLength)

	h := hkdf.New(sha256.New, []byte(phrase), nil, []byte(hkdfProtocolID))
	if _, err := io.ReadFull(h, seed); err != nil {
		return nil, fmt.Errorf("failed to derive identity seed: %w", err)
	}

	privateKey := ed25519.NewKeyFromSeed(seed)
	publicKey := privateKey.Public().(ed25519.PublicKey)

	sum := sha256.Sum256(publicKey)

	return &Identity{
		ID:                 DIDPrefix + hex.EncodeToString(sum[:DIDSuffixLength/2]),
		PublicKey:          hex.EncodeToString(publicKey),
		PrivateKeyMaterial: hex.EncodeToString(privateKey),
		RecoveryPhrase:     phrase,
		CreatedAt:          time.Now().UTC(),
		SchemaVersion:      schemaVersion,
	}, nil
}

// PhraseWords splits an identity's stored phrase back into its tokens.
func (i *Identity) PhraseWords() []string {
	return strings.Split(i.RecoveryPhrase, " ")
}

// randomPhrase draws 12 wordlist indices from the crypto-strong source. If that source
// fails it falls back to a time-seeded generator and reports the degraded state.
func randomPhrase() (words []string, weak bool) {
	words = make([]string, PhraseWordCount)

	buf := make([]byte, 2*PhraseWordCount)

	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		logger.Warnf("crypto/rand unavailable, falling back to weak entropy: %s", err)

		src := weakrand.New(weakrand.NewSource(time.Now().UnixNano()))

		for i := range words {
			words[i] = wordlist[src.Intn(len(wordlist))]
		}

		return words, true
	}

	for i := range words {
		idx := binary.BigEndian.Uint16(buf[2*i:]) % uint16(len(wordlist))
		words[i] = wordlist[idx]
	}

	return words, false
}
