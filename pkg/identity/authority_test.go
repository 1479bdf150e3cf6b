/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package identity

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	t.Run("produces well-formed identity", func(t *testing.T) {
		id, err := Generate()
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(id.ID, DIDPrefix))
		require.Len(t, id.ID, len(DIDPrefix)+DIDSuffixLength)
		require.NotEmpty(t, id.PublicKey)
		require.NotEmpty(t, id.PrivateKeyMaterial)
		require.Len(t, id.PhraseWords(), PhraseWordCount)
		require.False(t, id.WeakEntropy)
	})

	t.Run("generated identity is restorable from its phrase", func(t *testing.T) {
		id, err := Generate()
		require.NoError(t, err)

		restored, err := DeriveFromRecoveryPhrase(id.PhraseWords())
		require.NoError(t, err)
		require.Equal(t, id.ID, restored.ID)
		require.Equal(t, id.PublicKey, restored.PublicKey)
		require.Equal(t, id.PrivateKeyMaterial, restored.PrivateKeyMaterial)
	})

	t.Run("distinct identities across calls", func(t *testing.T) {
		a, err := Generate()
		require.NoError(t, err)

		b, err := Generate()
		require.NoError(t, err)

		require.NotEqual(t, a.ID, b.ID)
	})
}

func TestDeriveFromRecoveryPhrase(t *testing.T) {
	phrase := []string{
		"apple", "birch", "candle", "delta", "eagle", "falcon",
		"garlic", "hammer", "igloo", "jungle", "kayak", "ladder",
	}

	t.Run("deterministic across calls", func(t *testing.T) {
		a, err := DeriveFromRecoveryPhrase(phrase)
		require.NoError(t, err)

		b, err := DeriveFromRecoveryPhrase(phrase)
		require.NoError(t, err)

		require.Equal(t, a.ID, b.ID)
		require.Equal(t, a.PublicKey, b.PublicKey)
		require.Equal(t, a.PrivateKeyMaterial, b.PrivateKeyMaterial)
	})

	t.Run("normalizes case and whitespace", func(t *testing.T) {
		messy := make([]string, len(phrase))
		for i, w := range phrase {
			messy[i] = " " + strings.ToUpper(w) + " "
		}

		a, err := DeriveFromRecoveryPhrase(phrase)
		require.NoError(t, err)

		b, err := DeriveFromRecoveryPhrase(messy)
		require.NoError(t, err)

		require.Equal(t, a.ID, b.ID)
	})

	t.Run("rejects wrong word count", func(t *testing.T) {
		_, err := DeriveFromRecoveryPhrase(phrase[:11])
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrInvalidRecoveryPhrase))
	})

	t.Run("rejects word outside the wordlist", func(t *testing.T) {
		bad := append([]string{}, phrase...)
		bad[4] = "notaword"

		_, err := DeriveFromRecoveryPhrase(bad)
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrInvalidRecoveryPhrase))
	})

	t.Run("different phrases yield different DIDs", func(t *testing.T) {
		other := append([]string{}, phrase...)
		other[0] = "zephyr"

		a, err := DeriveFromRecoveryPhrase(phrase)
		require.NoError(t, err)

		b, err := DeriveFromRecoveryPhrase(other)
		require.NoError(t, err)

		require.NotEqual(t, a.ID, b.ID)
	})
}
