/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package crypto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProtectUnprotect(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		sealed, err := Protect([]byte("secret material"), "1234")
		require.NoError(t, err)
		require.NotContains(t, sealed, "secret material")

		opened, err := Unprotect(sealed, "1234")
		require.NoError(t, err)
		require.Equal(t, []byte("secret material"), opened)
	})

	t.Run("distinct ciphertexts for same input", func(t *testing.T) {
		a, err := Protect([]byte("secret"), "pin")
		require.NoError(t, err)

		b, err := Protect([]byte("secret"), "pin")
		require.NoError(t, err)

		require.NotEqual(t, a, b)
	})

	t.Run("wrong passphrase fails", func(t *testing.T) {
		sealed, err := Protect([]byte("secret"), "right")
		require.NoError(t, err)

		_, err = Unprotect(sealed, "wrong")
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrUnprotectFailed))
	})

	t.Run("rejects malformed record", func(t *testing.T) {
		_, err := Unprotect("!!!not-base64!!!", "pin")
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrUnprotectFailed))

		_, err = Unprotect("c2hvcnQ=", "pin")
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrUnprotectFailed))
	})

	t.Run("default passphrase roundtrip", func(t *testing.T) {
		sealed, err := Protect([]byte("secret"), DefaultPassphrase)
		require.NoError(t, err)

		opened, err := Unprotect(sealed, DefaultPassphrase)
		require.NoError(t, err)
		require.Equal(t, []byte("secret"), opened)
	})
}
