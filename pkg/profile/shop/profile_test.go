/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package shop

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trustbloc/edge-core/pkg/storage"
	"github.com/trustbloc/edge-core/pkg/storage/memstore"
	mockstorage "github.com/trustbloc/edge-core/pkg/storage/mockstore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("test new - success", func(t *testing.T) {
		t.Parallel()

		record, err := New(memstore.NewProvider())
		require.NoError(t, err)
		require.NotNil(t, record)
	})

	t.Run("test new - fail to open store", func(t *testing.T) {
		t.Parallel()

		record, err := New(&mockstorage.Provider{ErrOpenStoreHandle: errors.New("error opening the handler")})
		require.Error(t, err)
		require.Contains(t, err.Error(), "error opening the handler")
		require.Nil(t, record)
	})
}

func TestProfile_SaveProfile(t *testing.T) {
	t.Parallel()

	t.Run("test save profile - success", func(t *testing.T) {
		t.Parallel()

		record, err := New(memstore.NewProvider())
		require.NoError(t, err)
		require.NotNil(t, record)

		value := &ProfileData{
			ID:        "profile1",
			Name:      "Corner Store",
			DID:       "did:loyal:6a51b1e6c6d94f1a9f2e2b8e7f3a4c5d",
			PublicKey: "abc123",
			URL:       "http://shop.example.com",
		}

		err = record.SaveProfile(value)
		require.NoError(t, err)

		k := getDBKey(value.ID)
		v, err := record.store.Get(k)
		require.NoError(t, err)
		require.NotEmpty(t, v)
	})

	t.Run("test save profile - validation failure", func(t *testing.T) {
		t.Parallel()

		record, err := New(memstore.NewProvider())
		require.NoError(t, err)
		require.NotNil(t, record)

		value := &ProfileData{}

		err = record.SaveProfile(value)
		require.Error(t, err)
		require.Contains(t, err.Error(), "profile id mandatory")

		value.ID = "profile1"
		err = record.SaveProfile(value)
		require.Error(t, err)
		require.Contains(t, err.Error(), "profile name mandatory")

		value.Name = "Corner Store"
		err = record.SaveProfile(value)
		require.Error(t, err)
		require.Contains(t, err.Error(), "profile did is invalid")

		value.DID = "did:loyal:6a51b1e6c6d94f1a9f2e2b8e7f3a4c5d"
		err = record.SaveProfile(value)
		require.Error(t, err)
		require.Contains(t, err.Error(), "shop url is invalid")
	})

	t.Run("test save profile - profile already exists", func(t *testing.T) {
		t.Parallel()

		record, err := New(memstore.NewProvider())
		require.NoError(t, err)
		require.NotNil(t, record)

		value := &ProfileData{
			ID:        "profile1",
			Name:      "Corner Store",
			DID:       "did:loyal:6a51b1e6c6d94f1a9f2e2b8e7f3a4c5d",
			PublicKey: "abc123",
			URL:       "http://shop.example.com",
		}

		err = record.SaveProfile(value)
		require.NoError(t, err)

		// try to save again
		err = record.SaveProfile(value)
		require.Error(t, err)
		require.Contains(t, err.Error(), "profile profile1 already exists")
	})
}

func TestGetProfile(t *testing.T) {
	t.Parallel()

	t.Run("test get profile - success", func(t *testing.T) {
		t.Parallel()

		memProvider := memstore.NewProvider()

		profileStore, err := New(memProvider)
		require.NoError(t, err)
		require.NotNil(t, profileStore)

		profileData := &ProfileData{
			ID: "shop-1",
		}

		profileJSON, err := json.Marshal(profileData)
		require.NoError(t, err)

		shopStore, err := memProvider.OpenStore(storeName)
		require.NoError(t, err)

		err = shopStore.Put(getDBKey(profileData.ID), profileJSON)
		require.NoError(t, err)

		resp, err := profileStore.GetProfile(profileData.ID)
		require.NoError(t, err)

		require.Equal(t, profileData, resp)
	})

	t.Run("test get profile - no data", func(t *testing.T) {
		t.Parallel()

		profileStore, err := New(memstore.NewProvider())
		require.NoError(t, err)
		require.NotNil(t, profileStore)

		resp, err := profileStore.GetProfile("shop-1")
		require.Error(t, err)
		require.True(t, errors.Is(err, storage.ErrValueNotFound))
		require.Nil(t, resp)
	})

	t.Run("test get profile - invalid json", func(t *testing.T) {
		t.Parallel()

		memProvider := memstore.NewProvider()

		profileStore, err := New(memProvider)
		require.NoError(t, err)
		require.NotNil(t, profileStore)

		shopStore, err := memProvider.OpenStore(storeName)
		require.NoError(t, err)

		err = shopStore.Put(getDBKey("shop-1"), []byte("invalid-data"))
		require.NoError(t, err)

		resp, err := profileStore.GetProfile("shop-1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid character")
		require.Nil(t, resp)
	})
}
