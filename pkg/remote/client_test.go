/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package remote

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_PushJoin(t *testing.T) {
	t.Run("posts program to join endpoint", func(t *testing.T) {
		var received Program

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, joinPath, r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, nil)

		err := client.PushJoin(&Program{
			DID:      "did:loyal:holder1",
			ShopDID:  "did:loyal:shop1",
			ShopName: "Corner Store",
		})
		require.NoError(t, err)
		require.Equal(t, "did:loyal:holder1", received.DID)
	})

	t.Run("non-200 status is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		err := NewClient(srv.URL, nil).PushJoin(&Program{})
		require.Error(t, err)
	})

	t.Run("unreachable backend is an error", func(t *testing.T) {
		err := NewClient("http://localhost:1", nil).PushJoin(&Program{})
		require.Error(t, err)
	})
}

func TestClient_PushPointsUpdate(t *testing.T) {
	var received updateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, updatePath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, nil).PushPointsUpdate(&Program{
		DID:     "did:loyal:holder1",
		ShopDID: "did:loyal:shop1",
		Points:  90,
		Tier:    "Bronze",
	})
	require.NoError(t, err)
	require.Equal(t, 90, received.Points)
	require.Equal(t, "Bronze", received.Tier)
}

func TestClient_Programs(t *testing.T) {
	t.Run("fetches program list", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/loyalty-programs/by-did/did:loyal:holder1", r.URL.Path)

			programs := []*Program{{
				DID:        "did:loyal:holder1",
				ShopDID:    "did:loyal:shop1",
				ShopName:   "Corner Store",
				Points:     90,
				Tier:       "Bronze",
				IssuedDate: time.Now().UTC(),
			}}
			require.NoError(t, json.NewEncoder(w).Encode(programs))
		}))
		defer srv.Close()

		programs, err := NewClient(srv.URL, nil).Programs("did:loyal:holder1")
		require.NoError(t, err)
		require.Len(t, programs, 1)
		require.Equal(t, 90, programs[0].Points)
	})

	t.Run("invalid response body is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := w.Write([]byte("not json"))
			require.NoError(t, err)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, nil).Programs("did:loyal:holder1")
		require.Error(t, err)
	})
}
